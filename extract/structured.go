package extract

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/guardline/brandscan/identify"
	"github.com/guardline/brandscan/models"
)

// structuredWalkDepth bounds the JSON-LD tree traversal.
const structuredWalkDepth = 100

// Structured extracts products from embedded Schema.org JSON-LD payloads.
// Malformed payloads are skipped; the strategy then simply yields fewer (or
// zero) records and the cascade moves on.
type Structured struct {
	Brands identify.BrandMatcher
}

func (s *Structured) Name() string { return "JSON-LD" }

func (s *Structured) Extract(_ context.Context, page *Page) []*models.ProductRecord {
	var products []*models.ProductRecord

	page.Doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, script *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
			return
		}
		s.walk(data, page, &products)
	})

	return products
}

// walk traverses a JSON-LD tree with an explicit stack and a depth cap,
// collecting Product/Offer nodes and recursing into ItemList elements.
func (s *Structured) walk(root any, page *Page, out *[]*models.ProductRecord) {
	type frame struct {
		node  any
		depth int
	}
	stack := []frame{{root, 0}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > structuredWalkDepth {
			continue
		}

		switch node := f.node.(type) {
		case map[string]any:
			switch {
			case hasType(node, "Product"), hasType(node, "Offer"):
				if rec := s.flatten(node, page); rec != nil {
					*out = append(*out, rec)
				}
			case hasType(node, "ItemList"):
				if items, ok := node["itemListElement"].([]any); ok {
					for _, item := range items {
						// ListItem wrappers nest the product under "item";
						// unwrap here so the wrapper never reaches the default
						// branch and gets its product visited a second time.
						if wrapper, ok := item.(map[string]any); ok {
							if inner, ok := wrapper["item"]; ok {
								stack = append(stack, frame{inner, f.depth + 1})
								continue
							}
						}
						stack = append(stack, frame{item, f.depth + 1})
					}
				}
			default:
				for _, v := range node {
					stack = append(stack, frame{v, f.depth + 1})
				}
			}
		case []any:
			for _, item := range node {
				stack = append(stack, frame{item, f.depth + 1})
			}
		}
	}
}

// flatten converts a Schema.org Product/Offer node into a ProductRecord,
// taking the first offer's price, currency, availability and seller.
// Returns nil when the node has no name or fails the brand gate.
func (s *Structured) flatten(node map[string]any, page *Page) *models.ProductRecord {
	name := jsonString(node["name"])
	if name == "" || !s.Brands.Matches(name, page.Target.Brand) {
		return nil
	}

	rec := newRecord(page.Target.Domain, name, s.Name())

	offers := node["offers"]
	if list, ok := offers.([]any); ok && len(list) > 0 {
		offers = list[0]
	}
	if offer, ok := offers.(map[string]any); ok {
		if p := jsonString(offer["price"]); p != "" {
			rec.Price = p
		}
		rec.Currency = jsonString(offer["priceCurrency"])
		if avail := jsonString(offer["availability"]); avail != "" {
			avail = strings.TrimPrefix(avail, "http://schema.org/")
			avail = strings.TrimPrefix(avail, "https://schema.org/")
			rec.Availability = avail
		}
		if seller, ok := offer["seller"].(map[string]any); ok {
			if n := jsonString(seller["name"]); n != "" {
				rec.Seller = n
			}
		}
	}

	if u := jsonString(node["url"]); u != "" {
		rec.URL = absoluteURL(page.Raw.FinalURL, page.Target.Domain, u)
	}

	// No explicit seller, but the brand is in the name: attribute the brand.
	if rec.Seller == models.SellerUnknown &&
		strings.Contains(strings.ToLower(name), strings.ToLower(page.Target.Brand)) {
		rec.Seller = page.Target.Brand
	}

	return rec
}

// hasType reports whether a JSON-LD node's @type (string or list) includes want.
func hasType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return t == want
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// jsonString renders a JSON scalar as free text; prices in the wild arrive
// as both strings and numbers.
func jsonString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
