package extract

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/guardline/brandscan/identify"
	"github.com/guardline/brandscan/models"
)

// hiddenWalkDepth caps the state-tree traversal. Client-state blobs nest
// deeply but product data never sits beyond this.
const hiddenWalkDepth = 100

// stateAssignRe captures the object assigned to a global state variable
// (window.__INITIAL_STATE__, window.__PRELOADED_STATE__, ...). Greedy to the
// last brace so a trailing semicolon stays outside the capture.
var stateAssignRe = regexp.MustCompile(`(?s)window\.__[A-Z_]+__\s*=\s*(\{.*\})`)

// priceKeys are the aliases under which marketplaces expose a price in
// client state, checked in order.
var priceKeys = []string{"price", "finalPrice", "offerPrice", "displayPrice", "listingPrice"}

// HiddenState extracts products from client-state JSON embedded in script
// payloads. A site-specific fast path for the Flipkart page-data shape is
// tried before the generic walk. Parse failures are contained per script.
type HiddenState struct {
	Brands identify.BrandMatcher
}

func (h *HiddenState) Name() string { return "Hidden State" }

func (h *HiddenState) Extract(_ context.Context, page *Page) []*models.ProductRecord {
	var products []*models.ProductRecord
	seen := make(map[string]struct{})

	page.Doc.Find("script").Each(func(_ int, script *goquery.Selection) {
		content := script.Text()
		if !strings.Contains(content, "window.__") {
			return
		}
		m := stateAssignRe.FindStringSubmatch(content)
		if m == nil {
			return
		}

		var state any
		if err := json.Unmarshal([]byte(m[1]), &state); err != nil {
			return
		}

		found := h.slotFastPath(state, page, seen)
		if len(found) == 0 {
			found = h.walk(state, page, seen)
		}
		products = append(products, found...)
	})

	return products
}

// slotFastPath digs through the known slot → widget → products layout of
// Flipkart's pageDataV4 blob. Much cheaper than walking the whole state
// tree, which can hold tens of thousands of nodes.
func (h *HiddenState) slotFastPath(state any, page *Page, seen map[string]struct{}) []*models.ProductRecord {
	data := digMap(state, "pageDataV4", "page", "data")
	if data == nil {
		return nil
	}

	var products []*models.ProductRecord
	for _, slot := range data {
		widgets, ok := slot.([]any)
		if !ok {
			continue
		}
		for _, w := range widgets {
			widget, ok := w.(map[string]any)
			if !ok {
				continue
			}
			items, ok := digMap(widget, "widget", "data")["products"].([]any)
			if !ok {
				continue
			}
			for _, item := range items {
				info := digMap(item, "productInfo")
				var node any = info["value"]
				if node == nil {
					node = item
				}
				if rec := h.candidate(node, page, seen); rec != nil {
					products = append(products, rec)
				}
			}
		}
	}
	return products
}

// walk scans the whole state tree with an explicit stack and a depth cap,
// emitting every dict that looks like a product.
func (h *HiddenState) walk(state any, page *Page, seen map[string]struct{}) []*models.ProductRecord {
	type frame struct {
		node  any
		depth int
	}
	var products []*models.ProductRecord
	stack := []frame{{state, 0}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > hiddenWalkDepth {
			continue
		}

		switch node := f.node.(type) {
		case map[string]any:
			if rec := h.candidate(node, page, seen); rec != nil {
				products = append(products, rec)
			}
			for _, v := range node {
				stack = append(stack, frame{v, f.depth + 1})
			}
		case []any:
			for _, item := range node {
				stack = append(stack, frame{item, f.depth + 1})
			}
		}
	}
	return products
}

// candidate accepts a state node as a product when it exposes both a
// name-like and a price-like key, passes the brand gate, and is not a
// duplicate within this pass.
func (h *HiddenState) candidate(v any, page *Page, seen map[string]struct{}) *models.ProductRecord {
	node, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	name := stateName(node)
	price := statePrice(node)
	if name == "" || price == "" {
		return nil
	}
	if !h.Brands.Matches(name, page.Target.Brand) {
		return nil
	}

	key := strings.ToLower(name) + "|" + price
	if _, dup := seen[key]; dup {
		return nil
	}
	seen[key] = struct{}{}

	rec := newRecord(page.Target.Domain, name, h.Name())
	rec.Price = price
	if u := jsonString(node["url"]); u != "" {
		rec.URL = absoluteURL(page.Raw.FinalURL, page.Target.Domain, u)
	} else if u := jsonString(node["baseUrl"]); u != "" {
		rec.URL = absoluteURL(page.Raw.FinalURL, page.Target.Domain, u)
	}
	if strings.Contains(strings.ToLower(name), strings.ToLower(page.Target.Brand)) {
		rec.Seller = page.Target.Brand
	}
	return rec
}

// stateName resolves a node's name from its aliases, including the nested
// titles.title shape.
func stateName(node map[string]any) string {
	if n := jsonString(node["name"]); n != "" {
		return n
	}
	if n := jsonString(node["title"]); n != "" {
		return n
	}
	return jsonString(digMap(node, "titles")["title"])
}

// statePrice resolves a node's price from its aliases, including the nested
// pricing.finalPrice.value / pricing.displayPrice.value shapes.
func statePrice(node map[string]any) string {
	for _, key := range priceKeys {
		if p := jsonString(node[key]); p != "" {
			return p
		}
	}
	pricing := digMap(node, "pricing")
	if pricing == nil {
		return ""
	}
	if p := jsonString(digMap(pricing, "finalPrice")["value"]); p != "" {
		return p
	}
	return jsonString(digMap(pricing, "displayPrice")["value"])
}

// digMap follows a key path through nested maps, returning nil when any hop
// is missing or not a map. Indexing a nil map is safe, which keeps callers
// short.
func digMap(v any, path ...string) map[string]any {
	node, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range path {
		node, ok = node[key].(map[string]any)
		if !ok {
			return nil
		}
	}
	return node
}
