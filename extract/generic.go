package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/guardline/brandscan/identify"
	"github.com/guardline/brandscan/models"
)

// maxAncestorClimb bounds the upward walk from a price node to its card.
const maxAncestorClimb = 6

// priceSymbols mark a text node as a potential price.
var priceSymbols = []string{"₹", "$", "€", "£", "Rs", "USD", "INR", "MRP"}

// invisibleTags never contain user-visible prices.
var invisibleTags = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "head": {},
	"meta": {}, "link": {}, "title": {},
}

// chromeHints in an ancestor's class mean the walk has left the product grid
// and entered page furniture.
var chromeHints = []string{"header", "menu", "filter", "search-summary", "nav", "footer"}

// resultCountRe rejects search-summary text masquerading as a title
// ("1-24 of 312 results", "312 items found").
var resultCountRe = regexp.MustCompile(`(?i)(\b\d[\d,]*\+?\s*results?\b|\bitems?\s+found\b)`)

// Generic is the price-anchored bottom-up extractor for unknown sites: find
// price-looking text nodes, climb to the nearest link-bearing container, and
// treat that container as a product card.
type Generic struct {
	Brands identify.BrandMatcher
}

func (g *Generic) Name() string { return "Generic" }

func (g *Generic) Extract(_ context.Context, page *Page) []*models.ProductRecord {
	var priceNodes []*html.Node
	for _, root := range page.Doc.Nodes {
		findPriceNodes(root, &priceNodes)
	}

	var products []*models.ProductRecord
	seenURLs := make(map[string]struct{})

	for _, node := range priceNodes {
		card := climbToCard(node)
		if card == nil {
			continue
		}
		cardSel := goquery.NewDocumentFromNode(card).Selection

		link := cardSel.Find("a[href]").First()
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
			continue
		}
		absURL := absoluteURL(page.Raw.FinalURL, page.Target.Domain, href)
		if _, dup := seenURLs[absURL]; dup {
			continue
		}

		name := cardTitle(cardSel, link)
		if len(name) < minTitleLen || resultCountRe.MatchString(name) {
			continue
		}
		if !g.Brands.Matches(name, page.Target.Brand) {
			continue
		}

		rec := newRecord(page.Target.Domain, name, g.Name())
		rec.Price = strings.TrimSpace(node.Data)
		rec.URL = absURL
		rec.Seller = identify.Seller(cardSel, page.Target.Domain, page.Target.Brand)
		rec.Availability = identify.Availability(cardSel)

		products = append(products, rec)
		seenURLs[absURL] = struct{}{}
	}

	return products
}

// findPriceNodes collects text nodes that plausibly hold a price: visible,
// short, carrying a currency signature, and free of code-like tokens (long
// or symbol-laden nodes are inline script fragments, not prices).
func findPriceNodes(n *html.Node, out *[]*html.Node) {
	if n.Type == html.ElementNode {
		if _, invisible := invisibleTags[n.Data]; invisible {
			return
		}
	}
	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text == "" || len(text) > 40 {
			return
		}
		if strings.ContainsAny(text, "{;=") {
			return
		}
		for _, sym := range priceSymbols {
			if strings.Contains(text, sym) {
				*out = append(*out, n)
				return
			}
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		findPriceNodes(c, out)
	}
}

// climbToCard walks up from a price node to the first ancestor containing a
// hyperlink. The walk aborts on chrome-hinting classes and never goes past
// body.
func climbToCard(n *html.Node) *html.Node {
	parent := n.Parent
	for i := 0; i < maxAncestorClimb && parent != nil; i++ {
		if parent.Type == html.ElementNode {
			if parent.Data == "body" || parent.Data == "html" {
				return nil
			}
			if classHintsChrome(parent) {
				return nil
			}
			if containsLink(parent) {
				return parent
			}
		}
		parent = parent.Parent
	}
	return nil
}

func classHintsChrome(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		class := strings.ToLower(attr.Val)
		for _, hint := range chromeHints {
			if strings.Contains(class, hint) {
				return true
			}
		}
	}
	return false
}

func containsLink(n *html.Node) bool {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, attr := range n.Attr {
			if attr.Key == "href" {
				return true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if containsLink(c) {
			return true
		}
	}
	return false
}

// cardTitle extracts a product name from a card: the main link's text,
// falling back to the nearest heading, then image alt text.
func cardTitle(card *goquery.Selection, link *goquery.Selection) string {
	if name := strings.TrimSpace(link.Text()); len(name) >= minTitleLen {
		return name
	}
	if name := strings.TrimSpace(card.Find("h1, h2, h3, h4").First().Text()); len(name) >= minTitleLen {
		return name
	}
	alt, _ := card.Find("img[alt]").First().Attr("alt")
	return strings.TrimSpace(alt)
}
