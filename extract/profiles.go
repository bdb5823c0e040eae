package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// MarketplaceProfile is the extraction rule set for one known site. Profiles
// are data: adding a marketplace means adding an entry to the registry, not
// new branching logic. Every chain is tried in order, first hit wins.
type MarketplaceProfile struct {
	Name string

	// Match selects this profile for a domain.
	Match func(domain string) bool

	// Cards locates product card containers.
	Cards []func(doc *goquery.Document) *goquery.Selection

	// Title, Link and Price extract fields from a card.
	Title []func(card *goquery.Selection) string
	Link  []func(card *goquery.Selection) string
	Price []func(card *goquery.Selection) string

	// Seller rules run before the shared seller pipeline; most profiles
	// leave this empty and rely on the pipeline entirely.
	Seller []func(card *goquery.Selection) string

	// SkipTitles discards pseudo-cards by title content ("Shop on eBay").
	SkipTitles []string

	// SearchURL builds the search-results URL for a brand query.
	SearchURL func(domain, encodedBrand string) string
}

// Precompiled card selectors. cascadia selectors satisfy goquery.Matcher,
// so the per-card chains can reuse them without re-parsing.
var (
	amazonCardSel   = cascadia.MustCompile(`div[data-component-type='s-search-result']`)
	ebayListSel     = cascadia.MustCompile(`ul.srp-results > li.s-item, ul.b-list__items_nofooter > li.s-item`)
	ebayAnyItemSel  = cascadia.MustCompile(`li.s-item, div.s-item__wrapper`)
	flipkartCardSel = cascadia.MustCompile(`div._1AtVbE`)
	nykaaCardSel    = cascadia.MustCompile(`div[class*='product-card']`)
	nykaaLinkSel    = cascadia.MustCompile(`a[href*='/p/']`)
)

// profiles is the marketplace registry, consulted in order.
var profiles = []*MarketplaceProfile{
	{
		Name:  "Amazon",
		Match: domainContains("amazon"),
		Cards: []func(*goquery.Document) *goquery.Selection{
			matcherCards(amazonCardSel),
		},
		Title: []func(*goquery.Selection) string{
			textOf("h2 a"),
			textOf("a.a-text-normal"),
			spanWrappedLinkText("span.a-text-normal"),
		},
		Link: []func(*goquery.Selection) string{
			hrefOf("h2 a[href]"),
			hrefOf("a.a-text-normal[href]"),
		},
		Price: []func(*goquery.Selection) string{
			amazonDecomposedPrice,
			textOf("span.a-price .a-offscreen"),
			textOf("span.a-price"),
		},
		SearchURL: func(domain, encoded string) string {
			base := ensureScheme(domain)
			// Force www for Amazon to reduce redirects and bot checks.
			if !strings.Contains(base, "www.") {
				base = strings.Replace(base, "://", "://www.", 1)
			}
			return base + "/s?k=" + encoded
		},
	},
	{
		Name:  "eBay",
		Match: domainContains("ebay"),
		Cards: []func(*goquery.Document) *goquery.Selection{
			matcherCards(ebayListSel),
			matcherCards(ebayAnyItemSel),
		},
		Title: []func(*goquery.Selection) string{
			textOf("div.s-item__title"),
			textOf("h3.s-item__title"),
		},
		Link: []func(*goquery.Selection) string{
			hrefOf("a.s-item__link"),
			hrefOf("a[href]"),
		},
		Price: []func(*goquery.Selection) string{
			textOf("span.s-item__price"),
		},
		Seller: []func(*goquery.Selection) string{
			textOf("span.s-item__seller-info-text"),
		},
		SkipTitles: []string{"Shop on eBay"},
		SearchURL: func(_, encoded string) string {
			return "https://www.ebay.com/sch/i.html?_nkw=" + encoded
		},
	},
	{
		Name:  "Flipkart",
		Match: domainContains("flipkart"),
		Cards: []func(*goquery.Document) *goquery.Selection{
			matcherCards(flipkartCardSel),
		},
		Title: []func(*goquery.Selection) string{
			textOf("div._4rR01T"), // list view
			textOf("a.s1Q9rs"),    // grid view
		},
		Link: []func(*goquery.Selection) string{
			hrefOf("a.s1Q9rs[href]"),
			hrefOf("a._1fQZEK[href]"),
			hrefOf("a[href]"),
		},
		Price: []func(*goquery.Selection) string{
			textOf("div._30jeq3"),
		},
		SearchURL: func(domain, encoded string) string {
			return ensureScheme(domain) + "/search?q=" + encoded
		},
	},
	{
		Name:  "Nykaa",
		Match: domainContains("nykaa"),
		Cards: []func(*goquery.Document) *goquery.Selection{
			matcherCards(nykaaCardSel),
			nykaaLinkParents,
		},
		Title: []func(*goquery.Selection) string{
			textOf("div.css-xrzmfa"),
			textOf("div.name"),
			textOf("a.css-qlopj4"),
		},
		Link: []func(*goquery.Selection) string{
			hrefOf("a[href]"),
		},
		Price: []func(*goquery.Selection) string{
			textOf("span.css-111z9ua"),
			textOf("div.price"),
		},
		SearchURL: func(_, encoded string) string {
			return "https://www.nykaa.com/search/result/?q=" + encoded
		},
	},
}

// ProfileFor returns the marketplace profile matching a domain, or nil for
// unknown sites (which fall through to the hidden-state and generic
// strategies).
func ProfileFor(domain string) *MarketplaceProfile {
	for _, p := range profiles {
		if p.Match(domain) {
			return p
		}
	}
	return nil
}

// --- chain helpers ---

func domainContains(sub string) func(string) bool {
	return func(domain string) bool {
		return strings.Contains(strings.ToLower(domain), sub)
	}
}

func matcherCards(sel cascadia.Selector) func(*goquery.Document) *goquery.Selection {
	return func(doc *goquery.Document) *goquery.Selection {
		return doc.FindMatcher(sel)
	}
}

// nykaaLinkParents recovers cards on markup with hashed class names by
// walking up from product links ("/p/...") to their containers.
func nykaaLinkParents(doc *goquery.Document) *goquery.Selection {
	return doc.FindMatcher(nykaaLinkSel).Parent()
}

func textOf(selector string) func(*goquery.Selection) string {
	return func(card *goquery.Selection) string {
		return strings.TrimSpace(card.Find(selector).First().Text())
	}
}

func hrefOf(selector string) func(*goquery.Selection) string {
	return func(card *goquery.Selection) string {
		href, _ := card.Find(selector).First().Attr("href")
		return strings.TrimSpace(href)
	}
}

// spanWrappedLinkText handles title spans whose direct parent is the link.
func spanWrappedLinkText(selector string) func(*goquery.Selection) string {
	return func(card *goquery.Selection) string {
		span := card.Find(selector).First()
		if span.Length() == 0 {
			return ""
		}
		if parent := span.Parent(); goquery.NodeName(parent) == "a" {
			return strings.TrimSpace(parent.Text())
		}
		return ""
	}
}

// amazonDecomposedPrice rebuilds a price from Amazon's whole/fraction spans,
// which survive layout changes better than the combined text.
func amazonDecomposedPrice(card *goquery.Selection) string {
	whole := strings.TrimSpace(card.Find("span.a-price-whole").First().Text())
	if whole == "" {
		return ""
	}
	symbol := strings.TrimSpace(card.Find("span.a-price-symbol").First().Text())
	fraction := strings.TrimSpace(card.Find("span.a-price-fraction").First().Text())
	price := symbol + whole
	if fraction != "" && !strings.HasSuffix(whole, fraction) {
		if !strings.HasSuffix(price, ".") {
			price += "."
		}
		price += fraction
	}
	return price
}

// ensureScheme prefixes https:// when the domain carries no scheme.
func ensureScheme(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return strings.TrimRight(domain, "/")
	}
	return "https://" + strings.TrimRight(domain, "/")
}
