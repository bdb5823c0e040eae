package identify

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Seller resolution is an ordered, short-circuiting pipeline over a product
// card fragment:
//
//  1. regex capture after trigger phrases, terminated by a connector word
//  2. candidate cleanup (ratings, color parentheticals, repeated halves,
//     embedded trigger truncation)
//  3. validation gates (length, word count, garbage prefixes, blocked
//     substrings, blocked tokens)
//  4. text-node trigger scan
//  5. seller-link scan
//  6. brand attribution fallback
//
// Each cleanup rule and gate is a named function so it can be tested in
// isolation from the pipeline.

// sellerTriggerRe captures the phrase following a seller trigger, non-greedy
// up to a connector word or end of text. "brand" is the weakest trigger and
// is listed with the rest; the gates weed out its false positives.
var sellerTriggerRe = regexp.MustCompile(
	`(?i)(?:sold by|seller|courtesy of|merchant|importer|marketed by|brand)[\s:-]+` +
		`([A-Za-z0-9\s&'.,()_-]+?)(?:\s+(?:and|is|ships|fulfilled|payment)\b|$)`)

var (
	ratingSuffixRe     = regexp.MustCompile(`(?i)\d+(\.\d+)?\s?(stars?|ratings?|reviews?)`)
	colorParentheticRe = regexp.MustCompile(`(?i)\s*\((black|grey|gray|white|blue|red|green|silver|gold)\)`)
)

// nodeTriggers are scanned against individual text nodes in step 4. They are
// broader than the regex triggers because node boundaries give more context.
var nodeTriggers = []string{"sold by", "merchant", "importer", "vendor", "shop name", "distributed by"}

// embeddedTriggers re-appearing inside a captured candidate mark the start of
// a second clause that must be cut off ("Cocoblu Retail Sold by ...").
var embeddedTriggers = []string{"sold by", "ships from", "distributed by"}

var garbagePrefixes = []string{"who offers", "that you chose", "items that", "customers who"}

// blockedSubstrings are site-chrome terms that never appear in a real seller name.
var blockedSubstrings = []string{
	"amazon", "available", "more buying", "details",
	"installation", "add to cart", "warranty",
	"protection plan", "service", "get it", "tomorrow",
	"free delivery", "days", "replacement", "dispatched",
	"customer service",
}

var blockedTokens = map[string]struct{}{
	"cart":    {},
	"plan":    {},
	"here":    {},
	"brand":   {},
	"unknown": {},
}

// sellerLinkWords flag a hyperlink whose text points at a storefront.
var sellerLinkWords = []string{"store", "seller", "profile", "shop"}

// Seller resolves the transacting entity from a product card fragment.
// Returns models.SellerUnknown's value ("N/A") when nothing survives the
// gates. Deterministic given (fragment, domain, brand).
func Seller(card *goquery.Selection, domain, brand string) string {
	nodes := TextNodes(card)
	fullText := strings.Join(nodes, " ")

	// 1–3. Regex capture, cleanup, gates.
	for _, m := range sellerTriggerRe.FindAllStringSubmatch(fullText, -1) {
		if s, ok := acceptCandidate(m[1]); ok {
			return s
		}
	}

	// 4. Individual text nodes: trigger embedded mid-node takes the
	// remainder of that node, a trigger filling the node takes the next one.
	for i, node := range nodes {
		lower := strings.ToLower(node)
		for _, trigger := range nodeTriggers {
			idx := strings.Index(lower, trigger)
			if idx < 0 {
				continue
			}
			var candidate string
			if len(node) > idx+len(trigger)+2 {
				candidate = strings.Trim(node[idx+len(trigger):], ": -")
			} else if i+1 < len(nodes) {
				candidate = nodes[i+1]
			}
			if s, ok := acceptCandidate(candidate); ok {
				return s
			}
		}
	}

	// 5. Storefront links.
	if s := sellerFromLinks(card); s != "" {
		return s
	}

	// 6. Brand attribution: a brand storefront or a card that mentions the
	// brand is attributed to the brand itself.
	if brand != "" {
		brandLower := strings.ToLower(brand)
		if strings.Contains(strings.ToLower(domain), brandLower) ||
			strings.Contains(strings.ToLower(fullText), brandLower) {
			return titleCase(brand)
		}
	}

	return "N/A"
}

// acceptCandidate runs a raw capture through cleanup and every validation
// gate, returning the title-cased seller on success.
func acceptCandidate(raw string) (string, bool) {
	candidate := truncateEmbeddedTrigger(strings.TrimSpace(raw))
	candidate = collapseRepeatedHalves(candidate)
	candidate = stripRatingSuffix(candidate)
	candidate = stripColorParenthetic(candidate)
	candidate = strings.TrimSpace(candidate)

	if !gateLength(candidate) || !gateWordCount(candidate) {
		return "", false
	}
	lower := strings.ToLower(candidate)
	if !gateGarbagePrefix(lower) || !gateBlockedSubstrings(lower) || !gateBlockedTokens(lower) {
		return "", false
	}
	return titleCase(candidate), true
}

// --- cleanup rules ---

// stripRatingSuffix removes trailing rating noise ("4.5 stars", "120 reviews").
func stripRatingSuffix(s string) string {
	return strings.TrimSpace(ratingSuffixRe.ReplaceAllString(s, ""))
}

// stripColorParenthetic removes color variants appended to a name ("(Black)").
func stripColorParenthetic(s string) string {
	return strings.TrimSpace(colorParentheticRe.ReplaceAllString(s, ""))
}

// collapseRepeatedHalves folds a candidate made of the same phrase twice
// back-to-back ("Cocoblu Retail Cocoblu Retail") into a single copy.
func collapseRepeatedHalves(s string) string {
	words := strings.Fields(s)
	if len(words) >= 4 && len(words)%2 == 0 {
		mid := len(words) / 2
		first := strings.Join(words[:mid], " ")
		second := strings.Join(words[mid:], " ")
		if strings.EqualFold(first, second) {
			return first
		}
	}
	return s
}

// truncateEmbeddedTrigger cuts a candidate at a trigger phrase that re-appears
// inside it, unless the trigger sits at the very start.
func truncateEmbeddedTrigger(s string) string {
	lower := strings.ToLower(s)
	for _, kw := range embeddedTriggers {
		if idx := strings.Index(lower, kw); idx > 2 {
			s = strings.TrimSpace(s[:idx])
			lower = strings.ToLower(s)
		}
	}
	return s
}

// --- validation gates ---

func gateLength(s string) bool { return len(s) > 2 && len(s) < 60 }

func gateWordCount(s string) bool { return len(strings.Fields(s)) <= 6 }

func gateGarbagePrefix(lower string) bool {
	for _, p := range garbagePrefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	return true
}

func gateBlockedSubstrings(lower string) bool {
	for _, w := range blockedSubstrings {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return true
}

func gateBlockedTokens(lower string) bool {
	_, blocked := blockedTokens[lower]
	return !blocked
}

// --- link scan ---

// sellerFromLinks inspects the fragment's hyperlinks for storefront paths
// (marketplace seller URLs) or storefront-flavored link text.
func sellerFromLinks(card *goquery.Selection) string {
	var found string
	card.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		hrefLower := strings.ToLower(href)

		// eBay user pages carry the seller name in the path.
		if idx := strings.Index(hrefLower, "/usr/"); idx >= 0 {
			rest := href[idx+len("/usr/"):]
			if end := strings.IndexAny(rest, "/?"); end >= 0 {
				rest = rest[:end]
			}
			if s, ok := acceptCandidate(rest); ok {
				found = s
				return false
			}
		}

		// Amazon seller links ("/sp?...seller=ID") name the seller in the text.
		isSellerHref := strings.Contains(hrefLower, "seller=") || strings.Contains(hrefLower, "/sp?") || strings.Contains(hrefLower, "_ssn=")

		text := strings.TrimSpace(a.Text())
		textLower := strings.ToLower(text)
		isSellerText := false
		for _, w := range sellerLinkWords {
			if strings.Contains(textLower, w) {
				isSellerText = true
				break
			}
		}
		if !isSellerHref && !isSellerText {
			return true
		}

		text = stripStoreWrapper(text)
		if s, ok := acceptCandidate(text); ok {
			found = s
			return false
		}
		return true
	})
	return found
}

// stripStoreWrapper removes the "Visit the ... Store" framing marketplaces
// put around brand storefront links.
func stripStoreWrapper(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "visit the ") {
		s = s[len("visit the "):]
	}
	s = strings.TrimSpace(s)
	lower = strings.ToLower(s)
	if strings.HasSuffix(lower, " store") {
		s = s[:len(s)-len(" store")]
	}
	return strings.TrimSpace(s)
}
