package identify

import "strings"

// BrandMatcher decides whether a candidate product name belongs to a queried
// brand. Pure and safe for concurrent use.
//
// MinTokenLen is the length a brand token must exceed to count in the
// multi-word partial match and in coverage scoring. The threshold is a
// heuristic, so it is configuration rather than a constant.
type BrandMatcher struct {
	MinTokenLen int
}

// Matches reports whether name plausibly belongs to brand: either the whole
// brand appears as a case-insensitive substring, or — for multi-word brands —
// any sufficiently long brand token does.
func (m BrandMatcher) Matches(name, brand string) bool {
	name = strings.ToLower(name)
	brand = strings.ToLower(strings.TrimSpace(brand))
	if brand == "" || name == "" {
		return false
	}
	if strings.Contains(name, brand) {
		return true
	}
	tokens := strings.Fields(brand)
	if len(tokens) < 2 {
		return false
	}
	for _, tok := range tokens {
		if len(tok) > m.MinTokenLen && strings.Contains(name, tok) {
			return true
		}
	}
	return false
}

// TokenCoverage returns the fraction of qualifying brand tokens present in
// text. Used to classify pages where no strategy extracted products: high
// coverage means the brand is mentioned even though listings were unparseable.
func (m BrandMatcher) TokenCoverage(text, brand string) float64 {
	text = strings.ToLower(text)
	var total, hits int
	for _, tok := range strings.Fields(strings.ToLower(brand)) {
		if len(tok) <= m.MinTokenLen {
			continue
		}
		total++
		if strings.Contains(text, tok) {
			hits++
		}
	}
	if total == 0 {
		// Every token was too short to qualify; fall back to a whole-string check.
		if strings.Contains(text, strings.ToLower(strings.TrimSpace(brand))) {
			return 1
		}
		return 0
	}
	return float64(hits) / float64(total)
}
