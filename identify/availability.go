package identify

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// availabilityRule maps a phrase pattern to its stock label.
type availabilityRule struct {
	re    *regexp.Regexp
	label string
}

// availabilityRules are checked in fixed priority order. Positive phrases
// are deliberately ranked above negative ones: a fragment carrying both
// ("In Stock. Note: some sizes Out of Stock") resolves to the positive label.
// Known ambiguity, kept as-is.
var availabilityRules = []availabilityRule{
	{regexp.MustCompile(`(?i)\bin stock\b`), "In Stock"},
	{regexp.MustCompile(`(?i)\bonly \d+ left\b`), "Low Stock"},
	{regexp.MustCompile(`(?i)\bavailable\b`), "Available"},
	{regexp.MustCompile(`(?i)\bout of stock\b`), "Out of Stock"},
	{regexp.MustCompile(`(?i)\bcurrently unavailable\b`), "Unavailable"},
	{regexp.MustCompile(`(?i)\bsold out\b`), "Sold Out"},
}

// Availability classifies the stock status of a product card from its text.
// Returns "Unknown" when no phrase matches.
func Availability(card *goquery.Selection) string {
	return AvailabilityFromText(FragmentText(card))
}

// AvailabilityFromText classifies stock status from raw text.
func AvailabilityFromText(text string) string {
	for _, rule := range availabilityRules {
		if rule.re.MatchString(text) {
			return rule.label
		}
	}
	return "Unknown"
}
