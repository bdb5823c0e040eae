package extract

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/guardline/brandscan/models"
)

// Page bundles everything a strategy may consume: the fetched page, its
// parsed DOM, and the scan target. Strategies read it, never mutate it.
type Page struct {
	Raw    *models.RawPage
	Doc    *goquery.Document
	Target models.SearchTarget
}

// NewPage parses a fetched page into a Page. Returns an error only when the
// body is not parseable as HTML at all (which html.Parse makes nearly
// impossible, but callers still check).
func NewPage(raw *models.RawPage, target models.SearchTarget) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.Body))
	if err != nil {
		return nil, err
	}
	return &Page{Raw: raw, Doc: doc, Target: target}, nil
}

// Strategy is one member of the extraction cascade. Returning zero records
// is not an error; it just advances the cascade. Implementations must
// contain their own parse failures.
type Strategy interface {
	// Name is the label recorded as DetectionMethod on produced records.
	Name() string

	Extract(ctx context.Context, page *Page) []*models.ProductRecord
}

// newRecord creates a ProductRecord with the invariant defaults applied.
func newRecord(platform, name, method string) *models.ProductRecord {
	return &models.ProductRecord{
		Platform:        platform,
		Name:            name,
		Price:           "N/A",
		Seller:          models.SellerUnknown,
		Availability:    models.AvailabilityUnknown,
		URL:             "N/A",
		DetectionMethod: method,
	}
}

// absoluteURL resolves href against the page's final URL, falling back to
// https://<domain><href> for rooted paths when the base cannot be parsed.
func absoluteURL(baseURL, domain, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if base, err := url.Parse(baseURL); err == nil && base.Host != "" {
		if ref, err := url.Parse(href); err == nil {
			return base.ResolveReference(ref).String()
		}
	}
	if strings.HasPrefix(href, "/") {
		return "https://" + domain + href
	}
	return href
}

// isAbsoluteHTTP reports whether u is a fully qualified http(s) URL.
func isAbsoluteHTTP(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
