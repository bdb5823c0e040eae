package scan

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"

	"github.com/guardline/brandscan/config"
	"github.com/guardline/brandscan/fetch"
	"github.com/guardline/brandscan/identify"
	"github.com/guardline/brandscan/models"
)

// buyboxSelector targets the regions of a product detail page that name the
// merchant, tried before falling back to the whole body.
const buyboxSelector = "#merchant-info, #tabular-buybox, #bylineInfo"

// DeepScanner enriches extracted records by visiting their product pages.
// It only ever touches a record's Seller and Availability fields, and it
// fails silently: a dead product link never degrades the scan result.
type DeepScanner struct {
	fetcher *fetch.Fetcher
	cfg     config.DeepScanConfig
	logger  *slog.Logger
}

func NewDeepScanner(cfg config.DeepScanConfig, fetcher *fetch.Fetcher, logger *slog.Logger) *DeepScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeepScanner{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Enrich visits product pages for records whose seller is unresolved (or
// merely the brand fallback) and fills in what the detail page reveals. The
// candidate list is capped, and the pool stops early once enough sellers
// resolve; one well-identified marketplace tells the story for the rest.
func (d *DeepScanner) Enrich(ctx context.Context, brand string, products []*models.ProductRecord) {
	var candidates []*models.ProductRecord
	for _, rec := range products {
		if !needsEnrichment(rec, brand) {
			continue
		}
		candidates = append(candidates, rec)
		if len(candidates) == d.cfg.CandidateCap {
			break
		}
	}
	if len(candidates) == 0 {
		return
	}
	d.logger.Debug("deep scan starting", "brand", brand, "candidates", len(candidates))

	jobs := make(chan *models.ProductRecord)
	var successes atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				// Reserve a success slot before fetching so concurrent
				// workers cannot collectively overshoot the cap; a failed
				// enrichment hands its slot back.
				if !reserveSlot(&successes, int32(d.cfg.SuccessCap)) {
					continue
				}
				if !d.enrichOne(ctx, brand, rec) {
					successes.Add(-1)
				}
			}
		}()
	}
	for _, rec := range candidates {
		jobs <- rec
	}
	close(jobs)
	wg.Wait()

	d.logger.Debug("deep scan finished", "brand", brand, "resolved", successes.Load())
}

// reserveSlot claims one of max slots, returning false once they are gone.
func reserveSlot(n *atomic.Int32, max int32) bool {
	for {
		cur := n.Load()
		if cur >= max {
			return false
		}
		if n.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// needsEnrichment selects records worth a product-page visit: seller unknown
// or attributed to the brand by fallback, with a real URL to follow.
func needsEnrichment(rec *models.ProductRecord, brand string) bool {
	if rec.URL == "" || rec.URL == "N/A" || !strings.HasPrefix(rec.URL, "http") {
		return false
	}
	return rec.Seller == models.SellerUnknown || strings.EqualFold(rec.Seller, brand)
}

// enrichOne fetches one product page and updates the record in place.
// Reports whether a concrete seller was resolved.
func (d *DeepScanner) enrichOne(ctx context.Context, brand string, rec *models.ProductRecord) bool {
	outcome := d.fetcher.Fetch(ctx, rec.URL, fetch.Options{})
	if outcome.Page == nil {
		d.logger.Debug("deep scan fetch failed", "url", rec.URL, "detail", outcome.Detail)
		return false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outcome.Page.Body))
	if err != nil {
		return false
	}

	resolved := false
	seller := models.SellerUnknown
	if buybox := doc.Find(buyboxSelector); buybox.Length() > 0 {
		seller = identify.Seller(buybox, rec.Platform, brand)
	}
	if seller == models.SellerUnknown {
		seller = identify.Seller(doc.Selection, rec.Platform, brand)
	}
	if seller != models.SellerUnknown && !strings.EqualFold(seller, brand) {
		rec.Seller = seller
		resolved = true
	}

	if rec.Availability == models.AvailabilityUnknown {
		if avail := identify.Availability(doc.Selection); avail != models.AvailabilityUnknown {
			rec.Availability = avail
		}
	}
	return resolved
}
