package scan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/guardline/brandscan/fetch"
	"github.com/guardline/brandscan/models"
)

func TestNeedsEnrichment(t *testing.T) {
	tests := []struct {
		name string
		rec  models.ProductRecord
		want bool
	}{
		{"unknown seller", models.ProductRecord{Seller: "N/A", URL: "https://shop.example/p/1"}, true},
		{"brand fallback seller", models.ProductRecord{Seller: "Acme", URL: "https://shop.example/p/1"}, true},
		{"resolved seller", models.ProductRecord{Seller: "Bright Mart", URL: "https://shop.example/p/1"}, false},
		{"no url", models.ProductRecord{Seller: "N/A", URL: "N/A"}, false},
		{"relative url", models.ProductRecord{Seller: "N/A", URL: "/p/1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needsEnrichment(&tt.rec, "Acme"); got != tt.want {
				t.Errorf("needsEnrichment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeepScanner_EnrichFromBuybox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
<div id="merchant-info">Sold by Bright Mart and Fulfilled by platform</div>
<p>In Stock</p>
</body></html>`))
	}))
	defer srv.Close()

	cfg := testConfig()
	fetcher := fetch.New(cfg.Fetch, fetch.DefaultProfiles())
	defer fetcher.Close()
	d := NewDeepScanner(cfg.DeepScan, fetcher, nil)

	rec := &models.ProductRecord{
		Platform:     "shop.example",
		Name:         "Acme Mug",
		Seller:       models.SellerUnknown,
		Availability: models.AvailabilityUnknown,
		URL:          srv.URL + "/p/acme-mug",
	}
	d.Enrich(context.Background(), "Acme", []*models.ProductRecord{rec})

	if rec.Seller != "Bright Mart" {
		t.Errorf("Seller = %q, want Bright Mart", rec.Seller)
	}
	if rec.Availability != "In Stock" {
		t.Errorf("Availability = %q, want In Stock", rec.Availability)
	}
}

func TestDeepScanner_DeadLinkLeavesRecordUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testConfig()
	fetcher := fetch.New(cfg.Fetch, fetch.DefaultProfiles())
	defer fetcher.Close()
	d := NewDeepScanner(cfg.DeepScan, fetcher, nil)

	rec := &models.ProductRecord{
		Seller:       models.SellerUnknown,
		Availability: models.AvailabilityUnknown,
		URL:          srv.URL + "/p/gone",
	}
	d.Enrich(context.Background(), "Acme", []*models.ProductRecord{rec})

	if rec.Seller != models.SellerUnknown || rec.Availability != models.AvailabilityUnknown {
		t.Errorf("record mutated on failed fetch: %+v", rec)
	}
}

func TestDeepScanner_SuccessCapStopsPool(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`<html><body><div id="merchant-info">Sold by Bright Mart and more</div></body></html>`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.DeepScan.Workers = 1
	cfg.DeepScan.SuccessCap = 2
	fetcher := fetch.New(cfg.Fetch, fetch.DefaultProfiles())
	defer fetcher.Close()
	d := NewDeepScanner(cfg.DeepScan, fetcher, nil)

	var records []*models.ProductRecord
	for i := 0; i < 10; i++ {
		records = append(records, &models.ProductRecord{
			Seller:       models.SellerUnknown,
			Availability: models.AvailabilityUnknown,
			URL:          srv.URL + "/p/item",
		})
	}
	d.Enrich(context.Background(), "Acme", records)

	if got := hits.Load(); got != 2 {
		t.Errorf("product pages fetched = %d, want 2 (success cap)", got)
	}
}

func TestDeepScanner_SuccessCapHoldsAcrossWorkers(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`<html><body><div id="merchant-info">Sold by Bright Mart and more</div></body></html>`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.DeepScan.Workers = 4
	cfg.DeepScan.SuccessCap = 1
	fetcher := fetch.New(cfg.Fetch, fetch.DefaultProfiles())
	defer fetcher.Close()
	d := NewDeepScanner(cfg.DeepScan, fetcher, nil)

	var records []*models.ProductRecord
	for i := 0; i < 8; i++ {
		records = append(records, &models.ProductRecord{
			Seller:       models.SellerUnknown,
			Availability: models.AvailabilityUnknown,
			URL:          srv.URL + "/p/item",
		})
	}
	d.Enrich(context.Background(), "Acme", records)

	enriched := 0
	for _, rec := range records {
		if rec.Seller == "Bright Mart" {
			enriched++
		}
	}
	if enriched != 1 {
		t.Errorf("records enriched = %d, want 1 (success cap with concurrent workers)", enriched)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("product pages fetched = %d, want 1 (slot reserved before fetch)", got)
	}
}

func TestDeepScanner_CandidateCap(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// No seller information: every visit stays unresolved.
		w.Write([]byte(`<html><body><p>product details</p></body></html>`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.DeepScan.Workers = 1
	cfg.DeepScan.CandidateCap = 3
	cfg.DeepScan.SuccessCap = 10
	fetcher := fetch.New(cfg.Fetch, fetch.DefaultProfiles())
	defer fetcher.Close()
	d := NewDeepScanner(cfg.DeepScan, fetcher, nil)

	var records []*models.ProductRecord
	for i := 0; i < 10; i++ {
		records = append(records, &models.ProductRecord{
			Seller:       models.SellerUnknown,
			Availability: models.AvailabilityUnknown,
			URL:          srv.URL + "/p/item",
		})
	}
	d.Enrich(context.Background(), "Acme", records)

	if got := hits.Load(); got != 3 {
		t.Errorf("product pages fetched = %d, want 3 (candidate cap)", got)
	}
}
