package scan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/guardline/brandscan/config"
	"github.com/guardline/brandscan/fetch"
	"github.com/guardline/brandscan/llm"
	"github.com/guardline/brandscan/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Fetch: config.FetchConfig{
			Timeout:          5 * time.Second,
			ProfileBackoff:   time.Millisecond,
			ProfileMemoryTTL: time.Minute,
			Referer:          "https://www.google.com/",
		},
		Scan: config.ScanConfig{
			DomainWorkers:      2,
			PacePerSecond:      100,
			TextMatchThreshold: 0.5,
		},
		DeepScan: config.DeepScanConfig{Workers: 2, CandidateCap: 50, SuccessCap: 3},
		Brand:    config.BrandConfig{TokenMinLen: 2},
		LLM:      config.LLMConfig{CharBudget: 12000},
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config) *Orchestrator {
	t.Helper()
	fetcher := fetch.New(cfg.Fetch, fetch.DefaultProfiles())
	t.Cleanup(fetcher.Close)
	return NewOrchestrator(cfg, fetcher, llm.NewClient(nil, cfg.LLM), nil)
}

const foundFixture = `<html><head>
<script type="application/ld+json">
{"@type":"Product","name":"Acme Face Wash","url":"/p/acme-face-wash",
 "offers":{"@type":"Offer","price":"299","priceCurrency":"INR"}}
</script>
</head><body><div>Acme Face Wash ₹299</div></body></html>`

func TestScanDomain_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("q") != "Acme" {
			t.Errorf("unexpected search request: %s", r.URL)
		}
		w.Write([]byte(foundFixture))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, testConfig())
	result := o.ScanDomain(context.Background(), srv.URL, "Acme")

	if result.Status != models.StatusFound {
		t.Fatalf("Status = %s (%s), want Found", result.Status, result.Details)
	}
	if len(result.Products) != 1 {
		t.Fatalf("got %d products, want 1", len(result.Products))
	}
	if result.Products[0].DetectionMethod != "JSON-LD" {
		t.Errorf("DetectionMethod = %q, want JSON-LD (first strategy wins)", result.Products[0].DetectionMethod)
	}
	if result.ScanURL != srv.URL+"/search?q=Acme" {
		t.Errorf("ScanURL = %q", result.ScanURL)
	}
}

func TestScanDomain_DomainOverridesReachRequest(t *testing.T) {
	var gotCookie, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotLang = r.Header.Get("Accept-Language")
		w.Write([]byte(foundFixture))
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	cfg := testConfig()
	cfg.Fetch.DomainHeaders = map[string]map[string]string{host: {"Accept-Language": "en-IN"}}
	cfg.Fetch.DomainCookies = map[string]string{host: "session=abc123"}

	o := newTestOrchestrator(t, cfg)
	if result := o.ScanDomain(context.Background(), srv.URL, "Acme"); result.Status != models.StatusFound {
		t.Fatalf("Status = %s (%s), want Found", result.Status, result.Details)
	}

	if gotCookie != "session=abc123" {
		t.Errorf("Cookie = %q, want configured domain cookie", gotCookie)
	}
	if gotLang != "en-IN" {
		t.Errorf("Accept-Language = %q, want configured domain header", gotLang)
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"amazon.in", "amazon.in"},
		{"www.amazon.in", "amazon.in"},
		{"https://www.amazon.in/s?k=acme", "amazon.in"},
		{"http://127.0.0.1:8080", "127.0.0.1:8080"},
	}
	for _, tt := range tests {
		if got := hostOf(tt.domain); got != tt.want {
			t.Errorf("hostOf(%q) = %q, want %q", tt.domain, got, tt.want)
		}
	}
}

func TestScanDomain_NegativeSignalShortCircuits(t *testing.T) {
	// The page carries both a no-results banner and an extractable product
	// (recommendation widget); the banner must win.
	body := `<html><head>
<script type="application/ld+json">
{"@type":"Product","name":"Acme Promo Pack","offers":{"price":"99"}}
</script>
</head><body><p>No results found for your search.</p></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, testConfig())
	result := o.ScanDomain(context.Background(), srv.URL, "Acme")

	if result.Status != models.StatusNotFound {
		t.Fatalf("Status = %s, want Not Found", result.Status)
	}
	if len(result.Products) != 0 {
		t.Errorf("got %d products, want 0", len(result.Products))
	}
}

func TestScanDomain_TextMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Buy acme products in our store soon</p></body></html>`))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, testConfig())
	result := o.ScanDomain(context.Background(), srv.URL, "Acme")

	if result.Status != models.StatusTextMatch {
		t.Fatalf("Status = %s (%s), want Text Match", result.Status, result.Details)
	}
}

func TestScanDomain_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>welcome to our storefront</p></body></html>`))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, testConfig())
	result := o.ScanDomain(context.Background(), srv.URL, "Acme")

	if result.Status != models.StatusNotFound {
		t.Fatalf("Status = %s, want Not Found", result.Status)
	}
}

func TestScanDomain_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, testConfig())
	result := o.ScanDomain(context.Background(), srv.URL, "Acme")

	if result.Status != models.StatusBlocked {
		t.Fatalf("Status = %s, want Blocked", result.Status)
	}
}

func TestBuildSearchURL(t *testing.T) {
	tests := []struct {
		domain string
		brand  string
		want   string
	}{
		{"amazon.in", "Acme Brand", "https://www.amazon.in/s?k=Acme+Brand"},
		{"www.amazon.com", "Acme", "https://www.amazon.com/s?k=Acme"},
		{"ebay.com", "Acme", "https://www.ebay.com/sch/i.html?_nkw=Acme"},
		{"flipkart.com", "Acme", "https://flipkart.com/search?q=Acme"},
		{"nykaa.com", "Acme", "https://www.nykaa.com/search/result/?q=Acme"},
		{"myshop.example", "Acme", "https://myshop.example/search?q=Acme"},
		{"http://myshop.example", "Acme", "http://myshop.example/search?q=Acme"},
	}
	for _, tt := range tests {
		if got := BuildSearchURL(tt.domain, tt.brand); got != tt.want {
			t.Errorf("BuildSearchURL(%q, %q) = %q, want %q", tt.domain, tt.brand, got, tt.want)
		}
	}
}

func TestDetectNegativeSignal(t *testing.T) {
	if s := detectNegativeSignal("Sorry, we found 0 results for acme"); s != "0 results for" {
		t.Errorf("signal = %q, want %q", s, "0 results for")
	}
	if s := detectNegativeSignal("320 products for acme"); s != "" {
		t.Errorf("signal = %q, want empty", s)
	}
}
