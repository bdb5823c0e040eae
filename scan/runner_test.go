package scan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/guardline/brandscan/fetch"
	"github.com/guardline/brandscan/llm"
	"github.com/guardline/brandscan/models"
)

func TestRunner_Run(t *testing.T) {
	found := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(foundFixture))
	}))
	defer found.Close()
	blocked := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer blocked.Close()

	cfg := testConfig()
	fetcher := fetch.New(cfg.Fetch, fetch.DefaultProfiles())
	defer fetcher.Close()
	orchestrator := NewOrchestrator(cfg, fetcher, llm.NewClient(nil, cfg.LLM), nil)
	runner := NewRunner(cfg.Scan, orchestrator, NewDeepScanner(cfg.DeepScan, fetcher, nil), nil)

	domains := []string{found.URL, blocked.URL, found.URL}
	reports, summary := runner.Run(context.Background(), "Acme", domains, false)

	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	// Reports come back in input order regardless of completion order.
	for i, domain := range domains {
		if reports[i] == nil || reports[i].Domain != domain {
			t.Fatalf("report[%d] = %+v, want domain %s", i, reports[i], domain)
		}
	}
	if reports[0].Result.Status != models.StatusFound {
		t.Errorf("report[0] status = %s, want Found", reports[0].Result.Status)
	}
	if reports[1].Result.Status != models.StatusBlocked {
		t.Errorf("report[1] status = %s, want Blocked", reports[1].Result.Status)
	}

	if summary.DomainsScanned != 3 {
		t.Errorf("DomainsScanned = %d, want 3", summary.DomainsScanned)
	}
	if summary.TotalProducts != 2 {
		t.Errorf("TotalProducts = %d, want 2", summary.TotalProducts)
	}
	if summary.BlockedCount != 1 {
		t.Errorf("BlockedCount = %d, want 1", summary.BlockedCount)
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	cfg := testConfig()
	fetcher := fetch.New(cfg.Fetch, fetch.DefaultProfiles())
	defer fetcher.Close()
	orchestrator := NewOrchestrator(cfg, fetcher, llm.NewClient(nil, cfg.LLM), nil)
	runner := NewRunner(cfg.Scan, orchestrator, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports, _ := runner.Run(ctx, "Acme", []string{"myshop.example"}, false)
	if len(reports) != 1 || reports[0].Result.Status != models.StatusError {
		t.Fatalf("cancelled scan reports = %+v, want single Error report", reports)
	}
}
