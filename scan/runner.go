package scan

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/guardline/brandscan/config"
	"github.com/guardline/brandscan/models"
)

// Runner fans a brand scan out across domains with a bounded worker pool.
// A pacing limiter spaces out the start of new domain fetches so a batch of
// domains on the same upstream network does not look like a burst.
type Runner struct {
	orchestrator *Orchestrator
	deep         *DeepScanner
	cfg          config.ScanConfig
	limiter      *rate.Limiter
	logger       *slog.Logger
}

func NewRunner(cfg config.ScanConfig, orchestrator *Orchestrator, deep *DeepScanner, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	pace := cfg.PacePerSecond
	if pace <= 0 {
		pace = 1
	}
	return &Runner{
		orchestrator: orchestrator,
		deep:         deep,
		cfg:          cfg,
		limiter:      rate.NewLimiter(rate.Limit(pace), 1),
		logger:       logger,
	}
}

// Run scans every domain for the brand and returns per-domain reports in
// input order plus the derived summary. Individual domain failures are
// reported in their slot; Run itself never fails.
func (r *Runner) Run(ctx context.Context, brand string, domains []string, deepScan bool) ([]*models.DomainReport, models.ScanSummary) {
	reports := make([]*models.DomainReport, len(domains))

	sem := make(chan struct{}, r.cfg.DomainWorkers)
	var wg sync.WaitGroup

	for i, domain := range domains {
		wg.Add(1)
		go func(i int, domain string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := r.limiter.Wait(ctx); err != nil {
				reports[i] = &models.DomainReport{
					Domain: domain,
					Result: &models.ScanResult{
						Status:  models.StatusError,
						Details: "scan cancelled: " + err.Error(),
					},
				}
				return
			}

			result := r.orchestrator.ScanDomain(ctx, domain, brand)
			if deepScan && r.deep != nil && len(result.Products) > 0 &&
				(result.Status == models.StatusFound || result.Status == models.StatusFoundAI) {
				r.deep.Enrich(ctx, brand, result.Products)
			}
			reports[i] = &models.DomainReport{Domain: domain, Result: result}
		}(i, domain)
	}
	wg.Wait()

	summary := models.Summarize(reports)
	r.logger.Info("scan complete",
		"brand", brand,
		"domains", summary.DomainsScanned,
		"products", summary.TotalProducts,
		"blocked", summary.BlockedCount)
	return reports, summary
}
