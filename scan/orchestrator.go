package scan

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/guardline/brandscan/config"
	"github.com/guardline/brandscan/extract"
	"github.com/guardline/brandscan/fetch"
	"github.com/guardline/brandscan/identify"
	"github.com/guardline/brandscan/llm"
	"github.com/guardline/brandscan/models"
)

// negativeSignals are search-page phrases that mean "zero results" regardless
// of what the extractors might scrape out of recommendation widgets.
var negativeSignals = []string{
	"no results found",
	"did not match any products",
	"0 results for",
}

// Orchestrator runs the extraction cascade for a single domain: fetch the
// search page, short-circuit on a negative search signal, then try each
// strategy in priority order until one yields records.
type Orchestrator struct {
	fetcher    *fetch.Fetcher
	fetchCfg   config.FetchConfig
	strategies []extract.Strategy
	brands     identify.BrandMatcher
	threshold  float64
	logger     *slog.Logger
}

// NewOrchestrator wires the cascade in its fixed priority order. The AI
// strategy is appended last and stays dormant without an API key.
func NewOrchestrator(cfg *config.Config, fetcher *fetch.Fetcher, llmClient *llm.Client, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	brands := identify.BrandMatcher{MinTokenLen: cfg.Brand.TokenMinLen}
	return &Orchestrator{
		fetcher:  fetcher,
		fetchCfg: cfg.Fetch,
		strategies: []extract.Strategy{
			&extract.Structured{Brands: brands},
			&extract.Marketplace{Brands: brands},
			&extract.HiddenState{Brands: brands},
			&extract.Generic{Brands: brands},
			&extract.AI{Client: llmClient, Brands: brands, CharBudget: cfg.LLM.CharBudget, Logger: logger},
		},
		brands:    brands,
		threshold: cfg.Scan.TextMatchThreshold,
		logger:    logger,
	}
}

// BuildSearchURL constructs the search-results URL for a brand query, using
// the marketplace profile's builder when the domain is known and the common
// /search?q= convention otherwise.
func BuildSearchURL(domain, brand string) string {
	encoded := url.QueryEscape(brand)
	if profile := extract.ProfileFor(domain); profile != nil && profile.SearchURL != nil {
		return profile.SearchURL(domain, encoded)
	}
	base := domain
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return strings.TrimRight(base, "/") + "/search?q=" + encoded
}

// ScanDomain produces the terminal result for one domain. It never returns
// nil and never panics the cascade on a single strategy's failure.
func (o *Orchestrator) ScanDomain(ctx context.Context, domain, brand string) *models.ScanResult {
	scanURL := BuildSearchURL(domain, brand)
	log := o.logger.With("domain", domain, "brand", brand)
	log.Info("scanning domain", "url", scanURL)

	outcome := o.fetcher.Fetch(ctx, scanURL, o.optionsFor(domain))
	if outcome.Page == nil {
		log.Warn("fetch did not produce a page", "status", outcome.Status, "detail", outcome.Detail)
		return &models.ScanResult{Status: outcome.Status, Details: outcome.Detail, ScanURL: scanURL}
	}

	page, err := extract.NewPage(outcome.Page, models.SearchTarget{Domain: domain, Brand: brand})
	if err != nil {
		return &models.ScanResult{
			Status:  models.StatusError,
			Details: "failed to parse page: " + err.Error(),
			ScanURL: scanURL,
		}
	}

	visible := extract.VisibleText(outcome.Page.Body)
	if signal := detectNegativeSignal(visible); signal != "" {
		log.Info("negative search signal", "signal", signal)
		return &models.ScanResult{
			Status:  models.StatusNotFound,
			Details: "search reported no results (" + signal + ")",
			ScanURL: scanURL,
		}
	}

	for _, strategy := range o.strategies {
		records := strategy.Extract(ctx, page)
		if len(records) == 0 {
			continue
		}
		records = extract.Dedupe(records)
		log.Info("products extracted", "strategy", strategy.Name(), "count", len(records))

		status := models.StatusFound
		if strategy.Name() == "AI Analysis" {
			status = models.StatusFoundAI
		}
		return &models.ScanResult{
			Status:   status,
			Details:  fmt.Sprintf("%d product(s) via %s", len(records), strategy.Name()),
			Products: records,
			ScanURL:  scanURL,
		}
	}

	// No extractable products. Brand-token coverage of the visible text
	// distinguishes "the brand is mentioned here" from a true miss.
	if coverage := o.brands.TokenCoverage(visible, brand); coverage >= o.threshold {
		log.Info("brand text match without products", "coverage", coverage)
		return &models.ScanResult{
			Status:  models.StatusTextMatch,
			Details: fmt.Sprintf("brand text present (coverage %.2f) but no product cards extracted", coverage),
			ScanURL: scanURL,
		}
	}

	return &models.ScanResult{
		Status:  models.StatusNotFound,
		Details: "no products or brand mentions found",
		ScanURL: scanURL,
	}
}

// optionsFor applies any configured per-domain header and cookie overrides,
// keyed by the domain's host.
func (o *Orchestrator) optionsFor(domain string) fetch.Options {
	host := hostOf(domain)
	return fetch.Options{
		Headers: o.fetchCfg.DomainHeaders[host],
		Cookie:  o.fetchCfg.DomainCookies[host],
	}
}

// hostOf reduces a domain entry (bare host or full URL) to its host.
func hostOf(domain string) string {
	host := domain
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}

func detectNegativeSignal(visibleText string) string {
	lower := strings.ToLower(visibleText)
	for _, signal := range negativeSignals {
		if strings.Contains(lower, signal) {
			return signal
		}
	}
	return ""
}
