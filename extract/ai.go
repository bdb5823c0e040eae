package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/guardline/brandscan/identify"
	"github.com/guardline/brandscan/llm"
	"github.com/guardline/brandscan/models"
)

// AI is the last-resort strategy: it hands the page to an LLM as Markdown and
// asks for the product listings the DOM strategies could not see. Disabled
// unless an API key is configured; failures degrade to zero records.
type AI struct {
	Client     *llm.Client
	Brands     identify.BrandMatcher
	CharBudget int
	Logger     *slog.Logger
}

func (a *AI) Name() string { return "AI Analysis" }

func (a *AI) Extract(ctx context.Context, page *Page) []*models.ProductRecord {
	if !a.Client.Enabled() {
		return nil
	}

	content, err := llm.PrepareContent(page.Raw.Body, page.Target.Domain, a.CharBudget)
	if err != nil {
		a.log().Warn("markdown conversion failed", "domain", page.Target.Domain, "error", err)
		return nil
	}

	a.log().Debug("sending page to LLM",
		"domain", page.Target.Domain,
		"chars", len(content),
		"estimated_tokens", llm.EstimateTokens(content))

	records, usage, err := a.Client.ExtractProducts(ctx, content, page.Target.Brand)
	if err != nil {
		a.log().Warn("AI extraction failed", "domain", page.Target.Domain, "error", err)
		return nil
	}
	if usage != nil {
		a.log().Debug("AI extraction usage",
			"domain", page.Target.Domain,
			"prompt_tokens", usage.PromptTokens,
			"completion_tokens", usage.CompletionTokens)
	}

	var products []*models.ProductRecord
	for _, rec := range records {
		if !a.Brands.Matches(rec.Name, page.Target.Brand) {
			continue
		}
		rec.Platform = page.Target.Domain
		if rec.URL != "N/A" && !strings.HasPrefix(rec.URL, "http") {
			rec.URL = absoluteURL(page.Raw.FinalURL, page.Target.Domain, rec.URL)
		}
		products = append(products, rec)
	}
	return products
}

func (a *AI) log() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
