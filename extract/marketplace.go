package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/guardline/brandscan/identify"
	"github.com/guardline/brandscan/models"
)

// minTitleLen discards cards whose extracted title is too short to be a
// product name (badges, "New", stray glyphs).
const minTitleLen = 5

// Marketplace extracts products using per-site DOM profiles. Unknown domains
// yield zero records and the cascade continues.
type Marketplace struct {
	Brands identify.BrandMatcher
}

func (m *Marketplace) Name() string { return "Marketplace DOM" }

func (m *Marketplace) Extract(_ context.Context, page *Page) []*models.ProductRecord {
	profile := ProfileFor(page.Target.Domain)
	if profile == nil {
		return nil
	}

	var cards *goquery.Selection
	for _, locate := range profile.Cards {
		if cards = locate(page.Doc); cards.Length() > 0 {
			break
		}
	}
	if cards == nil || cards.Length() == 0 {
		return nil
	}

	var products []*models.ProductRecord
	cards.Each(func(_ int, card *goquery.Selection) {
		if rec := m.extractCard(profile, card, page); rec != nil {
			products = append(products, rec)
		}
	})
	return products
}

// extractCard pulls one record out of a card via the profile's fallback
// chains, gating on title length and brand match.
func (m *Marketplace) extractCard(profile *MarketplaceProfile, card *goquery.Selection, page *Page) *models.ProductRecord {
	name := firstHit(profile.Title, card)
	if len(name) < minTitleLen {
		return nil
	}
	for _, skip := range profile.SkipTitles {
		if strings.Contains(name, skip) {
			return nil
		}
	}
	if !m.Brands.Matches(name, page.Target.Brand) {
		return nil
	}

	rec := newRecord(page.Target.Domain, name, profile.Name+" DOM")

	if price := firstHit(profile.Price, card); price != "" {
		rec.Price = price
	}
	if href := firstHit(profile.Link, card); href != "" {
		rec.URL = absoluteURL(page.Raw.FinalURL, page.Target.Domain, href)
	}

	if seller := firstHit(profile.Seller, card); seller != "" {
		rec.Seller = seller
	} else if seller := identify.Seller(card, page.Target.Domain, page.Target.Brand); seller != "" {
		rec.Seller = seller
	}
	rec.Availability = identify.Availability(card)

	return rec
}

// firstHit runs a fallback chain and returns the first non-empty result.
func firstHit(chain []func(*goquery.Selection) string, card *goquery.Selection) string {
	for _, fn := range chain {
		if v := fn(card); v != "" {
			return v
		}
	}
	return ""
}
