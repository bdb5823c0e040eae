package extract

import (
	"strings"

	"github.com/guardline/brandscan/models"
)

// Dedupe removes duplicate records while preserving first-seen order. The
// identity key is the product URL when one was extracted, otherwise the
// normalized name|price pair. Idempotent.
func Dedupe(records []*models.ProductRecord) []*models.ProductRecord {
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, rec := range records {
		key := dedupeKey(rec)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func dedupeKey(rec *models.ProductRecord) string {
	if rec.URL != "" && rec.URL != "N/A" {
		return "url|" + rec.URL
	}
	name := strings.Join(strings.Fields(strings.ToLower(rec.Name)), " ")
	return "np|" + name + "|" + strings.TrimSpace(rec.Price)
}
