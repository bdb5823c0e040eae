package extract

import (
	"context"
	"testing"

	"github.com/guardline/brandscan/identify"
	"github.com/guardline/brandscan/models"
)

func testPage(t *testing.T, body, domain, brand, finalURL string) *Page {
	t.Helper()
	page, err := NewPage(
		&models.RawPage{StatusCode: 200, Body: body, FinalURL: finalURL},
		models.SearchTarget{Domain: domain, Brand: brand},
	)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	return page
}

const structuredFixture = `<html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"ItemList","itemListElement":[
 {"@type":"ListItem","position":1,"item":{"@type":"Product","name":"Acme Face Wash 100ml","url":"/p/acme-face-wash",
   "offers":{"@type":"Offer","price":299,"priceCurrency":"INR","availability":"https://schema.org/InStock",
     "seller":{"@type":"Organization","name":"Glow Traders"}}}},
 {"@type":"ListItem","position":2,"item":{"@type":"Product","name":"Plain Cream","offers":{"@type":"Offer","price":"100"}}}
]}
</script>
<script type="application/ld+json">{this is not json</script>
</head><body></body></html>`

func TestStructured_ItemList(t *testing.T) {
	s := &Structured{Brands: identify.BrandMatcher{MinTokenLen: 2}}
	page := testPage(t, structuredFixture, "shop.example.com", "Acme", "https://shop.example.com/search?q=Acme")

	records := s.Extract(context.Background(), page)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.Name != "Acme Face Wash 100ml" {
		t.Errorf("Name = %q", rec.Name)
	}
	if rec.Price != "299" {
		t.Errorf("Price = %q, want 299", rec.Price)
	}
	if rec.Currency != "INR" {
		t.Errorf("Currency = %q, want INR", rec.Currency)
	}
	if rec.Availability != "InStock" {
		t.Errorf("Availability = %q, want InStock", rec.Availability)
	}
	if rec.Seller != "Glow Traders" {
		t.Errorf("Seller = %q, want Glow Traders", rec.Seller)
	}
	if rec.URL != "https://shop.example.com/p/acme-face-wash" {
		t.Errorf("URL = %q", rec.URL)
	}
	if rec.DetectionMethod != "JSON-LD" {
		t.Errorf("DetectionMethod = %q, want JSON-LD", rec.DetectionMethod)
	}
}

// Some sites put Product nodes directly in itemListElement, no ListItem wrapper.
func TestStructured_ItemListBareProducts(t *testing.T) {
	body := `<script type="application/ld+json">
{"@type":"ItemList","itemListElement":[
 {"@type":"Product","name":"Acme Soap","offers":{"@type":"Offer","price":"99"}}
]}
</script>`
	s := &Structured{Brands: identify.BrandMatcher{MinTokenLen: 2}}
	page := testPage(t, body, "shop.example.com", "Acme", "https://shop.example.com/search")

	records := s.Extract(context.Background(), page)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Name != "Acme Soap" {
		t.Errorf("Name = %q", records[0].Name)
	}
}

func TestStructured_SellerFallsBackToBrand(t *testing.T) {
	body := `<script type="application/ld+json">
{"@type":"Product","name":"Acme Mug","offers":{"@type":"Offer","price":"199"}}
</script>`
	s := &Structured{Brands: identify.BrandMatcher{MinTokenLen: 2}}
	page := testPage(t, body, "shop.example.com", "Acme", "https://shop.example.com/search")

	records := s.Extract(context.Background(), page)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Seller != "Acme" {
		t.Errorf("Seller = %q, want brand fallback Acme", records[0].Seller)
	}
}

func TestStructured_TypeList(t *testing.T) {
	body := `<script type="application/ld+json">
{"@type":["Product","Thing"],"name":"Acme Towel","offers":{"price":"149"}}
</script>`
	s := &Structured{Brands: identify.BrandMatcher{MinTokenLen: 2}}
	page := testPage(t, body, "shop.example.com", "Acme", "https://shop.example.com/search")

	if records := s.Extract(context.Background(), page); len(records) != 1 {
		t.Fatalf("got %d records, want 1 (list-valued @type)", len(records))
	}
}

func TestStructured_NoPayloads(t *testing.T) {
	s := &Structured{Brands: identify.BrandMatcher{MinTokenLen: 2}}
	page := testPage(t, "<html><body><p>hello</p></body></html>", "shop.example.com", "Acme", "https://shop.example.com/")

	if records := s.Extract(context.Background(), page); len(records) != 0 {
		t.Fatalf("got %d records, want 0", len(records))
	}
}
