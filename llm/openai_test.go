package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/guardline/brandscan/config"
	"github.com/guardline/brandscan/models"
)

func testLLMConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		APIKey:     "test-key",
		Model:      "gpt-4o-mini",
		BaseURL:    baseURL,
		CharBudget: 12000,
	}
}

func TestClient_EnabledRequiresKey(t *testing.T) {
	if NewClient(nil, config.LLMConfig{}).Enabled() {
		t.Error("client without API key must be disabled")
	}
	if !NewClient(nil, testLLMConfig("http://x")).Enabled() {
		t.Error("client with API key must be enabled")
	}
	var c *Client
	if c.Enabled() {
		t.Error("nil client must be disabled")
	}
}

func TestExtractProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Temperature != 0 || req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("request not pinned to deterministic JSON output: %+v", req)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{
					"content": `{"products":[{"name":"Acme Mug","price":"199"},{"name":"","price":"1"}]}`,
				}},
			},
			"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), testLLMConfig(srv.URL))
	records, usage, err := c.ExtractProducts(context.Background(), "page content", "Acme")
	if err != nil {
		t.Fatalf("ExtractProducts: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (nameless entry dropped)", len(records))
	}

	rec := records[0]
	if rec.Name != "Acme Mug" || rec.Price != "199" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Seller != models.SellerUnknown || rec.Availability != models.AvailabilityUnknown || rec.URL != "N/A" {
		t.Errorf("defaults not applied: %+v", rec)
	}
	if rec.DetectionMethod != "AI Analysis" {
		t.Errorf("DetectionMethod = %q", rec.DetectionMethod)
	}
	if usage == nil || usage.TotalTokens != 120 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestExtractProducts_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusUnauthorized, models.ErrCodeLLMAuthFailure},
		{http.StatusTooManyRequests, models.ErrCodeLLMRateLimited},
		{http.StatusBadGateway, models.ErrCodeLLMFailure},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":{"message":"nope"}}`))
		}))

		c := NewClient(srv.Client(), testLLMConfig(srv.URL))
		_, _, err := c.ExtractProducts(context.Background(), "content", "Acme")
		srv.Close()

		var scanErr *models.ScanError
		if !errors.As(err, &scanErr) || scanErr.Code != tt.code {
			t.Errorf("status %d: err = %v, want code %s", tt.status, err, tt.code)
		}
	}
}

func TestExtractProducts_InvalidJSONFromModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "sure! here are the products..."}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), testLLMConfig(srv.URL))
	if _, _, err := c.ExtractProducts(context.Background(), "content", "Acme"); err == nil {
		t.Fatal("expected error for non-JSON model output")
	}
}
