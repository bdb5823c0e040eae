package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/guardline/brandscan/config"
	"github.com/guardline/brandscan/models"
)

// Client is a lightweight OpenAI-compatible API client for product
// extraction. It uses net/http directly — no third-party SDK needed.
type Client struct {
	httpClient *http.Client
	cfg        config.LLMConfig
}

// NewClient creates a new LLM client. Pass nil to use a default http.Client.
func NewClient(httpClient *http.Client, cfg config.LLMConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient, cfg: cfg}
}

// Enabled reports whether AI extraction is configured. Without an API key the
// cascade simply ends after the generic strategy.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.APIKey != ""
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the minimal OpenAI chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// chatErrorResponse captures an API error from the LLM provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// llmProduct mirrors the JSON shape the model is asked to produce.
type llmProduct struct {
	Name         string `json:"name"`
	Price        string `json:"price"`
	Seller       string `json:"seller"`
	Availability string `json:"availability"`
	URL          string `json:"url"`
}

type llmPayload struct {
	Products []llmProduct `json:"products"`
}

// ExtractProducts sends prepared page content to the LLM and parses the
// structured product list out of its response.
func (c *Client) ExtractProducts(ctx context.Context, content, brand string) ([]*models.ProductRecord, *models.LLMUsage, error) {
	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: buildSystemPrompt(brand)},
			{Role: "user", Content: content},
		},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, models.NewScanError(models.ErrCodeLLMFailure, "LLM request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, models.NewScanError(models.ErrCodeLLMFailure, "failed to read LLM response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, classifyLLMError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, nil, models.NewScanError(models.ErrCodeLLMFailure, "failed to parse LLM response", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, nil, models.NewScanError(models.ErrCodeLLMFailure, "LLM returned no choices", nil)
	}

	var payload llmPayload
	if err := json.Unmarshal([]byte(chatResp.Choices[0].Message.Content), &payload); err != nil {
		return nil, nil, models.NewScanError(models.ErrCodeLLMFailure, "LLM returned invalid JSON", err)
	}

	usage := &models.LLMUsage{
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
		TotalTokens:      chatResp.Usage.TotalTokens,
	}
	return toRecords(payload.Products), usage, nil
}

// toRecords converts the model's output into product records, filling
// sentinel defaults for anything the model left blank.
func toRecords(items []llmProduct) []*models.ProductRecord {
	var records []*models.ProductRecord
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		rec := &models.ProductRecord{
			Name:            name,
			Price:           orDefault(item.Price, "N/A"),
			Seller:          orDefault(item.Seller, models.SellerUnknown),
			Availability:    orDefault(item.Availability, models.AvailabilityUnknown),
			URL:             orDefault(item.URL, "N/A"),
			DetectionMethod: "AI Analysis",
		}
		records = append(records, rec)
	}
	return records
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" || strings.EqualFold(v, "null") {
		return def
	}
	return v
}

// buildSystemPrompt creates the extraction prompt for one brand query.
func buildSystemPrompt(brand string) string {
	return fmt.Sprintf(`You are a product listing extraction assistant. The user message is the Markdown rendering of an e-commerce search results page. Extract every product listing related to the brand %q and return JSON of the form:

{"products": [{"name": "...", "price": "...", "seller": "...", "availability": "...", "url": "..."}]}

Rules:
- Return ONLY valid JSON, no markdown fences or explanation.
- Include only listings whose name plausibly belongs to the brand.
- If a field cannot be found, use null.
- Never invent products that are not on the page.`, brand)
}

// classifyLLMError maps HTTP status codes to appropriate error codes.
func classifyLLMError(statusCode int, body []byte) *models.ScanError {
	var errResp chatErrorResponse
	msg := "LLM API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewScanError(models.ErrCodeLLMAuthFailure, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewScanError(models.ErrCodeLLMRateLimited, msg, nil)
	default:
		return models.NewScanError(models.ErrCodeLLMFailure, fmt.Sprintf("LLM API returned %d: %s", statusCode, msg), nil)
	}
}
