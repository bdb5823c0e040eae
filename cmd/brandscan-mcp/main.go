package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// scanRequest mirrors the Brandscan API request model.
type scanRequest struct {
	Brand    string   `json:"brand"`
	Domains  []string `json:"domains"`
	DeepScan bool     `json:"deep_scan,omitempty"`
	MaxAge   int      `json:"max_age_ms,omitempty"`
}

// productRecord mirrors one extracted listing in API responses.
type productRecord struct {
	Platform        string `json:"platform"`
	Name            string `json:"name"`
	Price           string `json:"price"`
	Seller          string `json:"seller"`
	Availability    string `json:"availability"`
	URL             string `json:"url"`
	DetectionMethod string `json:"detection_method"`
}

// domainReport mirrors one per-domain result in API responses.
type domainReport struct {
	Domain string `json:"domain"`
	Result *struct {
		Status   string          `json:"status"`
		Details  string          `json:"details"`
		Products []productRecord `json:"products"`
		ScanURL  string          `json:"scan_url"`
	} `json:"result"`
}

// scanResponse mirrors the Brandscan sync scan API response.
type scanResponse struct {
	Success bool   `json:"success"`
	Brand   string `json:"brand"`
	Summary struct {
		DomainsScanned int `json:"domains_scanned"`
		TotalProducts  int `json:"total_products"`
		BlockedCount   int `json:"blocked_count"`
	} `json:"summary"`
	Reports     []domainReport `json:"reports"`
	CacheStatus string         `json:"cache_status"`
	ElapsedMs   int64          `json:"elapsed_ms"`
	Error       *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// scanJobResponse mirrors the async scan acknowledgement.
type scanJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// scanJob mirrors the async job status response.
type scanJob struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Brand     string `json:"brand"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Summary   struct {
		DomainsScanned int `json:"domains_scanned"`
		TotalProducts  int `json:"total_products"`
		BlockedCount   int `json:"blocked_count"`
	} `json:"summary"`
	Reports []domainReport `json:"reports"`
}

func main() {
	apiURL := os.Getenv("BRANDSCAN_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("BRANDSCAN_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "BRANDSCAN_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"brandscan",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scanBrandTool := mcp.NewTool("scan_brand",
		mcp.WithDescription("Scan e-commerce marketplaces for a brand's product listings. Returns per-domain status (Found, Text Match, Not Found, Blocked, Error) with extracted products, prices and sellers."),
		mcp.WithString("brand",
			mcp.Required(),
			mcp.Description("The brand name to search for"),
		),
		mcp.WithArray("domains",
			mcp.Required(),
			mcp.Description("Marketplace domains to scan (e.g. amazon.in, flipkart.com)"),
		),
		mcp.WithBoolean("deep_scan",
			mcp.Description("Visit product pages to resolve missing seller/availability data (slower)"),
		),
	)
	s.AddTool(scanBrandTool, handleScanBrand(apiURL, apiKey))

	startScanTool := mcp.NewTool("start_brand_scan",
		mcp.WithDescription("Start an asynchronous brand scan across many domains and return a job ID immediately. Use get_scan_status to retrieve results."),
		mcp.WithString("brand",
			mcp.Required(),
			mcp.Description("The brand name to search for"),
		),
		mcp.WithArray("domains",
			mcp.Required(),
			mcp.Description("Marketplace domains to scan"),
		),
		mcp.WithBoolean("deep_scan",
			mcp.Description("Visit product pages to resolve missing seller/availability data"),
		),
	)
	s.AddTool(startScanTool, handleStartScan(apiURL, apiKey))

	scanStatusTool := mcp.NewTool("get_scan_status",
		mcp.WithDescription("Get the status and results of an asynchronous brand scan job."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The scan job ID returned by start_brand_scan"),
		),
	)
	s.AddTool(scanStatusTool, handleScanStatus(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Brandscan API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleScanBrand(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		brand, err := request.RequireString("brand")
		if err != nil {
			return mcp.NewToolResultError("brand is required"), nil
		}
		domains, err := request.RequireStringSlice("domains")
		if err != nil {
			return mcp.NewToolResultError("domains is required and must be an array of strings"), nil
		}

		payload := scanRequest{
			Brand:    brand,
			Domains:  domains,
			DeepScan: request.GetBool("deep_scan", false),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/scan", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scan request failed: %v", err)), nil
		}

		var scanResp scanResponse
		if err := json.Unmarshal(respBody, &scanResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse scan response: %v", err)), nil
		}
		if !scanResp.Success {
			errMsg := "scan failed"
			if scanResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", scanResp.Error.Code, scanResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Brand %q: %d domain(s), %d product(s), %d blocked (%dms)\n\n",
			scanResp.Brand,
			scanResp.Summary.DomainsScanned,
			scanResp.Summary.TotalProducts,
			scanResp.Summary.BlockedCount,
			scanResp.ElapsedMs,
		))
		formatReports(&sb, scanResp.Reports)

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleStartScan(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		brand, err := request.RequireString("brand")
		if err != nil {
			return mcp.NewToolResultError("brand is required"), nil
		}
		domains, err := request.RequireStringSlice("domains")
		if err != nil {
			return mcp.NewToolResultError("domains is required and must be an array of strings"), nil
		}

		payload := scanRequest{
			Brand:    brand,
			Domains:  domains,
			DeepScan: request.GetBool("deep_scan", false),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/scan/async", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scan request failed: %v", err)), nil
		}

		var jobResp scanJobResponse
		if err := json.Unmarshal(respBody, &jobResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if jobResp.ID == "" {
			return mcp.NewToolResultError("scan job creation failed"), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Scan job %s started: %s (%d domains)", jobResp.ID, jobResp.Status, jobResp.Total)), nil
	}
}

func handleScanStatus(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/v1/scan/"+jobID, nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("create request: %v", err)), nil
		}
		req.Header.Set("X-API-Key", apiKey)

		resp, err := client.Do(req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read response: %v", err)), nil
		}
		if resp.StatusCode == http.StatusNotFound {
			return mcp.NewToolResultError("scan job not found"), nil
		}

		var job scanJob
		if err := json.Unmarshal(respBody, &job); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse job status: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Scan %s (%q): %s, %d/%d domains", job.ID, job.Brand, job.Status, job.Completed, job.Total))
		if job.Status == "completed" {
			sb.WriteString(fmt.Sprintf(", %d product(s), %d blocked", job.Summary.TotalProducts, job.Summary.BlockedCount))
		}
		sb.WriteString("\n\n")
		formatReports(&sb, job.Reports)

		return mcp.NewToolResultText(sb.String()), nil
	}
}

// formatReports renders per-domain results as readable text.
func formatReports(sb *strings.Builder, reports []domainReport) {
	for _, report := range reports {
		if report.Result == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("--- %s: %s", report.Domain, report.Result.Status))
		if report.Result.Details != "" {
			sb.WriteString(" (" + report.Result.Details + ")")
		}
		sb.WriteString(" ---\n")
		for _, p := range report.Result.Products {
			sb.WriteString(fmt.Sprintf("  • %s | %s | seller: %s | %s\n    %s\n",
				p.Name, p.Price, p.Seller, p.Availability, p.URL))
		}
		sb.WriteString("\n")
	}
}
