package handler

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guardline/brandscan/cache"
	"github.com/guardline/brandscan/models"
	"github.com/guardline/brandscan/scan"
)

// maxDomainsPerScan caps one request's fan-out.
const maxDomainsPerScan = 25

// activeScans counts in-flight scans (sync and async) for health reporting.
var activeScans atomic.Int32

// ActiveScans reports the number of scans currently running.
func ActiveScans() int {
	return int(activeScans.Load())
}

// Scan returns a handler for POST /api/v1/scan.
//
// The cache is consulted per (brand, domain) pair, so a request only pays for
// the domains it has not seen recently; fresh results are always stored back.
func Scan(runner *scan.Runner, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScanResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "invalid request body: " + err.Error(),
				},
			})
			return
		}
		if detail := validateScanRequest(&req); detail != nil {
			c.JSON(http.StatusBadRequest, models.ScanResponse{Success: false, Error: detail})
			return
		}

		activeScans.Add(1)
		defer activeScans.Add(-1)

		reports := make([]*models.DomainReport, len(req.Domains))
		var missIdx []int
		var missDomains []string
		for i, domain := range req.Domains {
			if result, ok := cc.Get(cache.Key(req.Brand, domain), req.MaxAge); ok {
				reports[i] = &models.DomainReport{Domain: domain, Result: result}
				continue
			}
			missIdx = append(missIdx, i)
			missDomains = append(missDomains, domain)
		}

		if len(missDomains) > 0 {
			fresh, _ := runner.Run(c.Request.Context(), req.Brand, missDomains, req.DeepScan)
			for j, report := range fresh {
				reports[missIdx[j]] = report
				if report.Result != nil {
					cc.Set(cache.Key(req.Brand, report.Domain), report.Result)
				}
			}
		}

		cacheStatus := "miss"
		if len(missDomains) == 0 {
			cacheStatus = "hit"
		}

		c.JSON(http.StatusOK, models.ScanResponse{
			Success:     true,
			Brand:       req.Brand,
			Summary:     models.Summarize(reports),
			Reports:     reports,
			CacheStatus: cacheStatus,
			ElapsedMs:   time.Since(start).Milliseconds(),
		})
	}
}

// validateScanRequest enforces the request invariants shared by the sync and
// async endpoints.
func validateScanRequest(req *models.ScanRequest) *models.ErrorDetail {
	if req.Brand == "" {
		return &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "brand is required"}
	}
	if len(req.Domains) == 0 {
		return &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "at least one domain is required"}
	}
	if len(req.Domains) > maxDomainsPerScan {
		return &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "too many domains in one scan"}
	}
	for _, d := range req.Domains {
		if d == "" {
			return &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "domains must be non-empty"}
		}
	}
	return nil
}
