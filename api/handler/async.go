package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guardline/brandscan/models"
	"github.com/guardline/brandscan/scan"
	"github.com/guardline/brandscan/webhook"
)

// jobStore holds all in-flight and completed async scan jobs.
var jobStore sync.Map

func init() {
	// Background goroutine to expire scan jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			jobStore.Range(func(key, value any) bool {
				job := value.(*models.ScanJob)
				if job.CreatedAt < cutoff {
					jobStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostScanAsync returns a handler for POST /api/v1/scan/async.
// It validates the request, records a job, and runs the scan in the
// background; the caller polls GET /scan/:id or registers a webhook.
func PostScanAsync(runner *scan.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
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

		jobID := "scan-" + randomID()
		job := &models.ScanJob{
			ID:        jobID,
			Status:    "processing",
			Brand:     req.Brand,
			Total:     len(req.Domains),
			CreatedAt: time.Now().Unix(),
		}
		jobStore.Store(jobID, job)

		go runScanJob(runner, job, req)

		c.JSON(http.StatusOK, models.ScanJobResponse{
			ID:     jobID,
			Status: "processing",
			Total:  len(req.Domains),
		})
	}
}

// GetScanJob returns a handler for GET /api/v1/scan/:id.
func GetScanJob() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := jobStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "scan job not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, val.(*models.ScanJob))
	}
}

// runScanJob executes an async scan and fires the completion webhook.
func runScanJob(runner *scan.Runner, job *models.ScanJob, req models.ScanRequest) {
	activeScans.Add(1)
	defer activeScans.Add(-1)

	reports, summary := runner.Run(context.Background(), req.Brand, req.Domains, req.DeepScan)

	job.Reports = reports
	job.Summary = summary
	job.Completed = len(reports)
	job.Status = "completed"

	slog.Info("scan job finished",
		"id", job.ID,
		"brand", job.Brand,
		"domains", job.Total,
		"products", summary.TotalProducts,
		"blocked", summary.BlockedCount,
	)

	if req.WebhookURL != "" {
		webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
			Type:      "scan.completed",
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      job,
		})
	}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
