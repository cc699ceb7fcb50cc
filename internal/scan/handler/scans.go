package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/complyops/autopilot/internal/scan"
)

// Health handles GET /health — liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Root handles GET / — service banner and endpoint index.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "compliance-autopilot",
		"endpoints": gin.H{
			"frameworks": "GET /frameworks",
			"start_scan": "POST /scans",
			"list_scans": "GET /scans",
			"get_scan":   "GET /scans/{id}",
			"demo_scan":  "POST /demo-scan",
		},
	})
}

// Frameworks handles GET /frameworks — the supported framework catalog.
func (h *Handler) Frameworks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"frameworks": scan.Frameworks})
}

// StartScan handles POST /scans — registers a scan and returns it in running
// state; callers poll GET /scans/{id} for the result.
func (h *Handler) StartScan(c *gin.Context) {
	var req scan.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.svc.Start(c.Request.Context(), req)
	if err != nil {
		h.log.Error("failed to start scan", "project", req.ProjectPath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start scan"})
		return
	}

	h.log.Info("scan started", "scanId", job.ID, "project", job.ProjectPath)
	c.JSON(http.StatusAccepted, job)
}

// ListScans handles GET /scans — all known scans, newest first.
func (h *Handler) ListScans(c *gin.Context) {
	scans, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.log.Error("failed to list scans", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list scans"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": scans, "count": len(scans)})
}

// GetScan handles GET /scans/:id — one scan record, including the result once
// the background run has finished.
func (h *Handler) GetScan(c *gin.Context) {
	id := c.Param("id")

	job, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		var notFound scan.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("failed to get scan", "scanId", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get scan"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// DemoScan handles POST /demo-scan — a synchronous scan against the seeded
// mock remote.
func (h *Handler) DemoScan(c *gin.Context) {
	job, err := h.svc.RunDemo(c.Request.Context())
	if err != nil {
		h.log.Error("demo scan failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}
