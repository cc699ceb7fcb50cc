package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/complyops/autopilot/internal/scan"
)

// Handler translates HTTP requests into calls on the scan.Service.
type Handler struct {
	svc *scan.Service
	log *slog.Logger
}

// RegisterRoutes mounts the compliance scan API onto the given Gin engine.
func RegisterRoutes(r *gin.Engine, svc *scan.Service, log *slog.Logger) {
	h := &Handler{svc: svc, log: log}

	r.GET("/health", h.Health)
	r.GET("/", h.Root)
	r.GET("/frameworks", h.Frameworks)

	// Scan lifecycle
	r.POST("/scans", h.StartScan)
	r.GET("/scans", h.ListScans)
	r.GET("/scans/:id", h.GetScan)

	// Demo scan against the seeded mock remote, no credentials required.
	r.POST("/demo-scan", h.DemoScan)
}
