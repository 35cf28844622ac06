package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Snagnar/facto.github.io/internal/stats"
)

// StatsHandler exposes the usage counters and records front-end sessions.
type StatsHandler struct {
	recorder *stats.Recorder
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(recorder *stats.Recorder) *StatsHandler {
	return &StatsHandler{recorder: recorder}
}

// Get handles GET /api/v1/stats
func (h *StatsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.recorder.Snapshot())
}

// RecordSession handles POST /api/v1/session. The front end calls this
// once on load.
func (h *StatsHandler) RecordSession(c *gin.Context) {
	h.recorder.RecordVisit()
	c.Status(http.StatusNoContent)
}
