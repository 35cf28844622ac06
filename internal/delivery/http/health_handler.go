package http

import (
	"net/http"
	"os/exec"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthHandler reports liveness, whether the compiler binary is actually
// invocable, and the current queue depth. The front end uses this to gate
// submission and drive its connection indicator.
type HealthHandler struct {
	compilerPath string
	queueDepth   func() int
	logger       *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(compilerPath string, queueDepth func() int, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{compilerPath: compilerPath, queueDepth: queueDepth, logger: logger}
}

// Health handles GET /api/v1/health
func (h *HealthHandler) Health(c *gin.Context) {
	compilerOK := h.compilerAvailable()

	status := "ok"
	code := http.StatusOK
	if !compilerOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":      status,
		"compiler":    compilerOK,
		"queue_depth": h.queueDepth(),
	})
}

func (h *HealthHandler) compilerAvailable() bool {
	_, err := exec.LookPath(h.compilerPath)
	return err == nil
}
