package http

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Snagnar/facto.github.io/internal/domain"
	"github.com/Snagnar/facto.github.io/internal/usecase"
)

// compileRequestDTO is the wire shape of a compile submission.
type compileRequestDTO struct {
	Source        string `json:"source"`
	BlueprintName string `json:"blueprintName"`
	PowerPoles    string `json:"powerPoles"`
	NoOptimize    bool   `json:"noOptimize"`
	JSONOutput    bool   `json:"jsonOutput"`
	LogLevel      string `json:"logLevel"`
}

func (d *compileRequestDTO) toDomain() *domain.CompileRequest {
	return &domain.CompileRequest{
		Source: d.Source,
		Options: domain.CompileOptions{
			BlueprintName: d.BlueprintName,
			PowerPoles:    domain.PowerPoles(d.PowerPoles),
			NoOptimize:    d.NoOptimize,
			JSONOutput:    d.JSONOutput,
			LogLevel:      domain.LogLevel(d.LogLevel),
		},
	}
}

// CompileHandler handles compile submissions in both delivery modes.
type CompileHandler struct {
	compileUC *usecase.CompileUsecase
	logger    *zap.Logger
}

// NewCompileHandler creates a new CompileHandler.
func NewCompileHandler(compileUC *usecase.CompileUsecase, logger *zap.Logger) *CompileHandler {
	return &CompileHandler{
		compileUC: compileUC,
		logger:    logger,
	}
}

// Compile handles POST /api/v1/compile, the synchronous mode. The
// response is sent only after the job's terminal event.
func (h *CompileHandler) Compile(c *gin.Context) {
	var req compileRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	result, err := h.compileUC.RunSync(c.Request.Context(), req.toDomain())
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CompileStream handles POST /api/v1/compile/stream; each CompileEvent
// is pushed as one SSE event the instant it is produced. A dropped client
// cancels the session so the compile slot frees promptly.
func (h *CompileHandler) CompileStream(c *gin.Context) {
	var req compileRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	job, err := h.compileUC.Submit(req.toDomain())
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	c.Header("Content-Type", sse.ContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	connected := true

	for {
		select {
		case <-clientGone:
			clientGone = nil
			connected = false
			h.compileUC.Cancel(job.ID)
			h.logger.Debug("stream client disconnected, job cancelled",
				zap.String("job_id", job.ID.String()))
		case ev, ok := <-job.Events():
			if !ok {
				return
			}
			if !connected {
				continue // keep draining so the slot always frees
			}
			_ = sse.Encode(c.Writer, sse.Event{
				Event: string(ev.Kind),
				Data:  ev,
			})
			c.Writer.Flush()
		}
	}
}

func (h *CompileHandler) writeSubmitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptySource),
		errors.Is(err, domain.ErrSuspiciousSource),
		errors.Is(err, domain.ErrInvalidPowerPoles),
		errors.Is(err, domain.ErrInvalidLogLevel):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSourceTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrQueueFull), errors.Is(err, domain.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error("compile submit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
