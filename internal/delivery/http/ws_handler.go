package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Snagnar/facto.github.io/internal/usecase"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the CORS middleware config
	},
}

// WebSocketHandler is the WebSocket flavor of the streaming mode: the
// client sends one compile request frame and receives every CompileEvent
// as a JSON frame, in order, ending with the terminal event.
type WebSocketHandler struct {
	compileUC *usecase.CompileUsecase
	logger    *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(compileUC *usecase.CompileUsecase, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		compileUC: compileUC,
		logger:    logger,
	}
}

// Compile handles GET /api/v1/compile/ws (WebSocket upgrade).
func (h *WebSocketHandler) Compile(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var req compileRequestDTO
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(gin.H{"error": "Invalid compile request frame"})
		return
	}

	job, err := h.compileUC.Submit(req.toDomain())
	if err != nil {
		_ = conn.WriteJSON(gin.H{"error": err.Error()})
		return
	}

	// Read pump: the only expected client frame after the request is a
	// close, which cancels the job.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.compileUC.Cancel(job.ID)
				return
			}
		}
	}()

	connected := true
	for ev := range job.Events() {
		if !connected {
			continue // drain to the end so the slot frees
		}
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug("WebSocket write failed (client disconnected)",
				zap.String("job_id", job.ID.String()), zap.Error(err))
			h.compileUC.Cancel(job.ID)
			connected = false
		}
	}
}
