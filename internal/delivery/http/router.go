package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Snagnar/facto.github.io/internal/delivery/http/middleware"
	"github.com/Snagnar/facto.github.io/internal/stats"
	"github.com/Snagnar/facto.github.io/internal/usecase"
)

// RouterDeps carries everything the router needs.
type RouterDeps struct {
	CompileUC      *usecase.CompileUsecase
	Recorder       *stats.Recorder
	Limiter        middleware.LimiterStore
	Logger         *zap.Logger
	CompilerPath   string
	MaxSourceBytes int64
	AllowedOrigins []string
	StaticDir      string
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps *RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.Logger(deps.Logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting)
		healthHandler := NewHealthHandler(deps.CompilerPath, deps.CompileUC.QueueDepth, deps.Logger)
		v1.GET("/health", healthHandler.Health)

		// Examples for the editor's loader
		examplesHandler := NewExamplesHandler()
		v1.GET("/examples", examplesHandler.List)

		// Stats
		statsHandler := NewStatsHandler(deps.Recorder)
		v1.GET("/stats", statsHandler.Get)
		v1.POST("/session", statsHandler.RecordSession)

		// Compilation. The rate limiter runs before the handler, so a
		// request can only see a queue-full rejection after it passed
		// the limiter. Body limit leaves headroom over the source cap
		// for options and JSON framing.
		compileHandler := NewCompileHandler(deps.CompileUC, deps.Logger)
		wsHandler := NewWebSocketHandler(deps.CompileUC, deps.Logger)
		compile := v1.Group("")
		compile.Use(middleware.RateLimiter(deps.Limiter))
		compile.Use(middleware.BodySizeLimit(deps.MaxSourceBytes + 4096))
		{
			compile.POST("/compile", compileHandler.Compile)
			compile.POST("/compile/stream", compileHandler.CompileStream)
			compile.GET("/compile/ws", wsHandler.Compile)
		}
	}

	// Optional static front end at the root. API and metrics routes match
	// first; everything else falls through to the file server.
	if deps.StaticDir != "" {
		fileServer := http.FileServer(http.Dir(deps.StaticDir))
		router.NoRoute(func(c *gin.Context) {
			fileServer.ServeHTTP(c.Writer, c.Request)
		})
	}

	return router
}
