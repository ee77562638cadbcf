// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/triage-visualizer/backend/internal/layout"
	"github.com/triage-visualizer/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store   storage.Store
	Runs    RunManager
	Uploads UploadJobs // nil disables chunked uploads
	Rules   RulesHolder
	Engine  *layout.Engine
	// ExportDir receives bundles written through the API.
	ExportDir     string
	ViperFallback bool
	Version       string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Files     FileHandler
	Index     IndexHandler
	Timeline  TimelineHandler
	Export    ExportHandler
	Rules     RulesHandler
	Companion *CompanionHub
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	engine := deps.Engine
	if engine == nil {
		engine = layout.New(layout.DefaultConfig())
	}
	hub := NewCompanionHub(deps.Runs, engine)
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Rules),
		Files:     NewFileHandler(deps.Store, deps.Uploads),
		Index:     NewIndexHandler(deps.Store, deps.Runs, deps.ViperFallback),
		Timeline:  NewTimelineHandler(deps.Runs, engine, hub),
		Export:    NewExportHandler(deps.Runs, deps.ExportDir),
		Rules:     NewRulesHandler(deps.Rules),
		Companion: hub,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/health", handlers.Health.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// File upload routes
	fileGroup := e.Group("/api/files")
	fileGroup.POST("/upload", handlers.Files.HandleUploadFile)
	fileGroup.POST("/upload/chunk", handlers.Files.HandleUploadChunk)
	fileGroup.POST("/upload/complete", handlers.Files.HandleCompleteUpload)
	fileGroup.POST("/upload/binary", handlers.Files.HandleUploadBinary)
	fileGroup.GET("/upload/jobs/:jobId/stream", handlers.Files.HandleUploadJobStream)
	fileGroup.GET("/recent", handlers.Files.HandleGetRecentFiles)
	fileGroup.GET("/:id", handlers.Files.HandleGetFile)
	fileGroup.DELETE("/:id", handlers.Files.HandleDeleteFile)
	fileGroup.PUT("/:id", handlers.Files.HandleRenameFile)

	// Index run routes
	indexGroup := e.Group("/api/index")
	indexGroup.POST("", handlers.Index.HandleStartIndex)
	indexGroup.GET("/:runId", handlers.Index.HandleIndexStatus)
	indexGroup.DELETE("/:runId", handlers.Index.HandleDeleteIndex)
	indexGroup.GET("/:runId/stream", handlers.Index.HandleIndexProgressStream)
	indexGroup.POST("/:runId/keepalive", handlers.Index.HandleIndexKeepAlive)
	indexGroup.GET("/:runId/outcomes", handlers.Index.HandleGetOutcomes)
	indexGroup.GET("/:runId/export/:name", handlers.Export.HandleExportFile)
	indexGroup.POST("/:runId/export", handlers.Export.HandleWriteBundle)

	// Session routes
	sessionGroup := indexGroup.Group("/:runId/sessions")
	sessionGroup.GET("", handlers.Index.HandleGetSessions)
	sessionGroup.GET("/:n", handlers.Index.HandleGetSession)
	sessionGroup.GET("/:n/downloads", handlers.Index.HandleGetDownloads)
	sessionGroup.GET("/:n/outcomes", handlers.Index.HandleGetOutcomes)
	sessionGroup.GET("/:n/layout", handlers.Timeline.HandleLayout)
	sessionGroup.GET("/:n/render.svg", handlers.Timeline.HandleRenderSVG)
	sessionGroup.GET("/:n/hit", handlers.Timeline.HandleHitTest)
	sessionGroup.GET("/:n/jump", handlers.Timeline.HandleJump)

	// Marker rule routes
	e.GET("/api/rules", handlers.Rules.HandleGetRules)
	e.PUT("/api/rules", handlers.Rules.HandlePutRules)

	RegisterWebSocketRoutes(e, handlers)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws", handlers.Companion.HandleWebSocket)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}
