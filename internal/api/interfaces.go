// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/parser"
	"github.com/triage-visualizer/backend/internal/session"
	"github.com/triage-visualizer/backend/internal/upload"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// FileHandler handles log file upload and management
type FileHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleUploadJobStream(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// IndexHandler handles index runs and the session queries on their results
type IndexHandler interface {
	HandleStartIndex(c echo.Context) error
	HandleIndexStatus(c echo.Context) error
	HandleIndexProgressStream(c echo.Context) error
	HandleIndexKeepAlive(c echo.Context) error
	HandleDeleteIndex(c echo.Context) error
	HandleGetSessions(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleGetDownloads(c echo.Context) error
	HandleGetOutcomes(c echo.Context) error
}

// TimelineHandler handles layout, rendering and timeline interaction
type TimelineHandler interface {
	HandleLayout(c echo.Context) error
	HandleRenderSVG(c echo.Context) error
	HandleHitTest(c echo.Context) error
	HandleJump(c echo.Context) error
}

// ExportHandler handles statistics exports
type ExportHandler interface {
	HandleExportFile(c echo.Context) error
	HandleWriteBundle(c echo.Context) error
}

// RulesHandler handles the active user marker rules
type RulesHandler interface {
	HandleGetRules(c echo.Context) error
	HandlePutRules(c echo.Context) error
}

// RunManager defines the interface for index run management.
// This allows mocking in tests
type RunManager interface {
	StartRun(files []session.FileRef, viperFallback bool) (*models.IndexRun, error)
	GetRun(id string) (*models.IndexRun, bool)
	TouchRun(id string) bool
	DeleteRun(id string) bool
	Result(id string) (*session.Result, error)
	Sessions(id string) ([]models.SessionSummary, error)
	GetSession(id string, n int) (*models.Session, error)
	QueryDownloads(ctx context.Context, id string, n int, from, to float64) ([]models.DownloadRecord, error)
	OutcomeCounts(ctx context.Context, id string, n int) ([]parser.OutcomeCount, error)
}

// RulesHolder is the active marker rule table
type RulesHolder interface {
	UserRules() []models.MarkerRule
	Info() models.RulesInfo
	LoadReader(name string, r io.Reader) (models.RulesInfo, error)
}

// UploadJobs is the async upload processing the file handler needs
type UploadJobs interface {
	StartJob(uploadID, fileName string, totalChunks int, originalSize, compressedSize int64, encoding string) upload.Job
	GetJob(id string) (upload.Job, bool)
}

var (
	_ RunManager = (*session.Manager)(nil)
	_ UploadJobs = (*upload.Manager)(nil)
)
