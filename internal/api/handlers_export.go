// handlers_export.go - Statistics export handlers
package api

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/triage-visualizer/backend/internal/stats"
)

// ExportHandlerImpl implements the ExportHandler interface
type ExportHandlerImpl struct {
	runs      RunManager
	exportDir string
}

// NewExportHandler creates a new export handler. Bundles written to disk
// go to exportDir/<runId>.
func NewExportHandler(runs RunManager, exportDir string) ExportHandler {
	return &ExportHandlerImpl{
		runs:      runs,
		exportDir: exportDir,
	}
}

// HandleExportFile renders one export file of a completed run
func (h *ExportHandlerImpl) HandleExportFile(c echo.Context) error {
	id := c.Param("runId")
	name := c.Param("name")
	if !slices.Contains(stats.BundleFiles, name) {
		return NewNotFoundError("export", name)
	}

	res, err := h.runs.Result(id)
	if err != nil {
		return runError(err, id)
	}

	var buf bytes.Buffer
	if err := stats.Build(res).Write(name, &buf); err != nil {
		return runError(err, name)
	}

	if name != stats.FileReport {
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	}
	return c.Blob(http.StatusOK, stats.ContentType(name), buf.Bytes())
}

// HandleWriteBundle writes the full export bundle of a run to the export
// directory, replacing any earlier export of the same run.
func (h *ExportHandlerImpl) HandleWriteBundle(c echo.Context) error {
	if h.exportDir == "" {
		return NewServiceUnavailableError("export directory not configured")
	}
	id := c.Param("runId")
	res, err := h.runs.Result(id)
	if err != nil {
		return runError(err, id)
	}

	dir := filepath.Join(h.exportDir, filepath.Base(id))
	if err := stats.WriteBundle(dir, stats.Build(res)); err != nil {
		return NewInternalError("failed to write export", err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"dir":   dir,
		"files": stats.BundleFiles,
	})
}
