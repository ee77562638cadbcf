// handlers_index.go - Index run and session query handlers
package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/session"
	"github.com/triage-visualizer/backend/internal/storage"
)

// IndexHandlerImpl implements the IndexHandler interface
type IndexHandlerImpl struct {
	store         storage.Store
	runs          RunManager
	viperFallback bool
}

// NewIndexHandler creates a new index handler. viperFallback is the
// default for requests that do not set it.
func NewIndexHandler(store storage.Store, runs RunManager, viperFallback bool) IndexHandler {
	return &IndexHandlerImpl{
		store:         store,
		runs:          runs,
		viperFallback: viperFallback,
	}
}

// HandleStartIndex starts a background index run over one or more files
func (h *IndexHandlerImpl) HandleStartIndex(c echo.Context) error {
	var req startIndexRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	fileIDs := req.normalizeFileIDs()
	if len(fileIDs) == 0 {
		return NewValidationError("fileId or fileIds")
	}

	files, err := h.resolveFiles(fileIDs)
	if err != nil {
		return err
	}

	viper := h.viperFallback
	if req.ViperFallback != nil {
		viper = *req.ViperFallback
	}

	run, err := h.runs.StartRun(files, viper)
	if err != nil {
		if errors.Is(err, session.ErrNoFiles) {
			return NewValidationError("fileIds")
		}
		return NewInternalError("failed to start index run", err)
	}
	return c.JSON(http.StatusAccepted, run)
}

// HandleIndexStatus returns the current status of an index run
func (h *IndexHandlerImpl) HandleIndexStatus(c echo.Context) error {
	id := c.Param("runId")
	run, ok := h.runs.GetRun(id)
	if !ok {
		return NewNotFoundError("index run", id)
	}

	// viewing keeps the run alive
	h.runs.TouchRun(id)
	return c.JSON(http.StatusOK, run)
}

// HandleIndexProgressStream streams index progress via SSE
func (h *IndexHandlerImpl) HandleIndexProgressStream(c echo.Context) error {
	id := c.Param("runId")
	return streamSSE(c, "index run not found",
		func() (*models.IndexRun, bool) { return h.runs.GetRun(id) },
		func(r *models.IndexRun) bool {
			return r.Status == models.RunStatusComplete || r.Status == models.RunStatusError
		},
	)
}

// HandleIndexKeepAlive extends the lifetime of a run being viewed
func (h *IndexHandlerImpl) HandleIndexKeepAlive(c echo.Context) error {
	id := c.Param("runId")
	if ok := h.runs.TouchRun(id); !ok {
		return NewNotFoundError("index run", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleDeleteIndex cancels a run and frees its results
func (h *IndexHandlerImpl) HandleDeleteIndex(c echo.Context) error {
	id := c.Param("runId")
	if !h.runs.DeleteRun(id) {
		return NewNotFoundError("index run", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetSessions returns the session list of a completed run
func (h *IndexHandlerImpl) HandleGetSessions(c echo.Context) error {
	id := c.Param("runId")
	sessions, err := h.runs.Sessions(id)
	if err != nil {
		return runError(err, id)
	}
	h.runs.TouchRun(id)
	return c.JSON(http.StatusOK, sessions)
}

// HandleGetSession returns every record of one session
func (h *IndexHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("runId")
	n, err := sessionParam(c)
	if err != nil {
		return err
	}
	s, err := h.runs.GetSession(id, n)
	if err != nil {
		return runError(err, id)
	}
	return c.JSON(http.StatusOK, s)
}

// HandleGetDownloads returns downloads overlapping [from, to] in UTC ms.
// Missing bounds are open.
func (h *IndexHandlerImpl) HandleGetDownloads(c echo.Context) error {
	id := c.Param("runId")
	n, err := sessionParam(c)
	if err != nil {
		return err
	}
	from, err := floatParam(c, "from", -math.MaxFloat64)
	if err != nil {
		return err
	}
	to, err := floatParam(c, "to", math.MaxFloat64)
	if err != nil {
		return err
	}
	if from > to {
		return NewBadRequestError("from must not be after to", nil)
	}

	downloads, err := h.runs.QueryDownloads(c.Request().Context(), id, n, from, to)
	if err != nil {
		return runError(err, id)
	}
	return c.JSON(http.StatusOK, downloadsResponse{
		Session:   n,
		Downloads: downloads,
		Total:     len(downloads),
	})
}

// HandleGetOutcomes aggregates downloads by category and outcome, for one
// session or, without :n, for the whole run.
func (h *IndexHandlerImpl) HandleGetOutcomes(c echo.Context) error {
	id := c.Param("runId")
	n := -1
	if c.Param("n") != "" {
		var err error
		if n, err = sessionParam(c); err != nil {
			return err
		}
	}

	counts, err := h.runs.OutcomeCounts(c.Request().Context(), id, n)
	if err != nil {
		return runError(err, id)
	}
	return c.JSON(http.StatusOK, counts)
}

func (h *IndexHandlerImpl) resolveFiles(fileIDs []string) ([]session.FileRef, error) {
	files := make([]session.FileRef, 0, len(fileIDs))
	for _, fid := range fileIDs {
		info, err := h.store.Get(fid)
		if err != nil {
			return nil, fileError(err, fid)
		}

		path, err := h.store.GetFilePath(fid)
		if err != nil {
			return nil, NewInternalError("failed to get file path", err)
		}
		files = append(files, session.FileRef{ID: info.ID, Name: info.Name, Path: path})
	}
	return files, nil
}

// Request/Response types

type startIndexRequest struct {
	FileID        string   `json:"fileId"`
	FileIDs       []string `json:"fileIds"`
	ViperFallback *bool    `json:"viperFallback"`
}

func (r *startIndexRequest) normalizeFileIDs() []string {
	if len(r.FileIDs) > 0 {
		return r.FileIDs
	}
	if r.FileID != "" {
		return []string{r.FileID}
	}
	return nil
}

type downloadsResponse struct {
	Session   int                     `json:"session"`
	Downloads []models.DownloadRecord `json:"downloads"`
	Total     int                     `json:"total"`
}

// Param helpers

func sessionParam(c echo.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 0 {
		return 0, NewValidationError("n")
	}
	return n, nil
}

func floatParam(c echo.Context, name string, def float64) (float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, NewValidationError(name)
	}
	return v, nil
}
