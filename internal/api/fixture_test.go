package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/triage-visualizer/backend/internal/layout"
	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/ruleset"
	"github.com/triage-visualizer/backend/internal/session"
	"github.com/triage-visualizer/backend/internal/testutil"
)

// fixture is an API over one completed index run of testutil.SampleLog.
type fixture struct {
	e        *echo.Echo
	handlers *Handlers
	store    *testutil.MockStorage
	runs     *session.Manager
	rules    *ruleset.Holder
	engine   *layout.Engine
	runID    string
	export   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := testutil.NewMockStorageWithTempDir(t.TempDir())
	info := store.AddFile("sample", "sample.log", []byte(testutil.SampleLog()))
	path, err := store.GetFilePath(info.ID)
	require.NoError(t, err)

	rules := ruleset.NewHolder(nil)
	runs := session.NewManager(session.ManagerOptions{TempDir: t.TempDir(), Rules: rules})
	t.Cleanup(runs.Close)

	run, err := runs.StartRun([]session.FileRef{{ID: info.ID, Name: info.Name, Path: path}}, false)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	run, err = runs.Wait(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusComplete, run.Status, "run errors: %v", run.Errors)

	f := &fixture{
		store:  store,
		runs:   runs,
		rules:  rules,
		engine: layout.New(layout.DefaultConfig()),
		runID:  run.ID,
		export: t.TempDir(),
	}
	f.handlers = NewHandlers(&Dependencies{
		Store:     store,
		Runs:      runs,
		Rules:     rules,
		Engine:    f.engine,
		ExportDir: f.export,
		Version:   "test",
	})
	t.Cleanup(f.handlers.Companion.Close)
	f.e = newEcho(f.handlers)
	return f
}

func newEcho(handlers *Handlers) *echo.Echo {
	e := echo.New()
	SetupMiddleware(e)
	RegisterRoutes(e, handlers)
	return e
}

func (f *fixture) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) session(t *testing.T, n int) *models.Session {
	t.Helper()
	s, err := f.runs.GetSession(f.runID, n)
	require.NoError(t, err)
	return s
}

func (f *fixture) path(suffix string) string {
	return "/api/index/" + f.runID + suffix
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireAPIError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	apiErr := decode[APIError](t, rec)
	require.Equal(t, code, apiErr.Code)
}

