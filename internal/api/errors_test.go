package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triage-visualizer/backend/internal/session"
	"github.com/triage-visualizer/backend/internal/stats"
	"github.com/triage-visualizer/backend/internal/storage"
)

func TestRunError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{session.ErrRunNotFound, http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("session 3: %w", session.ErrSessionNotFound), http.StatusNotFound, "NOT_FOUND"},
		{session.ErrRunNotReady, http.StatusConflict, "CONFLICT"},
		{storage.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{stats.ErrUnknownExport, http.StatusNotFound, "NOT_FOUND"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got := runError(tt.err, "r1")
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.code, got.Code)
		})
	}
	assert.Equal(t, "disk on fire", runError(errors.New("disk on fire"), "r1").Details)
}

func TestErrorHandler(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	tests := []struct {
		name    string
		method  string
		err     error
		level   zerolog.Level
		status  int
		code    string
		details string
	}{
		{
			name:   "api error",
			method: http.MethodGet,
			err:    NewNotFoundError("file", "f1"),
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "echo error",
			method: http.MethodGet,
			err:    echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"),
			status: http.StatusMethodNotAllowed,
			code:   "HTTP_ERROR",
		},
		{
			name:   "unknown error hides details",
			method: http.MethodGet,
			err:    errors.New("secret"),
			level:  zerolog.InfoLevel,
			status: http.StatusInternalServerError,
			code:   "UNKNOWN_ERROR",
		},
		{
			name:    "unknown error shows details when debugging",
			method:  http.MethodGet,
			err:     errors.New("secret"),
			level:   zerolog.DebugLevel,
			status:  http.StatusInternalServerError,
			code:    "UNKNOWN_ERROR",
			details: "secret",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zerolog.SetGlobalLevel(tt.level)
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(tt.method, "/x", nil), rec)

			ErrorHandler(tt.err, c)

			require.Equal(t, tt.status, rec.Code)
			got := decode[APIError](t, rec)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.details, got.Details)
		})
	}
}

func TestErrorHandler_HeadAndCommitted(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	ErrorHandler(NewConflictError("busy"), e.NewContext(httptest.NewRequest(http.MethodHead, "/x", nil), rec))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)
	require.NoError(t, c.String(http.StatusOK, "done"))
	ErrorHandler(NewConflictError("busy"), c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "done", rec.Body.String())
}
