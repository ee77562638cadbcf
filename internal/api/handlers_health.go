// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	started time.Time
	rules   RulesHolder
}

// NewHealthHandler creates a new health handler. rules may be nil.
func NewHealthHandler(version string, rules RulesHolder) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		started: time.Now(),
		rules:   rules,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"uptimeSec": int64(time.Since(h.started).Seconds()),
	}
	if h.rules != nil {
		info := h.rules.Info()
		body["builtinRules"] = info.BuiltinCount
		body["userRules"] = info.RulesCount
	}
	return c.JSON(http.StatusOK, body)
}
