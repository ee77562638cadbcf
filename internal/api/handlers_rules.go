// handlers_rules.go - User marker rule handlers
package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/triage-visualizer/backend/internal/models"
)

// maxRulesBody bounds an uploaded rule file.
const maxRulesBody = 1 << 20

// RulesHandlerImpl implements the RulesHandler interface
type RulesHandlerImpl struct {
	rules RulesHolder
}

// NewRulesHandler creates a new rules handler
func NewRulesHandler(rules RulesHolder) RulesHandler {
	return &RulesHandlerImpl{rules: rules}
}

type rulesResponse struct {
	Info  models.RulesInfo    `json:"info"`
	Rules []models.MarkerRule `json:"rules"`
}

// HandleGetRules returns the active user rules
func (h *RulesHandlerImpl) HandleGetRules(c echo.Context) error {
	return c.JSON(http.StatusOK, rulesResponse{
		Info:  h.rules.Info(),
		Rules: h.rules.UserRules(),
	})
}

// HandlePutRules replaces the user rules with the request body, a YAML
// or JSON rule file. ?name= labels the source. Runs already started keep
// the rules they began with.
func (h *RulesHandlerImpl) HandlePutRules(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRulesBody+1))
	if err != nil {
		return NewBadRequestError("failed to read body", err)
	}
	if len(body) > maxRulesBody {
		return NewBadRequestError("rule file too large", nil)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return NewValidationError("body")
	}

	name := c.QueryParam("name")
	if name == "" {
		name = "upload"
	}
	info, err := h.rules.LoadReader(name, bytes.NewReader(body))
	if err != nil {
		return NewBadRequestError("invalid rule file", err)
	}
	return c.JSON(http.StatusOK, rulesResponse{
		Info:  info,
		Rules: h.rules.UserRules(),
	})
}
