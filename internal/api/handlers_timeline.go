// handlers_timeline.go - Timeline layout, rendering and interaction handlers
package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/triage-visualizer/backend/internal/layout"
	"github.com/triage-visualizer/backend/internal/log"
	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/render"
	"github.com/triage-visualizer/backend/internal/session"
)

// MIMEApplicationMsgpack is the content type of msgpack layouts.
const MIMEApplicationMsgpack = "application/msgpack"

// TimelineHandlerImpl implements the TimelineHandler interface
type TimelineHandlerImpl struct {
	runs   RunManager
	engine *layout.Engine
	hub    *CompanionHub
}

// NewTimelineHandler creates a new timeline handler. hub may be nil, in
// which case hit-tests never notify companion viewers.
func NewTimelineHandler(runs RunManager, engine *layout.Engine, hub *CompanionHub) TimelineHandler {
	return &TimelineHandlerImpl{
		runs:   runs,
		engine: engine,
		hub:    hub,
	}
}

// HandleLayout returns the layout of a session at a pan offset, as JSON or
// msgpack (?format=msgpack or an Accept header naming it). ?width limits
// the grid to a viewport of that many pixels.
func (h *TimelineHandlerImpl) HandleLayout(c echo.Context) error {
	id, s, err := h.session(c)
	if err != nil {
		return err
	}
	pan, err := floatParam(c, "pan", 0)
	if err != nil {
		return err
	}
	width, err := floatParam(c, "width", 0)
	if err != nil {
		return err
	}

	l := h.engine.LayoutView(s, pan, width)
	h.runs.TouchRun(id)

	if wantsMsgpack(c) {
		data, err := msgpack.Marshal(l)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, MIMEApplicationMsgpack, data)
	}
	return c.JSON(http.StatusOK, l)
}

// HandleRenderSVG paints a session at a pan offset as SVG. ?width limits
// drawing to a viewport of that many pixels.
func (h *TimelineHandlerImpl) HandleRenderSVG(c echo.Context) error {
	_, s, err := h.session(c)
	if err != nil {
		return err
	}
	pan, err := floatParam(c, "pan", 0)
	if err != nil {
		return err
	}
	width, err := floatParam(c, "width", 0)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := render.WriteSVG(&buf, h.engine, s, pan, width); err != nil {
		return NewInternalError("failed to render", err)
	}
	return c.Blob(http.StatusOK, "image/svg+xml", buf.Bytes())
}

// HandleHitTest resolves a click at (x, y) on the layout at pan. With
// ?notify=true a hit also scrolls the session's companion viewers.
func (h *TimelineHandlerImpl) HandleHitTest(c echo.Context) error {
	id, s, err := h.session(c)
	if err != nil {
		return err
	}
	x, err := requiredFloat(c, "x")
	if err != nil {
		return err
	}
	y, err := requiredFloat(c, "y")
	if err != nil {
		return err
	}
	pan, err := floatParam(c, "pan", 0)
	if err != nil {
		return err
	}

	hit := render.HitTest(h.engine.Layout(s, pan), x, y)

	if h.hub != nil && c.QueryParam("notify") == "true" {
		if msg, ok := render.ScrollToMessage(s, hit); ok {
			if err := h.hub.Viewers(id, s.Index).Send(c.Request().Context(), msg); err != nil {
				logger := log.WithComponent("api")
				logger.Debug().Err(err).Str(log.FieldRunID, id).Msg("companion notify failed")
			}
		}
	}
	return c.JSON(http.StatusOK, hit)
}

// HandleJump resolves a pan target. ?time= takes a device time or a
// "+offset" from the session start; ?exception=next|prev finds the
// nearest exception marker after or before the current ?pan.
func (h *TimelineHandlerImpl) HandleJump(c echo.Context) error {
	_, s, err := h.session(c)
	if err != nil {
		return err
	}

	if dir := c.QueryParam("exception"); dir != "" {
		pan, err := floatParam(c, "pan", 0)
		if err != nil {
			return err
		}
		return h.jumpException(c, s, dir, pan)
	}

	value := c.QueryParam("time")
	if strings.TrimSpace(value) == "" {
		return NewValidationError("time")
	}
	pan, err := session.JumpTarget(s, value)
	if err != nil {
		if errors.Is(err, session.ErrBadJumpTime) {
			return NewBadRequestError("unrecognized time", err)
		}
		return NewInternalError("jump failed", err)
	}
	return c.JSON(http.StatusOK, jumpResponse{Pan: pan})
}

func (h *TimelineHandlerImpl) jumpException(c echo.Context, s *models.Session, dir string, pan float64) error {
	t := s.MinTimestamp + int64(pan)

	var m *models.Marker
	var ok bool
	switch dir {
	case "next":
		m, ok = session.NextException(s, t)
	case "prev":
		m, ok = session.PrevException(s, t)
	default:
		return NewValidationError("exception")
	}
	if !ok {
		return NewNotFoundError("exception", dir)
	}

	line := m.Line
	return c.JSON(http.StatusOK, jumpResponse{
		Pan:   session.PanTarget(s, m.Timestamp),
		Line:  &line,
		Label: m.Label,
	})
}

func (h *TimelineHandlerImpl) session(c echo.Context) (string, *models.Session, error) {
	id := c.Param("runId")
	n, err := sessionParam(c)
	if err != nil {
		return id, nil, err
	}
	s, err := h.runs.GetSession(id, n)
	if err != nil {
		return id, nil, runError(err, id)
	}
	return id, s, nil
}

type jumpResponse struct {
	Pan   float64 `json:"pan"`
	Line  *int    `json:"line,omitempty"`
	Label string  `json:"label,omitempty"`
}

func wantsMsgpack(c echo.Context) bool {
	switch c.QueryParam("format") {
	case "msgpack":
		return true
	case "json":
		return false
	}
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEApplicationMsgpack)
}

func requiredFloat(c echo.Context, name string) (float64, error) {
	if c.QueryParam(name) == "" {
		return 0, NewValidationError(name)
	}
	v, err := strconv.ParseFloat(c.QueryParam(name), 64)
	if err != nil {
		return 0, NewValidationError(name)
	}
	return v, nil
}
