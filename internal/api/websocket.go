package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/triage-visualizer/backend/internal/layout"
	"github.com/triage-visualizer/backend/internal/log"
	"github.com/triage-visualizer/backend/internal/metrics"
	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/render"
)

// Companion channel roles. A timeline page and one or more raw log
// viewers join the same run and session; scrollTo messages from one role
// are relayed to the other. Each timeline also owns a server-side panner
// fed with its pointer gestures and answered with pan frames.
const (
	RoleTimeline = "timeline"
	RoleViewer   = "viewer"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendQueue  = 16
)

var errClientSlow = errors.New("companion client send queue full")

type channelKey struct {
	run     string
	session int
}

// wsError is sent to a client whose message could not be handled.
type wsError struct {
	Command string `json:"command"`
	Error   string `json:"error"`
}

// CompanionHub pairs timeline pages with raw log viewers over WebSocket
type CompanionHub struct {
	runs     RunManager
	engine   *layout.Engine
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu       sync.Mutex
	channels map[channelKey]map[*companionClient]struct{}
}

// NewCompanionHub creates a hub serving sessions of runs laid out by engine.
func NewCompanionHub(runs RunManager, engine *layout.Engine) *CompanionHub {
	return &CompanionHub{
		runs:   runs,
		engine: engine,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		logger:   log.WithComponent("companion"),
		channels: make(map[channelKey]map[*companionClient]struct{}),
	}
}

// companionClient is one connection. Only writePump writes to conn.
// Timeline clients carry the link driving their pan state.
type companionClient struct {
	conn     *websocket.Conn
	role     string
	link     *render.Link
	panner   *render.Panner
	send     chan []byte
	done     chan struct{}
	finished chan struct{}
	once     sync.Once
}

// Send queues msg for the client.
func (cl *companionClient) Send(ctx context.Context, msg render.CompanionMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return cl.enqueue(ctx, data)
}

func (cl *companionClient) enqueue(ctx context.Context, data []byte) error {
	select {
	case <-cl.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case cl.send <- data:
		return nil
	case <-cl.done:
		return websocket.ErrCloseSent
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errClientSlow
	}
}

func (cl *companionClient) sendError(message string) {
	data, _ := json.Marshal(wsError{Command: "error", Error: message})
	_ = cl.enqueue(context.Background(), data)
}

func (cl *companionClient) close() {
	cl.once.Do(func() { close(cl.done) })
}

func (cl *companionClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
		close(cl.finished)
	}()

	for {
		select {
		case data := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				cl.close()
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.close()
				return
			}
		case <-cl.done:
			_ = cl.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		}
	}
}

// channel delivers to every client of one role on a run session.
type channel struct {
	hub  *CompanionHub
	key  channelKey
	role string
}

// Send implements render.Companion.
func (ch channel) Send(ctx context.Context, msg render.CompanionMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ch.hub.broadcast(ctx, ch.key, ch.role, nil, data)
	return nil
}

// Viewers returns the companion viewers of session n of run.
func (h *CompanionHub) Viewers(run string, n int) render.Companion {
	return channel{hub: h, key: channelKey{run: run, session: n}, role: RoleViewer}
}

// Clients counts the connections on session n of run.
func (h *CompanionHub) Clients(run string, n int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[channelKey{run: run, session: n}])
}

func (h *CompanionHub) members(key channelKey, role string, from *companionClient) []*companionClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	targets := make([]*companionClient, 0, len(h.channels[key]))
	for cl := range h.channels[key] {
		if cl != from && cl.role == role {
			targets = append(targets, cl)
		}
	}
	return targets
}

func (h *CompanionHub) broadcast(ctx context.Context, key channelKey, role string, from *companionClient, data []byte) {
	for _, cl := range h.members(key, role, from) {
		if err := cl.enqueue(ctx, data); err != nil {
			h.logger.Debug().Err(err).Str(log.FieldRunID, key.run).Msg("companion message dropped")
		}
	}
}

func (h *CompanionHub) register(key channelKey, cl *companionClient) {
	h.mu.Lock()
	if h.channels[key] == nil {
		h.channels[key] = make(map[*companionClient]struct{})
	}
	h.channels[key][cl] = struct{}{}
	h.mu.Unlock()
	metrics.CompanionClients.Inc()
}

func (h *CompanionHub) unregister(key channelKey, cl *companionClient) {
	h.mu.Lock()
	if _, ok := h.channels[key][cl]; ok {
		delete(h.channels[key], cl)
		if len(h.channels[key]) == 0 {
			delete(h.channels, key)
		}
		metrics.CompanionClients.Dec()
	}
	h.mu.Unlock()
	cl.close()
}

// Close disconnects every client.
func (h *CompanionHub) Close() {
	h.mu.Lock()
	var all []*companionClient
	for _, clients := range h.channels {
		for cl := range clients {
			all = append(all, cl)
		}
	}
	h.mu.Unlock()

	for _, cl := range all {
		cl.close()
	}
}

// HandleWebSocket joins a companion channel:
// GET /api/ws?run=<runId>&session=<n>&role=timeline|viewer
func (h *CompanionHub) HandleWebSocket(c echo.Context) error {
	runID := c.QueryParam("run")
	if runID == "" {
		return NewValidationError("run")
	}
	n, err := strconv.Atoi(c.QueryParam("session"))
	if err != nil || n < 0 {
		return NewValidationError("session")
	}
	role := c.QueryParam("role")
	if role == "" {
		role = RoleViewer
	}
	if role != RoleViewer && role != RoleTimeline {
		return NewValidationError("role")
	}

	s, err := h.runs.GetSession(runID, n)
	if err != nil {
		return runError(err, runID)
	}
	res, err := h.runs.Result(runID)
	if err != nil {
		return runError(err, runID)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already replied
		return nil
	}

	key := channelKey{run: runID, session: n}
	cl := &companionClient{
		conn:     conn,
		role:     role,
		send:     make(chan []byte, wsSendQueue),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	logger := h.logger.With().
		Str(log.FieldRunID, runID).
		Int(log.FieldSession, n).
		Str("role", role).
		Str(log.FieldRemoteIP, c.RealIP()).
		Logger()

	if role == RoleTimeline {
		scale := h.engine.Config().Scale
		cl.panner = render.NewPanner(func(st render.PanState) {
			_ = cl.Send(context.Background(), render.PanFrame(st, scale))
		})
		cl.link = render.NewLink(h.Viewers(runID, n), cl.panner, scale)
		cl.link.Bind(s, res.Corpus.Lines)
	}

	h.register(key, cl)
	go cl.writePump()
	defer func() {
		if cl.panner != nil {
			cl.panner.Stop()
		}
		h.unregister(key, cl)
		<-cl.finished
		logger.Debug().Msg("companion client disconnected")
	}()
	logger.Debug().Msg("companion client connected")

	ctx := c.Request().Context()
	if role == RoleViewer {
		link := render.NewLink(cl, nil, 0)
		if err := link.Select(ctx, s, res.Corpus.Lines); err != nil {
			logger.Warn().Err(err).Msg("initialize failed")
			return nil
		}
	}

	conn.SetReadLimit(64 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("companion read failed")
			}
			return nil
		}

		var msg render.CompanionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			cl.sendError("invalid message: " + err.Error())
			continue
		}
		h.relay(ctx, key, cl, s, res.Corpus.Lines, msg)
	}
}

// relay handles a client message. scrollTo goes to the other role, and
// from a viewer it also animates every timeline to the line's time. A
// timeline asking for initialize re-selects the session, resetting its pan
// and re-sending the session lines to every viewer. Pointer gestures drive
// the sender's panner; a click is hit-tested and scrolls the viewers.
func (h *CompanionHub) relay(ctx context.Context, key channelKey, from *companionClient, s *models.Session, lines []string, msg render.CompanionMessage) {
	switch {
	case msg.Command == render.CommandScrollTo:
		if msg.Line < 0 || msg.Line > s.LastLine-s.FirstLine {
			from.sendError("line out of range")
			return
		}
		to := RoleViewer
		if from.role == RoleViewer {
			to = RoleTimeline
		}
		data, _ := json.Marshal(render.CompanionMessage{Command: msg.Command, Line: msg.Line})
		h.broadcast(ctx, key, to, from, data)
		if to == RoleTimeline {
			for _, cl := range h.members(key, RoleTimeline, from) {
				_ = cl.link.Receive(msg)
			}
		}

	case msg.Command == render.CommandInitialize && from.role == RoleTimeline:
		if err := from.link.Select(ctx, s, lines); err != nil {
			h.logger.Debug().Err(err).Str(log.FieldRunID, key.run).Msg("initialize failed")
		}

	case from.role == RoleTimeline:
		x, y, click, err := from.link.Gesture(msg)
		if err != nil {
			from.sendError(err.Error())
			return
		}
		if !click {
			return
		}
		hit := render.HitTest(h.engine.Layout(s, from.link.PanMs()), x, y)
		if hit.Kind == models.HitNone {
			return
		}
		if err := from.link.Click(ctx, hit); err != nil {
			h.logger.Debug().Err(err).Str(log.FieldRunID, key.run).Msg("companion notify failed")
		}
		_ = from.Send(ctx, render.CompanionMessage{Command: render.CommandHit, Line: hit.Line - s.FirstLine, Label: hit.Label})

	default:
		from.sendError(render.ErrUnknownCommand.Error() + ": " + msg.Command)
	}
}
