package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/triage-visualizer/backend/internal/log"
	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/parser"
)

// Companion viewer commands.
const (
	CommandScrollTo   = "scrollTo"
	CommandInitialize = "initialize"
)

// Timeline commands. The page reports pointer gestures and navigation
// targets; the server answers with pan frames and hits.
const (
	CommandPress     = "press"
	CommandMove      = "move"
	CommandRelease   = "release"
	CommandAnimateTo = "animateTo"
	CommandPan       = "pan"
	CommandHit       = "hit"
)

// ErrUnknownCommand is returned for messages with an unrecognized command.
var ErrUnknownCommand = errors.New("unknown companion command")

// LogLine is one line of the companion viewer. It travels as the pair
// [color, text], with a null color for uncolored lines.
type LogLine struct {
	Color string
	Text  string
}

func (l LogLine) MarshalJSON() ([]byte, error) {
	var color any
	if l.Color != "" {
		color = l.Color
	}
	return json.Marshal([2]any{color, l.Text})
}

func (l *LogLine) UnmarshalJSON(data []byte) error {
	var pair []*string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 || pair[1] == nil {
		return fmt.Errorf("log line: want [color, text], got %s", bytes.TrimSpace(data))
	}
	l.Color, l.Text = "", *pair[1]
	if pair[0] != nil {
		l.Color = *pair[0]
	}
	return nil
}

// CompanionMessage is the envelope exchanged with the raw log viewer and
// the timeline page. Line numbers are relative to the first line of the
// selected session. X and Y are pointer positions in px within the
// visible timeline, Top is its vertical scroll and Pan is in ms from the
// session start.
type CompanionMessage struct {
	Command string    `json:"command"`
	Line    int       `json:"line"`
	Text    []LogLine `json:"text,omitempty"`

	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Top   float64 `json:"top,omitempty"`
	Pan   float64 `json:"pan,omitempty"`
	Label string  `json:"label,omitempty"`
}

// Companion delivers messages to the paired log viewer.
type Companion interface {
	Send(ctx context.Context, msg CompanionMessage) error
}

// Link keeps the timeline and the companion viewer on the same log line.
// Clicks on the timeline scroll the viewer; scrollTo messages from the
// viewer animate the timeline to that line's timestamp.
type Link struct {
	companion Companion
	panner    *Panner
	scale     float64

	mu      sync.Mutex
	session *models.Session
	lines   []string
}

// NewLink creates a Link. scale is the layout's px per ms.
func NewLink(c Companion, p *Panner, scale float64) *Link {
	return &Link{companion: c, panner: p, scale: scale}
}

// Bind makes s the active session without telling the viewer.
func (l *Link) Bind(s *models.Session, lines []string) {
	l.mu.Lock()
	l.session, l.lines = s, lines
	l.mu.Unlock()
}

// Select makes s the active session, resets the pan and sends the
// viewer the session's colored lines. lines is the merged corpus.
func (l *Link) Select(ctx context.Context, s *models.Session, lines []string) error {
	l.Bind(s, lines)
	if l.panner != nil {
		l.panner.Set(0, l.panner.State().Y)
	}
	return l.companion.Send(ctx, InitializeMessage(s, lines))
}

// Click forwards a timeline hit to the viewer.
func (l *Link) Click(ctx context.Context, hit models.HitResult) error {
	l.mu.Lock()
	s := l.session
	l.mu.Unlock()
	if s == nil {
		return nil
	}
	msg, ok := ScrollToMessage(s, hit)
	if !ok {
		return nil
	}
	return l.companion.Send(ctx, msg)
}

// ScrollToMessage is the viewer message for a hit on session s's timeline.
// Misses produce no message.
func ScrollToMessage(s *models.Session, hit models.HitResult) (CompanionMessage, bool) {
	if hit.Kind == models.HitNone {
		return CompanionMessage{}, false
	}
	return CompanionMessage{Command: CommandScrollTo, Line: hit.Line - s.FirstLine}, true
}

// Receive handles a message from the viewer.
func (l *Link) Receive(msg CompanionMessage) error {
	if msg.Command != CommandScrollTo {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, msg.Command)
	}
	l.mu.Lock()
	s, lines := l.session, l.lines
	l.mu.Unlock()
	if s == nil {
		return nil
	}

	t, ok := LineTime(s, lines, msg.Line)
	if !ok {
		logger := log.WithComponent("companion")
		logger.Debug().Int("line", msg.Line).Msg("scrollTo target has no timestamp")
		return nil
	}
	if l.panner != nil {
		l.panner.AnimateTo(float64(t-s.MinTimestamp)*l.scale, l.panner.State().Y)
	}
	return nil
}

// LineTime returns the timestamp of the session-relative line rel.
func LineTime(s *models.Session, lines []string, rel int) (int64, bool) {
	global := rel + s.FirstLine
	if rel < 0 || global > s.LastLine || global >= len(lines) {
		return 0, false
	}
	return parser.ParseTimestamp(lines[global])
}

// Gesture applies a timeline press, move, release or animateTo to the
// panner. A press released without moving is a click: it is reported
// with its position in layout coordinates.
func (l *Link) Gesture(msg CompanionMessage) (x, y float64, click bool, err error) {
	p := l.panner
	if p == nil {
		return 0, 0, false, nil
	}
	switch msg.Command {
	case CommandPress:
		// the page may have scrolled on its own since the last frame
		if st := p.State(); st.Y != msg.Top {
			p.Set(st.X, msg.Top)
		}
		p.Press(msg.X, msg.Y)
	case CommandMove:
		p.Move(msg.X, msg.Y)
	case CommandRelease:
		if p.Release(msg.X, msg.Y) {
			return msg.X, msg.Y + p.State().Y, true, nil
		}
	case CommandAnimateTo:
		p.AnimateTo(msg.Pan*l.scale, p.State().Y)
	default:
		return 0, 0, false, fmt.Errorf("%w: %q", ErrUnknownCommand, msg.Command)
	}
	return 0, 0, false, nil
}

// PanMs converts a panner X offset in px back to ms.
func (l *Link) PanMs() float64 {
	if l.panner == nil || l.scale <= 0 {
		return 0
	}
	return l.panner.State().X / l.scale
}

// PanFrame is the timeline message for pan state st at scale px per ms.
func PanFrame(st PanState, scale float64) CompanionMessage {
	msg := CompanionMessage{Command: CommandPan, Y: st.Y}
	if scale > 0 {
		msg.Pan = st.X / scale
	}
	return msg
}

// InitializeMessage builds the viewer payload for session s: every line
// of its range with the color of the record classified from it.
func InitializeMessage(s *models.Session, lines []string) CompanionMessage {
	msg := CompanionMessage{Command: CommandInitialize, Text: []LogLine{}}
	for i := s.FirstLine; i <= s.LastLine && i < len(lines); i++ {
		msg.Text = append(msg.Text, LogLine{Color: s.LineColors[i], Text: lines[i]})
	}
	return msg
}
