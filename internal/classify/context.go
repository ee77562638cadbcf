package classify

import (
	"math"

	"github.com/triage-visualizer/backend/internal/models"
)

// Line is one merged-corpus line with its resolved UTC timestamp.
type Line struct {
	Index int
	Text  string
	UTC   int64
}

// Context is the mutable parse state of one session. The indexer creates
// one per session, so bitrate and content state never leak across sessions.
type Context struct {
	Session *models.Session

	// CurrentBitrate is attributed to subsequent video downloads.
	CurrentBitrate int64
	// ViperFallback makes vendor play requests the session boundary and
	// demotes the tune attempts inside them to markers.
	ViperFallback bool

	seenBitrates map[int64]bool
	hasRange     bool

	emitted []models.Record
	color   string
}

// NewContext starts classification of s.
func NewContext(s *models.Session) *Context {
	if s.LineColors == nil {
		s.LineColors = make(map[int]string)
	}
	ctx := &Context{Session: s, seenBitrates: make(map[int64]bool)}
	for _, br := range s.Bitrates {
		ctx.seenBitrates[br] = true
	}
	return ctx
}

// Result is what one line produced.
type Result struct {
	Records []models.Record
	// Color is the display color of the line, "" when uncolored.
	Color string
	// Step names the detector that consumed the line.
	Step string
}

func (c *Context) begin() {
	c.emitted = c.emitted[:0]
	c.color = ""
}

func (c *Context) end(ln Line, step string) Result {
	if c.color != "" {
		c.Session.LineColors[ln.Index] = c.color
	}
	if len(c.emitted) == 0 && step == "" {
		return Result{}
	}
	return Result{
		Records: append([]models.Record(nil), c.emitted...),
		Color:   c.color,
		Step:    step,
	}
}

// noteBitrate records a video bitrate for track discovery.
func (c *Context) noteBitrate(br int64) {
	if br <= 0 || c.seenBitrates[br] {
		return
	}
	c.seenBitrates[br] = true
	c.Session.Bitrates = append(c.Session.Bitrates, br)
}

func (c *Context) setBitrate(br int64) {
	c.CurrentBitrate = br
	c.noteBitrate(br)
}

func (c *Context) adjust(ts int64) {
	s := c.Session
	if !c.hasRange {
		s.MinTimestamp, s.MaxTimestamp = ts, ts
		c.hasRange = true
		return
	}
	if ts < s.MinTimestamp {
		s.MinTimestamp = ts
	}
	if ts > s.MaxTimestamp {
		s.MaxTimestamp = ts
	}
}

func (c *Context) addDownload(d *models.DownloadRecord, color string) {
	c.Session.Downloads = append(c.Session.Downloads, d)
	c.adjust(int64(math.Floor(d.UTCStart)))
	c.adjust(int64(math.Ceil(d.UTCEnd)))
	c.emitted = append(c.emitted, d)
	c.color = color
}

func (c *Context) addMarker(m *models.Marker) {
	c.Session.Markers = append(c.Session.Markers, m)
	c.adjust(m.Timestamp)
	c.emitted = append(c.emitted, m)
	c.color = lineColor(m)
}

func (c *Context) addChunk(ch *models.ChunkInjectionEvent) {
	c.Session.Chunks = append(c.Session.Chunks, ch)
	c.adjust(ch.Timestamp)
	c.emitted = append(c.emitted, ch)
}

func (c *Context) setBoundary(b *models.SessionBoundary) {
	c.Session.Boundary = b
	if b.Locator != "" {
		c.Session.Locator = b.Locator
	}
	c.adjust(b.Timestamp)
	c.emitted = append(c.emitted, b)
	c.color = boundaryColor
}

func (c *Context) setTune(t *models.TuneSummary) {
	s := c.Session
	s.Tune = t
	s.TuneTimeMs = t.TuneTimeMs
	s.TuneFailed = !t.Success
	s.ContentType = t.ContentType
	c.emitted = append(c.emitted, t)
}
