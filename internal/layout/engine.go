// Package layout positions the records of one session on the timeline.
package layout

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/triage-visualizer/backend/internal/classify"
	"github.com/triage-visualizer/backend/internal/metrics"
	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/parser"
)

// Canvas geometry in pixels.
const (
	RowHeight     = 24
	BitrateMargin = 112
	TopMargin     = 64
	// LeftGutter separates the legend from the first timestamp.
	LeftGutter = 32

	MarkerHeight  = 22
	MarkerPadding = 8

	// DefaultScale is 10 px per second.
	DefaultScale = 0.1
	// DefaultCharWidth approximates 12px Arial.
	DefaultCharWidth = 7.0
	// DefaultMaxPasses bounds overlap resolution of downloads.
	DefaultMaxPasses = 1000
	// DefaultMaxGridTicks is one hour of one-second columns.
	DefaultMaxGridTicks = 3600

	gridStepMs = 1000
	// bottomMargin leaves room below the last marker row.
	bottomMargin = 2 * RowHeight
)

// Config holds engine settings.
type Config struct {
	// Scale is pixels per millisecond.
	Scale float64
	// MaxPasses caps the displacement passes per track.
	MaxPasses int
	// CharWidth is used by the default text measurer.
	CharWidth float64
	// MaxGridTicks caps the grid columns of one layout.
	MaxGridTicks int
}

// DefaultConfig returns the stock geometry.
func DefaultConfig() Config {
	return Config{
		Scale:        DefaultScale,
		MaxPasses:    DefaultMaxPasses,
		CharWidth:    DefaultCharWidth,
		MaxGridTicks: DefaultMaxGridTicks,
	}
}

// TextMeasurer returns the rendered width of a label in pixels.
type TextMeasurer interface {
	MeasureText(text string) float64
}

// FixedWidth measures every rune as the same width.
type FixedWidth float64

func (w FixedWidth) MeasureText(text string) float64 {
	return float64(w) * float64(utf8.RuneCountInString(text))
}

// Option configures an Engine.
type Option func(*Engine)

// WithMeasurer overrides label measurement, e.g. with a renderer's font metrics.
func WithMeasurer(m TextMeasurer) Option {
	return func(e *Engine) { e.measure = m }
}

// Engine computes timeline layouts. It is stateless and safe for concurrent use.
type Engine struct {
	cfg     Config
	measure TextMeasurer
}

// New creates an Engine, filling zero config fields with defaults.
func New(cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.Scale <= 0 {
		cfg.Scale = def.Scale
	}
	if cfg.MaxPasses <= 0 {
		cfg.MaxPasses = def.MaxPasses
	}
	if cfg.CharWidth <= 0 {
		cfg.CharWidth = def.CharWidth
	}
	if cfg.MaxGridTicks <= 0 {
		cfg.MaxGridTicks = def.MaxGridTicks
	}
	e := &Engine{cfg: cfg, measure: FixedWidth(cfg.CharWidth)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective settings.
func (e *Engine) Config() Config { return e.cfg }

// TimeToX maps a UTC timestamp to a canvas x coordinate.
func (e *Engine) TimeToX(s *models.Session, t float64, panMs float64) float64 {
	return BitrateMargin + LeftGutter + (t-float64(s.MinTimestamp)-panMs)*e.cfg.Scale
}

// XToTime is the inverse of TimeToX.
func (e *Engine) XToTime(s *models.Session, x float64, panMs float64) float64 {
	return (x-BitrateMargin-LeftGutter)/e.cfg.Scale + panMs + float64(s.MinTimestamp)
}

// Layout positions every download, marker and chunk of s at the given pan
// offset, with the grid spanning the whole session.
func (e *Engine) Layout(s *models.Session, panMs float64) *models.TimelineLayout {
	return e.LayoutView(s, panMs, 0)
}

// LayoutView is Layout with the grid limited to columns intersecting a
// viewport of the given width in px. A viewport <= 0 covers the session.
func (e *Engine) LayoutView(s *models.Session, panMs, viewport float64) *models.TimelineLayout {
	out := &models.TimelineLayout{
		Session:      s.Index,
		PanMs:        panMs,
		Scale:        e.cfg.Scale,
		MinTimestamp: s.MinTimestamp,
		Downloads:    []models.DownloadBox{},
		Markers:      []models.MarkerBox{},
	}

	tracks := newTrackSet(s)
	boxes := e.placeDownloads(s, tracks, panMs, out)

	// each track is as tall as its deepest row
	rows := make([]int, len(tracks.labels))
	for i := range rows {
		rows[i] = 1
	}
	for _, b := range boxes {
		if b.Row+1 > rows[b.Track] {
			rows[b.Track] = b.Row + 1
		}
	}
	y := float64(TopMargin)
	for i, label := range tracks.labels {
		out.Tracks = append(out.Tracks, models.Track{Label: label, Y: y, Rows: rows[i]})
		y += float64(rows[i]) * RowHeight
	}
	timelineY1 := y
	out.TimelineY1 = timelineY1

	for i := range boxes {
		b := &boxes[i]
		b.Y = out.Tracks[b.Track].Y - RowHeight/2 + 2 + float64(b.Row)*RowHeight
		b.H = RowHeight - 4
	}
	out.Downloads = boxes

	markerRows := e.placeMarkers(s, panMs, timelineY1, out)
	e.placeChunks(s, tracks, panMs, out)
	e.placeGrid(s, panMs, viewport, out)

	out.Width = e.TimeToX(s, float64(s.MaxTimestamp), 0) + 2*MarkerPadding
	out.Height = timelineY1 + float64(markerRows+1)*RowHeight + bottomMargin
	return out
}

// placeDownloads assigns tracks and rows. Overlapping boxes on the same
// row are resolved by pushing the later one down a row, repeating until no
// pair overlaps or the pass cap is hit.
func (e *Engine) placeDownloads(s *models.Session, tracks *trackSet, panMs float64, out *models.TimelineLayout) []models.DownloadBox {
	boxes := make([]models.DownloadBox, len(s.Downloads))
	byTrack := make(map[int][]int)
	var order []int
	for i, d := range s.Downloads {
		x0 := e.TimeToX(s, d.UTCStart, panMs) - 1
		x1 := e.TimeToX(s, d.UTCStart+d.DurationMs, panMs)
		colors := parser.DownloadColors(d)
		t := tracks.of(d)
		boxes[i] = models.DownloadBox{
			Rect:   models.Rect{X: x0, W: x1 - x0 + 2},
			Track:  t,
			Fill:   colors.Fill,
			Stroke: colors.Stroke,
			Line:   d.Line,
			Ref:    i,
		}
		if _, seen := byTrack[t]; !seen {
			order = append(order, t)
		}
		byTrack[t] = append(byTrack[t], i)
	}

	for _, t := range order {
		if passes, ok := resolveOverlaps(boxes, byTrack[t], e.cfg.MaxPasses); !ok {
			metrics.LayoutDisplacementCapped.Inc()
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("track %s: overlap resolution stopped after %d passes", tracks.labels[t], passes))
		}
	}
	return boxes
}

// resolveOverlaps runs displacement passes over the boxes at idx, which are
// in record order. It reports false when maxPasses ran out first.
func resolveOverlaps(boxes []models.DownloadBox, idx []int, maxPasses int) (int, bool) {
	for pass := 1; pass <= maxPasses; pass++ {
		bumped := false
		for a := 0; a < len(idx); a++ {
			bi := &boxes[idx[a]]
			for b := a + 1; b < len(idx); b++ {
				bj := &boxes[idx[b]]
				if bi.Row == bj.Row && bi.X+bi.W > bj.X && bj.X+bj.W > bi.X {
					bj.Row++
					bumped = true
				}
			}
		}
		if !bumped {
			return pass, true
		}
	}
	return maxPasses, false
}

// placeMarkers packs marker labels into rows below the tracks in timestamp
// order, each into the first row whose right extent it clears. It returns
// the number of rows used.
func (e *Engine) placeMarkers(s *models.Session, panMs, timelineY1 float64, out *models.TimelineLayout) int {
	type entry struct {
		ts       int64
		line     int
		ref      int
		label    string
		style    models.MarkerStyle
		boundary bool
	}
	entries := make([]entry, 0, len(s.Markers)+1)
	if b := s.Boundary; b != nil {
		entries = append(entries, entry{b.Timestamp, b.Line, -1, b.Label, classify.BoundaryStyle, true})
	}
	for i, m := range s.Markers {
		entries = append(entries, entry{m.Timestamp, m.Line, i, m.Label, classify.EffectiveStyle(m), false})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ts != entries[j].ts {
			return entries[i].ts < entries[j].ts
		}
		return entries[i].line < entries[j].line
	})

	var extent []float64
	for _, en := range entries {
		x := e.TimeToX(s, float64(en.ts), panMs)
		w := e.measure.MeasureText(en.label) + MarkerPadding
		row := 0
		for ; row < len(extent); row++ {
			if x > extent[row]+MarkerPadding {
				break
			}
		}
		if row == len(extent) {
			extent = append(extent, 0)
		}
		extent[row] = x + w

		out.Markers = append(out.Markers, models.MarkerBox{
			Rect:     models.Rect{X: x, Y: float64(row+1)*RowHeight + timelineY1, W: w, H: MarkerHeight},
			Row:      row,
			AnchorX:  x,
			Label:    en.label,
			Fill:     en.style.Fill,
			Stroke:   en.style.Stroke,
			Text:     en.style.Text,
			Line:     en.line,
			Boundary: en.boundary,
			Ref:      en.ref,
		})
	}
	return len(extent)
}

func (e *Engine) placeChunks(s *models.Session, tracks *trackSet, panMs float64, out *models.TimelineLayout) {
	for _, c := range s.Chunks {
		t := out.Tracks[tracks.forChunk(c)]
		y1 := t.Y - RowHeight/2
		color := "#667f66"
		if c.Bitrate == "audio" {
			color = "#66667f"
		}
		out.Chunks = append(out.Chunks, models.ChunkTick{
			X:     e.TimeToX(s, float64(c.Timestamp), panMs),
			Y1:    y1,
			Y2:    y1 + float64(t.Rows)*RowHeight,
			Color: color,
			Line:  c.Line,
		})
	}
}

// placeGrid emits one column per second of the session, every other one
// shaded. Only columns intersecting the viewport are emitted, and never
// more than MaxGridTicks; a cut grid leaves a warning.
func (e *Engine) placeGrid(s *models.Session, panMs, viewport float64, out *models.TimelineLayout) {
	span := s.MaxTimestamp - s.MinTimestamp
	if span <= 0 {
		return
	}
	first, last := int64(0), (span-1)/gridStepMs
	if viewport > 0 {
		left := e.XToTime(s, 0, panMs) - float64(s.MinTimestamp)
		right := e.XToTime(s, viewport, panMs) - float64(s.MinTimestamp)
		first = max(first, int64(math.Floor(left/gridStepMs)))
		last = min(last, int64(math.Ceil(right/gridStepMs))-1)
	}
	if last < first {
		return
	}
	if n := last - first + 1; n > int64(e.cfg.MaxGridTicks) {
		last = first + int64(e.cfg.MaxGridTicks) - 1
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"grid: %d one-second columns requested, showing %s to %s",
			n, parser.FormatTime(first*gridStepMs), parser.FormatTime((last+1)*gridStepMs)))
	}

	width := gridStepMs * e.cfg.Scale
	out.Grid = make([]models.GridTick, 0, last-first+1)
	for k := first; k <= last; k++ {
		t := k * gridStepMs
		out.Grid = append(out.Grid, models.GridTick{
			X:      e.TimeToX(s, float64(s.MinTimestamp+t), panMs),
			Width:  width,
			Label:  parser.FormatTime(t),
			Shaded: k%2 == 0,
		})
	}
}

// Overlaps reports whether two download boxes share a track row and
// intersect horizontally.
func Overlaps(a, b models.DownloadBox) bool {
	return a.Track == b.Track && a.Row == b.Row && a.X+a.W > b.X && b.X+b.W > a.X
}

// Visible reports whether r intersects a viewport of the given width.
func Visible(r models.Rect, width float64) bool {
	return r.X+r.W >= 0 && r.X <= width && !math.IsNaN(r.X)
}
