package render

import (
	"io"

	"github.com/triage-visualizer/backend/internal/layout"
	"github.com/triage-visualizer/backend/internal/models"
)

const (
	gridShade     = "#f3f3f3"
	gridText      = "#000000"
	legendFill    = "#ffffff"
	legendText    = "#000000"
	markerLeader  = "#999999"
	gridLabelLift = 20
)

// Paint draws l onto s. Only boxes intersecting [0, viewport) are drawn;
// a viewport <= 0 draws the whole layout.
func Paint(s Surface, l *models.TimelineLayout, viewport float64) {
	width := viewport
	if width <= 0 {
		width = l.Width
	}
	s.Clear(width, l.Height)

	top := float64(layout.TopMargin - layout.RowHeight/2)
	for _, g := range l.Grid {
		if g.Shaded {
			s.Rect(models.Rect{X: g.X, Y: top, W: g.Width, H: l.TimelineY1 - top}, gridShade, "")
		}
		s.Text(g.X, layout.TopMargin-gridLabelLift, g.Label, gridText, AnchorMiddle)
	}

	for _, c := range l.Chunks {
		if c.X >= 0 && c.X <= width {
			s.Line(c.X, c.Y1, c.X, c.Y2, c.Color, true)
		}
	}

	for _, b := range l.Downloads {
		if layout.Visible(b.Rect, width) {
			s.Rect(b.Rect, b.Fill, b.Stroke)
		}
	}

	for _, m := range l.Markers {
		if !layout.Visible(m.Rect, width) {
			continue
		}
		s.Line(m.AnchorX, top, m.AnchorX, m.Y, markerLeader, false)
		s.Rect(m.Rect, m.Fill, m.Stroke)
		s.Text(m.X+layout.MarkerPadding/2, m.Y+m.H-6, m.Label, m.Text, AnchorStart)
	}

	// legend column stays fixed over panned content
	s.Rect(models.Rect{X: 0, Y: 0, W: layout.BitrateMargin, H: l.TimelineY1}, legendFill, "")
	for _, t := range l.Tracks {
		s.Text(4, t.Y+4, t.Label, legendText, AnchorStart)
	}
}

// WriteSVG lays out session sess at pan and writes it as an SVG document.
func WriteSVG(w io.Writer, e *layout.Engine, sess *models.Session, pan, viewport float64) (*models.TimelineLayout, error) {
	svg := NewSVG(e.Config().CharWidth)
	l := e.LayoutView(sess, pan, viewport)
	Paint(svg, l, viewport)
	if _, err := svg.WriteTo(w); err != nil {
		return nil, err
	}
	return l, nil
}
