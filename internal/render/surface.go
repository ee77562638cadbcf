// Package render draws timeline layouts and drives the interactive view:
// hit-testing, pan physics and the companion log viewer channel.
package render

import (
	"github.com/triage-visualizer/backend/internal/layout"
	"github.com/triage-visualizer/backend/internal/models"
)

// Anchor is the horizontal alignment of drawn text.
type Anchor int

const (
	AnchorStart Anchor = iota
	AnchorMiddle
)

// Surface is a 2D drawing target.
type Surface interface {
	// Clear resets the surface to an empty canvas of the given size.
	Clear(width, height float64)
	Rect(r models.Rect, fill, stroke string)
	Line(x1, y1, x2, y2 float64, color string, dashed bool)
	// Text draws a label with its baseline at y.
	Text(x, y float64, text, color string, anchor Anchor)
	layout.TextMeasurer
}
