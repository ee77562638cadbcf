package render

import "github.com/triage-visualizer/backend/internal/models"

// HitTest finds the box under (x, y) in canvas coordinates. Download
// boxes win over markers when both contain the point. Boxes are
// half-open: the right and bottom edges are outside.
func HitTest(l *models.TimelineLayout, x, y float64) models.HitResult {
	if l == nil {
		return models.HitResult{Kind: models.HitNone, Ref: -1}
	}
	for _, b := range l.Downloads {
		if inside(b.Rect, x, y) {
			label := ""
			if b.Track >= 0 && b.Track < len(l.Tracks) {
				label = l.Tracks[b.Track].Label
			}
			return models.HitResult{Kind: models.HitDownload, Line: b.Line, Ref: b.Ref, Label: label}
		}
	}
	for _, m := range l.Markers {
		if inside(m.Rect, x, y) {
			return models.HitResult{Kind: models.HitMarker, Line: m.Line, Ref: m.Ref, Label: m.Label}
		}
	}
	return models.HitResult{Kind: models.HitNone, Ref: -1}
}

func inside(r models.Rect, x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}
