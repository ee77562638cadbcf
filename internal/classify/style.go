package classify

import "github.com/triage-visualizer/backend/internal/models"

const boundaryColor = "#058840"

var (
	// DefaultStyle is used by markers without a color hint.
	DefaultStyle = models.MarkerStyle{Fill: "#ffffe0", Stroke: "#FFD700", Text: "#000000"}
	// UserStyle marks rules loaded from a user rule file.
	UserStyle = models.MarkerStyle{Fill: "#6d4194", Stroke: "#b768eb", Text: "#ffffff"}
	// ExceptionStyle marks network errors, underflows and ABR downswitches.
	ExceptionStyle = models.MarkerStyle{Fill: "#ffe0e0", Stroke: "#cc0000", Text: "#000000"}
	// BoundaryStyle draws the label of the tune attempt opening a session.
	BoundaryStyle = models.MarkerStyle{Fill: boundaryColor, Stroke: boundaryColor, Text: "#ffffff"}
)

// labelColors are the well known labels that get a solid color when the
// rule itself carries no style.
var labelColors = map[string]string{
	"Tuned":                   "#058840",
	"Tune Failed":             "#ff2020",
	"Notify-Bitrate-Change":   "#d35811",
	"Crashed!!!":              "#ff0000",
	"WebProcess unresponsive": "#ff3d3d",
	"High load average":       "#f59f00",
}

func solidStyle(color string) *models.MarkerStyle {
	return &models.MarkerStyle{Fill: color, Stroke: color, Text: "#ffffff"}
}

// RuleStyle resolves the display style of markers produced by rule.
func RuleStyle(rule models.MarkerRule) *models.MarkerStyle {
	if rule.Style != "" {
		return solidStyle(rule.Style)
	}
	if c, ok := labelColors[rule.Label]; ok {
		return solidStyle(c)
	}
	if rule.UserDefined {
		s := UserStyle
		return &s
	}
	return nil
}

// labelStyle is RuleStyle for markers raised by built-in detectors.
func labelStyle(label string) *models.MarkerStyle {
	if c, ok := labelColors[label]; ok {
		return solidStyle(c)
	}
	return nil
}

// EffectiveStyle returns the style a marker is drawn with.
func EffectiveStyle(m *models.Marker) models.MarkerStyle {
	switch {
	case m.Style != nil:
		return *m.Style
	case m.Exception:
		return ExceptionStyle
	case m.UserDefined:
		return UserStyle
	}
	return DefaultStyle
}

// lineColor is the color of the raw log line that produced m.
func lineColor(m *models.Marker) string {
	st := EffectiveStyle(m)
	if st == DefaultStyle {
		return st.Stroke
	}
	return st.Fill
}
