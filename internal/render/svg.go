package render

import (
	"bytes"
	"encoding/xml"
	"io"
	"math"
	"strconv"

	"github.com/triage-visualizer/backend/internal/layout"
	"github.com/triage-visualizer/backend/internal/models"
)

const fontFamily = "Arial, sans-serif"

// SVG is a Surface that records drawing calls as an SVG document.
type SVG struct {
	buf     bytes.Buffer
	measure layout.FixedWidth
	open    bool
}

// NewSVG creates an SVG surface measuring text at charWidth px per rune.
func NewSVG(charWidth float64) *SVG {
	if charWidth <= 0 {
		charWidth = layout.DefaultCharWidth
	}
	return &SVG{measure: layout.FixedWidth(charWidth)}
}

func (s *SVG) Clear(width, height float64) {
	s.buf.Reset()
	s.buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="`)
	s.buf.WriteString(num(width))
	s.buf.WriteString(`" height="`)
	s.buf.WriteString(num(height))
	s.buf.WriteString(`" font-family="` + fontFamily + `" font-size="12">`)
	s.buf.WriteString("\n")
	s.open = true
}

func (s *SVG) Rect(r models.Rect, fill, stroke string) {
	s.buf.WriteString(`<rect x="` + num(r.X) + `" y="` + num(r.Y) +
		`" width="` + num(r.W) + `" height="` + num(r.H) + `"`)
	s.attr("fill", orNone(fill))
	if stroke != "" {
		s.attr("stroke", stroke)
	}
	s.buf.WriteString("/>\n")
}

func (s *SVG) Line(x1, y1, x2, y2 float64, color string, dashed bool) {
	s.buf.WriteString(`<line x1="` + num(x1) + `" y1="` + num(y1) +
		`" x2="` + num(x2) + `" y2="` + num(y2) + `"`)
	s.attr("stroke", color)
	if dashed {
		s.buf.WriteString(` stroke-dasharray="4 2"`)
	}
	s.buf.WriteString("/>\n")
}

func (s *SVG) Text(x, y float64, text, color string, anchor Anchor) {
	s.buf.WriteString(`<text x="` + num(x) + `" y="` + num(y) + `"`)
	s.attr("fill", color)
	if anchor == AnchorMiddle {
		s.buf.WriteString(` text-anchor="middle"`)
	}
	s.buf.WriteString(">")
	_ = xml.EscapeText(&s.buf, []byte(text))
	s.buf.WriteString("</text>\n")
}

func (s *SVG) MeasureText(text string) float64 {
	return s.measure.MeasureText(text)
}

// Bytes returns the finished document.
func (s *SVG) Bytes() []byte {
	if !s.open {
		s.Clear(0, 0)
	}
	out := make([]byte, 0, s.buf.Len()+8)
	out = append(out, s.buf.Bytes()...)
	return append(out, "</svg>\n"...)
}

// WriteTo writes the finished document to w.
func (s *SVG) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(s.Bytes())
	return int64(n), err
}

func (s *SVG) attr(name, value string) {
	s.buf.WriteString(" " + name + `="`)
	_ = xml.EscapeText(&s.buf, []byte(value))
	s.buf.WriteString(`"`)
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func orNone(color string) string {
	if color == "" {
		return "none"
	}
	return color
}
