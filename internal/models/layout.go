package models

// Rect is an axis-aligned rectangle in canvas pixels.
type Rect struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	W float64 `json:"w" msgpack:"w"`
	H float64 `json:"h" msgpack:"h"`
}

// Contains reports whether the point lies inside r (edges inclusive).
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Track is one horizontal lane of download boxes.
type Track struct {
	Label string  `json:"label" msgpack:"label"`
	Y     float64 `json:"y" msgpack:"y"` // center of the first row
	Rows  int     `json:"rows" msgpack:"rows"`
}

// DownloadBox is a positioned DownloadRecord.
type DownloadBox struct {
	Rect
	Track  int    `json:"track" msgpack:"track"`
	Row    int    `json:"row" msgpack:"row"`
	Fill   string `json:"fill" msgpack:"fill"`
	Stroke string `json:"stroke" msgpack:"stroke"`
	Line   int    `json:"line" msgpack:"line"`
	Ref    int    `json:"ref" msgpack:"ref"` // index into Session.Downloads
}

// MarkerBox is a positioned Marker or SessionBoundary label.
type MarkerBox struct {
	Rect
	Row      int     `json:"row" msgpack:"row"`
	AnchorX  float64 `json:"anchorX" msgpack:"anchorX"` // x of the timestamp
	Label    string  `json:"label" msgpack:"label"`
	Fill     string  `json:"fill" msgpack:"fill"`
	Stroke   string  `json:"stroke" msgpack:"stroke"`
	Text     string  `json:"text" msgpack:"text"`
	Line     int     `json:"line" msgpack:"line"`
	Boundary bool    `json:"boundary,omitempty" msgpack:"boundary,omitempty"`
	Ref      int     `json:"ref" msgpack:"ref"` // index into Session.Markers, -1 for the boundary
}

// ChunkTick is a dashed vertical annotation for a chunk injection.
type ChunkTick struct {
	X     float64 `json:"x" msgpack:"x"`
	Y1    float64 `json:"y1" msgpack:"y1"`
	Y2    float64 `json:"y2" msgpack:"y2"`
	Color string  `json:"color" msgpack:"color"`
	Line  int     `json:"line" msgpack:"line"`
}

// GridTick is a one-second column of the time grid.
type GridTick struct {
	X      float64 `json:"x" msgpack:"x"`
	Width  float64 `json:"width" msgpack:"width"`
	Label  string  `json:"label" msgpack:"label"`
	Shaded bool    `json:"shaded,omitempty" msgpack:"shaded,omitempty"`
}

// TimelineLayout is the full set of primitives for one session at one pan offset.
type TimelineLayout struct {
	Session      int           `json:"session" msgpack:"session"`
	PanMs        float64       `json:"panMs" msgpack:"panMs"`
	Scale        float64       `json:"scale" msgpack:"scale"`
	MinTimestamp int64         `json:"minTimestamp" msgpack:"minTimestamp"`
	Width        float64       `json:"width" msgpack:"width"`
	Height       float64       `json:"height" msgpack:"height"`
	TimelineY1   float64       `json:"timelineY1" msgpack:"timelineY1"`
	Tracks       []Track       `json:"tracks" msgpack:"tracks"`
	Downloads    []DownloadBox `json:"downloads" msgpack:"downloads"`
	Markers      []MarkerBox   `json:"markers" msgpack:"markers"`
	Chunks       []ChunkTick   `json:"chunks,omitempty" msgpack:"chunks,omitempty"`
	Grid         []GridTick    `json:"grid,omitempty" msgpack:"grid,omitempty"`
	Warnings     []string      `json:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

// HitKind tells which kind of box a hit-test found.
type HitKind string

const (
	HitNone     HitKind = ""
	HitDownload HitKind = "download"
	HitMarker   HitKind = "marker"
)

// HitResult is the outcome of a point query against a layout.
type HitResult struct {
	Kind  HitKind `json:"kind"`
	Line  int     `json:"line"`
	Ref   int     `json:"ref"`
	Label string  `json:"label,omitempty"`
}
