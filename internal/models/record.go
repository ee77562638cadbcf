package models

// RecordKind tags the concrete type behind a Record.
type RecordKind string

const (
	KindDownload RecordKind = "download"
	KindMarker   RecordKind = "marker"
	KindChunk    RecordKind = "chunk"
	KindBoundary RecordKind = "boundary"
	KindTune     RecordKind = "tune"
)

// Record is one structured result of classifying a log line.
// Consumers switch on the concrete type; Kind exists for serialization.
type Record interface {
	Kind() RecordKind
	// UTC returns the wall-clock anchor of the record in milliseconds.
	UTC() int64
	// SourceLine is the global line index in the merged corpus.
	SourceLine() int
}

// DownloadRecord is one completed network transfer.
type DownloadRecord struct {
	Line          int       `json:"line"`
	Type          MediaType `json:"type"`
	TypeName      string    `json:"typeName"`
	ResponseCode  int       `json:"responseCode"`
	Outcome       string    `json:"outcome"` // MapError(ResponseCode)
	DurationMs    float64   `json:"durationMs"`
	UploadBytes   int64     `json:"ulSz"`
	DownloadBytes int64     `json:"dlSz"`
	URL           string    `json:"url"`
	UTCStart      float64   `json:"utcStart"`
	UTCEnd        float64   `json:"utcEnd"`
	Bitrate       int64     `json:"bitrate,omitempty"`
	Overhead      bool      `json:"overhead,omitempty"` // synthetic DRM pre/post phase
}

func (d *DownloadRecord) Kind() RecordKind { return KindDownload }
func (d *DownloadRecord) UTC() int64       { return int64(d.UTCEnd) }
func (d *DownloadRecord) SourceLine() int  { return d.Line }

// Succeeded reports whether the transfer counts as a success for coloring.
func (d *DownloadRecord) Succeeded() bool {
	return d.Outcome == "HTTP200(OK)" || d.Outcome == "HTTP206"
}

// MarkerStyle carries display colors for a marker box.
type MarkerStyle struct {
	Fill   string `json:"fill" yaml:"fill"`
	Stroke string `json:"stroke" yaml:"stroke"`
	Text   string `json:"text" yaml:"text"`
}

// Marker is a point-in-time annotation.
type Marker struct {
	Timestamp int64        `json:"timestamp"`
	Line      int          `json:"line"`
	Label     string       `json:"label"`
	Style     *MarkerStyle `json:"style,omitempty"`

	// MediaPositionSeconds ties the marker to a playhead position.
	MediaPositionSeconds *float64 `json:"mediaPositionSeconds,omitempty"`
	TrackKind            string   `json:"trackKind,omitempty"`
	Exception            bool     `json:"exception,omitempty"`
	UserDefined          bool     `json:"userDefined,omitempty"`
}

func (m *Marker) Kind() RecordKind { return KindMarker }
func (m *Marker) UTC() int64       { return m.Timestamp }
func (m *Marker) SourceLine() int  { return m.Line }

// ChunkInjectionEvent is a low-latency sub-fragment delivery.
type ChunkInjectionEvent struct {
	Timestamp int64   `json:"timestamp"`
	Line      int     `json:"line"`
	Bitrate   string  `json:"bitrate"` // numeric video bitrate or "audio"
	Size      int64   `json:"size"`
	PTS       float64 `json:"pts"`
	Duration  float64 `json:"duration"`
}

func (c *ChunkInjectionEvent) Kind() RecordKind { return KindChunk }
func (c *ChunkInjectionEvent) UTC() int64       { return c.Timestamp }
func (c *ChunkInjectionEvent) SourceLine() int  { return c.Line }

// SessionBoundary is a tune attempt (or grouped play request) start.
type SessionBoundary struct {
	Timestamp int64  `json:"timestamp"`
	Line      int    `json:"line"`
	Label     string `json:"label"`
	Locator   string `json:"locator,omitempty"`
}

func (b *SessionBoundary) Kind() RecordKind { return KindBoundary }
func (b *SessionBoundary) UTC() int64       { return b.Timestamp }
func (b *SessionBoundary) SourceLine() int  { return b.Line }

// TuneSummary is the session-level result of a tune-time line.
type TuneSummary struct {
	Timestamp   int64       `json:"timestamp"`
	Line        int         `json:"line"`
	Success     bool        `json:"success"`
	TuneTimeMs  int64       `json:"tuneTimeMs"`
	ContentType ContentType `json:"contentType"`
	Fields      []string    `json:"fields"`
}

func (t *TuneSummary) Kind() RecordKind { return KindTune }
func (t *TuneSummary) UTC() int64       { return t.Timestamp }
func (t *TuneSummary) SourceLine() int  { return t.Line }
