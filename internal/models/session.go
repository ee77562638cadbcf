package models

import "sort"

// RunStatus represents the status of an index run.
type RunStatus string

const (
	RunStatusPending  RunStatus = "pending"
	RunStatusIndexing RunStatus = "indexing"
	RunStatusComplete RunStatus = "complete"
	RunStatusError    RunStatus = "error"
)

// IndexRun tracks one background indexing of a set of uploaded files.
type IndexRun struct {
	ID               string       `json:"id"`
	FileIDs          []string     `json:"fileIds"`
	Status           RunStatus    `json:"status"`
	Progress         float64      `json:"progress"` // 0-100
	LineCount        int          `json:"lineCount,omitempty"`
	SessionCount     int          `json:"sessionCount,omitempty"`
	RecordCount      int          `json:"recordCount,omitempty"`
	ProcessingTimeMs int64        `json:"processingTimeMs,omitempty"`
	StartTime        int64        `json:"startTime,omitempty"` // Unix ms
	EndTime          int64        `json:"endTime,omitempty"`   // Unix ms
	Errors           []ParseError `json:"errors,omitempty"`
	Warnings         []string     `json:"warnings,omitempty"`
}

// ParseError represents a problem encountered while reading input.
// Line is -1 when the problem concerns a whole file.
type ParseError struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

// NewIndexRun creates a new IndexRun in pending status.
func NewIndexRun(id string, fileIDs []string) *IndexRun {
	return &IndexRun{
		ID:       id,
		FileIDs:  fileIDs,
		Status:   RunStatusPending,
		Progress: 0,
		Errors:   make([]ParseError, 0),
	}
}

// Session is the line range of one tune attempt and everything classified in it.
type Session struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	FirstLine int    `json:"firstLine"`
	LastLine  int    `json:"lastLine"` // inclusive
	StartUTC  int64  `json:"startUtc"`
	Locator   string `json:"locator,omitempty"`

	Boundary  *SessionBoundary       `json:"boundary,omitempty"`
	Downloads []*DownloadRecord      `json:"downloads"`
	Markers   []*Marker              `json:"markers"`
	Chunks    []*ChunkInjectionEvent `json:"chunks,omitempty"`
	Tune      *TuneSummary           `json:"tune,omitempty"`

	ContentType ContentType `json:"contentType"`
	TuneTimeMs  int64       `json:"tuneTimeMs,omitempty"`
	TuneFailed  bool        `json:"tuneFailed,omitempty"`

	// Bitrates lists video bitrates in discovery order.
	Bitrates []int64 `json:"bitrates,omitempty"`
	Profiles []int64 `json:"profiles,omitempty"`

	// LineColors maps global line index to its display color.
	LineColors map[int]string `json:"lineColors,omitempty"`

	MinTimestamp int64 `json:"minTimestamp"`
	MaxTimestamp int64 `json:"maxTimestamp"`
}

// SessionSummary is the list view of a Session.
type SessionSummary struct {
	Index         int    `json:"index"`
	Label         string `json:"label"`
	FirstLine     int    `json:"firstLine"`
	LastLine      int    `json:"lastLine"`
	StartUTC      int64  `json:"startUtc"`
	TuneTimeMs    int64  `json:"tuneTimeMs,omitempty"`
	TuneFailed    bool   `json:"tuneFailed,omitempty"`
	DownloadCount int    `json:"downloadCount"`
	MarkerCount   int    `json:"markerCount"`
}

// Summary returns the list view of s.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		Index:         s.Index,
		Label:         s.Label,
		FirstLine:     s.FirstLine,
		LastLine:      s.LastLine,
		StartUTC:      s.StartUTC,
		TuneTimeMs:    s.TuneTimeMs,
		TuneFailed:    s.TuneFailed,
		DownloadCount: len(s.Downloads),
		MarkerCount:   len(s.Markers),
	}
}

// Records returns every record of the session in source line order.
func (s *Session) Records() []Record {
	out := make([]Record, 0, len(s.Downloads)+len(s.Markers)+len(s.Chunks)+2)
	if s.Boundary != nil {
		out = append(out, s.Boundary)
	}
	for _, d := range s.Downloads {
		out = append(out, d)
	}
	for _, m := range s.Markers {
		out = append(out, m)
	}
	for _, c := range s.Chunks {
		out = append(out, c)
	}
	if s.Tune != nil {
		out = append(out, s.Tune)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SourceLine() < out[j].SourceLine()
	})
	return out
}
