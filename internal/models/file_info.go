package models

import "time"

// FileInfo represents metadata about an uploaded log file.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "indexing", "indexed", "error"
	// FirstTimestamp is the UTC ms of the first parseable line, 0 if unknown.
	FirstTimestamp int64 `json:"firstTimestamp,omitempty"`
}
