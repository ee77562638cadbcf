package log

// Canonical field name constants for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldEvent     = "event"

	FieldRunID    = "run_id"
	FieldFileID   = "file_id"
	FieldUploadID = "upload_id"
	FieldSession  = "session"
	FieldPath     = "path"
	FieldFiles    = "files"
	FieldSessions = "sessions"
	FieldRecords  = "records"
	FieldLines    = "lines"
	FieldRules    = "rules"
	FieldDuration = "duration_ms"
	FieldClientID = "client_id"
	FieldRemoteIP = "remote_ip"
)
