package parser

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/triage-visualizer/backend/internal/log"
	"github.com/triage-visualizer/backend/internal/models"
)

// RecordStore keeps the download and marker records of one index run in a
// temporary DuckDB file. It backs the time-window and outcome queries of the
// API so large corpora do not have to be scanned in Go for every request.
type RecordStore struct {
	db            *sql.DB
	dbPath        string
	batchSize     int
	downloads     []storedDownload
	markers       []storedMarker
	downloadCount int
	markerCount   int
	lastError     error // stores the last flush error

	// Semaphore to limit concurrent queries
	querySem chan struct{}
}

type storedDownload struct {
	session int
	rec     *models.DownloadRecord
}

type storedMarker struct {
	session int
	rec     *models.Marker
}

// OutcomeCount is one row of the per-category outcome aggregation.
type OutcomeCount struct {
	Category string  `json:"category"`
	Outcome  string  `json:"outcome"`
	Count    int     `json:"count"`
	AvgMs    float64 `json:"avgMs"`
	MaxMs    float64 `json:"maxMs"`
}

// NewRecordStore creates a DuckDB-backed store in the given temp directory.
func NewRecordStore(tempDir string, runID string) (*RecordStore, error) {
	dbPath := filepath.Join(tempDir, fmt.Sprintf("run_%s.duckdb", runID))
	return NewRecordStoreAtPath(dbPath)
}

// NewRecordStoreAtPath creates a DuckDB-backed store at a specific path.
func NewRecordStoreAtPath(dbPath string) (*RecordStore, error) {
	logger := log.WithComponent("recordstore")
	logger.Debug().Str(log.FieldPath, dbPath).Msg("creating database")

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='512MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	schema := []string{
		`CREATE TABLE downloads (
			id            INTEGER PRIMARY KEY,
			session       INTEGER NOT NULL,
			line          INTEGER NOT NULL,
			media_type    INTEGER NOT NULL,
			category      VARCHAR NOT NULL,
			response_code INTEGER NOT NULL,
			outcome       VARCHAR NOT NULL,
			duration_ms   DOUBLE NOT NULL,
			dl_sz         BIGINT,
			ul_sz         BIGINT,
			url           VARCHAR,
			utc_start     DOUBLE NOT NULL,
			utc_end       DOUBLE NOT NULL,
			bitrate       BIGINT,
			overhead      BOOLEAN
		)`,
		`CREATE TABLE markers (
			id           INTEGER PRIMARY KEY,
			session      INTEGER NOT NULL,
			line         INTEGER NOT NULL,
			ts           BIGINT NOT NULL,
			label        VARCHAR NOT NULL,
			exception    BOOLEAN,
			user_defined BOOLEAN
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			os.Remove(dbPath)
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Indexes are created in Finalize() after all inserts.
	return &RecordStore{
		db:        db,
		dbPath:    dbPath,
		batchSize: 20000,
		downloads: make([]storedDownload, 0, 1024),
		markers:   make([]storedMarker, 0, 1024),
		querySem:  make(chan struct{}, 3), // Max 3 concurrent queries
	}, nil
}

// AddSession queues every download and marker of a session for insertion.
func (rs *RecordStore) AddSession(s *models.Session) {
	for _, d := range s.Downloads {
		rs.downloads = append(rs.downloads, storedDownload{session: s.Index, rec: d})
	}
	for _, m := range s.Markers {
		rs.markers = append(rs.markers, storedMarker{session: s.Index, rec: m})
	}
	if len(rs.downloads)+len(rs.markers) >= rs.batchSize {
		if err := rs.flushBatch(); err != nil {
			rs.lastError = err
			logger := log.WithComponent("recordstore")
			logger.Error().Err(err).Msg("flush failed")
		}
	}
}

// LastError returns the last error that occurred during batch flush
func (rs *RecordStore) LastError() error {
	return rs.lastError
}

// flushBatch writes queued records using the native Appender API.
func (rs *RecordStore) flushBatch() error {
	if len(rs.downloads) == 0 && len(rs.markers) == 0 {
		return nil
	}
	start := time.Now()

	conn, err := rs.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}
		if err := rs.appendDownloads(dConn); err != nil {
			return err
		}
		return rs.appendMarkers(dConn)
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	logger := log.WithComponent("recordstore")
	logger.Debug().
		Int("downloads", len(rs.downloads)).
		Int("markers", len(rs.markers)).
		Int64(log.FieldDuration, time.Since(start).Milliseconds()).
		Msg("batch flushed")

	rs.downloads = rs.downloads[:0]
	rs.markers = rs.markers[:0]
	return nil
}

func (rs *RecordStore) appendDownloads(dConn *duckdb.Conn) error {
	if len(rs.downloads) == 0 {
		return nil
	}
	appender, err := duckdb.NewAppenderFromConn(dConn, "", "downloads")
	if err != nil {
		return fmt.Errorf("failed to create appender: %w", err)
	}
	defer appender.Close()

	for i, sd := range rs.downloads {
		d := sd.rec
		err := appender.AppendRow(
			int32(rs.downloadCount+i),
			int32(sd.session),
			int32(d.Line),
			int32(d.Type),
			StatsCategory(d),
			int32(d.ResponseCode),
			d.Outcome,
			d.DurationMs,
			d.DownloadBytes,
			d.UploadBytes,
			d.URL,
			d.UTCStart,
			d.UTCEnd,
			d.Bitrate,
			d.Overhead,
		)
		if err != nil {
			return fmt.Errorf("failed to append download %d: %w", i, err)
		}
	}
	if err := appender.Flush(); err != nil {
		return err
	}
	rs.downloadCount += len(rs.downloads)
	return nil
}

func (rs *RecordStore) appendMarkers(dConn *duckdb.Conn) error {
	if len(rs.markers) == 0 {
		return nil
	}
	appender, err := duckdb.NewAppenderFromConn(dConn, "", "markers")
	if err != nil {
		return fmt.Errorf("failed to create appender: %w", err)
	}
	defer appender.Close()

	for i, sm := range rs.markers {
		m := sm.rec
		err := appender.AppendRow(
			int32(rs.markerCount+i),
			int32(sm.session),
			int32(m.Line),
			m.Timestamp,
			m.Label,
			m.Exception,
			m.UserDefined,
		)
		if err != nil {
			return fmt.Errorf("failed to append marker %d: %w", i, err)
		}
	}
	if err := appender.Flush(); err != nil {
		return err
	}
	rs.markerCount += len(rs.markers)
	return nil
}

// Finalize flushes any remaining records and creates indexes
func (rs *RecordStore) Finalize() error {
	if err := rs.flushBatch(); err != nil {
		return err
	}
	for _, stmt := range []string{
		"CREATE INDEX idx_dl_session ON downloads(session, utc_start)",
		"CREATE INDEX idx_mk_session ON markers(session, ts)",
	} {
		if _, err := rs.db.Exec(stmt); err != nil {
			return fmt.Errorf("index creation failed: %w", err)
		}
	}
	return nil
}

// DownloadCount returns the number of stored download records.
func (rs *RecordStore) DownloadCount() int {
	return rs.downloadCount + len(rs.downloads)
}

// MarkerCount returns the number of stored markers.
func (rs *RecordStore) MarkerCount() int {
	return rs.markerCount + len(rs.markers)
}

func (rs *RecordStore) acquire(ctx context.Context) (func(), error) {
	select {
	case rs.querySem <- struct{}{}:
		return func() { <-rs.querySem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// QueryDownloads returns the downloads of a session whose interval overlaps
// [fromUTC, toUTC], ordered by start time then source line.
func (rs *RecordStore) QueryDownloads(ctx context.Context, session int, fromUTC, toUTC float64) ([]models.DownloadRecord, error) {
	release, err := rs.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := rs.db.QueryContext(ctx, `
		SELECT line, media_type, response_code, outcome, duration_ms, dl_sz, ul_sz, url,
		       utc_start, utc_end, bitrate, overhead
		FROM downloads
		WHERE session = ? AND utc_end >= ? AND utc_start <= ?
		ORDER BY utc_start, line
		LIMIT 100000
	`, session, fromUTC, toUTC)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.DownloadRecord, 0, 256)
	for rows.Next() {
		var (
			d         models.DownloadRecord
			mediaType int
		)
		if err := rows.Scan(&d.Line, &mediaType, &d.ResponseCode, &d.Outcome, &d.DurationMs,
			&d.DownloadBytes, &d.UploadBytes, &d.URL, &d.UTCStart, &d.UTCEnd, &d.Bitrate, &d.Overhead); err != nil {
			return nil, err
		}
		d.Type = models.MediaType(mediaType)
		d.TypeName = d.Type.String()
		out = append(out, d)
	}
	return out, rows.Err()
}

// QueryMarkers returns the markers of a session within [fromUTC, toUTC].
func (rs *RecordStore) QueryMarkers(ctx context.Context, session int, fromUTC, toUTC int64) ([]models.Marker, error) {
	release, err := rs.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := rs.db.QueryContext(ctx, `
		SELECT line, ts, label, exception, user_defined
		FROM markers
		WHERE session = ? AND ts >= ? AND ts <= ?
		ORDER BY ts, line
	`, session, fromUTC, toUTC)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Marker
	for rows.Next() {
		var m models.Marker
		if err := rows.Scan(&m.Line, &m.Timestamp, &m.Label, &m.Exception, &m.UserDefined); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// OutcomeCounts aggregates downloads by stats category and outcome.
// A negative session aggregates the whole run.
func (rs *RecordStore) OutcomeCounts(ctx context.Context, session int) ([]OutcomeCount, error) {
	release, err := rs.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	query := `
		SELECT category, outcome, COUNT(*), AVG(duration_ms), MAX(duration_ms)
		FROM downloads
	`
	var args []interface{}
	if session >= 0 {
		query += " WHERE session = ?"
		args = append(args, session)
	}
	query += " GROUP BY category, outcome ORDER BY category, outcome"

	rows, err := rs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutcomeCount
	for rows.Next() {
		var oc OutcomeCount
		if err := rows.Scan(&oc.Category, &oc.Outcome, &oc.Count, &oc.AvgMs, &oc.MaxMs); err != nil {
			return nil, err
		}
		out = append(out, oc)
	}
	return out, rows.Err()
}

// Close closes the database and removes the temp file
func (rs *RecordStore) Close() error {
	if rs.db != nil {
		rs.db.Close()
	}
	if rs.dbPath != "" {
		os.Remove(rs.dbPath)
		os.Remove(rs.dbPath + ".wal")
	}
	return nil
}
