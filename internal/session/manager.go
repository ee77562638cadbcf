package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/triage-visualizer/backend/internal/classify"
	"github.com/triage-visualizer/backend/internal/log"
	"github.com/triage-visualizer/backend/internal/metrics"
	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/parser"
)

// DefaultMaxRuns limits index runs held in memory.
const DefaultMaxRuns = 10

// RunMaxAge is how long to keep finished runs before cleanup
const RunMaxAge = 30 * time.Minute

// RunKeepAliveWindow is how long to keep runs that are actively being used
const RunKeepAliveWindow = 5 * time.Minute

var (
	ErrRunNotFound     = errors.New("index run not found")
	ErrRunNotReady     = errors.New("index run not complete")
	ErrSessionNotFound = errors.New("session not found")
	ErrNoFiles         = errors.New("no files to index")
)

// RuleSource supplies the active marker rule table.
type RuleSource interface {
	Rules() []models.MarkerRule
}

type builtinRules struct{}

func (builtinRules) Rules() []models.MarkerRule { return parser.BuiltinRules() }

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// TempDir holds the per-run DuckDB files. Empty uses TRIAGE_TEMP_DIR or ./data/temp.
	TempDir string
	MaxRuns int
	Rules   RuleSource
	// Workers bounds concurrent session classification per run.
	Workers int
}

// Manager runs background index passes and keeps their results.
type Manager struct {
	runs    map[string]*RunState
	mu      sync.RWMutex
	rules   RuleSource
	tempDir string
	maxRuns int
	workers int
}

// RunState holds the run metadata, the indexed sessions and the record store.
type RunState struct {
	Run          *models.IndexRun
	Result       *Result
	Store        *parser.RecordStore // nil when the store could not be created
	LastAccessed time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a run manager.
func NewManager(opts ManagerOptions) *Manager {
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.Getenv("TRIAGE_TEMP_DIR")
	}
	if tempDir == "" {
		tempDir = "./data/temp"
	}
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		logger := log.WithComponent("runs")
		logger.Warn().Err(err).Str(log.FieldPath, tempDir).Msg("temp dir unavailable")
	}
	if opts.MaxRuns <= 0 {
		opts.MaxRuns = DefaultMaxRuns
	}
	if opts.Rules == nil {
		opts.Rules = builtinRules{}
	}
	return &Manager{
		runs:    make(map[string]*RunState),
		rules:   opts.Rules,
		tempDir: tempDir,
		maxRuns: opts.MaxRuns,
		workers: opts.Workers,
	}
}

// StartRun begins indexing files in the background.
func (m *Manager) StartRun(files []FileRef, viperFallback bool) (*models.IndexRun, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	m.cleanupOldRunsIfNeeded()

	runID := uuid.New().String()
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	run := models.NewIndexRun(runID, ids)
	run.Status = models.RunStatusIndexing
	run.StartTime = time.Now().UnixMilli()

	ctx, cancel := context.WithCancel(context.Background())
	state := &RunState{
		Run:          run,
		LastAccessed: time.Now(),
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	m.mu.Lock()
	m.runs[runID] = state
	metrics.ActiveRuns.Set(float64(len(m.runs)))
	snapshot := *run
	m.mu.Unlock()

	go m.runIndex(ctx, state, files, viperFallback)

	return &snapshot, nil
}

func (m *Manager) runIndex(ctx context.Context, state *RunState, files []FileRef, viperFallback bool) {
	runID := state.Run.ID
	logger := log.Derive(func(c *zerolog.Context) {
		*c = c.Str(log.FieldComponent, "runs").Str(log.FieldRunID, runID)
	})
	start := time.Now()

	defer close(state.done)
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("index run panicked")
			m.failRun(state, fmt.Sprintf("index panicked: %v", r), start)
		}
	}()

	logger.Info().Int(log.FieldFiles, len(files)).Bool("viper_fallback", viperFallback).Msg("index run started")

	// reading is 0-60%, classification 60-90%, storage the rest
	sources, readErrs := ReadFiles(ctx, files, func(lines int, read, total int64) {
		progress := 0.0
		if total > 0 {
			progress = float64(read) * 60.0 / float64(total)
		}
		if progress > 59.9 {
			progress = 59.9
		}
		m.mu.Lock()
		state.Run.Progress = progress
		state.Run.LineCount = lines
		m.mu.Unlock()
	})

	m.mu.Lock()
	state.Run.Errors = append(state.Run.Errors, readErrs...)
	state.Run.Progress = 60
	m.mu.Unlock()

	if len(readErrs) == len(files) {
		m.failRun(state, "no file could be read", start)
		return
	}

	cl := classify.New(m.rules.Rules())
	ix := NewIndexer(cl, Options{ViperFallback: viperFallback, Workers: m.workers})
	res, err := ix.Index(ctx, sources)
	if err != nil {
		m.failRun(state, err.Error(), start)
		return
	}

	m.mu.Lock()
	state.Run.Progress = 90
	m.mu.Unlock()

	store, err := m.buildStore(runID, res)
	if err != nil {
		// queries fall back to the in-memory sessions
		logger.Warn().Err(err).Msg("record store unavailable")
	}

	elapsed := time.Since(start)

	m.mu.Lock()
	if _, ok := m.runs[runID]; !ok {
		m.mu.Unlock()
		if store != nil {
			store.Close()
		}
		return
	}
	state.Result = res
	state.Store = store
	state.Run.Status = models.RunStatusComplete
	state.Run.Progress = 100
	state.Run.LineCount = len(res.Corpus.Lines)
	state.Run.SessionCount = len(res.Sessions)
	state.Run.RecordCount = res.RecordCount()
	state.Run.ProcessingTimeMs = elapsed.Milliseconds()
	state.Run.EndTime = time.Now().UnixMilli()
	state.Run.Warnings = append(state.Run.Warnings, res.Warnings...)
	m.mu.Unlock()

	metrics.RecordIndexRun("complete", elapsed.Seconds())
	logger.Info().
		Int(log.FieldLines, len(res.Corpus.Lines)).
		Int(log.FieldSessions, len(res.Sessions)).
		Int(log.FieldRecords, res.RecordCount()).
		Int64(log.FieldDuration, elapsed.Milliseconds()).
		Msg("index run complete")
}

func (m *Manager) buildStore(runID string, res *Result) (*parser.RecordStore, error) {
	store, err := parser.NewRecordStore(m.tempDir, runID)
	if err != nil {
		return nil, err
	}
	for _, s := range res.Sessions {
		store.AddSession(s)
	}
	err = store.LastError()
	if err == nil {
		err = store.Finalize()
	}
	if err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func (m *Manager) failRun(state *RunState, reason string, start time.Time) {
	m.mu.Lock()
	state.Run.Status = models.RunStatusError
	state.Run.EndTime = time.Now().UnixMilli()
	state.Run.Errors = append(state.Run.Errors, models.ParseError{Line: -1, Reason: reason})
	m.mu.Unlock()

	metrics.RecordIndexRun("error", time.Since(start).Seconds())
	logger := log.WithComponent("runs")
	logger.Error().Str(log.FieldRunID, state.Run.ID).Str("reason", reason).Msg("index run failed")
}

// Wait blocks until the run finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (*models.IndexRun, error) {
	m.mu.RLock()
	state, ok := m.runs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}
	select {
	case <-state.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	run, _ := m.GetRun(id)
	return run, nil
}

// cleanupOldRunsIfNeeded drops the least recently used finished runs at capacity.
func (m *Manager) cleanupOldRunsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.runs) < m.maxRuns {
		return
	}

	var finished []*RunState
	for _, state := range m.runs {
		if state.Run.Status == models.RunStatusComplete || state.Run.Status == models.RunStatusError {
			finished = append(finished, state)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].LastAccessed.Before(finished[j].LastAccessed)
	})

	toFree := len(m.runs) - m.maxRuns + 1
	for i := 0; i < toFree && i < len(finished); i++ {
		m.dropLocked(finished[i].Run.ID, "capacity")
	}
}

// dropLocked removes a run. Callers hold m.mu.
func (m *Manager) dropLocked(id, why string) {
	state, ok := m.runs[id]
	if !ok {
		return
	}
	if state.cancel != nil {
		state.cancel()
	}
	if state.Store != nil {
		state.Store.Close()
	}
	delete(m.runs, id)
	metrics.ActiveRuns.Set(float64(len(m.runs)))

	logger := log.WithComponent("runs")
	logger.Info().Str(log.FieldRunID, id).Str("reason", why).Msg("index run dropped")
}

// CleanupOldRuns removes finished runs older than maxAge,
// but keeps runs that have been accessed within RunKeepAliveWindow.
func (m *Manager) CleanupOldRuns(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-RunKeepAliveWindow)

	for id, state := range m.runs {
		if state.Run.Status != models.RunStatusComplete && state.Run.Status != models.RunStatusError {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			m.dropLocked(id, "aged")
		}
	}
}

// DeleteRun removes a run, cancelling it when still indexing.
func (m *Manager) DeleteRun(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return false
	}
	m.dropLocked(id, "deleted")
	return true
}

// Close drops every run and removes their stores.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.runs {
		m.dropLocked(id, "shutdown")
	}
}

// GetRun returns a snapshot of a run's status.
func (m *Manager) GetRun(id string) (*models.IndexRun, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.runs[id]
	if !ok {
		return nil, false
	}
	run := *state.Run
	run.Errors = append([]models.ParseError(nil), state.Run.Errors...)
	run.Warnings = append([]string(nil), state.Run.Warnings...)
	return &run, true
}

// TouchRun updates the LastAccessed timestamp for a run.
// Called whenever a run is actively used so cleanup keeps it.
func (m *Manager) TouchRun(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.runs[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// Result returns the indexed output of a completed run.
func (m *Manager) Result(id string) (*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	if state.Result == nil {
		return nil, ErrRunNotReady
	}
	return state.Result, nil
}

// Sessions returns the session list of a completed run.
func (m *Manager) Sessions(id string) ([]models.SessionSummary, error) {
	res, err := m.Result(id)
	if err != nil {
		return nil, err
	}
	out := make([]models.SessionSummary, len(res.Sessions))
	for i, s := range res.Sessions {
		out[i] = s.Summary()
	}
	return out, nil
}

// GetSession returns session n of a completed run.
func (m *Manager) GetSession(id string, n int) (*models.Session, error) {
	res, err := m.Result(id)
	if err != nil {
		return nil, err
	}
	s := res.Session(n)
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) store(id string) *parser.RecordStore {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if state, ok := m.runs[id]; ok {
		return state.Store
	}
	return nil
}

// QueryDownloads returns the downloads of session n overlapping [from, to].
func (m *Manager) QueryDownloads(ctx context.Context, id string, n int, from, to float64) ([]models.DownloadRecord, error) {
	s, err := m.GetSession(id, n)
	if err != nil {
		return nil, err
	}
	if store := m.store(id); store != nil {
		out, err := store.QueryDownloads(ctx, n, from, to)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger := log.WithComponent("runs")
		logger.Warn().Err(err).Str(log.FieldRunID, id).Msg("store query failed, scanning session")
	}

	out := make([]models.DownloadRecord, 0)
	for _, d := range s.Downloads {
		if d.UTCEnd >= from && d.UTCStart <= to {
			out = append(out, *d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UTCStart != out[j].UTCStart {
			return out[i].UTCStart < out[j].UTCStart
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

// OutcomeCounts aggregates downloads by category and outcome. A negative n
// aggregates every session of the run.
func (m *Manager) OutcomeCounts(ctx context.Context, id string, n int) ([]parser.OutcomeCount, error) {
	res, err := m.Result(id)
	if err != nil {
		return nil, err
	}
	if n >= 0 && res.Session(n) == nil {
		return nil, ErrSessionNotFound
	}
	store := m.store(id)
	if store == nil {
		return nil, fmt.Errorf("run %s: record store unavailable", id)
	}
	return store.OutcomeCounts(ctx, n)
}
