package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/triage-visualizer/backend/internal/models"
)

type staticRules []models.MarkerRule

func (r staticRules) Rules() []models.MarkerRule { return r }

func newTestManager(t *testing.T, rules RuleSource) *Manager {
	t.Helper()
	m := NewManager(ManagerOptions{TempDir: t.TempDir(), Rules: rules})
	t.Cleanup(m.Close)
	return m
}

func waitRun(t *testing.T, m *Manager, id string) *models.IndexRun {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	run, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return run
}

func TestManager_IndexRun(t *testing.T) {
	dir := t.TempDir()
	files := []FileRef{
		writeLog(t, dir, "b.log", tuneFile(10, "b")),
		writeLog(t, dir, "a.log", tuneFile(7, "a")),
	}
	m := newTestManager(t, nil)

	run, err := m.StartRun(files, false)
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	if run.Status != models.RunStatusIndexing {
		t.Errorf("Expected status indexing, got %s", run.Status)
	}

	run = waitRun(t, m, run.ID)
	if run.Status != models.RunStatusComplete {
		t.Fatalf("Run status %s, errors %v", run.Status, run.Errors)
	}
	if run.Progress != 100 {
		t.Errorf("Expected progress 100, got %f", run.Progress)
	}
	if run.SessionCount != 2 {
		t.Errorf("Expected 2 sessions, got %d", run.SessionCount)
	}
	if run.RecordCount != 6 {
		t.Errorf("Expected 6 records, got %d", run.RecordCount)
	}
	if run.LineCount != 8 {
		t.Errorf("Expected 8 lines, got %d", run.LineCount)
	}

	sessions, err := m.Sessions(run.ID)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].Label != "(1): 20:07:36" {
		t.Errorf("Unexpected sessions: %+v", sessions)
	}

	s, err := m.GetSession(run.ID, 1)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.Locator != "http://x/b.m3u8" {
		t.Errorf("Expected locator of b, got %q", s.Locator)
	}
	if _, err := m.GetSession(run.ID, 2); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_QueryDownloads(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, nil)
	run, err := m.StartRun([]FileRef{writeLog(t, dir, "a.log", tuneFile(7, "a"))}, false)
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	waitRun(t, m, run.ID)

	s, err := m.GetSession(run.ID, 0)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}

	all, err := m.QueryDownloads(context.Background(), run.ID, 0, float64(s.MinTimestamp), float64(s.MaxTimestamp))
	if err != nil {
		t.Fatalf("QueryDownloads: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 downloads, got %d", len(all))
	}
	if all[0].ResponseCode != 200 || all[2].ResponseCode != 500 {
		t.Errorf("Unexpected order: %d..%d", all[0].ResponseCode, all[2].ResponseCode)
	}

	// only the 404 transfer overlaps its own second
	mid := s.Downloads[1]
	window, err := m.QueryDownloads(context.Background(), run.ID, 0, mid.UTCStart+1, mid.UTCEnd-1)
	if err != nil {
		t.Fatalf("QueryDownloads: %v", err)
	}
	if len(window) != 1 || window[0].ResponseCode != 404 {
		t.Errorf("Expected only the 404 download, got %+v", window)
	}

	counts, err := m.OutcomeCounts(context.Background(), run.ID, -1)
	if err != nil {
		t.Fatalf("OutcomeCounts: %v", err)
	}
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	if total != 3 {
		t.Errorf("Expected 3 counted downloads, got %d", total)
	}
}

func TestManager_UserRules(t *testing.T) {
	dir := t.TempDir()
	rules := staticRules{{Pattern: "custom thing %%", Label: "Custom(%0)", UserDefined: true}}
	m := newTestManager(t, rules)

	text := tuneFile(7, "a") + "\n" + at(7, 45, 0, "custom thing abc")
	run, err := m.StartRun([]FileRef{writeLog(t, dir, "a.log", text)}, false)
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	waitRun(t, m, run.ID)

	s, err := m.GetSession(run.ID, 0)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(s.Markers) != 1 {
		t.Fatalf("Expected 1 marker, got %d", len(s.Markers))
	}
	if s.Markers[0].Label != "Custom(abc)" || !s.Markers[0].UserDefined {
		t.Errorf("Unexpected marker %+v", s.Markers[0])
	}
}

func TestManager_AllFilesUnreadable(t *testing.T) {
	m := newTestManager(t, nil)
	run, err := m.StartRun([]FileRef{{ID: "x", Name: "x.log", Path: filepath.Join(t.TempDir(), "x.log")}}, false)
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}

	run = waitRun(t, m, run.ID)
	if run.Status != models.RunStatusError {
		t.Fatalf("Expected error status, got %s", run.Status)
	}
	if len(run.Errors) != 2 {
		t.Errorf("Expected file error plus run error, got %v", run.Errors)
	}
	if _, err := m.Result(run.ID); !errors.Is(err, ErrRunNotReady) {
		t.Errorf("Expected ErrRunNotReady, got %v", err)
	}
}

func TestManager_NoFiles(t *testing.T) {
	m := newTestManager(t, nil)
	if _, err := m.StartRun(nil, false); !errors.Is(err, ErrNoFiles) {
		t.Errorf("Expected ErrNoFiles, got %v", err)
	}
}

func TestManager_UnknownRun(t *testing.T) {
	m := newTestManager(t, nil)
	if _, ok := m.GetRun("nope"); ok {
		t.Error("Expected unknown run")
	}
	if m.TouchRun("nope") {
		t.Error("Expected touch to fail")
	}
	if _, err := m.Result("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
	if _, err := m.Wait(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestManager_CleanupOldRuns(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, nil)
	file := writeLog(t, dir, "a.log", tuneFile(7, "a"))

	stale, _ := m.StartRun([]FileRef{file}, false)
	fresh, _ := m.StartRun([]FileRef{file}, false)
	waitRun(t, m, stale.ID)
	waitRun(t, m, fresh.ID)

	m.mu.Lock()
	m.runs[stale.ID].LastAccessed = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	m.CleanupOldRuns(RunMaxAge)

	if _, ok := m.GetRun(stale.ID); ok {
		t.Error("Expected stale run to be removed")
	}
	if _, ok := m.GetRun(fresh.ID); !ok {
		t.Error("Expected fresh run to be kept")
	}
}

func TestManager_CapacityEvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(ManagerOptions{TempDir: t.TempDir(), MaxRuns: 2})
	t.Cleanup(m.Close)
	file := writeLog(t, dir, "a.log", tuneFile(7, "a"))

	first, _ := m.StartRun([]FileRef{file}, false)
	second, _ := m.StartRun([]FileRef{file}, false)
	waitRun(t, m, first.ID)
	waitRun(t, m, second.ID)

	m.mu.Lock()
	m.runs[first.ID].LastAccessed = time.Now().Add(-time.Minute)
	m.mu.Unlock()

	third, _ := m.StartRun([]FileRef{file}, false)
	waitRun(t, m, third.ID)

	if _, ok := m.GetRun(first.ID); ok {
		t.Error("Expected least recently used run to be evicted")
	}
	if _, ok := m.GetRun(second.ID); !ok {
		t.Error("Expected second run to be kept")
	}
}

func TestManager_DeleteRun(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, nil)
	run, _ := m.StartRun([]FileRef{writeLog(t, dir, "a.log", tuneFile(7, "a"))}, false)
	waitRun(t, m, run.ID)

	if !m.DeleteRun(run.ID) {
		t.Fatal("Expected delete to succeed")
	}
	if m.DeleteRun(run.ID) {
		t.Error("Expected second delete to fail")
	}
}
