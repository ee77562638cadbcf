// duckstore_test.go - Tests for DuckDB-backed record storage
package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/triage-visualizer/backend/internal/models"
)

// createTestStore creates a temporary RecordStore for testing
func createTestStore(t *testing.T) (*RecordStore, func()) {
	tempDir := t.TempDir()
	runID := "test_" + time.Now().Format("20060102_150405")

	store, err := NewRecordStore(tempDir, runID)
	if err != nil {
		t.Fatalf("Failed to create RecordStore: %v", err)
	}

	cleanup := func() {
		store.Close()
	}

	return store, cleanup
}

// createTestDownload creates a DownloadRecord for testing
func createTestDownload(line int, typ models.MediaType, code int, start, durMs float64) *models.DownloadRecord {
	return &models.DownloadRecord{
		Line:          line,
		Type:          typ,
		TypeName:      typ.String(),
		ResponseCode:  code,
		Outcome:       MapError(code),
		DurationMs:    durMs,
		DownloadBytes: 1000,
		URL:           "http://cdn/seg.ts",
		UTCStart:      start,
		UTCEnd:        start + durMs,
	}
}

func createTestSession(index int) *models.Session {
	return &models.Session{
		Index: index,
		Downloads: []*models.DownloadRecord{
			createTestDownload(1, models.MediaVideo, 200, 1000, 250),
			createTestDownload(2, models.MediaVideo, 404, 1500, 100),
			createTestDownload(3, models.MediaAudio, 200, 5000, 50),
		},
		Markers: []*models.Marker{
			{Timestamp: 1200, Line: 4, Label: "Tuned"},
			{Timestamp: 6000, Line: 5, Label: "CURL28(Operation Timed Out)", Exception: true},
		},
	}
}

func TestNewRecordStore(t *testing.T) {
	t.Run("creates store successfully", func(t *testing.T) {
		store, cleanup := createTestStore(t)
		defer cleanup()

		if store == nil {
			t.Fatal("Expected store to be created, got nil")
		}
		if store.db == nil {
			t.Error("Expected database connection to be initialized")
		}
		if store.batchSize != 20000 {
			t.Errorf("Expected batch size 20000, got %d", store.batchSize)
		}
	})

	t.Run("creates and removes database file", func(t *testing.T) {
		tempDir := t.TempDir()

		store, err := NewRecordStore(tempDir, "file_test")
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}

		dbPath := filepath.Join(tempDir, "run_file_test.duckdb")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("Expected database file to be created")
		}
		store.Close()
		if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
			t.Error("Expected database file to be removed on close")
		}
	})
}

func TestRecordStore_AddSession(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	store.AddSession(createTestSession(0))
	store.AddSession(createTestSession(1))

	if store.DownloadCount() != 6 {
		t.Errorf("Expected 6 downloads, got %d", store.DownloadCount())
	}
	if store.MarkerCount() != 4 {
		t.Errorf("Expected 4 markers, got %d", store.MarkerCount())
	}
	if err := store.Finalize(); err != nil {
		t.Fatalf("Failed to finalize: %v", err)
	}
	if store.DownloadCount() != 6 {
		t.Errorf("Expected counts to survive flush, got %d", store.DownloadCount())
	}
	if store.LastError() != nil {
		t.Errorf("Unexpected flush error: %v", store.LastError())
	}
}

func TestRecordStore_SmallBatches(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()
	store.batchSize = 2

	for i := 0; i < 5; i++ {
		store.AddSession(createTestSession(i))
	}
	if err := store.Finalize(); err != nil {
		t.Fatalf("Failed to finalize: %v", err)
	}
	counts, err := store.OutcomeCounts(context.Background(), -1)
	if err != nil {
		t.Fatalf("OutcomeCounts: %v", err)
	}
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	if total != 15 {
		t.Errorf("Expected 15 downloads across batches, got %d", total)
	}
}

func TestRecordStore_QueryDownloads(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	store.AddSession(createTestSession(0))
	store.AddSession(createTestSession(1))
	if err := store.Finalize(); err != nil {
		t.Fatalf("Failed to finalize: %v", err)
	}
	ctx := context.Background()

	t.Run("overlap window", func(t *testing.T) {
		// [1200, 1550] overlaps the first two transfers but not the audio one
		got, err := store.QueryDownloads(ctx, 0, 1200, 1550)
		if err != nil {
			t.Fatalf("QueryDownloads: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Expected 2 downloads, got %d", len(got))
		}
		if got[0].Line != 1 || got[1].Line != 2 {
			t.Errorf("Unexpected order: %d, %d", got[0].Line, got[1].Line)
		}
		if got[1].Outcome != "HTTP404(Not Found)" || got[1].TypeName != "VIDEO" {
			t.Errorf("Unexpected record %+v", got[1])
		}
	})

	t.Run("empty window", func(t *testing.T) {
		got, err := store.QueryDownloads(ctx, 0, 9000, 10000)
		if err != nil {
			t.Fatalf("QueryDownloads: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Expected no downloads, got %d", len(got))
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		for i := 0; i < cap(store.querySem); i++ {
			store.querySem <- struct{}{}
		}
		defer func() {
			for i := 0; i < cap(store.querySem); i++ {
				<-store.querySem
			}
		}()
		if _, err := store.QueryDownloads(cctx, 0, 0, 1); err == nil {
			t.Error("Expected error when the semaphore is full and the context is cancelled")
		}
	})
}

func TestRecordStore_QueryMarkers(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	store.AddSession(createTestSession(3))
	if err := store.Finalize(); err != nil {
		t.Fatalf("Failed to finalize: %v", err)
	}

	got, err := store.QueryMarkers(context.Background(), 3, 0, 10000)
	if err != nil {
		t.Fatalf("QueryMarkers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 markers, got %d", len(got))
	}
	if got[0].Label != "Tuned" || !got[1].Exception {
		t.Errorf("Unexpected markers %+v", got)
	}

	other, err := store.QueryMarkers(context.Background(), 4, 0, 10000)
	if err != nil {
		t.Fatalf("QueryMarkers: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no markers for unknown session, got %d", len(other))
	}
}

func TestRecordStore_OutcomeCounts(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	store.AddSession(createTestSession(0))
	store.AddSession(createTestSession(1))
	if err := store.Finalize(); err != nil {
		t.Fatalf("Failed to finalize: %v", err)
	}

	counts, err := store.OutcomeCounts(context.Background(), 0)
	if err != nil {
		t.Fatalf("OutcomeCounts: %v", err)
	}
	want := map[string]int{
		"AUDIO|HTTP200(OK)":        1,
		"VIDEO|HTTP200(OK)":        1,
		"VIDEO|HTTP404(Not Found)": 1,
	}
	if len(counts) != len(want) {
		t.Fatalf("Expected %d groups, got %+v", len(want), counts)
	}
	for _, c := range counts {
		if want[c.Category+"|"+c.Outcome] != c.Count {
			t.Errorf("Unexpected group %+v", c)
		}
	}
	if counts[0].Category != "AUDIO" || counts[0].MaxMs != 50 {
		t.Errorf("Expected sorted groups with stats, got %+v", counts[0])
	}
}

func TestRecordStore_EmptyStore(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	if err := store.Finalize(); err != nil {
		t.Fatalf("Failed to finalize empty store: %v", err)
	}
	counts, err := store.OutcomeCounts(context.Background(), -1)
	if err != nil {
		t.Fatalf("OutcomeCounts: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("Expected no counts, got %d", len(counts))
	}
}
