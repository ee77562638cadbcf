// Package testutil holds storage doubles and log fixtures shared by tests.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/storage"
)

// MockStorage is an in-memory storage.Store. With a directory set it also
// writes every file there so index runs can read it back.
type MockStorage struct {
	dir string

	mu     sync.Mutex
	seq    int
	files  map[string]*models.FileInfo
	chunks map[string]map[int][]byte
}

var _ storage.Store = (*MockStorage)(nil)

// NewMockStorage creates a store that keeps contents in memory only.
func NewMockStorage() *MockStorage {
	return NewMockStorageWithTempDir("")
}

// NewMockStorageWithTempDir creates a store that also writes files to dir.
func NewMockStorageWithTempDir(dir string) *MockStorage {
	return &MockStorage{
		dir:    dir,
		files:  make(map[string]*models.FileInfo),
		chunks: make(map[string]map[int][]byte),
	}
}

// AddFile stores data under a fixed id.
func (m *MockStorage) AddFile(id, name string, data []byte) *models.FileInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLocked(id, name, data)
}

// GetFileCount returns the number of stored files.
func (m *MockStorage) GetFileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func (m *MockStorage) putLocked(id, name string, data []byte) *models.FileInfo {
	if m.dir != "" {
		if err := os.WriteFile(filepath.Join(m.dir, id+"_"+name), data, 0o644); err != nil {
			panic(fmt.Sprintf("testutil: write %s: %v", name, err))
		}
	}
	info := &models.FileInfo{ID: id, Name: name, Size: int64(len(data)), UploadedAt: time.Now(), Status: "uploaded"}
	m.files[id] = info
	return info
}

func (m *MockStorage) nextIDLocked() string {
	m.seq++
	return fmt.Sprintf("test-id-%d", m.seq)
}

func (m *MockStorage) Save(name string, r io.Reader) (*models.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.SaveBytes(name, data)
}

func (m *MockStorage) SaveBytes(name string, data []byte) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLocked(m.nextIDLocked(), name, data), nil
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info, ok := m.files[id]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
}

func (m *MockStorage) List(limit int) ([]*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.FileInfo, 0, len(m.files))
	for _, info := range m.files {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, info)
	}
	return out, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	delete(m.files, id)
	return nil
}

func (m *MockStorage) Rename(id, name string) (*models.FileInfo, error) {
	info, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	info.Name = name
	m.mu.Unlock()
	return info, nil
}

// GetFilePath returns where the file was written, or a placeholder path
// for an in-memory store.
func (m *MockStorage) GetFilePath(id string) (string, error) {
	info, err := m.Get(id)
	if err != nil {
		return "", err
	}
	if m.dir == "" {
		return "/mock/path/" + id, nil
	}
	return filepath.Join(m.dir, id+"_"+info.Name), nil
}

func (m *MockStorage) RegisterFile(info *models.FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[info.ID] = info
}

func (m *MockStorage) SaveChunk(uploadID string, chunkIndex int, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return m.SaveChunkBytes(uploadID, chunkIndex, data)
}

func (m *MockStorage) SaveChunkBytes(uploadID string, chunkIndex int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chunks[uploadID] == nil {
		m.chunks[uploadID] = make(map[int][]byte)
	}
	m.chunks[uploadID][chunkIndex] = data
	return nil
}

func (m *MockStorage) CompleteChunkedUpload(uploadID, name string, totalChunks int) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts, ok := m.chunks[uploadID]
	if !ok {
		return nil, fmt.Errorf("%w: upload %s", storage.ErrNotFound, uploadID)
	}
	var buf bytes.Buffer
	for i := 0; i < totalChunks; i++ {
		part, ok := parts[i]
		if !ok {
			return nil, fmt.Errorf("upload %s: missing chunk %d", uploadID, i)
		}
		buf.Write(part)
	}
	delete(m.chunks, uploadID)
	return m.putLocked(m.nextIDLocked(), name, buf.Bytes()), nil
}
