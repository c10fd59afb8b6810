package sink

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (m *memoryStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if key == m.failOn {
		return errors.New("access denied")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte(`["`+n+`"]`), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "a.json", ObjectKey("", "/tmp/out/a.json"))
	assert.Equal(t, "raw/orders/a.json", ObjectKey("/raw/orders/", "/tmp/out/a.json"))
}

func TestUploader_UploadAll(t *testing.T) {
	storage := newMemoryStorage()
	files := writeFiles(t, "b1.json", "b2.json", "b3.json", "b4.json", "b5.json")

	keys, err := NewUploader(storage, "raw", 2, zerolog.Nop()).UploadAll(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, []string{"raw/b1.json", "raw/b2.json", "raw/b3.json", "raw/b4.json", "raw/b5.json"}, keys)
	assert.True(t, bytes.Equal([]byte(`["b3.json"]`), storage.objects["raw/b3.json"]))
}

func TestUploader_Failure(t *testing.T) {
	storage := newMemoryStorage()
	storage.failOn = "raw/b2.json"
	files := writeFiles(t, "b1.json", "b2.json", "b3.json")

	_, err := NewUploader(storage, "raw", 1, zerolog.Nop()).UploadAll(context.Background(), files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestUploader_NoFiles(t *testing.T) {
	keys, err := NewUploader(newMemoryStorage(), "", 0, zerolog.Nop()).UploadAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
