package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rotation/internal/database"
	testingpkg "github.com/aristath/rotation/internal/testing"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := make(map[string][]byte)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[header.Name] = content
	}
	return files
}

func TestCreateAndUpload(t *testing.T) {
	historyDB, cleanupHistory := testingpkg.NewTestDB(t, "history")
	defer cleanupHistory()
	resultsDB, cleanupResults := testingpkg.NewTestDB(t, "results")
	defer cleanupResults()

	_, err := historyDB.Conn().Exec(`INSERT INTO daily_prices (instrument, date, close, updated_at) VALUES ('510300', '2024-01-02', 3.5, 0)`)
	require.NoError(t, err)

	store := newMemoryStore()
	svc := NewBackupService(store, []*database.DB{historyDB, resultsDB}, t.TempDir(), zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC) }

	key, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotation-backup-2024-03-01-040000.tar.gz", key)
	require.Equal(t, []string{key}, store.keys())

	files := readArchive(t, store.objects[key])
	require.Contains(t, files, "history.db")
	require.Contains(t, files, "results.db")
	require.Contains(t, files, "backup-metadata.json")

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(files["backup-metadata.json"], &metadata))
	require.Len(t, metadata.Databases, 2)
	for _, db := range metadata.Databases {
		content := files[db.Filename]
		sum := sha256.Sum256(content)
		assert.Equal(t, hex.EncodeToString(sum[:]), db.Checksum, db.Name)
		assert.Equal(t, int64(len(content)), db.SizeBytes)
		assert.Greater(t, db.SizeBytes, int64(0))
	}
}

func TestRotateOldBackups(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	for _, day := range []int{1, 5, 10, 20, 28, 30} {
		ts := time.Date(2024, 3, day, 4, 0, 0, 0, time.UTC)
		store.objects[backupPrefix+ts.Format(backupTimeLayout)+backupSuffix] = []byte("x")
	}
	store.objects["rotation-backup-garbage.tar.gz"] = []byte("x")

	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())
	svc.now = func() time.Time { return now }

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 6)
	assert.Equal(t, 30, backups[0].Timestamp.Day())
	assert.Equal(t, int64(32), backups[0].AgeHours)

	deleted, err := svc.RotateOldBackups(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, deleted, "zero retention keeps everything")

	deleted, err = svc.RotateOldBackups(context.Background(), 14)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.NotContains(t, store.keys(), "rotation-backup-2024-03-01-040000.tar.gz")
	assert.NotContains(t, store.keys(), "rotation-backup-2024-03-10-040000.tar.gz")
	assert.Contains(t, store.keys(), "rotation-backup-2024-03-20-040000.tar.gz")

	// every remaining archive is past a one day retention
	deleted, err = svc.RotateOldBackups(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, deleted, "the newest three are always kept")
}

func TestRotateOldBackups_DeleteFailureContinues(t *testing.T) {
	store := newMemoryStore()
	for day := 1; day <= 5; day++ {
		ts := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
		store.objects[backupPrefix+ts.Format(backupTimeLayout)+backupSuffix] = []byte("x")
	}
	store.deleteErr = errors.New("boom")

	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())
	deleted, err := svc.RotateOldBackups(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, store.keys(), 5)
}
