package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidpullgo/internal/models"
)

func TestStorageTracksRunAndPersists(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	_, ok := store.LastRun()
	assert.False(t, ok)
	assert.Empty(t, store.FailedItems())

	store.OnRunStart("run-1", "/videos")
	assert.True(t, store.Status().Running)

	store.OnItem(models.MediaItem{Id: "a", Filename: "a.mp4"}, models.Downloaded(10))
	store.OnItem(models.MediaItem{Id: "b", Filename: "b.mp4"}, models.Outcome{Kind: models.OutcomeFailed, Reason: "timeout"})
	store.OnBatch(models.RunCounters{Downloaded: 1, Failed: 1})

	status := store.Status()
	assert.Equal(t, "run-1", status.Run.Id)
	assert.Equal(t, models.RunCounters{Downloaded: 1, Failed: 1}, status.Run.Counters)
	assert.Equal(t, []models.FailedItem{{Id: "b", Filename: "b.mp4", Error: "timeout"}}, store.FailedItems())

	store.OnRunEnd(models.RunSummary{Id: "run-1", Dir: "/videos", Counters: models.RunCounters{Downloaded: 1, Failed: 1}})
	assert.False(t, store.Status().Running)
	assert.FileExists(t, filepath.Join(dir, historyFile))

	reopened, err := New(dir)
	require.NoError(t, err)
	last, ok := reopened.LastRun()
	require.True(t, ok)
	assert.Equal(t, "run-1", last.Id)
	assert.Equal(t, uint(1), last.Counters.Failed)
	assert.Equal(t, []models.FailedItem{{Id: "b", Filename: "b.mp4", Error: "timeout"}}, reopened.FailedItems())
}

func TestStorageNewRunResetsFailures(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	store.OnRunStart("r1", "/v")
	store.OnItem(models.MediaItem{Id: "x"}, models.Outcome{Kind: models.OutcomeFailed, Reason: "e"})
	store.OnRunEnd(models.RunSummary{Id: "r1"})

	store.OnRunStart("r2", "/v")
	assert.Empty(t, store.FailedItems())
}

func TestStorageIgnoresCorruptHistory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, historyFile), []byte("{not json"), 0o644))

	store, err := New(dir)
	require.NoError(t, err)
	_, ok := store.LastRun()
	assert.False(t, ok)
}
