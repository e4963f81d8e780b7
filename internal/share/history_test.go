package share

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/driveshare/internal/cache"
	"github.com/tildaslashalef/driveshare/internal/loggy"
)

func newTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	return NewHistoryStore(path, loggy.NewNoopLogger())
}

func TestHistoryRoundTrip(t *testing.T) {
	h := newTestHistory(t)

	start := time.Now().Add(-time.Minute).Truncate(time.Second)
	snap := &HistorySnapshot{
		ProcessedParticipants: []string{"Alice|a@x", "Bob|b@x"},
		ShareResults: []ShareResult{
			{Success: true, PermissionID: "p1", Recipient: cache.Recipient{Row: 2, Name: "Alice", Email: "a@x"}},
		},
		BatchUpdates: []CellUpdate{
			{Range: "I2", Value: "TRUE"},
		},
		ErrorLog:      []string{"b@x: boom"},
		ProgressStats: Counters{Total: 4, Processed: 2, Successful: 1, Failed: 1},
		StartTime:     start,
	}

	require.NoError(t, h.Save(snap))

	restored := h.Load()
	require.NotNil(t, restored)
	assert.ElementsMatch(t, snap.ProcessedParticipants, restored.ProcessedParticipants)
	assert.Len(t, restored.ShareResults, 1)
	assert.Equal(t, "p1", restored.ShareResults[0].PermissionID)
	assert.Equal(t, snap.BatchUpdates, restored.BatchUpdates)
	assert.Equal(t, snap.ErrorLog, restored.ErrorLog)
	assert.Equal(t, snap.ProgressStats, restored.ProgressStats)
	assert.True(t, start.Equal(restored.StartTime))
	assert.False(t, restored.Timestamp.IsZero())
}

func TestHistoryLoadMissing(t *testing.T) {
	h := newTestHistory(t)
	assert.Nil(t, h.Load())
	assert.False(t, h.Exists())
}

func TestHistoryLoadCorrupt(t *testing.T) {
	h := newTestHistory(t)
	require.NoError(t, os.WriteFile(h.Path(), []byte("{not json"), 0644))

	assert.Nil(t, h.Load())
}

func TestHistoryLoadInvalidCounters(t *testing.T) {
	// A snapshot whose counters violate their invariants has the counters
	// rejected, but processed keys and results are still honored.
	h := newTestHistory(t)

	snap := &HistorySnapshot{
		ProcessedParticipants: []string{"Alice|a@x"},
		ShareResults: []ShareResult{
			{Success: true, Recipient: cache.Recipient{Row: 2, Name: "Alice", Email: "a@x"}},
		},
		ProgressStats: Counters{Total: 5, Processed: 10},
	}
	require.NoError(t, h.Save(snap))

	restored := h.Load()
	require.NotNil(t, restored)
	assert.Equal(t, Counters{}, restored.ProgressStats)
	assert.Equal(t, []string{"Alice|a@x"}, restored.ProcessedParticipants)
	assert.Len(t, restored.ShareResults, 1)
}

func TestHistorySaveLeavesNoTempFiles(t *testing.T) {
	h := newTestHistory(t)
	require.NoError(t, h.Save(&HistorySnapshot{}))
	require.NoError(t, h.Save(&HistorySnapshot{ProcessedParticipants: []string{"k"}}))

	entries, err := os.ReadDir(filepath.Dir(h.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the history file itself should remain")
}

func TestHistoryDelete(t *testing.T) {
	h := newTestHistory(t)
	require.NoError(t, h.Save(&HistorySnapshot{}))
	require.True(t, h.Exists())

	require.NoError(t, h.Delete())
	assert.False(t, h.Exists())

	// Deleting again is not an error
	assert.NoError(t, h.Delete())
}
