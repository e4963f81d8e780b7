package share

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tildaslashalef/driveshare/internal/loggy"
)

// HistoryStore persists engine state to a single JSON file so an interrupted
// run can resume. The file is transient: it is deleted once a run completes
// and its cell updates are flushed to the remote document.
type HistoryStore struct {
	path   string
	logger *loggy.Logger
}

// NewHistoryStore creates a history store backed by the given file path
func NewHistoryStore(path string, logger *loggy.Logger) *HistoryStore {
	return &HistoryStore{path: path, logger: logger}
}

// Path returns the backing file path
func (h *HistoryStore) Path() string {
	return h.path
}

// Exists reports whether a history file is present
func (h *HistoryStore) Exists() bool {
	_, err := os.Stat(h.path)
	return err == nil
}

// Load restores the previous snapshot, or returns nil when no usable history
// exists. A missing file means a fresh start; so does a corrupt one, which is
// logged and otherwise ignored. A snapshot whose counters violate their
// invariants has the counters reset to zero while the processed-keys set and
// result list are still honored, preserving de-duplication across a
// corrupted save.
func (h *HistoryStore) Load() *HistorySnapshot {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if !os.IsNotExist(err) {
			h.logger.Warn("Failed to read history file, starting fresh", "path", h.path, "error", err)
		}
		return nil
	}

	var snap HistorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		h.logger.Warn("History file is corrupt, starting fresh", "path", h.path, "error", err)
		return nil
	}

	if !snap.ProgressStats.Valid() {
		h.logger.Warn("History snapshot counters are invalid, resetting counters",
			"processed", snap.ProgressStats.Processed,
			"total", snap.ProgressStats.Total,
			"successful", snap.ProgressStats.Successful,
			"failed", snap.ProgressStats.Failed,
		)
		snap.ProgressStats = Counters{}
	}

	h.logger.Info("Restored history snapshot",
		"processed_keys", len(snap.ProcessedParticipants),
		"results", len(snap.ShareResults),
		"pending_updates", len(snap.BatchUpdates),
		"saved_at", snap.Timestamp,
	)

	return &snap
}

// Save writes the snapshot, replacing any previous one. The write goes to a
// temp file in the same directory followed by a rename, so a crash mid-write
// cannot corrupt a previous good snapshot.
func (h *HistoryStore) Save(snap *HistorySnapshot) error {
	snap.Timestamp = time.Now()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling history snapshot: %w", err)
	}

	dir := filepath.Dir(h.path)
	tmp, err := os.CreateTemp(dir, ".driveshare-history-*")
	if err != nil {
		return fmt.Errorf("creating temp history file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp history file: %w", err)
	}
	if err := os.Rename(tmpPath, h.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing history file: %w", err)
	}

	return nil
}

// Delete removes the history file. Deleting a file that is already gone is
// not an error.
func (h *HistoryStore) Delete() error {
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting history file: %w", err)
	}
	return nil
}
