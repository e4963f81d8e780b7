package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Recipient is one row of the remote document, as captured by the loader.
// Records are immutable from the engine's point of view; write-through after
// a successful grant goes through RecipientCache.MarkShared.
type Recipient struct {
	Row      int    `json:"row"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsShared bool   `json:"isShared"`
	LastLog  string `json:"lastLog,omitempty"`
}

// Key returns the de-duplication key for the recipient
func (r Recipient) Key() string {
	return r.Name + "|" + r.Email
}

// RecipientCache is the loader's artifact plus local write-through state.
type RecipientCache struct {
	Timestamp         time.Time   `json:"timestamp"`
	TotalParticipants int         `json:"totalParticipants"`
	Participants      []Recipient `json:"participants"`

	path string
}

// NewRecipientCache builds a cache backed by the given path, for callers
// that assemble participants themselves rather than loading an artifact.
func NewRecipientCache(path string, participants []Recipient) *RecipientCache {
	return &RecipientCache{
		Timestamp:         time.Now(),
		TotalParticipants: len(participants),
		Participants:      participants,
		path:              path,
	}
}

// LoadRecipientCache reads the loader's recipient cache artifact.
func LoadRecipientCache(path string) (*RecipientCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipient cache %s: %w", path, err)
	}

	var rc RecipientCache
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("parsing recipient cache %s: %w", path, err)
	}

	for i, p := range rc.Participants {
		if p.Email == "" || p.Name == "" {
			return nil, fmt.Errorf("recipient cache %s: participant %d has empty name or email", path, i)
		}
	}

	rc.path = path
	return &rc, nil
}

// MarkShared flips the cached record for the given row to shared and stamps
// its log annotation. Returns false if no record has that row.
func (rc *RecipientCache) MarkShared(row int, lastLog string) bool {
	for i := range rc.Participants {
		if rc.Participants[i].Row == row {
			rc.Participants[i].IsShared = true
			rc.Participants[i].LastLog = lastLog
			return true
		}
	}
	return false
}

// Stats summarizes the cache for dashboard events
type Stats struct {
	Total     int       `json:"total"`
	Shared    int       `json:"shared"`
	Unshared  int       `json:"unshared"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats returns aggregate document state for the dashboard.
func (rc *RecipientCache) Stats() Stats {
	s := Stats{Total: len(rc.Participants), Timestamp: rc.Timestamp}
	for _, p := range rc.Participants {
		if p.IsShared {
			s.Shared++
		} else {
			s.Unshared++
		}
	}
	return s
}

// Save rewrites the cache file in place, atomically, so the loader and the
// dashboard always read a complete document.
func (rc *RecipientCache) Save() error {
	if rc.path == "" {
		return fmt.Errorf("recipient cache has no backing path")
	}

	rc.TotalParticipants = len(rc.Participants)

	data, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling recipient cache: %w", err)
	}

	return writeFileAtomic(rc.path, data)
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over the destination, so a crash mid-write never corrupts a
// previously good file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".driveshare-tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
