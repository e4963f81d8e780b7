package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFolderMap(t *testing.T) {
	t.Run("valid map", func(t *testing.T) {
		path := writeFile(t, "folders.json", `{"Alice Smith": "f1", "Bob": "f2"}`)

		folders, err := LoadFolderMap(path)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"Alice Smith": "f1", "Bob": "f2"}, folders)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFolderMap(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeFile(t, "folders.json", `{"Alice":`)
		_, err := LoadFolderMap(path)
		assert.Error(t, err)
	})

	t.Run("empty map rejected", func(t *testing.T) {
		path := writeFile(t, "folders.json", `{}`)
		_, err := LoadFolderMap(path)
		assert.Error(t, err)
	})
}

func TestLoadRecipientCache(t *testing.T) {
	t.Run("valid cache", func(t *testing.T) {
		path := writeFile(t, "recipients.json", `{
			"timestamp": "2026-01-01T00:00:00Z",
			"totalParticipants": 2,
			"participants": [
				{"row": 2, "email": "a@x", "name": "Alice", "isShared": false},
				{"row": 3, "email": "b@x", "name": "Bob", "isShared": true, "lastLog": "done"}
			]
		}`)

		rc, err := LoadRecipientCache(path)
		require.NoError(t, err)
		require.Len(t, rc.Participants, 2)
		assert.Equal(t, "Alice", rc.Participants[0].Name)
		assert.True(t, rc.Participants[1].IsShared)
		assert.Equal(t, "done", rc.Participants[1].LastLog)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		path := writeFile(t, "recipients.json", `{"participants": [{"row": 2, "email": "a@x", "name": ""}]}`)
		_, err := LoadRecipientCache(path)
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeFile(t, "recipients.json", `not json`)
		_, err := LoadRecipientCache(path)
		assert.Error(t, err)
	})
}

func TestRecipientKey(t *testing.T) {
	r := Recipient{Name: "Alice", Email: "a@x"}
	assert.Equal(t, "Alice|a@x", r.Key())
}

func TestMarkSharedAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipients.json")
	rc := NewRecipientCache(path, []Recipient{
		{Row: 2, Email: "a@x", Name: "Alice"},
		{Row: 3, Email: "b@x", Name: "Bob"},
	})

	ts := time.Now().Format(time.RFC3339)
	require.True(t, rc.MarkShared(2, ts))
	assert.False(t, rc.MarkShared(99, ts), "unknown row")

	require.NoError(t, rc.Save())

	reloaded, err := LoadRecipientCache(path)
	require.NoError(t, err)
	assert.True(t, reloaded.Participants[0].IsShared)
	assert.Equal(t, ts, reloaded.Participants[0].LastLog)
	assert.False(t, reloaded.Participants[1].IsShared)
	assert.Equal(t, 2, reloaded.TotalParticipants)

	// Atomic write leaves no temp files behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStats(t *testing.T) {
	rc := NewRecipientCache("", []Recipient{
		{Row: 2, Email: "a@x", Name: "Alice", IsShared: true},
		{Row: 3, Email: "b@x", Name: "Bob"},
		{Row: 4, Email: "c@x", Name: "Cara"},
	})

	s := rc.Stats()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Shared)
	assert.Equal(t, 2, s.Unshared)
}
