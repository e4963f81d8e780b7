// Package matcher resolves human-entered recipient names to folder ids.
// Names in the source document differ from folder names by trailing
// punctuation, honorifics, or spacing, so lookup degrades from exact to
// fuzzy in fixed stages.
package matcher

import (
	"strings"
)

// Matcher resolves a recipient name against a preloaded folder map.
// It is pure over the map: the same name always yields the same result
// for stages 1 and 2. Stage 3 scans map entries in Go's randomized map
// iteration order, so when several keys satisfy the substring predicate
// any one of them may win.
type Matcher struct {
	folders map[string]string // normalized folder name -> folder id
}

// New builds a Matcher from a folder map keyed by display name.
// Keys are normalized (lower-cased, trimmed) and have internal whitespace
// runs collapsed on the way in, so stage 2 matches names that differ from
// the folder name only in spacing.
func New(folderMap map[string]string) *Matcher {
	folders := make(map[string]string, len(folderMap))
	for name, id := range folderMap {
		folders[collapseWhitespace(normalize(name))] = id
	}
	return &Matcher{folders: folders}
}

// Len returns the number of folders known to the matcher.
func (m *Matcher) Len() int {
	return len(m.folders)
}

// FindFolderID resolves a recipient name to a folder id. Three ordered
// stages, first hit wins:
//
//  1. exact lookup on the normalized name
//  2. lookup with internal whitespace runs collapsed to single spaces
//  3. bidirectional substring scan over all folder names
//
// Returns ("", false) when no stage matches.
func (m *Matcher) FindFolderID(name string) (string, bool) {
	query := normalize(name)
	if query == "" {
		return "", false
	}

	// Stage 1: exact normalized
	if id, ok := m.folders[query]; ok {
		return id, true
	}

	// Stage 2: whitespace-collapsed
	collapsed := collapseWhitespace(query)
	if id, ok := m.folders[collapsed]; ok {
		return id, true
	}

	// Stage 3: substring in either direction
	for key, id := range m.folders {
		if strings.Contains(key, collapsed) || strings.Contains(collapsed, key) {
			return id, true
		}
	}

	return "", false
}

// normalize lower-cases and trims a name
func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// collapseWhitespace reduces internal whitespace runs to a single space
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
