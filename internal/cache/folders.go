// Package cache reads and writes the local JSON artifacts the engine shares
// with its collaborators: the folder map produced by the drive walker and the
// recipient cache produced by the sheet loader.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFolderMap reads the walker's folder map artifact: a JSON object mapping
// folder display name to folder id. Keys keep their display form here; the
// matcher normalizes them.
func LoadFolderMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading folder map %s: %w", path, err)
	}

	var folders map[string]string
	if err := json.Unmarshal(data, &folders); err != nil {
		return nil, fmt.Errorf("parsing folder map %s: %w", path, err)
	}

	if len(folders) == 0 {
		return nil, fmt.Errorf("folder map %s is empty", path)
	}

	return folders, nil
}
