package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// StateDir is the directory, relative to the batch root, holding run state.
const StateDir = ".mathedit"

const stateFile = "batch-state.json"

// State records the content hash of every file a previous run left
// reconciled, so unchanged files can be skipped.
type State struct {
	FileHashes  map[string]string `json:"file_hashes"`
	LastUpdated time.Time         `json:"last_updated"`
}

// LoadState reads state from .mathedit/batch-state.json inside dir. A
// missing file yields an empty state.
func LoadState(dir string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(dir, StateDir, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &State{FileHashes: make(map[string]string)}, nil
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.FileHashes == nil {
		state.FileHashes = make(map[string]string)
	}
	return &state, nil
}

// Save writes the state to .mathedit/batch-state.json inside dir.
func (s *State) Save(dir string) error {
	stateDir := filepath.Join(dir, StateDir)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return err
	}

	s.LastUpdated = time.Now()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(stateDir, stateFile), data, 0o644)
}

// IsFileChanged reports whether relPath's hash differs from the stored one.
func (s *State) IsFileChanged(relPath, contentHash string) bool {
	stored, ok := s.FileHashes[relPath]
	if !ok {
		return true
	}
	return stored != contentHash
}
