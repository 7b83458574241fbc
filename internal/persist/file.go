package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/funniceguy/web-minigame-factory/internal/domain"
)

// FilePersister keeps the store state in a single JSON file. Writes go to
// a temp file beside the real path and are renamed over it so a crash
// mid-write never leaves a partial file.
type FilePersister struct {
	path string
}

// NewFilePersister creates the parent directory if needed.
func NewFilePersister(path string) (*FilePersister, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}
	return &FilePersister{path: path}, nil
}

// Load reads and decodes the persisted state.
func (f *FilePersister) Load(_ context.Context) (*domain.StoreState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state domain.StoreState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding state file: %w", err)
	}
	if state.Players == nil {
		state.Players = make(map[string]*domain.PlayerRecord)
	}
	return &state, nil
}

// Save writes the state atomically.
func (f *FilePersister) Save(_ context.Context, state *domain.StoreState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming state file: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (f *FilePersister) Close() error {
	return nil
}
