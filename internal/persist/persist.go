// Package persist stores and loads the full serialized store state. The
// whole state is the unit of persistence; there is no index or WAL.
package persist

import (
	"context"
	"errors"

	"github.com/funniceguy/web-minigame-factory/internal/domain"
)

// ErrNotFound reports that no persisted state exists yet.
var ErrNotFound = errors.New("no persisted state")

// Persister is the durable backend for the ranking store. Exactly one
// process owns the backing location; concurrent external writers are not
// supported.
type Persister interface {
	Load(ctx context.Context) (*domain.StoreState, error)
	Save(ctx context.Context, state *domain.StoreState) error
	Close() error
}
