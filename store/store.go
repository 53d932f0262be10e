package store

import (
	"context"
	"errors"

	"github.com/janani/maai/models"
)

// ErrNotFound is returned for an identity with no stored interactions.
var ErrNotFound = errors.New("not found")

// Store is the interaction log. Append only ever adds.
type Store interface {
	Append(ctx context.Context, entry models.InteractionLogEntry) error
	User(ctx context.Context, userKey string) (models.UserRecord, error)
	History(ctx context.Context, userKey string) ([]models.InteractionLogEntry, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
