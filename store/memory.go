package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/janani/maai/models"
)

// MemoryStore is the process-local store used when no database is
// configured. Same semantics as PostgresStore.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]models.UserRecord
	entries map[string][]models.InteractionLogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]models.UserRecord),
		entries: make(map[string][]models.InteractionLogEntry),
	}
}

func (m *MemoryStore) Append(ctx context.Context, entry models.InteractionLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.UserKey == "" {
		return fmt.Errorf("interaction %s has no user key", entry.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[entry.UserKey]
	if !ok {
		rec = models.UserRecord{
			UserKey:     entry.UserKey,
			PhoneNumber: entry.PhoneNumber,
			UserEmail:   entry.UserEmail,
			UserName:    entry.UserName,
			CreatedAt:   entry.Timestamp,
		}
	}
	rec.UpdatedAt = entry.Timestamp
	m.users[entry.UserKey] = rec
	m.entries[entry.UserKey] = append(m.entries[entry.UserKey], entry)
	return nil
}

func (m *MemoryStore) User(_ context.Context, userKey string) (models.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.users[userKey]
	if !ok {
		return rec, fmt.Errorf("user %s: %w", userKey, ErrNotFound)
	}
	return rec, nil
}

func (m *MemoryStore) History(_ context.Context, userKey string) ([]models.InteractionLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.InteractionLogEntry(nil), m.entries[userKey]...), nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
