package store

import (
	"encoding/json"
	"fmt"

	"github.com/starford/munin/internal/models"
)

// Collection is a typed view over one state blob holding an
// insertion-ordered JSON array of T.
type Collection[T any] struct {
	store *Store
	key   string
}

// NewCollection creates a typed collection bound to key.
func NewCollection[T any](s *Store, key string) *Collection[T] {
	return &Collection[T]{store: s, key: key}
}

// All decodes the current sequence. A missing blob decodes to an empty slice.
func (c *Collection[T]) All(user string) ([]T, error) {
	raw, err := c.store.Get(user, c.key)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", c.key, err)
	}
	return items, nil
}

// Mutate applies fn to the current sequence and persists the result
// atomically. fn must not modify its input in place for error returns;
// a non-nil error leaves the stored sequence unchanged.
func (c *Collection[T]) Mutate(user string, fn func(items []T) ([]T, error)) error {
	return c.store.Update(user, c.key, func(prev []byte) ([]byte, error) {
		var items []T
		if len(prev) > 0 {
			if err := json.Unmarshal(prev, &items); err != nil {
				return nil, fmt.Errorf("store: decode %s: %w", c.key, err)
			}
		}
		if items == nil {
			items = []T{}
		}
		next, err := fn(items)
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = []T{}
		}
		return json.Marshal(next)
	})
}

// Replace persists the given sequence wholesale.
func (c *Collection[T]) Replace(user string, items []T) error {
	return c.Mutate(user, func([]T) ([]T, error) { return items, nil })
}

// MemoryMap is the schemaless memory entity: arbitrary key to value.
type MemoryMap struct {
	store *Store
}

// NewMemoryMap creates the memory view.
func NewMemoryMap(s *Store) *MemoryMap {
	return &MemoryMap{store: s}
}

// All returns the full memory mapping.
func (m *MemoryMap) All(user string) (map[string]any, error) {
	raw, err := m.store.Get(user, KeyMemory)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("store: decode memory: %w", err)
		}
	}
	return out, nil
}

// Set upserts one memory key.
func (m *MemoryMap) Set(user, key string, value any) error {
	return m.store.Update(user, KeyMemory, func(prev []byte) ([]byte, error) {
		entries := map[string]any{}
		if len(prev) > 0 {
			if err := json.Unmarshal(prev, &entries); err != nil {
				return nil, fmt.Errorf("store: decode memory: %w", err)
			}
		}
		entries[key] = value
		return json.Marshal(entries)
	})
}

// Delete removes one memory key. Removing an absent key is a no-op.
func (m *MemoryMap) Delete(user, key string) error {
	return m.store.Update(user, KeyMemory, func(prev []byte) ([]byte, error) {
		entries := map[string]any{}
		if len(prev) > 0 {
			if err := json.Unmarshal(prev, &entries); err != nil {
				return nil, fmt.Errorf("store: decode memory: %w", err)
			}
		}
		delete(entries, key)
		return json.Marshal(entries)
	})
}

// Stores bundles the typed collection views the rest of the service uses.
type Stores struct {
	Notes     *Collection[models.Note]
	Events    *Collection[models.Event]
	Reminders *Collection[models.Reminder]
	Apps      *Collection[models.SavedApp]
	Chat      *Collection[models.ChatMessage]
	Memory    *MemoryMap

	raw *Store
}

// NewStores builds typed views over one Store.
func NewStores(s *Store) *Stores {
	return &Stores{
		Notes:     NewCollection[models.Note](s, KeyNotes),
		Events:    NewCollection[models.Event](s, KeyEvents),
		Reminders: NewCollection[models.Reminder](s, KeyReminders),
		Apps:      NewCollection[models.SavedApp](s, KeyApps),
		Chat:      NewCollection[models.ChatMessage](s, KeyChat),
		Memory:    NewMemoryMap(s),
		raw:       s,
	}
}

// Raw exposes the underlying store for key enumeration and bulk deletion.
func (s *Stores) Raw() *Store { return s.raw }
