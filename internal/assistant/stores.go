package assistant

import (
	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/store"
)

// collectionAdapter gives the interpreter append/patch/remove-by-id access
// to one persisted collection. Every mutation goes through the store's
// pure-updater path; a failed lookup leaves the collection untouched.
type collectionAdapter[T any] struct {
	col *store.Collection[T]
	id  func(T) string
}

func (a collectionAdapter[T]) Append(user string, item T) error {
	return a.col.Mutate(user, func(items []T) ([]T, error) {
		return append(items, item), nil
	})
}

func (a collectionAdapter[T]) Get(user, id string) (T, bool, error) {
	var zero T
	items, err := a.col.All(user)
	if err != nil {
		return zero, false, err
	}
	for _, it := range items {
		if a.id(it) == id {
			return it, true, nil
		}
	}
	return zero, false, nil
}

func (a collectionAdapter[T]) Patch(user, id string, fn func(T) T) (T, bool, error) {
	var out T
	found := false
	err := a.col.Mutate(user, func(items []T) ([]T, error) {
		for i, it := range items {
			if a.id(it) == id {
				items[i] = fn(it)
				out = items[i]
				found = true
				break
			}
		}
		return items, nil
	})
	return out, found, err
}

func (a collectionAdapter[T]) Remove(user, id string) (T, bool, error) {
	var out T
	found := false
	err := a.col.Mutate(user, func(items []T) ([]T, error) {
		next := items[:0]
		for _, it := range items {
			if !found && a.id(it) == id {
				out = it
				found = true
				continue
			}
			next = append(next, it)
		}
		return next, nil
	})
	return out, found, err
}

func noteAdapter(s *store.Stores) collectionAdapter[models.Note] {
	return collectionAdapter[models.Note]{col: s.Notes, id: func(n models.Note) string { return n.ID }}
}

func eventAdapter(s *store.Stores) collectionAdapter[models.Event] {
	return collectionAdapter[models.Event]{col: s.Events, id: func(e models.Event) string { return e.ID }}
}

func reminderAdapter(s *store.Stores) collectionAdapter[models.Reminder] {
	return collectionAdapter[models.Reminder]{col: s.Reminders, id: func(r models.Reminder) string { return r.ID }}
}

func appAdapter(s *store.Stores) collectionAdapter[models.SavedApp] {
	return collectionAdapter[models.SavedApp]{col: s.Apps, id: func(a models.SavedApp) string { return a.ID }}
}
