// Package testutil provides shared test helpers for setting up state stores.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/munin/internal/store"
)

// TestStore creates a temporary SQLite state store that is automatically
// cleaned up.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "munin-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStores creates the typed store bundle over a temporary database.
func TestStores(t *testing.T) *store.Stores {
	t.Helper()
	return store.NewStores(TestStore(t))
}
