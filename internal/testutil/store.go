package testutil

import (
	"context"
	"testing"

	"github.com/HerbHall/devicepulse/internal/store"
)

// NewStore creates an in-memory SQLiteStore that is closed when the test ends.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := store.New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("testutil.NewStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
