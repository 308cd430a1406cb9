package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nupi-ai/chorus/internal/device/pairstore"
)

// OpenPairStore creates a temporary pair store and returns a cleanup function.
func OpenPairStore(t *testing.T) (*pairstore.Store, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "pairs.db")
	store, err := pairstore.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open pair store: %v", err)
	}
	return store, func() { store.Close() }
}
