package testsupport

import (
	"context"
	"testing"

	"wbwatch/internal/config"
	"wbwatch/internal/sheets"
)

// MustOpenStore opens a sheets.Store for tests, applies config seeds, and
// registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sheets.Store {
	t.Helper()

	store, err := sheets.Open(cfg)
	if err != nil {
		t.Fatalf("sheets.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	if err := store.Seed(context.Background(), cfg); err != nil {
		t.Fatalf("store.Seed: %v", err)
	}
	return store
}
