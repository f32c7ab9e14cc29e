package testsupport

import (
	"testing"

	"gnssprep/internal/config"
	"gnssprep/internal/history"
)

// MustOpenHistory opens the run ledger for cfg and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
