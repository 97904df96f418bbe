package testsupport

import (
	"testing"

	"dubline/internal/config"
	"dubline/internal/ledger"
)

// MustOpenLedger opens the config's run ledger and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg.Paths.LedgerPath)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
