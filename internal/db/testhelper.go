package db

import (
	"context"
	"path/filepath"
	"testing"
)

// OpenTestAudit opens a migrated audit database in t.TempDir() and registers cleanup.
func OpenTestAudit(t *testing.T) *Pool {
	t.Helper()

	pool, err := OpenAudit(context.Background(), filepath.Join(t.TempDir(), "audit.sqlite"))
	if err != nil {
		t.Fatalf("open test audit db: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}
