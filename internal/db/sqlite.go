// Package db opens the SQLite audit trail and applies its migrations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

// Mode selects the pool configuration for OpenSQLite.
type Mode string

const (
	// ModeWrite is a single-connection pool using immediate transactions.
	ModeWrite Mode = "write"
	// ModeRead is a multi-connection pool for concurrent readers.
	ModeRead Mode = "read"
)

const (
	busyTimeoutMs   = "5000"
	defaultReadConn = 4
)

// OpenSQLite opens a pool for the SQLite file at path. Both modes use WAL
// journaling, a 5s busy timeout and synchronous=NORMAL.
func OpenSQLite(ctx context.Context, path string, mode Mode, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == ModeWrite {
		maxOpen = 1
	} else if maxOpen <= 0 {
		maxOpen = defaultReadConn
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

func buildDSN(path string, mode Mode) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", busyTimeoutMs)
	params.Set("_synchronous", "NORMAL")
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}

// Pool is a write/read pool pair over one audit database.
type Pool struct {
	Write *sql.DB
	Read  *sql.DB
}

// OpenAudit creates the parent directory if needed, opens both pools and
// brings the schema up to date.
func OpenAudit(ctx context.Context, path string) (*Pool, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
	}

	w, err := OpenSQLite(ctx, path, ModeWrite, 0)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, w); err != nil {
		_ = w.Close()
		return nil, err
	}
	r, err := OpenSQLite(ctx, path, ModeRead, 0)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	return &Pool{Write: w, Read: r}, nil
}

// Close closes both pools.
func (p *Pool) Close() error {
	return errors.Join(p.Read.Close(), p.Write.Close())
}
