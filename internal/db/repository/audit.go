// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lake-ingest/internal/domain"
)

const defaultListLimit = 50

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// AuditRepo stores audit entries in SQLite.
type AuditRepo struct {
	write *sql.DB
	read  *sql.DB
}

var _ domain.AuditRepository = (*AuditRepo)(nil)

// NewAuditRepo creates a repo. read may be nil, in which case write serves reads.
func NewAuditRepo(write, read *sql.DB) *AuditRepo {
	if read == nil {
		read = write
	}
	return &AuditRepo{write: write, read: read}
}

// Insert stores e, assigning an ID and timestamp when unset.
func (r *AuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := r.write.ExecContext(ctx, `INSERT INTO audit_log
		(id, event_id, stage, bucket, object_key, database_name, table_name, outcome,
		 partition_path, output_key, rows_written, error_message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EventID, e.Stage, e.Bucket, e.Key, e.Database, e.TableName, e.Outcome,
		e.PartitionPath, e.ObjectKey, e.Rows, e.ErrorMessage, e.DurationMs,
		e.CreatedAt.UTC().Format(timeLayout))
	return mapDBError(err)
}

// List returns entries matching filter, newest first.
func (r *AuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.Stage != nil {
		where = append(where, "stage = ?")
		args = append(args, *filter.Stage)
	}
	if filter.Outcome != nil {
		where = append(where, "outcome = ?")
		args = append(args, *filter.Outcome)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := `SELECT id, event_id, stage, bucket, object_key, database_name, table_name, outcome,
		partition_path, output_key, rows_written, error_message, duration_ms, created_at
		FROM audit_log`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.read.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.AuditEntry
	for rows.Next() {
		var (
			e       domain.AuditEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.Stage, &e.Bucket, &e.Key, &e.Database, &e.TableName,
			&e.Outcome, &e.PartitionPath, &e.ObjectKey, &e.Rows, &e.ErrorMessage, &e.DurationMs, &created); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// NopAuditRepo discards entries. Used when the audit trail is disabled.
type NopAuditRepo struct{}

var _ domain.AuditRepository = NopAuditRepo{}

func (NopAuditRepo) Insert(context.Context, *domain.AuditEntry) error { return nil }

func (NopAuditRepo) List(context.Context, domain.AuditFilter) ([]domain.AuditEntry, error) {
	return nil, nil
}
