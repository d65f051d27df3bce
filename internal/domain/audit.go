package domain

import (
	"context"
	"time"
)

// Pipeline stages recorded in the audit trail.
const (
	StageIngest  = "INGEST"
	StageCatalog = "CATALOG"
)

// AuditEntry represents a single handled event.
type AuditEntry struct {
	ID            string
	EventID       string
	Stage         string
	Bucket        string
	Key           string
	Database      *string
	TableName     *string
	Outcome       string // "Success", "Failure", "NoOp"
	PartitionPath *string
	ObjectKey     *string
	Rows          *int64
	ErrorMessage  *string
	DurationMs    *int64
	CreatedAt     time.Time
}

// AuditFilter holds filter parameters for querying audit entries.
type AuditFilter struct {
	Stage   *string
	Outcome *string
	Since   *time.Time
	Limit   int
}

// AuditRepository provides operations for audit entries.
type AuditRepository interface {
	Insert(ctx context.Context, e *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}
