// Package auditutil records pipeline runs in the audit trail.
package auditutil

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lake-ingest/internal/domain"
)

// Run accumulates the audit fields of one handled event.
type Run struct {
	entry   domain.AuditEntry
	started time.Time
}

// Start begins a run for stage on bucket/key.
func Start(stage, eventID string, obj domain.ObjectRef, now time.Time) *Run {
	return &Run{
		entry: domain.AuditEntry{
			EventID: eventID,
			Stage:   stage,
			Bucket:  obj.Bucket,
			Key:     obj.Key,
		},
		started: now,
	}
}

// Routed records the matched table.
func (r *Run) Routed(rt *domain.Routing) {
	r.entry.Database = &rt.Database
	r.entry.TableName = &rt.Table
}

// Wrote records the output location and row count.
func (r *Run) Wrote(p domain.PartitionPath, objectKey string, rows int64) {
	path := string(p)
	r.entry.PartitionPath = &path
	r.entry.ObjectKey = &objectKey
	r.entry.Rows = &rows
}

// Finish stores the entry. Audit failures are logged and never fail the run.
func (r *Run) Finish(ctx context.Context, repo domain.AuditRepository, logger *slog.Logger,
	outcome domain.Outcome, runErr error, now time.Time) {
	if repo == nil {
		return
	}
	r.entry.Outcome = outcome.String()
	if runErr != nil {
		msg := runErr.Error()
		r.entry.ErrorMessage = &msg
	}
	ms := now.Sub(r.started).Milliseconds()
	r.entry.DurationMs = &ms
	r.entry.CreatedAt = now

	if err := repo.Insert(ctx, &r.entry); err != nil {
		logger.Warn("failed to record audit entry", "stage", r.entry.Stage, "key", r.entry.Key, "error", err)
	}
}

type eventIDKey struct{}

// WithEventID attaches the identifier recorded for runs started under ctx.
func WithEventID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, eventIDKey{}, id)
}

// EventID returns the identifier attached to ctx, or a new UUID.
func EventID(ctx context.Context) string {
	if id, ok := ctx.Value(eventIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
