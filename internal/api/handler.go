// Package api exposes the pipeline stages as an HTTP webhook for storage notifications.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"lake-ingest/internal/domain"
	"lake-ingest/internal/middleware"
	"lake-ingest/internal/service/auditutil"
)

const maxEventBytes = 1 << 20

// EventHandler runs one pipeline stage for a storage event.
// Implemented by ingestion.Service and catalogsync.Service.
type EventHandler interface {
	Handle(ctx context.Context, ev *domain.StorageEvent) (domain.Outcome, error)
}

// EventResponse is the body returned for a handled event.
type EventResponse struct {
	Outcome   domain.Outcome `json:"outcome"`
	RequestID string         `json:"request_id"`
	Error     string         `json:"error,omitempty"`
}

// AuditEntry is the JSON form of domain.AuditEntry.
type AuditEntry struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	Stage         string    `json:"stage"`
	Bucket        string    `json:"bucket"`
	Key           string    `json:"key"`
	Database      *string   `json:"database,omitempty"`
	Table         *string   `json:"table,omitempty"`
	Outcome       string    `json:"outcome"`
	PartitionPath *string   `json:"partition_path,omitempty"`
	ObjectKey     *string   `json:"object_key,omitempty"`
	Rows          *int64    `json:"rows,omitempty"`
	Error         *string   `json:"error,omitempty"`
	DurationMs    *int64    `json:"duration_ms,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Handler serves the webhook endpoints.
type Handler struct {
	ingest  EventHandler
	catalog EventHandler
	audit   domain.AuditRepository
	logger  *slog.Logger
}

// NewHandler creates a Handler. catalog may be nil when catalog sync is not configured.
func NewHandler(ingest, catalog EventHandler, audit domain.AuditRepository, logger *slog.Logger) *Handler {
	return &Handler{
		ingest:  ingest,
		catalog: catalog,
		audit:   audit,
		logger:  logger.With("component", "api"),
	}
}

// NewRouter mounts the handler behind request ID, panic recovery and rate limiting.
// ctx bounds the rate limiter's background cleanup.
func NewRouter(ctx context.Context, h *Handler, rl middleware.RateLimitConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimiter(ctx, rl))
		r.Post("/events/ingest", h.handleEvent(h.ingest))
		r.Post("/events/catalog", h.handleEvent(h.catalog))
		r.Get("/audit", h.listAudit)
	})
	return r
}

func (h *Handler) handleEvent(stage EventHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.RequestIDFromContext(r.Context())
		if stage == nil {
			writeError(w, http.StatusServiceUnavailable, "stage is not configured")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "event body too large")
			return
		}
		ev, err := domain.ParseStorageEvent(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx := auditutil.WithEventID(r.Context(), reqID)
		outcome, err := stage.Handle(ctx, ev)
		if err != nil {
			h.logger.Error("event handling failed", "path", r.URL.Path, "request_id", reqID, "error", err)
			writeJSON(w, httpStatusFromDomainError(err), EventResponse{
				Outcome:   domain.OutcomeFailure,
				RequestID: reqID,
				Error:     err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, EventResponse{Outcome: outcome, RequestID: reqID})
	}
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter domain.AuditFilter
	if v := q.Get("stage"); v != "" {
		filter.Stage = &v
	}
	if v := q.Get("outcome"); v != "" {
		filter.Outcome = &v
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = &since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	entries, err := h.audit.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list audit entries", "error", err)
		writeError(w, httpStatusFromDomainError(err), err.Error())
		return
	}
	out := make([]AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryToAPI(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// AuditEntryToAPI converts an audit entry to its JSON form.
func AuditEntryToAPI(e domain.AuditEntry) AuditEntry {
	return AuditEntry{
		ID:            e.ID,
		EventID:       e.EventID,
		Stage:         e.Stage,
		Bucket:        e.Bucket,
		Key:           e.Key,
		Database:      e.Database,
		Table:         e.TableName,
		Outcome:       e.Outcome,
		PartitionPath: e.PartitionPath,
		ObjectKey:     e.ObjectKey,
		Rows:          e.Rows,
		Error:         e.ErrorMessage,
		DurationMs:    e.DurationMs,
		CreatedAt:     e.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"code": status, "message": msg})
}
