// Package catalogsync registers trusted tables in the catalog and refreshes
// their partitions.
package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lake-ingest/internal/ddl"
	"lake-ingest/internal/domain"
	"lake-ingest/internal/lakeconfig"
	"lake-ingest/internal/routing"
	"lake-ingest/internal/service/auditutil"
)

const tableDescription = "Trusted table registered by lake-ingest"

// Service handles storage notifications for written trusted files.
type Service struct {
	config   lakeconfig.Source
	catalog  domain.Catalog
	query    domain.QueryEngine
	audit    domain.AuditRepository
	database string
	bucket   string
	clock    routing.Clock
	logger   *slog.Logger
}

// NewService creates a Service registering tables in the trusted database.
// trustedBucket is the default table location bucket for EnsureTableFor.
func NewService(
	config lakeconfig.Source,
	catalog domain.Catalog,
	query domain.QueryEngine,
	audit domain.AuditRepository,
	trustedDatabase, trustedBucket string,
	logger *slog.Logger,
) *Service {
	return &Service{
		config:   config,
		catalog:  catalog,
		query:    query,
		audit:    audit,
		database: trustedDatabase,
		bucket:   trustedBucket,
		clock:    routing.UTCClock,
		logger:   logger.With("component", "catalogsync"),
	}
}

// SetClock replaces the clock used for audit timing.
func (s *Service) SetClock(c routing.Clock) { s.clock = c }

// Handle ensures the table of the first record of ev is registered.
// Unroutable keys yield OutcomeFailure with a nil error.
func (s *Service) Handle(ctx context.Context, ev *domain.StorageEvent) (domain.Outcome, error) {
	obj, err := ev.Object()
	if err != nil {
		s.logger.Warn("invalid storage event", "error", err)
		return domain.OutcomeFailure, nil
	}

	run := auditutil.Start(domain.StageCatalog, auditutil.EventID(ctx), obj, s.clock())
	outcome, err := s.process(ctx, obj, run)
	run.Finish(ctx, s.audit, s.logger, outcome, err, s.clock())

	var unmatched *domain.UnmatchedError
	if errors.As(err, &unmatched) {
		return outcome, nil
	}
	return outcome, err
}

func (s *Service) process(ctx context.Context, obj domain.ObjectRef, run *auditutil.Run) (domain.Outcome, error) {
	cfg, err := s.config.Load(ctx)
	if err != nil {
		return domain.OutcomeFailure, err
	}

	rt, err := routing.NewClassifier(cfg).ResolveTable(obj.Key)
	if err != nil {
		s.logger.Warn("no config matched the file", "bucket", obj.Bucket, "key", obj.Key, "error", err)
		return domain.OutcomeFailure, err
	}
	run.Routed(rt)

	if err := s.EnsureTable(ctx, rt, TableLocation(obj.Bucket, rt)); err != nil {
		return domain.OutcomeFailure, err
	}
	return domain.OutcomeSuccess, nil
}

// EnsureTableFor registers database.table located under the trusted bucket.
func (s *Service) EnsureTableFor(ctx context.Context, database, table string) error {
	cfg, err := s.config.Load(ctx)
	if err != nil {
		return err
	}
	tc, ok := cfg.Lookup(database, table)
	if !ok {
		return domain.ErrNotFound("no table %s.%s in config", database, table)
	}
	rt := &domain.Routing{
		Database:      tc.Database,
		Table:         tc.Name,
		PartitionKeys: tc.Partitions,
		Schema:        tc.Schema,
	}
	if s.bucket == "" {
		return domain.ErrValidation("trusted bucket is not configured")
	}
	return s.EnsureTable(ctx, rt, TableLocation(s.bucket, rt))
}

// EnsureTable creates the catalog table for rt when absent and then triggers
// partition discovery.
func (s *Service) EnsureTable(ctx context.Context, rt *domain.Routing, location string) error {
	name := rt.CatalogTableName()
	log := s.logger.With("database", s.database, "table", name)

	repair, err := ddl.RepairTable(name)
	if err != nil {
		return domain.ErrValidation("catalog table name %q: %v", name, err)
	}

	exists, err := s.catalog.TableExists(ctx, s.database, name)
	if err != nil {
		log.Error("failed to check catalog table", "error", err)
		return fmt.Errorf("check table %s.%s: %w", s.database, name, err)
	}

	if !exists {
		def := &domain.TableDefinition{
			Name:          name,
			Description:   tableDescription,
			Location:      location,
			Columns:       rt.Schema,
			PartitionKeys: rt.PartitionKeys,
		}
		err := s.catalog.CreateTable(ctx, s.database, def)
		var conflict *domain.ConflictError
		switch {
		case errors.As(err, &conflict):
			log.Info("catalog table created concurrently")
		case err != nil:
			log.Error("failed to create catalog table", "location", location, "error", err)
			return fmt.Errorf("create table %s.%s: %w", s.database, name, err)
		default:
			log.Info("catalog table created", "location", location)
		}
	}

	execID, err := s.query.Run(ctx, s.database, repair)
	if err != nil {
		log.Error("failed to start partition repair", "error", err)
		return fmt.Errorf("repair table %s.%s: %w", s.database, name, err)
	}
	log.Info("partition repair started", "execution_id", execID)
	return nil
}

// TableLocation returns s3://{bucket}/{database}/{table}/.
func TableLocation(bucket string, rt *domain.Routing) string {
	return domain.Location(bucket, rt.TablePrefix())
}
