// Package app wires the pipeline services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"lake-ingest/internal/catalog"
	"lake-ingest/internal/columnar"
	"lake-ingest/internal/config"
	internaldb "lake-ingest/internal/db"
	"lake-ingest/internal/db/repository"
	"lake-ingest/internal/domain"
	"lake-ingest/internal/engine"
	"lake-ingest/internal/lakeconfig"
	"lake-ingest/internal/quality"
	"lake-ingest/internal/queryengine"
	"lake-ingest/internal/queue"
	"lake-ingest/internal/service/catalogsync"
	"lake-ingest/internal/service/ingestion"
	"lake-ingest/internal/storage"
	"lake-ingest/internal/telemetry"
)

// Deps holds what main() must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// App holds the wired services. CatalogSync is nil when TRUSTED_DATABASE is unset.
type App struct {
	Objects     domain.ObjectStore
	LakeConfig  *lakeconfig.Store
	Audit       domain.AuditRepository
	Ingestion   *ingestion.Service
	CatalogSync *catalogsync.Service

	cfg     *config.Config
	logger  *slog.Logger
	awsCfg  *aws.Config
	closers []func() error
}

// New wires the object store, lake config, audit trail and pipeline services.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	a := &App{cfg: cfg, logger: deps.Logger}

	objects, err := storage.Open(ctx, cfg.Storage, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	a.Objects = objects
	if c, ok := objects.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	policy, err := lakeconfig.ParsePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	a.LakeConfig = lakeconfig.NewStore(objects, cfg.ConfigBucket, cfg.ConfigPath, policy,
		deps.Logger.With("component", "lakeconfig"))

	a.Audit = repository.NopAuditRepo{}
	if cfg.AuditDBPath != "" {
		pool, err := internaldb.OpenAudit(ctx, cfg.AuditDBPath)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("open audit trail: %w", err), a.Close())
		}
		a.closers = append(a.closers, pool.Close)
		a.Audit = repository.NewAuditRepo(pool.Write, pool.Read)
	}

	writer, err := columnar.NewParquetWriter(cfg.ParquetCompression)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	stager := engine.NewStager("", cfg.DuckDBMaxMemory, deps.Logger.With("component", "stager"))
	rules := quality.NewEngine(objects, cfg.RulesBucket, cfg.RulesPath, deps.Logger.With("component", "quality"))

	a.Ingestion = ingestion.NewService(a.LakeConfig, objects, stager, rules, writer, a.Audit,
		cfg.TargetBucket, deps.Logger)

	if cfg.TrustedDatabase != "" {
		awsCfg, err := a.AWSConfig(ctx)
		if err != nil {
			return nil, errors.Join(err, a.Close())
		}
		a.CatalogSync = catalogsync.NewService(a.LakeConfig,
			catalog.NewFromConfig(awsCfg),
			queryengine.NewFromConfig(awsCfg, cfg.AthenaOutputLocation()),
			a.Audit, cfg.TrustedDatabase, cfg.TrustedBucket, deps.Logger)
	}

	return a, nil
}

// AWSConfig loads the shared AWS configuration once.
func (a *App) AWSConfig(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	c, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	a.awsCfg = &c
	return c, nil
}

// NewProducer builds the telemetry producer sending to QUEUE_NAME.
func (a *App) NewProducer(ctx context.Context) (*telemetry.Producer, error) {
	if a.cfg.QueueName == "" {
		return nil, domain.ErrValidation("QUEUE_NAME is required for the telemetry producer")
	}
	awsCfg, err := a.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return telemetry.NewProducer(queue.NewFromConfig(awsCfg, a.cfg.QueueName),
		telemetry.NewGenerator(nil, nil), a.logger), nil
}

// Close releases the audit database and object store clients.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
