// Package ingestion turns landed raw files into partitioned Parquet in the trusted bucket.
package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"lake-ingest/internal/domain"
	"lake-ingest/internal/lakeconfig"
	"lake-ingest/internal/routing"
	"lake-ingest/internal/service/auditutil"
)

// Service handles storage notifications for raw files.
type Service struct {
	config  lakeconfig.Source
	objects domain.ObjectStore
	stager  domain.Stager
	rules   domain.RuleEngine
	writer  domain.ColumnarWriter
	audit   domain.AuditRepository
	target  string
	clock   routing.Clock
	newID   func() string
	logger  *slog.Logger
}

// NewService creates a Service writing output to targetBucket.
func NewService(
	config lakeconfig.Source,
	objects domain.ObjectStore,
	stager domain.Stager,
	rules domain.RuleEngine,
	writer domain.ColumnarWriter,
	audit domain.AuditRepository,
	targetBucket string,
	logger *slog.Logger,
) *Service {
	return &Service{
		config:  config,
		objects: objects,
		stager:  stager,
		rules:   rules,
		writer:  writer,
		audit:   audit,
		target:  targetBucket,
		clock:   routing.UTCClock,
		newID:   uuid.NewString,
		logger:  logger.With("component", "ingestion"),
	}
}

// SetClock replaces the clock used for partition dates and audit timing.
func (s *Service) SetClock(c routing.Clock) { s.clock = c }

// SetIDGenerator replaces the generator of output file identifiers.
func (s *Service) SetIDGenerator(f func() string) { s.newID = f }

// Handle processes the first record of ev. Files rejected by routing, parsing,
// quality rules or partition planning yield OutcomeFailure with a nil error;
// failures of the underlying services are returned as errors.
func (s *Service) Handle(ctx context.Context, ev *domain.StorageEvent) (domain.Outcome, error) {
	obj, err := ev.Object()
	if err != nil {
		s.logger.Warn("invalid storage event", "error", err)
		return domain.OutcomeFailure, nil
	}

	run := auditutil.Start(domain.StageIngest, auditutil.EventID(ctx), obj, s.clock())
	outcome, err := s.process(ctx, obj, run)
	run.Finish(ctx, s.audit, s.logger, outcome, err, s.clock())

	if err != nil && IsRejection(err) {
		return outcome, nil
	}
	return outcome, err
}

// IsRejection reports whether err rejects the file itself rather than
// signalling a failure of an external service.
func IsRejection(err error) bool {
	var (
		unmatched *domain.UnmatchedError
		invalid   *domain.ValidationError
		quality   *domain.QualityCheckFailedError
		arity     *domain.PartitionArityError
	)
	return errors.As(err, &unmatched) || errors.As(err, &invalid) ||
		errors.As(err, &quality) || errors.As(err, &arity)
}

func (s *Service) process(ctx context.Context, obj domain.ObjectRef, run *auditutil.Run) (domain.Outcome, error) {
	log := s.logger.With("bucket", obj.Bucket, "key", obj.Key)

	if s.target == "" {
		err := fmt.Errorf("target bucket is not configured")
		log.Error("cannot ingest", "error", err)
		return domain.OutcomeFailure, err
	}

	cfg, err := s.config.Load(ctx)
	if err != nil {
		return domain.OutcomeFailure, err
	}

	rt, err := routing.NewClassifier(cfg).Resolve(obj.Key)
	if err != nil {
		log.Warn("no config matched the file", "error", err)
		return domain.OutcomeFailure, err
	}
	run.Routed(rt)
	log = log.With("database", rt.Database, "table", rt.Table)

	if !rt.Format.Supported() {
		log.Info("file format has no parser, nothing to write", "format", rt.Format)
		return domain.OutcomeNoOp, nil
	}

	body, err := s.objects.Get(ctx, obj.Bucket, obj.Key)
	if err != nil {
		log.Error("failed to read raw object", "error", err)
		return domain.OutcomeFailure, err
	}

	data, err := s.stager.Stage(ctx, body, rt.Format, rt.Delimiter)
	if err != nil {
		if IsRejection(err) {
			log.Warn("failed to parse raw object", "format", rt.Format, "error", err)
		} else {
			log.Error("failed to stage raw object", "format", rt.Format, "error", err)
		}
		return domain.OutcomeFailure, err
	}
	defer data.Close() //nolint:errcheck

	if data.RowCount() == 0 {
		log.Info("raw object is empty, nothing to write")
		return domain.OutcomeNoOp, nil
	}

	result, err := s.rules.Validate(ctx, rt.SuiteName(), data)
	if err != nil {
		log.Error("failed to run quality rules", "suite", rt.SuiteName(), "error", err)
		return domain.OutcomeFailure, err
	}
	if !result.Success {
		qerr := &domain.QualityCheckFailedError{Suite: rt.SuiteName(), Failed: result.Failed()}
		log.Warn("quality check failed", "suite", rt.SuiteName(), "failed", qerr.Failed)
		return domain.OutcomeFailure, qerr
	}

	partition, err := routing.Plan(rt, obj.Key, s.clock())
	if err != nil {
		log.Warn("cannot plan partition", "error", err)
		return domain.OutcomeFailure, err
	}

	var buf bytes.Buffer
	rows, err := s.writer.Write(ctx, data, &buf)
	if err != nil {
		log.Error("failed to convert staged data", "error", err)
		return domain.OutcomeFailure, err
	}

	if !rt.Append {
		if err := s.clearPartition(ctx, partition); err != nil {
			log.Error("failed to clear partition", "partition", partition, "error", err)
			return domain.OutcomeFailure, err
		}
	}

	outKey := partition.ObjectKey("part-" + s.newID() + "." + s.writer.Extension())
	if err := s.objects.Put(ctx, s.target, outKey, bytes.NewReader(buf.Bytes()), s.writer.ContentType()); err != nil {
		log.Error("failed to write output", "output", domain.Location(s.target, outKey), "error", err)
		return domain.OutcomeFailure, err
	}
	run.Wrote(partition, outKey, rows)

	log.Info("file ingested", "output", domain.Location(s.target, outKey), "rows", rows, "append", rt.Append)
	return domain.OutcomeSuccess, nil
}

// clearPartition removes existing output under partition.
func (s *Service) clearPartition(ctx context.Context, partition domain.PartitionPath) error {
	keys, err := s.objects.List(ctx, s.target, string(partition))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	s.logger.Info("overwriting partition", "partition", partition, "objects", len(keys))
	return s.objects.Delete(ctx, s.target, keys)
}
