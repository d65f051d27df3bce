package lakeconfig

import (
	"context"
	"log/slog"
	"sync"

	"lake-ingest/internal/domain"
)

// Store fetches the lake config from an object store once and caches it for the
// lifetime of the process. Failed loads are not cached.
type Store struct {
	objects domain.ObjectStore
	bucket  string
	key     string
	policy  DuplicatePolicy
	logger  *slog.Logger

	mu     sync.Mutex
	cached *Config
}

// NewStore creates a Store reading bucket/key.
func NewStore(objects domain.ObjectStore, bucket, key string, policy DuplicatePolicy, logger *slog.Logger) *Store {
	return &Store{
		objects: objects,
		bucket:  bucket,
		key:     key,
		policy:  policy,
		logger:  logger,
	}
}

// Location returns the s3-style URI of the config document.
func (s *Store) Location() string {
	return domain.Location(s.bucket, s.key)
}

// Load returns the cached config, fetching and validating it on first use.
func (s *Store) Load(ctx context.Context) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached, nil
	}

	loc := s.Location()
	if s.bucket == "" {
		return nil, &domain.ConfigUnavailableError{Location: loc, Err: domain.ErrValidation("config bucket is not set")}
	}

	body, err := s.objects.Get(ctx, s.bucket, s.key)
	if err != nil {
		s.logger.Error("failed to fetch lake config", "location", loc, "error", err)
		return nil, &domain.ConfigUnavailableError{Location: loc, Err: err}
	}

	cfg, err := Parse(body, DocFormatFor(s.key), s.policy, loc)
	if err != nil {
		s.logger.Error("invalid lake config", "location", loc, "error", err)
		return nil, err
	}

	s.logger.Info("lake config loaded", "location", loc, "tables", len(cfg.order))
	s.cached = cfg
	return cfg, nil
}

// Source yields the lake config. Implemented by *Store and Static.
type Source interface {
	Load(ctx context.Context) (*Config, error)
}

var _ Source = (*Store)(nil)

// Static is a Source over an already parsed config.
type Static struct {
	Config *Config
}

// Load implements Source.
func (s Static) Load(context.Context) (*Config, error) {
	if s.Config == nil {
		return nil, &domain.ConfigUnavailableError{Location: "static", Err: domain.ErrValidation("no config")}
	}
	return s.Config, nil
}
