package quality

import (
	"context"
	"fmt"
	"log/slog"

	"lake-ingest/internal/domain"
)

// Engine loads suites from an object store and evaluates them as SQL over staged data.
type Engine struct {
	objects domain.ObjectStore
	bucket  string
	prefix  string
	logger  *slog.Logger
}

// Compile-time interface check.
var _ domain.RuleEngine = (*Engine)(nil)

// NewEngine creates an Engine reading suites from bucket under prefix.
func NewEngine(objects domain.ObjectStore, bucket, prefix string, logger *slog.Logger) *Engine {
	return &Engine{objects: objects, bucket: bucket, prefix: prefix, logger: logger}
}

// LoadSuite fetches and parses the named suite.
func (e *Engine) LoadSuite(ctx context.Context, suite string) (*domain.Suite, error) {
	key := SuiteKey(e.prefix, suite)
	body, err := e.objects.Get(ctx, e.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("load suite %q from %s: %w", suite, domain.Location(e.bucket, key), err)
	}
	s, err := ParseSuite(body)
	if err != nil {
		return nil, fmt.Errorf("suite %q: %w", suite, err)
	}
	if s.Name == "" {
		s.Name = suite
	}
	return s, nil
}

// Validate runs the named suite against data.
func (e *Engine) Validate(ctx context.Context, suite string, data domain.StagedData) (*domain.ValidationResult, error) {
	s, err := e.LoadSuite(ctx, suite)
	if err != nil {
		return nil, err
	}
	res := Evaluate(ctx, s, data)
	res.Suite = suite
	e.logger.Info("suite evaluated", "suite", suite, "expectations", len(res.Results), "success", res.Success)
	return res, nil
}

// Evaluate runs every expectation of suite. Evaluation errors fail the
// expectation they belong to and do not stop the run.
func Evaluate(ctx context.Context, suite *domain.Suite, data domain.StagedData) *domain.ValidationResult {
	res := &domain.ValidationResult{Suite: suite.Name, Success: true}
	for _, exp := range suite.Expectations {
		r := evaluate(ctx, exp, data)
		if !r.Success {
			res.Success = false
		}
		res.Results = append(res.Results, r)
	}
	return res
}

func evaluate(ctx context.Context, exp domain.Expectation, data domain.StagedData) domain.ExpectationResult {
	r := domain.ExpectationResult{Type: exp.Type, Column: exp.Column()}

	fn, ok := expectations[exp.Type]
	if !ok {
		r.Error = "unsupported expectation type"
		return r
	}
	if err := fn(ctx, exp.Kwargs, data, &r); err != nil {
		r.Success = false
		r.Error = err.Error()
	}
	return r
}
