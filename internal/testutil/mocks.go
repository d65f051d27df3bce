// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"lake-ingest/internal/domain"
)

// === Object Store Mock ===

// PutCall records one Put on MockObjectStore.
type PutCall struct {
	Bucket      string
	Key         string
	Body        []byte
	ContentType string
}

// MockObjectStore implements domain.ObjectStore for testing. Calls without an
// override Fn fall back to an in-memory bucket/key map.
type MockObjectStore struct {
	GetFn    func(ctx context.Context, bucket, key string) ([]byte, error)
	PutFn    func(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	ExistsFn func(ctx context.Context, bucket, key string) (bool, error)
	ListFn   func(ctx context.Context, bucket, prefix string) ([]string, error)
	DeleteFn func(ctx context.Context, bucket string, keys []string) error

	mu      sync.Mutex
	Objects map[string][]byte // "bucket/key" → body
	Puts    []PutCall
	Deleted []string // "bucket/key"
	Gets    int
}

// NewMockObjectStore creates a store seeded with objects keyed by "bucket/key".
func NewMockObjectStore(objects map[string][]byte) *MockObjectStore {
	if objects == nil {
		objects = make(map[string][]byte)
	}
	return &MockObjectStore{Objects: objects}
}

// Get implements the interface method for testing.
func (m *MockObjectStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	m.Gets++
	m.mu.Unlock()
	if m.GetFn != nil {
		return m.GetFn(ctx, bucket, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.Objects[bucket+"/"+key]
	if !ok {
		return nil, domain.ErrNotFound("object s3://%s/%s not found", bucket, key)
	}
	return body, nil
}

// Put implements the interface method for testing.
func (m *MockObjectStore) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	if m.PutFn != nil {
		return m.PutFn(ctx, bucket, key, body, contentType)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
	}
	m.Objects[bucket+"/"+key] = data
	m.Puts = append(m.Puts, PutCall{Bucket: bucket, Key: key, Body: data, ContentType: contentType})
	return nil
}

// Exists implements the interface method for testing.
func (m *MockObjectStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if m.ExistsFn != nil {
		return m.ExistsFn(ctx, bucket, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Objects[bucket+"/"+key]
	return ok, nil
}

// List implements the interface method for testing.
func (m *MockObjectStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, bucket, prefix)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.Objects {
		b, key, _ := strings.Cut(k, "/")
		if b == bucket && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete implements the interface method for testing.
func (m *MockObjectStore) Delete(ctx context.Context, bucket string, keys []string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, bucket, keys)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.Objects, bucket+"/"+k)
		m.Deleted = append(m.Deleted, bucket+"/"+k)
	}
	return nil
}

// PutCount returns the number of recorded Put calls.
func (m *MockObjectStore) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Puts)
}

// === Catalog Mock ===

// MockCatalog implements domain.Catalog for testing.
type MockCatalog struct {
	TableExistsFn func(ctx context.Context, database, table string) (bool, error)
	CreateTableFn func(ctx context.Context, database string, def *domain.TableDefinition) error
	Created       []*domain.TableDefinition
}

// TableExists implements the interface method for testing.
func (m *MockCatalog) TableExists(ctx context.Context, database, table string) (bool, error) {
	if m.TableExistsFn != nil {
		return m.TableExistsFn(ctx, database, table)
	}
	panic("unexpected call to MockCatalog.TableExists")
}

// CreateTable implements the interface method for testing.
func (m *MockCatalog) CreateTable(ctx context.Context, database string, def *domain.TableDefinition) error {
	if m.CreateTableFn != nil {
		if err := m.CreateTableFn(ctx, database, def); err != nil {
			return err
		}
	}
	m.Created = append(m.Created, def)
	return nil
}

// === Query Engine Mock ===

// MockQueryEngine implements domain.QueryEngine for testing.
type MockQueryEngine struct {
	RunFn   func(ctx context.Context, database, query string) (string, error)
	Queries []string
}

// Run implements the interface method for testing.
func (m *MockQueryEngine) Run(ctx context.Context, database, query string) (string, error) {
	m.Queries = append(m.Queries, query)
	if m.RunFn != nil {
		return m.RunFn(ctx, database, query)
	}
	return "exec-1", nil
}

// === Queue Mock ===

// MockQueue implements domain.Queue for testing.
type MockQueue struct {
	SendFn func(ctx context.Context, body string) (string, error)

	mu   sync.Mutex
	Sent []string
}

// Send implements the interface method for testing.
func (m *MockQueue) Send(ctx context.Context, body string) (string, error) {
	if m.SendFn != nil {
		if _, err := m.SendFn(ctx, body); err != nil {
			return "", err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, body)
	return fmt.Sprintf("msg-%d", len(m.Sent)), nil
}

// Messages returns a copy of the sent bodies.
func (m *MockQueue) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Sent...)
}

// === Rule Engine Mock ===

// MockRuleEngine implements domain.RuleEngine for testing.
type MockRuleEngine struct {
	ValidateFn func(ctx context.Context, suite string, data domain.StagedData) (*domain.ValidationResult, error)
	Suites     []string
}

// Validate implements the interface method for testing.
func (m *MockRuleEngine) Validate(ctx context.Context, suite string, data domain.StagedData) (*domain.ValidationResult, error) {
	m.Suites = append(m.Suites, suite)
	if m.ValidateFn != nil {
		return m.ValidateFn(ctx, suite, data)
	}
	return &domain.ValidationResult{Suite: suite, Success: true}, nil
}

// === Audit Repository Mock ===

// MockAuditRepo implements domain.AuditRepository for testing.
type MockAuditRepo struct {
	InsertFn func(ctx context.Context, e *domain.AuditEntry) error
	ListFn   func(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error)
	Entries  []*domain.AuditEntry // collected entries for assertions
}

// Insert implements the interface method for testing.
func (m *MockAuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	if m.InsertFn != nil {
		if err := m.InsertFn(ctx, e); err != nil {
			return err
		}
	}
	m.Entries = append(m.Entries, e)
	return nil
}

// List implements the interface method for testing.
func (m *MockAuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	panic("unexpected call to MockAuditRepo.List")
}

// LastEntry returns the last collected audit entry, or nil if none.
func (m *MockAuditRepo) LastEntry() *domain.AuditEntry {
	if len(m.Entries) == 0 {
		return nil
	}
	return m.Entries[len(m.Entries)-1]
}
