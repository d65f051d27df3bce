package catalogsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-ingest/internal/domain"
	"lake-ingest/internal/lakeconfig"
	"lake-ingest/internal/testutil"
)

const lakeJSON = `{
  "databases": [
    {"name": "sales", "append": false, "tables": [
      {"name": "orders", "partitions": ["region"], "schema": [
        {"name": "id", "type": "bigint"},
        {"name": "amount", "type": "double"}
      ]}
    ]}
  ]
}`

const trustedKey = "sales/orders/region=us/year=2024/month=06/day=01/part-1.parquet"

type fixture struct {
	svc     *Service
	catalog *testutil.MockCatalog
	query   *testutil.MockQueryEngine
	audit   *testutil.MockAuditRepo
}

func newFixture(t *testing.T, exists bool) *fixture {
	t.Helper()
	cfg, err := lakeconfig.Parse([]byte(lakeJSON), lakeconfig.DocJSON, lakeconfig.RejectDuplicates, "test")
	require.NoError(t, err)

	f := &fixture{
		catalog: &testutil.MockCatalog{
			TableExistsFn: func(context.Context, string, string) (bool, error) { return exists, nil },
		},
		query: &testutil.MockQueryEngine{},
		audit: &testutil.MockAuditRepo{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(lakeconfig.Static{Config: cfg}, f.catalog, f.query, f.audit, "trusted_db", "trusted", logger)
	return f
}

func TestHandle_CreatesMissingTable(t *testing.T) {
	f := newFixture(t, false)

	outcome, err := f.svc.Handle(context.Background(), domain.NewStorageEvent("trusted", trustedKey))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, outcome)

	require.Len(t, f.catalog.Created, 1)
	def := f.catalog.Created[0]
	assert.Equal(t, "sales_orders", def.Name)
	assert.Equal(t, "s3://trusted/sales/orders/", def.Location)
	assert.Equal(t, []string{"region"}, def.PartitionKeys)
	assert.Equal(t, []domain.Column{{Name: "id", Type: "bigint"}, {Name: "amount", Type: "double"}}, def.Columns)

	assert.Equal(t, []string{"MSCK REPAIR TABLE `sales_orders`"}, f.query.Queries)

	entry := f.audit.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, domain.StageCatalog, entry.Stage)
	assert.Equal(t, "Success", entry.Outcome)
}

func TestHandle_ExistingTableOnlyRepairs(t *testing.T) {
	f := newFixture(t, true)

	outcome, err := f.svc.Handle(context.Background(), domain.NewStorageEvent("trusted", trustedKey))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, outcome)
	assert.Empty(t, f.catalog.Created)
	assert.Len(t, f.query.Queries, 1)
}

func TestHandle_Unmatched(t *testing.T) {
	for _, key := range []string{"sales/orders/part-1.parquet", "sales/refunds/region=us/part-1.parquet"} {
		f := newFixture(t, false)
		outcome, err := f.svc.Handle(context.Background(), domain.NewStorageEvent("trusted", key))
		require.NoError(t, err, key)
		assert.Equal(t, domain.OutcomeFailure, outcome, key)
		assert.Empty(t, f.query.Queries)
		require.NotNil(t, f.audit.LastEntry().ErrorMessage)
	}
}

func TestHandle_ConcurrentCreateCountsAsPresent(t *testing.T) {
	f := newFixture(t, false)
	f.catalog.CreateTableFn = func(context.Context, string, *domain.TableDefinition) error {
		return domain.ErrConflict("table sales_orders already exists")
	}

	outcome, err := f.svc.Handle(context.Background(), domain.NewStorageEvent("trusted", trustedKey))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, outcome)
	assert.Len(t, f.query.Queries, 1)
}

func TestHandle_ExternalErrorsPropagate(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		want  string
	}{
		{"exists check fails", func(f *fixture) {
			f.catalog.TableExistsFn = func(context.Context, string, string) (bool, error) {
				return false, errors.New("access denied")
			}
		}, "access denied"},
		{"create fails", func(f *fixture) {
			f.catalog.CreateTableFn = func(context.Context, string, *domain.TableDefinition) error {
				return errors.New("throttled")
			}
		}, "throttled"},
		{"repair fails", func(f *fixture) {
			f.query.RunFn = func(context.Context, string, string) (string, error) {
				return "", errors.New("workgroup missing")
			}
		}, "workgroup missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			tt.setup(f)
			outcome, err := f.svc.Handle(context.Background(), domain.NewStorageEvent("trusted", trustedKey))
			assert.ErrorContains(t, err, tt.want)
			assert.Equal(t, domain.OutcomeFailure, outcome)
			assert.Equal(t, "Failure", f.audit.LastEntry().Outcome)
		})
	}
}

func TestEnsureTableFor(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.svc.EnsureTableFor(context.Background(), "sales", "orders"))
	require.Len(t, f.catalog.Created, 1)
	assert.Equal(t, "s3://trusted/sales/orders/", f.catalog.Created[0].Location)

	err := f.svc.EnsureTableFor(context.Background(), "sales", "refunds")
	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestEnsureTable_InvalidName(t *testing.T) {
	f := newFixture(t, false)
	err := f.svc.EnsureTable(context.Background(), &domain.Routing{Database: "bad-db", Table: "t"}, "s3://x/")
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Empty(t, f.query.Queries)
}
