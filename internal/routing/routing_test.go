package routing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-ingest/internal/domain"
	"lake-ingest/internal/lakeconfig"
)

const testConfig = `{
  "databases": [
    {"name": "sales", "append": true, "tables": [
      {"name": "orders", "delimiter": ";", "partitions": ["region"],
       "schema": [{"name": "id", "type": "bigint"}]},
      {"name": "returns", "partitions": ["region", "channel"]},
      {"name": "customers"}
    ]}
  ]
}`

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	cfg, err := lakeconfig.Parse([]byte(testConfig), lakeconfig.DocJSON, lakeconfig.RejectDuplicates, "test")
	require.NoError(t, err)
	return NewClassifier(cfg)
}

func requireUnmatched(t *testing.T, err error, reason domain.UnmatchedReason) {
	t.Helper()
	var ue *domain.UnmatchedError
	require.True(t, errors.As(err, &ue), "expected UnmatchedError, got %v", err)
	assert.Equal(t, reason, ue.Reason)
}

func TestResolve_Unmatched(t *testing.T) {
	c := newClassifier(t)
	tests := []struct {
		name   string
		key    string
		reason domain.UnmatchedReason
	}{
		{"empty", "", domain.InvalidKeyShape},
		{"one segment", "orders.csv", domain.InvalidKeyShape},
		{"three segments", "sales/orders/orders.csv", domain.InvalidKeyShape},
		{"format mismatch", "sales/orders/json/file.csv", domain.FormatMismatch},
		{"no dot", "sales/orders/csv/file", domain.FormatMismatch},
		{"trailing dot", "sales/orders/csv/file.", domain.FormatMismatch},
		{"extension case differs", "sales/orders/csv/file.CSV", domain.FormatMismatch},
		{"nested file name", "sales/orders/csv/2024/file.csv", domain.FormatMismatch},
		{"unknown table", "sales/refunds/csv/file.csv", domain.NoConfigEntry},
		{"unknown database", "hr/orders/csv/file.csv", domain.NoConfigEntry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := c.Resolve(tt.key)
			assert.Nil(t, r)
			requireUnmatched(t, err, tt.reason)
		})
	}
}

func TestResolve_Match(t *testing.T) {
	c := newClassifier(t)

	r, err := c.Resolve("sales/orders/csv/orders.us.20240101120000.csv")
	require.NoError(t, err)
	assert.Equal(t, &domain.Routing{
		Database:      "sales",
		Table:         "orders",
		Format:        domain.FormatCSV,
		Delimiter:     ";",
		Append:        true,
		PartitionKeys: []string{"region"},
		Schema:        []domain.Column{{Name: "id", Type: "bigint"}},
	}, r)

	// Extra segments after the file name are ignored.
	r, err = c.Resolve("sales/customers/parquet/c.parquet/extra")
	require.NoError(t, err)
	assert.Equal(t, domain.FormatParquet, r.Format)
	assert.Equal(t, ",", r.Delimiter)
	assert.Empty(t, r.PartitionKeys)

	// A file name without a dot is its own extension.
	r, err = c.Resolve("sales/customers/csv/csv")
	require.NoError(t, err)
	assert.Equal(t, domain.FormatCSV, r.Format)
	assert.Equal(t, "customers", r.Table)
}

func TestResolve_CopiesSlices(t *testing.T) {
	c := newClassifier(t)
	r1, err := c.Resolve("sales/orders/csv/a.csv")
	require.NoError(t, err)
	r1.PartitionKeys[0] = "mutated"

	r2, err := c.Resolve("sales/orders/csv/a.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"region"}, r2.PartitionKeys)
}

func TestPlan(t *testing.T) {
	c := newClassifier(t)
	day := time.Date(2024, 6, 1, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		key  string
		want domain.PartitionPath
	}{
		{
			name: "single partition",
			key:  "sales/orders/csv/orders.us.20240101120000.csv",
			want: "sales/orders/region=us/year=2024/month=06/day=01/",
		},
		{
			name: "two partitions",
			key:  "sales/returns/json/returns.eu.web.20240101120000.json",
			want: "sales/returns/region=eu/channel=web/year=2024/month=06/day=01/",
		},
		{
			name: "no partition keys",
			key:  "sales/customers/csv/customers.x.y.20240101.csv",
			want: "sales/customers/year=2024/month=06/day=01/",
		},
		{
			name: "partition keys but too few dot parts",
			key:  "sales/orders/csv/orders.20240101.csv",
			want: "sales/orders/year=2024/month=06/day=01/",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := c.Resolve(tt.key)
			require.NoError(t, err)
			got, err := Plan(r, tt.key, day)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan_ArityMismatch(t *testing.T) {
	c := newClassifier(t)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		key      string
		expected int
		got      int
	}{
		{"sales/orders/csv/orders.us.web.20240101.csv", 1, 2},
		{"sales/returns/json/returns.eu.20240101.json", 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			r, err := c.Resolve(tt.key)
			require.NoError(t, err)

			p, err := Plan(r, tt.key, day)
			assert.Empty(t, p)
			var ae *domain.PartitionArityError
			require.True(t, errors.As(err, &ae), "expected PartitionArityError, got %v", err)
			assert.Equal(t, tt.expected, ae.Expected)
			assert.Equal(t, tt.got, ae.Got)
		})
	}
}

func TestPlan_Deterministic(t *testing.T) {
	c := newClassifier(t)
	key := "sales/orders/csv/orders.us.20240101120000.csv"
	r, err := c.Resolve(key)
	require.NoError(t, err)

	day := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
	first, err := Plan(r, key, day)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Plan(r, key, day.Add(-time.Duration(i)*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, domain.PartitionPath("sales/orders/region=us/year=2024/month=12/day=31/"), first)
}

func TestPlan_UsesClockLocation(t *testing.T) {
	r := &domain.Routing{Database: "d", Table: "t"}
	loc := time.FixedZone("UTC+10", 10*60*60)
	utc := time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC)

	got, err := Plan(r, "d/t/csv/x.csv", utc.In(loc))
	require.NoError(t, err)
	assert.Equal(t, domain.PartitionPath("d/t/year=2024/month=02/day=01/"), got)
}

func TestUTCClock(t *testing.T) {
	assert.Equal(t, time.UTC, UTCClock().Location())
}

func TestResolveTable(t *testing.T) {
	c := newClassifier(t)

	r, err := c.ResolveTable("sales/orders/region=us/year=2024/month=06/day=01/part-1.parquet")
	require.NoError(t, err)
	assert.Equal(t, "sales", r.Database)
	assert.Equal(t, "orders", r.Table)
	assert.Empty(t, r.Format)
	assert.Equal(t, []string{"region"}, r.PartitionKeys)
	assert.Equal(t, []domain.Column{{Name: "id", Type: "bigint"}}, r.Schema)

	_, err = c.ResolveTable("sales/orders/part-1.parquet")
	requireUnmatched(t, err, domain.InvalidKeyShape)

	_, err = c.ResolveTable("sales/refunds/x/part-1.parquet")
	requireUnmatched(t, err, domain.NoConfigEntry)
}
