package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-ingest/internal/domain"
)

func newTestStager(t *testing.T) *Stager {
	t.Helper()
	return NewStager(t.TempDir(), "", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStage_CSV(t *testing.T) {
	s := newTestStager(t)
	body := []byte("id;name;amount\n1;alpha;10.5\n2;beta;20\n3;gamma;\n")

	data, err := s.Stage(context.Background(), body, domain.FormatCSV, ";")
	require.NoError(t, err)
	defer data.Close() //nolint:errcheck

	assert.Equal(t, int64(3), data.RowCount())
	require.Len(t, data.Columns(), 3)
	assert.Equal(t, "id", data.Columns()[0].Name)
	assert.Equal(t, "BIGINT", data.Columns()[0].Type)
	assert.Equal(t, "name", data.Columns()[1].Name)
	assert.Equal(t, "VARCHAR", data.Columns()[1].Type)
	assert.Equal(t, `"staged"`, data.Relation())

	var nulls int64
	err = func() error {
		rows, err := data.QueryContext(context.Background(), `SELECT COUNT(*) FROM "staged" WHERE amount IS NULL`)
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck
		rows.Next()
		return rows.Scan(&nulls)
	}()
	require.NoError(t, err)
	assert.Equal(t, int64(1), nulls)
}

func TestStage_JSON(t *testing.T) {
	s := newTestStager(t)
	tests := []struct {
		name string
		body string
	}{
		{"array", `[{"id": 1, "ok": true}, {"id": 2, "ok": false}]`},
		{"newline delimited", "{\"id\": 1, \"ok\": true}\n{\"id\": 2, \"ok\": false}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := s.Stage(context.Background(), []byte(tt.body), domain.FormatJSON, "")
			require.NoError(t, err)
			defer data.Close() //nolint:errcheck

			assert.Equal(t, int64(2), data.RowCount())
			require.Len(t, data.Columns(), 2)
			assert.Equal(t, "ok", data.Columns()[1].Name)
			assert.Equal(t, "BOOLEAN", data.Columns()[1].Type)
		})
	}
}

func TestStage_Empty(t *testing.T) {
	s := newTestStager(t)
	tests := []struct {
		name   string
		body   string
		format domain.Format
	}{
		{"empty csv", "", domain.FormatCSV},
		{"whitespace csv", " \n\t", domain.FormatCSV},
		{"empty json array", "[ \n ]", domain.FormatJSON},
		{"empty parquet", "", domain.FormatParquet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := s.Stage(context.Background(), []byte(tt.body), tt.format, ",")
			require.NoError(t, err)
			assert.Equal(t, int64(0), data.RowCount())
			assert.Empty(t, data.Columns())
			assert.NoError(t, data.Close())
		})
	}
}

func TestStage_HeaderOnlyCSV(t *testing.T) {
	s := newTestStager(t)
	data, err := s.Stage(context.Background(), []byte("id,name\n"), domain.FormatCSV, ",")
	require.NoError(t, err)
	defer data.Close() //nolint:errcheck
	assert.Equal(t, int64(0), data.RowCount())
}

func TestStage_Unsupported(t *testing.T) {
	s := newTestStager(t)
	_, err := s.Stage(context.Background(), []byte("x"), domain.Format("xlsx"), "")
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestStage_InvalidParquet(t *testing.T) {
	s := newTestStager(t)
	_, err := s.Stage(context.Background(), []byte("this is not parquet"), domain.FormatParquet, "")
	require.Error(t, err)
}

func TestStage_MemoryLimit(t *testing.T) {
	s := NewStager(t.TempDir(), "256MB", slog.New(slog.NewTextHandler(io.Discard, nil)))
	data, err := s.Stage(context.Background(), []byte("a\n1\n"), domain.FormatCSV, ",")
	require.NoError(t, err)
	defer data.Close() //nolint:errcheck
	assert.Equal(t, int64(1), data.RowCount())

	bad := NewStager(t.TempDir(), "lots", slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err = bad.Stage(context.Background(), []byte("a\n1\n"), domain.FormatCSV, ",")
	assert.ErrorContains(t, err, "invalid memory limit")
}

func TestIsEmptyContent(t *testing.T) {
	assert.True(t, isEmptyContent(nil, domain.FormatCSV))
	assert.True(t, isEmptyContent([]byte("[]"), domain.FormatJSON))
	assert.False(t, isEmptyContent([]byte("[]"), domain.FormatCSV))
	assert.False(t, isEmptyContent([]byte(`[{"a":1}]`), domain.FormatJSON))
}
