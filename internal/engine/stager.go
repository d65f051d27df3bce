// Package engine stages raw landed files in an in-memory DuckDB database so
// they can be validated with SQL and streamed out in columnar form.
package engine

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver

	"lake-ingest/internal/ddl"
	"lake-ingest/internal/domain"
)

// stagedTable is the name of the table each staged file is loaded into.
const stagedTable = "staged"

// Stager loads file bodies into a fresh in-memory DuckDB per call.
type Stager struct {
	tempDir   string
	maxMemory string
	logger    *slog.Logger
}

// Compile-time interface check.
var _ domain.Stager = (*Stager)(nil)

// NewStager creates a Stager. tempDir may be empty to use the OS default;
// maxMemory is an optional DuckDB memory_limit such as "512MB".
func NewStager(tempDir, maxMemory string, logger *slog.Logger) *Stager {
	return &Stager{tempDir: tempDir, maxMemory: maxMemory, logger: logger}
}

// Stage parses body according to format. Empty content yields StagedData with
// zero rows. The caller must Close the result.
func (s *Stager) Stage(ctx context.Context, body []byte, format domain.Format, delimiter string) (domain.StagedData, error) {
	if !format.Supported() {
		return nil, domain.ErrValidation("unsupported file format %q", format)
	}
	if isEmptyContent(body, format) {
		return emptyData{}, nil
	}

	path, err := s.writeTemp(body, format)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path) //nolint:errcheck

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)

	staged, err := s.load(ctx, db, path, format, delimiter)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Debug("file staged", "format", format, "rows", staged.rows, "columns", len(staged.columns))
	return staged, nil
}

func (s *Stager) writeTemp(body []byte, format domain.Format) (string, error) {
	f, err := os.CreateTemp(s.tempDir, "stage-*."+string(format))
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close staging file: %w", err)
	}
	return f.Name(), nil
}

func (s *Stager) load(ctx context.Context, db *sql.DB, path string, format domain.Format, delimiter string) (*Staged, error) {
	if s.maxMemory != "" {
		stmt, err := ddl.SetMemoryLimit(s.maxMemory)
		if err != nil {
			return nil, err
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}

	source, err := ddl.ReadFunction(string(format), path, delimiter)
	if err != nil {
		return nil, domain.ErrValidation("%s", err.Error())
	}
	stmt, err := ddl.CreateTableAs(stagedTable, source)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return nil, classifyDuckDBError(format, err)
	}

	columns, err := describeColumns(ctx, db)
	if err != nil {
		return nil, err
	}

	countSQL, err := ddl.CountRows(stagedTable)
	if err != nil {
		return nil, err
	}
	var rows int64
	if err := db.QueryRowContext(ctx, countSQL).Scan(&rows); err != nil {
		return nil, fmt.Errorf("count staged rows: %w", err)
	}

	return &Staged{db: db, columns: columns, rows: rows}, nil
}

func describeColumns(ctx context.Context, db *sql.DB) ([]domain.Column, error) {
	q, err := ddl.DescribeColumnsSQL(stagedTable)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("describe staged table: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var cols []domain.Column
	for rows.Next() {
		var c domain.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// isEmptyContent reports bodies that hold no records without asking DuckDB,
// which refuses to infer a schema from them.
func isEmptyContent(body []byte, format domain.Format) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return true
	}
	if format == domain.FormatJSON && trimmed[0] == '[' && trimmed[len(trimmed)-1] == ']' {
		return len(bytes.TrimSpace(trimmed[1:len(trimmed)-1])) == 0
	}
	return false
}

// classifyDuckDBError maps load failures into domain errors. Unparseable input
// is a validation failure of the file, not of the pipeline.
func classifyDuckDBError(format domain.Format, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Invalid Input Error"),
		strings.Contains(msg, "Conversion Error"),
		strings.Contains(msg, "Parser Error"),
		strings.Contains(msg, "Could not read file"),
		strings.Contains(msg, "No magic bytes"),
		strings.Contains(msg, "Malformed JSON"):
		return domain.ErrValidation("parse %s: %s", format, msg)
	default:
		return fmt.Errorf("stage %s: %w", format, err)
	}
}

// Staged is a file loaded into its own DuckDB database.
type Staged struct {
	db      *sql.DB
	columns []domain.Column
	rows    int64
}

// Relation implements domain.StagedData.
func (s *Staged) Relation() string { return ddl.QuoteIdentifier(stagedTable) }

// Columns implements domain.StagedData.
func (s *Staged) Columns() []domain.Column { return s.columns }

// RowCount implements domain.StagedData.
func (s *Staged) RowCount() int64 { return s.rows }

// QueryContext implements domain.StagedData.
func (s *Staged) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// Close releases the DuckDB database.
func (s *Staged) Close() error { return s.db.Close() }

// emptyData stands in for content with no records.
type emptyData struct{}

func (emptyData) Relation() string         { return ddl.QuoteIdentifier(stagedTable) }
func (emptyData) Columns() []domain.Column { return nil }
func (emptyData) RowCount() int64          { return 0 }
func (emptyData) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, fmt.Errorf("no staged content")
}
func (emptyData) Close() error { return nil }
