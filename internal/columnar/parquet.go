// Package columnar converts staged data into Parquet files.
package columnar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"lake-ingest/internal/ddl"
	"lake-ingest/internal/domain"
)

// DefaultBatchSize is the number of rows per Arrow record batch.
const DefaultBatchSize = 64 * 1024

// ParquetWriter streams staged rows into a Parquet file.
type ParquetWriter struct {
	codec     compress.Compression
	batchSize int
	allocator memory.Allocator
}

// Compile-time interface check.
var _ domain.ColumnarWriter = (*ParquetWriter)(nil)

// NewParquetWriter creates a writer using the named codec: snappy (default), gzip, zstd, lz4 or none.
func NewParquetWriter(codec string) (*ParquetWriter, error) {
	var c compress.Compression
	switch strings.ToLower(codec) {
	case "", "snappy":
		c = compress.Codecs.Snappy
	case "gzip":
		c = compress.Codecs.Gzip
	case "zstd":
		c = compress.Codecs.Zstd
	case "lz4":
		c = compress.Codecs.Lz4Raw
	case "none", "uncompressed":
		c = compress.Codecs.Uncompressed
	default:
		return nil, fmt.Errorf("unsupported parquet compression %q", codec)
	}
	return &ParquetWriter{codec: c, batchSize: DefaultBatchSize, allocator: memory.NewGoAllocator()}, nil
}

// ContentType implements domain.ColumnarWriter.
func (w *ParquetWriter) ContentType() string { return "application/vnd.apache.parquet" }

// Extension implements domain.ColumnarWriter.
func (w *ParquetWriter) Extension() string { return "parquet" }

// Schema maps the staged columns to an Arrow schema.
func Schema(cols []domain.Column) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = arrow.Field{Name: c.Name, Type: ArrowType(c.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// ArrowType maps a DuckDB type name to the Arrow type written to Parquet.
// DECIMAL is written as DOUBLE; nested and exotic types are written as text.
func ArrowType(duckType string) arrow.DataType {
	base := strings.ToUpper(strings.TrimSpace(duckType))
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	switch base {
	case "BIGINT", "INT8", "LONG", "UINTEGER":
		return arrow.PrimitiveTypes.Int64
	case "INTEGER", "INT", "INT4", "SMALLINT", "INT2", "TINYINT", "INT1", "USMALLINT", "UTINYINT":
		return arrow.PrimitiveTypes.Int32
	case "DOUBLE", "FLOAT8", "FLOAT", "FLOAT4", "REAL", "DECIMAL", "NUMERIC":
		return arrow.PrimitiveTypes.Float64
	case "BOOLEAN", "BOOL":
		return arrow.FixedWidthTypes.Boolean
	case "DATE":
		return arrow.FixedWidthTypes.Date32
	case "TIMESTAMP", "DATETIME", "TIMESTAMP_S", "TIMESTAMP_MS", "TIMESTAMP_NS":
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	case "TIMESTAMP WITH TIME ZONE", "TIMESTAMPTZ":
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	default:
		return arrow.BinaryTypes.String
	}
}

// Write streams every row of data into w as Parquet and returns the row count.
func (w *ParquetWriter) Write(ctx context.Context, data domain.StagedData, out io.Writer) (int64, error) {
	schema := Schema(data.Columns())

	props := parquet.NewWriterProperties(
		parquet.WithCompression(w.codec),
		parquet.WithDictionaryDefault(true),
	)
	fw, err := pqarrow.NewFileWriter(schema, out, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return 0, fmt.Errorf("create parquet writer: %w", err)
	}

	query, err := ddl.SelectAll(data.Relation())
	if err != nil {
		_ = fw.Close()
		return 0, err
	}
	rows, err := data.QueryContext(ctx, query)
	if err != nil {
		_ = fw.Close()
		return 0, fmt.Errorf("read staged rows: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	b := array.NewRecordBuilder(w.allocator, schema)
	defer b.Release()

	values := make([]any, len(schema.Fields()))
	ptrs := make([]any, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var total int64
	pending := 0
	flush := func() error {
		if pending == 0 {
			return nil
		}
		rec := b.NewRecord()
		defer rec.Release()
		pending = 0
		return fw.Write(rec)
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			_ = fw.Close()
			return total, fmt.Errorf("scan staged row: %w", err)
		}
		for i, v := range values {
			if err := appendValue(b.Field(i), v); err != nil {
				_ = fw.Close()
				return total, fmt.Errorf("column %q: %w", schema.Field(i).Name, err)
			}
		}
		total++
		pending++
		if pending >= w.batchSize {
			if err := flush(); err != nil {
				_ = fw.Close()
				return total, fmt.Errorf("write record batch: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		_ = fw.Close()
		return total, fmt.Errorf("iterate staged rows: %w", err)
	}
	if err := flush(); err != nil {
		_ = fw.Close()
		return total, fmt.Errorf("write record batch: %w", err)
	}
	if err := fw.Close(); err != nil {
		return total, fmt.Errorf("close parquet writer: %w", err)
	}
	return total, nil
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch fb := b.(type) {
	case *array.Int64Builder:
		n, ok := toInt64(v)
		if !ok {
			return fmt.Errorf("cannot convert %T to int64", v)
		}
		fb.Append(n)
	case *array.Int32Builder:
		n, ok := toInt64(v)
		if !ok {
			return fmt.Errorf("cannot convert %T to int32", v)
		}
		fb.Append(int32(n))
	case *array.Float64Builder:
		f, ok := toFloat64(v)
		if !ok {
			return fmt.Errorf("cannot convert %T to float64", v)
		}
		fb.Append(f)
	case *array.BooleanBuilder:
		bv, ok := v.(bool)
		if !ok {
			return fmt.Errorf("cannot convert %T to bool", v)
		}
		fb.Append(bv)
	case *array.Date32Builder:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("cannot convert %T to date", v)
		}
		fb.Append(arrow.Date32FromTime(t))
	case *array.TimestampBuilder:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("cannot convert %T to timestamp", v)
		}
		fb.Append(arrow.Timestamp(t.UnixMicro()))
	case *array.StringBuilder:
		fb.Append(toText(v))
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case int:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case interface{ Float64() float64 }:
		return n.Float64(), true
	default:
		if i, ok := toInt64(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}

func toText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return s.String()
	case map[string]any, []any:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", s)
	}
}
