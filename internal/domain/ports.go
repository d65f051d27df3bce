package domain

import (
	"context"
	"database/sql"
	"io"
)

// ObjectStore reads and writes objects in a bucket-addressed store.
// Implemented by storage.S3Store, storage.GCSStore, storage.AzureStore and storage.LocalStore.
type ObjectStore interface {
	// Get returns the object body. A missing object is a *NotFoundError.
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	// Exists treats "not found" as a normal false result.
	Exists(ctx context.Context, bucket, key string) (bool, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Delete(ctx context.Context, bucket string, keys []string) error
}

// TableDefinition describes an external Parquet table to register.
type TableDefinition struct {
	Name          string
	Description   string
	Location      string
	Columns       []Column
	PartitionKeys []string
}

// Catalog registers tables so they become queryable.
// Implemented by catalog.GlueCatalog.
type Catalog interface {
	TableExists(ctx context.Context, database, table string) (bool, error)
	CreateTable(ctx context.Context, database string, def *TableDefinition) error
}

// QueryEngine submits statements to the lake query engine.
// Implemented by queryengine.Athena.
type QueryEngine interface {
	// Run submits a statement and returns the execution ID without waiting for completion.
	Run(ctx context.Context, database, query string) (string, error)
}

// Queue publishes messages.
// Implemented by queue.SQSQueue.
type Queue interface {
	Send(ctx context.Context, body string) (string, error)
}

// StagedData is a parsed file held by the staging engine for validation and writing.
type StagedData interface {
	// Relation is the quoted relation name usable in SQL against QueryContext.
	Relation() string
	Columns() []Column
	RowCount() int64
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// Stager parses raw file content into StagedData.
// Implemented by engine.Stager.
type Stager interface {
	Stage(ctx context.Context, body []byte, format Format, delimiter string) (StagedData, error)
}

// RuleEngine evaluates a named rule suite against staged data.
// Implemented by quality.Engine.
type RuleEngine interface {
	Validate(ctx context.Context, suite string, data StagedData) (*ValidationResult, error)
}

// ColumnarWriter serializes staged data in a columnar format.
// Implemented by columnar.ParquetWriter.
type ColumnarWriter interface {
	Write(ctx context.Context, data StagedData, w io.Writer) (int64, error)
	ContentType() string
	Extension() string
}
