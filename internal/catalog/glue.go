// Package catalog registers lake tables in the AWS Glue Data Catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"

	"lake-ingest/internal/ddl"
	"lake-ingest/internal/domain"
)

const (
	parquetInputFormat  = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetInputFormat"
	parquetOutputFormat = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetOutputFormat"
	parquetSerDe        = "org.apache.hadoop.hive.ql.io.parquet.serde.ParquetHiveSerDe"
)

// GlueAPI is the subset of the Glue client used by GlueCatalog.
type GlueAPI interface {
	GetTable(ctx context.Context, in *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
	CreateTable(ctx context.Context, in *glue.CreateTableInput, optFns ...func(*glue.Options)) (*glue.CreateTableOutput, error)
}

// GlueCatalog implements domain.Catalog on top of Glue.
type GlueCatalog struct {
	client GlueAPI
}

var _ domain.Catalog = (*GlueCatalog)(nil)

// NewGlueCatalog wraps a Glue client.
func NewGlueCatalog(client GlueAPI) *GlueCatalog {
	return &GlueCatalog{client: client}
}

// NewFromConfig builds a GlueCatalog from a loaded AWS config.
func NewFromConfig(cfg aws.Config) *GlueCatalog {
	return NewGlueCatalog(glue.NewFromConfig(cfg))
}

// TableExists reports whether database.table is registered.
// EntityNotFoundException is a negative result, not an error.
func (c *GlueCatalog) TableExists(ctx context.Context, database, table string) (bool, error) {
	_, err := c.client.GetTable(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(database),
		Name:         aws.String(table),
	})
	if err != nil {
		var nf *types.EntityNotFoundException
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("get table %s.%s: %w", database, table, err)
	}
	return true, nil
}

// CreateTable registers an external Parquet table. A table created
// concurrently by another caller is reported as a ConflictError.
func (c *GlueCatalog) CreateTable(ctx context.Context, database string, def *domain.TableDefinition) error {
	input, err := TableInput(def)
	if err != nil {
		return err
	}
	_, err = c.client.CreateTable(ctx, &glue.CreateTableInput{
		DatabaseName: aws.String(database),
		TableInput:   input,
	})
	if err != nil {
		var exists *types.AlreadyExistsException
		if errors.As(err, &exists) {
			return domain.ErrConflict("table %s.%s already exists", database, def.Name)
		}
		return fmt.Errorf("create table %s.%s: %w", database, def.Name, err)
	}
	return nil
}

// TableInput builds the Glue table input for def. Partition keys are typed string.
func TableInput(def *domain.TableDefinition) (*types.TableInput, error) {
	if err := ddl.ValidateIdentifier(def.Name); err != nil {
		return nil, domain.ErrValidation("table %q: %v", def.Name, err)
	}

	cols := make([]types.Column, 0, len(def.Columns))
	for _, col := range def.Columns {
		if err := ddl.ValidateHiveType(col.Type); err != nil {
			return nil, domain.ErrValidation("column %q: %v", col.Name, err)
		}
		cols = append(cols, types.Column{Name: aws.String(col.Name), Type: aws.String(col.Type)})
	}
	parts := make([]types.Column, 0, len(def.PartitionKeys))
	for _, k := range def.PartitionKeys {
		parts = append(parts, types.Column{Name: aws.String(k), Type: aws.String("string")})
	}

	return &types.TableInput{
		Name:        aws.String(def.Name),
		Description: aws.String(def.Description),
		TableType:   aws.String("EXTERNAL_TABLE"),
		Parameters: map[string]string{
			"classification": "parquet",
			"EXTERNAL":       "TRUE",
		},
		PartitionKeys: parts,
		StorageDescriptor: &types.StorageDescriptor{
			Columns:      cols,
			Location:     aws.String(def.Location),
			InputFormat:  aws.String(parquetInputFormat),
			OutputFormat: aws.String(parquetOutputFormat),
			SerdeInfo: &types.SerDeInfo{
				SerializationLibrary: aws.String(parquetSerDe),
				Parameters:           map[string]string{"serialization.format": "1"},
			},
		},
	}, nil
}
