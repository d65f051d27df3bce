package domain

import (
	"fmt"
	"strings"
)

// Format is the declared file format segment of an incoming key.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// Supported reports whether the staging engine can parse the format.
func (f Format) Supported() bool {
	switch f {
	case FormatCSV, FormatJSON, FormatParquet:
		return true
	}
	return false
}

// Column is a named, typed schema column used for catalog creation.
type Column struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// TableConfig describes how files for one table are handled.
type TableConfig struct {
	Database   string   `json:"-" yaml:"-"`
	Name       string   `json:"name" yaml:"name"`
	Delimiter  string   `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	Append     bool     `json:"-" yaml:"-"` // inherited from the database
	Partitions []string `json:"partitions,omitempty" yaml:"partitions,omitempty"`
	Schema     []Column `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// DatabaseConfig groups the tables of one database.
type DatabaseConfig struct {
	Name   string        `json:"name" yaml:"name"`
	Append bool          `json:"append" yaml:"append"`
	Tables []TableConfig `json:"tables" yaml:"tables"`
}

// LakeConfig is the root of the declarative lake configuration.
type LakeConfig struct {
	Databases []DatabaseConfig `json:"databases" yaml:"databases"`
}

// Routing is the resolved handling for one incoming key.
type Routing struct {
	Database      string
	Table         string
	Format        Format
	Delimiter     string
	Append        bool
	PartitionKeys []string
	Schema        []Column
}

// CatalogTableName returns the flattened catalog name, {database}_{table}.
func (r *Routing) CatalogTableName() string {
	return r.Database + "_" + r.Table
}

// SuiteName returns the rule suite identifier, {database}.{table}.
func (r *Routing) SuiteName() string {
	return r.Database + "." + r.Table
}

// TablePrefix returns the storage prefix shared by every partition of the table.
func (r *Routing) TablePrefix() string {
	return r.Database + "/" + r.Table + "/"
}

// PartitionPath is a storage prefix ending in "/", without a file name.
type PartitionPath string

// ObjectKey joins the partition prefix and a file name.
func (p PartitionPath) ObjectKey(fileName string) string {
	return string(p) + fileName
}

// Location returns the s3-style URI for a key in the given bucket.
func Location(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, strings.TrimPrefix(key, "/"))
}
