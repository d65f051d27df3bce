// Package ddl builds the DuckDB staging statements and the catalog maintenance statements.
package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

// memoryLimitRe matches DuckDB size strings such as 512MB or 2GiB.
var memoryLimitRe = regexp.MustCompile(`(?i)^\d+(?:\.\d+)?\s*(?:B|KB|MB|GB|TB|KIB|MIB|GIB|TIB)$`)

// ReadFunction returns a DuckDB table function call that parses the file at path.
//
//	csv     → read_csv('path', delim=',', header=true)
//	json    → read_json_auto('path', format='auto')
//	parquet → read_parquet('path')
func ReadFunction(fileFormat, path, delimiter string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("source path is required")
	}
	switch strings.ToLower(fileFormat) {
	case "csv":
		if delimiter == "" {
			delimiter = ","
		}
		return fmt.Sprintf("read_csv(%s, delim=%s, header=true)", QuoteLiteral(path), QuoteLiteral(delimiter)), nil
	case "json":
		return fmt.Sprintf("read_json_auto(%s, format='auto')", QuoteLiteral(path)), nil
	case "parquet":
		return fmt.Sprintf("read_parquet(%s)", QuoteLiteral(path)), nil
	default:
		return "", fmt.Errorf("unsupported file format: %q", fileFormat)
	}
}

// CreateTableAs returns: CREATE TABLE "<table>" AS SELECT * FROM <source>.
func CreateTableAs(table, source string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if source == "" {
		return "", fmt.Errorf("source is required")
	}
	return fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", QuoteIdentifier(table), source), nil
}

// CountRows returns: SELECT COUNT(*) FROM "<table>".
func CountRows(table string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", QuoteIdentifier(table)), nil
}

// SelectAll returns: SELECT * FROM <relation>. relation must already be quoted.
func SelectAll(relation string) (string, error) {
	if strings.TrimSpace(relation) == "" {
		return "", fmt.Errorf("relation is required")
	}
	return "SELECT * FROM " + relation, nil
}

// DescribeColumnsSQL returns a query listing column names and types of a table in ordinal order.
func DescribeColumnsSQL(table string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	return fmt.Sprintf(
		"SELECT column_name, data_type FROM information_schema.columns WHERE table_name = %s ORDER BY ordinal_position",
		QuoteLiteral(table),
	), nil
}

// SetMemoryLimit returns: SET memory_limit = '<limit>'.
func SetMemoryLimit(limit string) (string, error) {
	limit = strings.TrimSpace(limit)
	if !memoryLimitRe.MatchString(limit) {
		return "", fmt.Errorf("invalid memory limit %q", limit)
	}
	return fmt.Sprintf("SET memory_limit = %s", QuoteLiteral(limit)), nil
}

// RepairTable returns the Hive partition discovery statement: MSCK REPAIR TABLE `<table>`.
func RepairTable(table string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	return fmt.Sprintf("MSCK REPAIR TABLE %s", QuoteHiveIdentifier(table)), nil
}
