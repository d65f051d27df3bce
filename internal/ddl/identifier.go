package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

// Limits shared by DuckDB staging names and Glue/Athena catalog names.
const (
	maxIdentifierLen = 128
	maxColumnTypeLen = 64
)

var (
	identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

	// hiveTypeRe matches the primitive Hive types a catalog column may declare.
	hiveTypeRe = regexp.MustCompile(`(?i)^(?:string|tinyint|smallint|int|integer|bigint|float|double|boolean|date|timestamp|binary|(?:decimal|numeric)(?:\(\s*\d+\s*(?:,\s*\d+\s*)?\))?|(?:varchar|char)\(\s*\d+\s*\))$`)
)

// ValidateIdentifier accepts names usable unquoted in both DuckDB and Hive DDL:
// 1 to 128 characters of [a-zA-Z0-9_], not starting with a digit.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("name is required")
	case len(name) > maxIdentifierLen:
		return fmt.Errorf("name must be at most %d characters", maxIdentifierLen)
	case !identifierRe.MatchString(name):
		return fmt.Errorf("name must match [a-zA-Z_][a-zA-Z0-9_]*")
	}
	return nil
}

// ValidateHiveType checks that typeName is a primitive Hive type usable in a catalog table.
func ValidateHiveType(typeName string) error {
	switch {
	case typeName == "":
		return fmt.Errorf("column type is required")
	case len(typeName) > maxColumnTypeLen:
		return fmt.Errorf("column type must be at most %d characters", maxColumnTypeLen)
	case !hiveTypeRe.MatchString(typeName):
		return fmt.Errorf("column type %q is not a supported Hive type", typeName)
	}
	return nil
}

// QuoteIdentifier double-quotes a DuckDB identifier.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes a DuckDB string literal.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// QuoteHiveIdentifier backtick-quotes a name for Hive/Athena DDL.
func QuoteHiveIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
