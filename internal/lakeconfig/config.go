// Package lakeconfig loads, validates and indexes the declarative lake configuration.
package lakeconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"lake-ingest/internal/ddl"
	"lake-ingest/internal/domain"
)

// DuplicatePolicy decides what happens when a (database, table) pair is declared twice.
type DuplicatePolicy string

const (
	// RejectDuplicates fails the load.
	RejectDuplicates DuplicatePolicy = "reject"
	// FirstWins keeps the first declaration in document order.
	FirstWins DuplicatePolicy = "first"
)

// ParsePolicy maps a config string to a DuplicatePolicy.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RejectDuplicates:
		return RejectDuplicates, nil
	case FirstWins:
		return FirstWins, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// DocFormat is the encoding of a config document.
type DocFormat string

const (
	DocJSON DocFormat = "json"
	DocYAML DocFormat = "yaml"
)

// DocFormatFor infers the document encoding from an object key or file name.
func DocFormatFor(name string) DocFormat {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return DocYAML
	default:
		return DocJSON
	}
}

type tableKey struct {
	database string
	table    string
}

// Config is a validated, immutable lake configuration with an index by (database, table).
type Config struct {
	root   domain.LakeConfig
	order  []tableKey
	tables map[tableKey]domain.TableConfig
}

// rawConfig distinguishes a missing "databases" key from an empty list.
type rawConfig struct {
	Databases *[]domain.DatabaseConfig `json:"databases" yaml:"databases"`
}

// Parse decodes and validates a config document. location is used in error messages only.
func Parse(body []byte, format DocFormat, policy DuplicatePolicy, location string) (*Config, error) {
	var raw rawConfig
	var err error
	switch format {
	case DocYAML:
		err = yaml.Unmarshal(body, &raw)
	default:
		dec := json.NewDecoder(bytes.NewReader(body))
		err = dec.Decode(&raw)
	}
	if err != nil {
		return nil, &domain.ConfigMalformedError{Location: location, Message: "invalid document", Err: err}
	}
	if raw.Databases == nil {
		return nil, &domain.ConfigMalformedError{Location: location, Message: `missing "databases" key`}
	}
	return build(domain.LakeConfig{Databases: *raw.Databases}, policy, location)
}

// ParseFile reads a local config document, inferring its format from the extension.
func ParseFile(filePath string, policy DuplicatePolicy) (*Config, error) {
	body, err := os.ReadFile(filePath) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, &domain.ConfigUnavailableError{Location: filePath, Err: err}
	}
	return Parse(body, DocFormatFor(filePath), policy, filePath)
}

func build(root domain.LakeConfig, policy DuplicatePolicy, location string) (*Config, error) {
	malformed := func(format string, args ...any) error {
		return &domain.ConfigMalformedError{Location: location, Message: fmt.Sprintf(format, args...)}
	}

	cfg := &Config{tables: make(map[tableKey]domain.TableConfig)}
	seenDB := make(map[string]bool)

	for di := range root.Databases {
		db := &root.Databases[di]
		if err := validateName(db.Name); err != nil {
			return nil, malformed("database #%d: %v", di+1, err)
		}
		if seenDB[db.Name] && policy != FirstWins {
			return nil, malformed("duplicate database %q", db.Name)
		}
		seenDB[db.Name] = true

		for ti := range db.Tables {
			tbl := &db.Tables[ti]
			tbl.Database = db.Name
			tbl.Append = db.Append
			if tbl.Delimiter == "" {
				tbl.Delimiter = ","
			}
			if err := validateName(tbl.Name); err != nil {
				return nil, malformed("database %q table #%d: %v", db.Name, ti+1, err)
			}
			if err := validateTable(tbl); err != nil {
				return nil, malformed("table %s.%s: %v", db.Name, tbl.Name, err)
			}

			k := tableKey{database: db.Name, table: tbl.Name}
			if _, dup := cfg.tables[k]; dup {
				if policy == FirstWins {
					continue
				}
				return nil, malformed("duplicate table %s.%s", db.Name, tbl.Name)
			}
			cfg.tables[k] = *tbl
			cfg.order = append(cfg.order, k)
		}
	}
	cfg.root = root
	return cfg, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("name %q must not contain '/'", name)
	}
	return nil
}

func validateTable(tbl *domain.TableConfig) error {
	keys := make(map[string]bool, len(tbl.Partitions))
	for _, p := range tbl.Partitions {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("partition key is empty")
		}
		if strings.ContainsAny(p, "/=") {
			return fmt.Errorf("partition key %q must not contain '/' or '='", p)
		}
		if keys[p] {
			return fmt.Errorf("duplicate partition key %q", p)
		}
		keys[p] = true
	}
	cols := make(map[string]bool, len(tbl.Schema))
	for _, c := range tbl.Schema {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("schema column name is empty")
		}
		if cols[c.Name] {
			return fmt.Errorf("duplicate schema column %q", c.Name)
		}
		cols[c.Name] = true
		if keys[c.Name] {
			return fmt.Errorf("column %q is both a schema column and a partition key", c.Name)
		}
		if err := ddl.ValidateHiveType(c.Type); err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
	}
	return nil
}

// Lookup returns the table configuration for (database, table).
func (c *Config) Lookup(database, table string) (domain.TableConfig, bool) {
	t, ok := c.tables[tableKey{database: database, table: table}]
	return t, ok
}

// Tables returns every indexed table in document order.
func (c *Config) Tables() []domain.TableConfig {
	out := make([]domain.TableConfig, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.tables[k])
	}
	return out
}

// Databases returns the names of databases declaring at least one table, in document order.
func (c *Config) Databases() []string {
	var out []string
	seen := make(map[string]bool)
	for _, k := range c.order {
		if !seen[k.database] {
			seen[k.database] = true
			out = append(out, k.database)
		}
	}
	return out
}

// Root returns the configuration as loaded, with inherited fields filled in.
func (c *Config) Root() domain.LakeConfig {
	return c.root
}
