// Package routing resolves incoming storage keys against the lake config and
// derives the partition path each file is written under.
package routing

import (
	"strings"

	"lake-ingest/internal/domain"
)

// TableLookup finds the configuration of a (database, table) pair.
// Implemented by *lakeconfig.Config.
type TableLookup interface {
	Lookup(database, table string) (domain.TableConfig, bool)
}

// minKeySegments is database/table/format/filename.
const minKeySegments = 4

// Classifier maps storage keys to table routings.
type Classifier struct {
	tables TableLookup
}

// NewClassifier creates a Classifier over the given config.
func NewClassifier(tables TableLookup) *Classifier {
	return &Classifier{tables: tables}
}

// Resolve classifies a key of the form {database}/{table}/{format}/{filename}.
// It returns a *domain.UnmatchedError when the key cannot be routed.
func (c *Classifier) Resolve(key string) (*domain.Routing, error) {
	segments := strings.Split(key, "/")
	if len(segments) < minKeySegments {
		return nil, domain.ErrUnmatched(key, domain.InvalidKeyShape,
			"expected at least %d path segments, got %d", minKeySegments, len(segments))
	}

	database, table, declared, fileName := segments[0], segments[1], segments[2], segments[3]
	ext := extension(fileName)
	if declared != ext {
		return nil, domain.ErrUnmatched(key, domain.FormatMismatch,
			"declared format %q does not match file extension %q", declared, ext)
	}

	tbl, ok := c.tables.Lookup(database, table)
	if !ok {
		return nil, domain.ErrUnmatched(key, domain.NoConfigEntry,
			"no table %s.%s in config", database, table)
	}

	return newRouting(tbl, domain.Format(declared)), nil
}

// ResolveTable classifies a key by its first two segments only. Output keys
// carry partition segments where raw keys carry the format, so no format check
// applies; the returned routing has an empty Format.
func (c *Classifier) ResolveTable(key string) (*domain.Routing, error) {
	segments := strings.Split(key, "/")
	if len(segments) < minKeySegments {
		return nil, domain.ErrUnmatched(key, domain.InvalidKeyShape,
			"expected at least %d path segments, got %d", minKeySegments, len(segments))
	}
	tbl, ok := c.tables.Lookup(segments[0], segments[1])
	if !ok {
		return nil, domain.ErrUnmatched(key, domain.NoConfigEntry,
			"no table %s.%s in config", segments[0], segments[1])
	}
	return newRouting(tbl, ""), nil
}

func newRouting(tbl domain.TableConfig, format domain.Format) *domain.Routing {
	return &domain.Routing{
		Database:      tbl.Database,
		Table:         tbl.Name,
		Format:        format,
		Delimiter:     tbl.Delimiter,
		Append:        tbl.Append,
		PartitionKeys: append([]string(nil), tbl.Partitions...),
		Schema:        append([]domain.Column(nil), tbl.Schema...),
	}
}

// extension returns the text after the last "." of name. A name without a dot
// is its own extension.
func extension(name string) string {
	return name[strings.LastIndex(name, ".")+1:]
}
