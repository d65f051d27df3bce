package routing

import (
	"fmt"
	"path"
	"strings"
	"time"

	"lake-ingest/internal/domain"
)

// Plan derives the partition prefix for a routed key.
//
// Partition values are the dot-separated middle parts of the file name:
// orders.us.20240101120000.csv carries the values [us] (the first part is the
// logical name, the last two are the file timestamp and the extension). Values are only taken
// when the table declares partition keys and the name has more than three parts.
// The ingestion date from now is always appended as year=/month=/day=.
func Plan(r *domain.Routing, key string, now time.Time) (domain.PartitionPath, error) {
	var b strings.Builder
	b.WriteString(r.TablePrefix())

	parts := strings.Split(path.Base(key), ".")
	if len(r.PartitionKeys) > 0 && len(parts) > 3 {
		values := parts[1 : len(parts)-2]
		if len(values) != len(r.PartitionKeys) {
			return "", &domain.PartitionArityError{Key: key, Expected: len(r.PartitionKeys), Got: len(values)}
		}
		for i, k := range r.PartitionKeys {
			fmt.Fprintf(&b, "%s=%s/", k, values[i])
		}
	}

	fmt.Fprintf(&b, "year=%04d/month=%02d/day=%02d/", now.Year(), int(now.Month()), now.Day())
	return domain.PartitionPath(b.String()), nil
}

// Clock supplies the ingestion time.
type Clock func() time.Time

// UTCClock returns the current time in UTC.
func UTCClock() time.Time { return time.Now().UTC() }
