package quality

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"lake-ingest/internal/ddl"
	"lake-ingest/internal/domain"
)

type expectationFunc func(ctx context.Context, kwargs map[string]any, data domain.StagedData, r *domain.ExpectationResult) error

var expectations = map[string]expectationFunc{
	"expect_column_to_exist":                     expectColumnToExist,
	"expect_column_values_to_not_be_null":        expectNotNull,
	"expect_column_values_to_be_null":            expectNull,
	"expect_column_values_to_be_between":         expectBetween,
	"expect_column_values_to_be_in_set":          expectInSet(false),
	"expect_column_values_to_not_be_in_set":      expectInSet(true),
	"expect_column_values_to_be_unique":          expectUnique,
	"expect_column_values_to_match_regex":        expectMatchRegex,
	"expect_column_value_lengths_to_be_between":  expectLengthsBetween,
	"expect_table_row_count_to_be_between":       expectRowCountBetween,
	"expect_table_row_count_to_equal":            expectRowCountEqual,
	"expect_table_column_count_to_equal":         expectColumnCountEqual,
	"expect_table_columns_to_match_ordered_list": expectColumnsOrdered,
}

// SupportedTypes lists the expectation types the engine evaluates.
func SupportedTypes() []string {
	out := make([]string, 0, len(expectations))
	for k := range expectations {
		out = append(out, k)
	}
	return out
}

func hasColumn(data domain.StagedData, name string) bool {
	for _, c := range data.Columns() {
		if c.Name == name {
			return true
		}
	}
	return false
}

// columnArg returns the quoted "column" kwarg after checking it exists in data.
func columnArg(kwargs map[string]any, data domain.StagedData) (string, error) {
	col, err := stringArg(kwargs, "column")
	if err != nil {
		return "", err
	}
	if !hasColumn(data, col) {
		return "", fmt.Errorf("column %q not found", col)
	}
	return ddl.QuoteIdentifier(col), nil
}

// countValues counts the rows in scope and the unexpected rows among them.
// When includeNulls is false, null values are out of scope.
func countValues(ctx context.Context, data domain.StagedData, col string, includeNulls bool, unexpected string, args ...any) (int64, int64, error) {
	scope := "TRUE"
	if !includeNulls {
		scope = col + " IS NOT NULL"
	}
	q := fmt.Sprintf("SELECT COUNT(*) FILTER (WHERE %s), COUNT(*) FILTER (WHERE %s AND (%s)) FROM %s",
		scope, scope, unexpected, data.Relation())

	rows, err := data.QueryContext(ctx, q, args...)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var total, bad int64
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, 0, err
		}
		return 0, 0, fmt.Errorf("count query returned no rows")
	}
	if err := rows.Scan(&total, &bad); err != nil {
		return 0, 0, err
	}
	return total, bad, rows.Err()
}

// applyMostly sets Success given counts and the optional "mostly" fraction.
func applyMostly(kwargs map[string]any, r *domain.ExpectationResult, total, bad int64) error {
	mostly, ok, err := floatArg(kwargs, "mostly")
	if err != nil {
		return err
	}
	if !ok {
		mostly = 1
	}
	if mostly < 0 || mostly > 1 {
		return fmt.Errorf("mostly must be between 0 and 1, got %v", mostly)
	}
	r.ElementCount = total
	r.UnexpectedCnt = bad
	if total == 0 {
		r.Success = true
		return nil
	}
	r.Success = float64(total-bad)/float64(total) >= mostly
	return nil
}

func columnCheck(includeNulls bool, predicate func(kwargs map[string]any, col string) (string, []any, error)) expectationFunc {
	return func(ctx context.Context, kwargs map[string]any, data domain.StagedData, r *domain.ExpectationResult) error {
		col, err := columnArg(kwargs, data)
		if err != nil {
			return err
		}
		unexpected, args, err := predicate(kwargs, col)
		if err != nil {
			return err
		}
		total, bad, err := countValues(ctx, data, col, includeNulls, unexpected, args...)
		if err != nil {
			return err
		}
		return applyMostly(kwargs, r, total, bad)
	}
}

func expectColumnToExist(_ context.Context, kwargs map[string]any, data domain.StagedData, r *domain.ExpectationResult) error {
	col, err := stringArg(kwargs, "column")
	if err != nil {
		return err
	}
	r.Success = hasColumn(data, col)
	if !r.Success {
		r.Observed = "missing"
	}
	return nil
}

var expectNotNull = columnCheck(true, func(_ map[string]any, col string) (string, []any, error) {
	return col + " IS NULL", nil, nil
})

var expectNull = columnCheck(true, func(_ map[string]any, col string) (string, []any, error) {
	return col + " IS NOT NULL", nil, nil
})

// rangePredicate builds the out-of-range condition for expr from min_value/max_value.
func rangePredicate(kwargs map[string]any, expr string) (string, []any, error) {
	lo, hasLo, err := floatArg(kwargs, "min_value")
	if err != nil {
		return "", nil, err
	}
	hi, hasHi, err := floatArg(kwargs, "max_value")
	if err != nil {
		return "", nil, err
	}
	if !hasLo && !hasHi {
		return "", nil, fmt.Errorf("at least one of min_value or max_value is required")
	}

	var conds []string
	var args []any
	if hasLo {
		op := "<"
		if boolArg(kwargs, "strict_min") {
			op = "<="
		}
		conds = append(conds, fmt.Sprintf("%s %s ?", expr, op))
		args = append(args, lo)
	}
	if hasHi {
		op := ">"
		if boolArg(kwargs, "strict_max") {
			op = ">="
		}
		conds = append(conds, fmt.Sprintf("%s %s ?", expr, op))
		args = append(args, hi)
	}
	return strings.Join(conds, " OR "), args, nil
}

var expectBetween = columnCheck(false, rangePredicate)

var expectLengthsBetween = columnCheck(false, func(kwargs map[string]any, col string) (string, []any, error) {
	return rangePredicate(kwargs, "length(CAST("+col+" AS VARCHAR))")
})

// expectInSet compares numerically when every set member is a number and as text otherwise.
func expectInSet(negate bool) expectationFunc {
	return columnCheck(false, func(kwargs map[string]any, col string) (string, []any, error) {
		set, err := listArg(kwargs, "value_set")
		if err != nil {
			return "", nil, err
		}
		if len(set) == 0 {
			if negate {
				return "FALSE", nil, nil
			}
			return "TRUE", nil, nil
		}

		numeric := true
		for _, v := range set {
			if _, ok := v.(float64); !ok {
				numeric = false
				break
			}
		}

		expr := "CAST(" + col + " AS VARCHAR)"
		if numeric {
			expr = "CAST(" + col + " AS DOUBLE)"
		}
		placeholders := make([]string, len(set))
		args := make([]any, len(set))
		for i, v := range set {
			placeholders[i] = "?"
			if numeric {
				args[i] = v
			} else {
				args[i] = textValue(v)
			}
		}
		op := "NOT IN"
		if negate {
			op = "IN"
		}
		return fmt.Sprintf("%s %s (%s)", expr, op, strings.Join(placeholders, ", ")), args, nil
	})
}

func textValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func expectUnique(ctx context.Context, kwargs map[string]any, data domain.StagedData, r *domain.ExpectationResult) error {
	col, err := columnArg(kwargs, data)
	if err != nil {
		return err
	}
	dupes := fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE %s IS NOT NULL GROUP BY %s HAVING COUNT(*) > 1)",
		col, col, data.Relation(), col, col)
	total, bad, err := countValues(ctx, data, col, false, dupes)
	if err != nil {
		return err
	}
	return applyMostly(kwargs, r, total, bad)
}

var expectMatchRegex = columnCheck(false, func(kwargs map[string]any, col string) (string, []any, error) {
	re, err := stringArg(kwargs, "regex")
	if err != nil {
		return "", nil, err
	}
	return "NOT regexp_matches(CAST(" + col + " AS VARCHAR), ?)", []any{re}, nil
})

func observeCount(kwargs map[string]any, r *domain.ExpectationResult, observed int64) error {
	r.Observed = strconv.FormatInt(observed, 10)
	if v, ok, err := floatArg(kwargs, "value"); err != nil {
		return err
	} else if ok {
		r.Success = float64(observed) == v
		return nil
	}
	lo, hasLo, err := floatArg(kwargs, "min_value")
	if err != nil {
		return err
	}
	hi, hasHi, err := floatArg(kwargs, "max_value")
	if err != nil {
		return err
	}
	if !hasLo && !hasHi {
		return fmt.Errorf("value, min_value or max_value is required")
	}
	r.Success = (!hasLo || float64(observed) >= lo) && (!hasHi || float64(observed) <= hi)
	return nil
}

func expectRowCountBetween(_ context.Context, kwargs map[string]any, data domain.StagedData, r *domain.ExpectationResult) error {
	if _, ok := kwargs["value"]; ok {
		return fmt.Errorf("use min_value/max_value")
	}
	return observeCount(kwargs, r, data.RowCount())
}

func expectRowCountEqual(_ context.Context, kwargs map[string]any, data domain.StagedData, r *domain.ExpectationResult) error {
	if _, ok := kwargs["value"]; !ok {
		return fmt.Errorf("kwarg \"value\" is required")
	}
	return observeCount(kwargs, r, data.RowCount())
}

func expectColumnCountEqual(_ context.Context, kwargs map[string]any, data domain.StagedData, r *domain.ExpectationResult) error {
	if _, ok := kwargs["value"]; !ok {
		return fmt.Errorf("kwarg \"value\" is required")
	}
	return observeCount(kwargs, r, int64(len(data.Columns())))
}

func expectColumnsOrdered(_ context.Context, kwargs map[string]any, data domain.StagedData, r *domain.ExpectationResult) error {
	want, err := listArg(kwargs, "column_list")
	if err != nil {
		return err
	}
	got := make([]string, 0, len(data.Columns()))
	for _, c := range data.Columns() {
		got = append(got, c.Name)
	}
	r.Observed = strings.Join(got, ",")
	if len(want) != len(got) {
		return nil
	}
	for i, w := range want {
		if textValue(w) != got[i] {
			return nil
		}
	}
	r.Success = true
	r.Observed = ""
	return nil
}
