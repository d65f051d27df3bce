// Package quality evaluates expectation suites against staged data.
package quality

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"lake-ingest/internal/domain"
)

// SuiteKey returns the object key of a suite: {prefix}/{database}/{table}.json for "database.table".
func SuiteKey(prefix, suite string) string {
	return path.Join(prefix, strings.ReplaceAll(suite, ".", "/")) + ".json"
}

// rawExpectation accepts both "expectation_type" and the shorter "type" key.
type rawExpectation struct {
	ExpectationType string         `json:"expectation_type"`
	Type            string         `json:"type"`
	Kwargs          map[string]any `json:"kwargs"`
}

type rawSuite struct {
	Name         string           `json:"expectation_suite_name"`
	Expectations []rawExpectation `json:"expectations"`
}

// ParseSuite decodes an expectation suite document.
func ParseSuite(body []byte) (*domain.Suite, error) {
	var raw rawSuite
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, domain.ErrValidation("invalid expectation suite: %v", err)
	}
	suite := &domain.Suite{Name: raw.Name}
	for i, e := range raw.Expectations {
		typ := e.ExpectationType
		if typ == "" {
			typ = e.Type
		}
		if typ == "" {
			return nil, domain.ErrValidation("expectation #%d has no type", i+1)
		}
		kwargs := e.Kwargs
		if kwargs == nil {
			kwargs = map[string]any{}
		}
		suite.Expectations = append(suite.Expectations, domain.Expectation{Type: typ, Kwargs: kwargs})
	}
	return suite, nil
}

func floatArg(kwargs map[string]any, name string) (float64, bool, error) {
	v, ok := kwargs[name]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case json.Number:
		f, err := n.Float64()
		return f, err == nil, err
	default:
		return 0, false, fmt.Errorf("kwarg %q must be a number, got %T", name, v)
	}
}

func boolArg(kwargs map[string]any, name string) bool {
	b, _ := kwargs[name].(bool)
	return b
}

func stringArg(kwargs map[string]any, name string) (string, error) {
	s, ok := kwargs[name].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("kwarg %q is required", name)
	}
	return s, nil
}

func listArg(kwargs map[string]any, name string) ([]any, error) {
	l, ok := kwargs[name].([]any)
	if !ok {
		return nil, fmt.Errorf("kwarg %q must be a list", name)
	}
	return l, nil
}
