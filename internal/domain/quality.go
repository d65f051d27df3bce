package domain

import "fmt"

// Expectation is one rule of a suite, in expectation-suite JSON shape.
type Expectation struct {
	Type   string         `json:"expectation_type"`
	Kwargs map[string]any `json:"kwargs"`
}

// Column returns the "column" kwarg, or "" for table-level expectations.
func (e Expectation) Column() string {
	s, _ := e.Kwargs["column"].(string)
	return s
}

// Suite is a named set of expectations for one table.
type Suite struct {
	Name         string        `json:"expectation_suite_name"`
	Expectations []Expectation `json:"expectations"`
}

// ExpectationResult is the evaluation of a single expectation.
type ExpectationResult struct {
	Type          string `json:"expectation_type"`
	Column        string `json:"column,omitempty"`
	Success       bool   `json:"success"`
	ElementCount  int64  `json:"element_count"`
	UnexpectedCnt int64  `json:"unexpected_count"`
	Observed      string `json:"observed_value,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Describe returns a short human-readable description.
func (r ExpectationResult) Describe() string {
	target := r.Type
	if r.Column != "" {
		target = fmt.Sprintf("%s(%s)", r.Type, r.Column)
	}
	switch {
	case r.Error != "":
		return fmt.Sprintf("%s: %s", target, r.Error)
	case r.Observed != "":
		return fmt.Sprintf("%s: observed %s", target, r.Observed)
	default:
		return fmt.Sprintf("%s: %d of %d unexpected", target, r.UnexpectedCnt, r.ElementCount)
	}
}

// ValidationResult is the outcome of running a suite.
type ValidationResult struct {
	Suite   string              `json:"suite"`
	Success bool                `json:"success"`
	Results []ExpectationResult `json:"results"`
}

// Failed lists descriptions of the expectations that did not pass.
func (v *ValidationResult) Failed() []string {
	var out []string
	for _, r := range v.Results {
		if !r.Success {
			out = append(out, r.Describe())
		}
	}
	return out
}
