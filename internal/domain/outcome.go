package domain

import "encoding/json"

// Outcome is the terminal result of handling one event.
type Outcome string

const (
	OutcomeSuccess Outcome = "Success"
	OutcomeFailure Outcome = "Failure"
	// OutcomeNoOp means there was nothing to do. It is reported as null.
	OutcomeNoOp Outcome = ""
)

// MarshalJSON encodes OutcomeNoOp as null.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o == OutcomeNoOp {
		return []byte("null"), nil
	}
	return json.Marshal(string(o))
}

// String returns a printable form, "NoOp" for the empty outcome.
func (o Outcome) String() string {
	if o == OutcomeNoOp {
		return "NoOp"
	}
	return string(o)
}
