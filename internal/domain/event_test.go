package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageEvent_Object(t *testing.T) {
	body := []byte(`{"Records":[{"s3":{"bucket":{"name":"raw"},"object":{"key":"sales/orders/csv/my+file%3D1.csv"}}}]}`)

	ev, err := ParseStorageEvent(body)
	require.NoError(t, err)

	ref, err := ev.Object()
	require.NoError(t, err)
	assert.Equal(t, "raw", ref.Bucket)
	assert.Equal(t, "sales/orders/csv/my file=1.csv", ref.Key)
}

func TestStorageEvent_Object_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no records", `{"Records":[]}`},
		{"missing key", `{"Records":[{"s3":{"bucket":{"name":"raw"},"object":{}}}]}`},
		{"bad escape", `{"Records":[{"s3":{"bucket":{"name":"raw"},"object":{"key":"a/%zz"}}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseStorageEvent([]byte(tt.body))
			require.NoError(t, err)
			_, err = ev.Object()
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
		})
	}
}

func TestParseStorageEvent_InvalidJSON(t *testing.T) {
	_, err := ParseStorageEvent([]byte("{"))
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestNewStorageEvent_RoundTrip(t *testing.T) {
	ev := NewStorageEvent("raw", "iot/ups/json/reading 1.json")
	ref, err := ev.Object()
	require.NoError(t, err)
	assert.Equal(t, ObjectRef{Bucket: "raw", Key: "iot/ups/json/reading 1.json"}, ref)
}

func TestOutcome_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(map[string]Outcome{"a": OutcomeSuccess, "b": OutcomeFailure, "c": OutcomeNoOp})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"Success","b":"Failure","c":null}`, string(out))
	assert.Equal(t, "NoOp", OutcomeNoOp.String())
}

func TestRouting_Names(t *testing.T) {
	r := &Routing{Database: "sales", Table: "orders"}
	assert.Equal(t, "sales_orders", r.CatalogTableName())
	assert.Equal(t, "sales.orders", r.SuiteName())
	assert.Equal(t, "sales/orders/", r.TablePrefix())
	assert.Equal(t, "s3://lake/sales/orders/", Location("lake", r.TablePrefix()))
}

func TestValidationResult_Failed(t *testing.T) {
	res := &ValidationResult{Results: []ExpectationResult{
		{Type: "expect_column_to_exist", Column: "id", Success: true},
		{Type: "expect_column_values_to_not_be_null", Column: "id", ElementCount: 10, UnexpectedCnt: 2},
		{Type: "expect_unknown", Error: "unsupported expectation type"},
	}}
	assert.Equal(t, []string{
		"expect_column_values_to_not_be_null(id): 2 of 10 unexpected",
		"expect_unknown: unsupported expectation type",
	}, res.Failed())
}
