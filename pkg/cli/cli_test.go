package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-ingest/internal/domain"
)

const lakeJSON = `{
  "databases": [
    {"name": "sales", "append": false, "tables": [
      {"name": "orders", "delimiter": ";", "partitions": ["region"],
       "schema": [{"name": "id", "type": "bigint"}]}
    ]},
    {"name": "iot", "append": true, "tables": [{"name": "ups"}]}
  ]
}`

// runCmd executes a fresh root command and returns its stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lakeingest version dev")

	out, err = runCmd(t, "version", "-o", "json")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "dev", v["version"])
}

func TestRootCmd_RejectsUnknownOutput(t *testing.T) {
	_, err := runCmd(t, "version", "-o", "yaml")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestConfigValidateCmd(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "lake.json"), lakeJSON)

	out, err := runCmd(t, "config", "validate", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "DATABASE")
	assert.Contains(t, lines[1], "orders")
	assert.Contains(t, lines[1], "region")
	assert.Contains(t, lines[2], "ups")

	out, err = runCmd(t, "config", "validate", path, "-o", "json")
	require.NoError(t, err)
	var res struct {
		Valid  bool           `json:"valid"`
		Tables []tableSummary `json:"tables"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Valid)
	require.Len(t, res.Tables, 2)
	assert.Equal(t, ";", res.Tables[0].Delimiter)
	assert.True(t, res.Tables[1].Append)
}

func TestConfigValidateCmd_Invalid(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "lake.json"), `{"tables": []}`)
	_, err := runCmd(t, "config", "validate", path)
	var malformed *domain.ConfigMalformedError
	assert.True(t, errors.As(err, &malformed), "got %v", err)

	_, err = runCmd(t, "config", "validate", filepath.Join(t.TempDir(), "missing.json"))
	var unavailable *domain.ConfigUnavailableError
	assert.True(t, errors.As(err, &unavailable), "got %v", err)
}

func TestRouteCmd(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "lake.json"), lakeJSON)

	out, err := runCmd(t, "route", "sales/orders/csv/orders.us.20240101120000.csv",
		"--config", path, "--date", "2024-06-01", "-o", "json")
	require.NoError(t, err)
	var res routeResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "sales_orders", res.CatalogTable)
	assert.Equal(t, "sales.orders", res.Suite)
	assert.Equal(t, "csv", res.Format)
	assert.Equal(t, "sales/orders/region=us/year=2024/month=06/day=01/", res.Partition)

	out, err = runCmd(t, "route", "iot/ups/json/reading.json", "--config", path, "--date", "2024-01-31")
	require.NoError(t, err)
	assert.Contains(t, out, "mode:")
	assert.Contains(t, out, "append")
	assert.Contains(t, out, "iot/ups/year=2024/month=01/day=31/")
}

func TestRouteCmd_Errors(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "lake.json"), lakeJSON)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing config", []string{"route", "a/b/csv/c.csv"}, "--config is required"},
		{"bad date", []string{"route", "sales/orders/csv/o.csv", "--config", path, "--date", "01/06/2024"}, "YYYY-MM-DD"},
		{"unmatched", []string{"route", "sales/orders/o.csv", "--config", path}, "path segments"},
		{"arity", []string{"route", "sales/orders/csv/o.us.eu.2024.csv", "--config", path}, "expected 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, tt.args...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

// setLocalEnv points the pipeline at a local storage root holding the lake config.
func setLocalEnv(t *testing.T) (root, auditPath string) {
	t.Helper()
	root = t.TempDir()
	auditPath = filepath.Join(t.TempDir(), "audit.sqlite")
	for k, v := range map[string]string{
		"ENV":                  "development",
		"STORAGE_BACKEND":      "local",
		"LOCAL_STORAGE_ROOT":   root,
		"CONFIG_BUCKET":        "config",
		"CONFIG_PATH":          "lake.json",
		"RULES_BUCKET":         "config",
		"RULES_PATH":           "expectations",
		"TARGET_BUCKET":        "trusted",
		"TRUSTED_DATABASE":     "",
		"AUDIT_DB_PATH":        auditPath,
		"DUPLICATE_POLICY":     "",
		"PARQUET_COMPRESSION":  "",
		"S3_KEY_ID":            "",
		"S3_SECRET":            "",
		"LOG_LEVEL":            "error",
		"AWS_RESOURCES_BUCKET": "",
	} {
		t.Setenv(k, v)
	}
	writeFile(t, filepath.Join(root, "config", "lake.json"), lakeJSON)
	writeFile(t, filepath.Join(root, "config", "expectations", "iot", "ups.json"),
		`{"expectations": [{"expectation_type": "expect_column_to_exist", "kwargs": {"column": "name"}}]}`)
	return root, auditPath
}

func TestIngestCmd_LocalBackend(t *testing.T) {
	root, _ := setLocalEnv(t)
	writeFile(t, filepath.Join(root, "raw", "iot", "ups", "json", "reading.json"),
		`[{"name": "UPS Server", "battery_level": 80.5}]`)

	out, err := runCmd(t, "ingest", "--bucket", "raw", "--key", "iot/ups/json/reading.json", "-o", "json")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Success", res["outcome"])
	assert.NotEmpty(t, res["event_id"])

	matches, err := filepath.Glob(filepath.Join(root, "trusted", "iot", "ups", "year=*", "month=*", "day=*", "part-*.parquet"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	out, err = runCmd(t, "history", "-o", "json")
	require.NoError(t, err)
	var hist struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &hist))
	require.Len(t, hist.Data, 1)
	assert.Equal(t, "INGEST", hist.Data[0]["stage"])
	assert.Equal(t, res["event_id"], hist.Data[0]["event_id"])
}

func TestIngestCmd_EventFromStdin(t *testing.T) {
	root, _ := setLocalEnv(t)
	writeFile(t, filepath.Join(root, "raw", "iot", "ups", "json", "empty.json"), "[]")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(`{"Records":[{"s3":{"bucket":{"name":"raw"},"object":{"key":"iot/ups/json/empty.json"}}}]}`))
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "none.env"), "ingest", "--event", "-"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "NoOp\n", out.String())
}

func TestIngestCmd_ObjectURL(t *testing.T) {
	root, _ := setLocalEnv(t)
	writeFile(t, filepath.Join(root, "raw", "iot", "ups", "json", "empty.json"), "[]")

	out, err := runCmd(t, "ingest", "--object", "s3://raw/iot/ups/json/empty.json")
	require.NoError(t, err)
	assert.Equal(t, "NoOp\n", out)

	for _, bad := range []string{"s3://raw", "s3:///iot/ups/json/empty.json"} {
		_, err = runCmd(t, "ingest", "--object", bad)
		var ve *domain.ValidationError
		assert.ErrorAs(t, err, &ve, bad)
	}
}

func TestIngestCmd_Rejected(t *testing.T) {
	setLocalEnv(t)
	out, err := runCmd(t, "ingest", "--bucket", "raw", "--key", "sales/refunds/csv/r.csv")
	assert.ErrorIs(t, err, errRejected)
	assert.Equal(t, "Failure\n", out)

	out, err = runCmd(t, "history", "--outcome", "Failure")
	require.NoError(t, err)
	assert.Contains(t, out, "no table sales.refunds")
}

func TestIngestCmd_RequiresEvent(t *testing.T) {
	_, err := runCmd(t, "ingest", "--bucket", "raw")
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestCatalogCmd_RequiresTrustedDatabase(t *testing.T) {
	setLocalEnv(t)
	_, err := runCmd(t, "catalog", "--table", "sales.orders")
	assert.ErrorContains(t, err, "TRUSTED_DATABASE")
}

func TestHistoryCmd_RequiresAuditPath(t *testing.T) {
	setLocalEnv(t)
	t.Setenv("AUDIT_DB_PATH", "")
	_, err := runCmd(t, "history")
	assert.ErrorContains(t, err, "AUDIT_DB_PATH")
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, []string{"name", "rows"}, [][]string{{"orders", "3"}, {"ups", "12"}})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "NAME    ROWS", lines[0])
	assert.Equal(t, "orders  3", lines[1])
	assert.Equal(t, "ups     12", lines[2])

	buf.Reset()
	PrintTable(&buf, nil, [][]string{{"a"}})
	assert.Empty(t, buf.String())
}

func TestPrintDetail(t *testing.T) {
	var buf bytes.Buffer
	PrintDetail(&buf, [][2]string{{"table", "orders"}, {"partition keys", "region"}})
	assert.Equal(t, "table:           orders\npartition keys:  region\n", buf.String())
}
