package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/vpclambda/pkg/config"
	"github.com/openfroyo/vpclambda/pkg/engine"
)

// syncBuffer is read by the test while the command still writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCommand("test", "none", "today")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// useLookupServer points the configured lookup endpoint at a test server.
func useLookupServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	t.Setenv(config.EnvLookupEndpoint, srv.URL)
	return srv
}

// decodeStream splits concatenated JSON documents.
func decodeStream(t *testing.T, s string) []map[string]interface{} {
	t.Helper()
	var docs []map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(s))
	for dec.More() {
		var doc map[string]interface{}
		require.NoError(t, dec.Decode(&doc))
		docs = append(docs, doc)
	}
	return docs
}

func TestBuildArrayCommand(t *testing.T) {
	out, _, err := executeCommand(t, "build-array", "3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"array":[1,2,3]}`, out)

	out, _, err = executeCommand(t, "build-array", "0")
	require.NoError(t, err)
	assert.JSONEq(t, `{"array":[]}`, out)
}

func TestBuildArrayCommand_Invalid(t *testing.T) {
	_, _, err := executeCommand(t, "build-array", "three")
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))

	_, _, err = executeCommand(t, "build-array", "--", "-1")
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeOutOfRange, engine.AsError(err).Code)

	t.Setenv(config.EnvMaxArrayLength, "5")
	_, _, err = executeCommand(t, "build-array", "6")
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeOutOfRange, engine.AsError(err).Code)
}

func TestReportIPCommand(t *testing.T) {
	useLookupServer(t, http.StatusOK, "198.51.100.7\n")

	out, _, err := executeCommand(t, "report-ip", "7")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"response_data":"198.51.100.7"}`, out)
}

func TestReportIPCommand_EndpointFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("192.0.2.44"))
	}))
	defer srv.Close()

	out, _, err := executeCommand(t, "report-ip", "1", "--endpoint", srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"response_data":"192.0.2.44"}`, out)
}

func TestReportIPCommand_LookupFailure(t *testing.T) {
	useLookupServer(t, http.StatusServiceUnavailable, "busy")

	out, _, err := executeCommand(t, "report-ip", "2")
	require.Error(t, err)
	assert.True(t, engine.IsNetwork(err))
	assert.Empty(t, out)
}

func TestRunCommand_Local(t *testing.T) {
	useLookupServer(t, http.StatusOK, "203.0.113.5\n")

	out, _, err := executeCommand(t, "run", "3", "--json")
	require.NoError(t, err)

	docs := decodeStream(t, out)
	require.Len(t, docs, 4)

	ids := make([]float64, 0, 3)
	for _, d := range docs[:3] {
		assert.Equal(t, "203.0.113.5", d["response_data"])
		ids = append(ids, d["id"].(float64))
	}
	assert.ElementsMatch(t, []float64{1, 2, 3}, ids)

	exec := docs[3]
	assert.Equal(t, "succeeded", exec["status"])
	assert.EqualValues(t, 3, exec["dispatched"])
	assert.Equal(t, []interface{}{202.0, 202.0, 202.0}, exec["output"])
}

func TestRunCommand_Zero(t *testing.T) {
	useLookupServer(t, http.StatusOK, "203.0.113.5\n")

	out, _, err := executeCommand(t, "run", "--input", `{"numberForInputMap": 0}`, "--json")
	require.NoError(t, err)

	docs := decodeStream(t, out)
	require.Len(t, docs, 1)
	assert.Equal(t, []interface{}{}, docs[0]["output"])
}

func TestRunCommand_ReportFailuresDoNotFailExecution(t *testing.T) {
	useLookupServer(t, http.StatusBadGateway, "")

	out, _, err := executeCommand(t, "run", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "Dispatched: 2")
	assert.NotContains(t, out, "response_data")
}

func TestRunCommand_Summary(t *testing.T) {
	useLookupServer(t, http.StatusOK, "203.0.113.5")

	out, _, err := executeCommand(t, "run", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "BuildArray")
	assert.Contains(t, out, "FanOutReport")
	assert.Contains(t, out, "Succeed")
	assert.Contains(t, out, "Output: [202]")
}

func TestRunCommand_Events(t *testing.T) {
	useLookupServer(t, http.StatusOK, "203.0.113.5")

	_, errOut, err := executeCommand(t, "run", "1", "--events")
	require.NoError(t, err)
	assert.Contains(t, errOut, "execution.started")
	assert.Contains(t, errOut, "branch.dispatched")
	assert.Contains(t, errOut, "execution.succeeded")
}

func TestRunCommand_EventFilters(t *testing.T) {
	useLookupServer(t, http.StatusOK, "203.0.113.5")

	_, errOut, err := executeCommand(t, "run", "2", "--events", "--events-type", "branch.dispatched")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(errOut, "branch.dispatched"))
	assert.NotContains(t, errOut, "execution.started")

	_, errOut, err = executeCommand(t, "run", "2", "--events", "--events-level", "error")
	require.NoError(t, err)
	assert.NotContains(t, errOut, "branch.dispatched")
	assert.NotContains(t, errOut, "execution.succeeded")

	_, _, err = executeCommand(t, "run", "2", "--events", "--events-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown events level")
}

func TestBuildArrayCommand_NoDefaultCeiling(t *testing.T) {
	out, _, err := executeCommand(t, "build-array", "10001")
	require.NoError(t, err)

	var seq engine.NumberSequence
	require.NoError(t, json.Unmarshal([]byte(out), &seq))
	assert.Len(t, seq.Array, 10001)
}

func TestRunCommand_FailedExecution(t *testing.T) {
	useLookupServer(t, http.StatusOK, "203.0.113.5")

	out, _, err := executeCommand(t, "run", "--input", `{"numberForInputMap": -2}`)
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
	assert.Contains(t, out, "failed")
}

func TestRunCommand_InputErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"none", []string{"run"}, "required"},
		{"both", []string{"run", "1", "--input", `{}`}, "not both"},
		{"bad json", []string{"run", "--input", `{`}, "not valid JSON"},
		{"bad number", []string{"run", "x"}, "integer"},
		{"unknown invoker", []string{"run", "1", "--invoker", "carrier-pigeon"}, "unknown invoker"},
		{"remote without arn", []string{"run", "1", "--remote"}, "state machine ARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDefinitionCommand(t *testing.T) {
	out, _, err := executeCommand(t, "definition")
	require.NoError(t, err)

	var asl map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &asl))
	assert.Equal(t, "BuildArray", asl["StartAt"])

	states := asl["States"].(map[string]interface{})
	fanOut := states["FanOutReport"].(map[string]interface{})
	assert.Equal(t, "$.Payload.array", fanOut["ItemsPath"])
	assert.EqualValues(t, 0, fanOut["MaxConcurrency"])
	assert.Contains(t, out, `"InvocationType": "Event"`)
	assert.Contains(t, out, config.DefaultCreateArrayFunction)
}

func TestDefinitionCommand_Overrides(t *testing.T) {
	out, _, err := executeCommand(t, "definition",
		"--report-function", "arn:aws:lambda:eu-west-1:123456789012:function:Report",
		"--invocation", "RequestResponse",
		"--max-concurrency", "4")
	require.NoError(t, err)

	assert.Contains(t, out, "function:Report")
	assert.NotContains(t, out, "InvocationType")
	assert.Contains(t, out, `"MaxConcurrency": 4`)

	_, _, err = executeCommand(t, "definition", "--invocation", "Sometimes")
	assert.Error(t, err)
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writeConfig(t, "vpclambda.yaml", "maxArrayLength: 50\nmaxConcurrency: 4\n")

	out, _, err := executeCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	out, _, err = executeCommand(t, "validate", path, "--json")
	require.NoError(t, err)
	var report validateReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.NotNil(t, report.Config)
	assert.Equal(t, 50, report.Config.MaxArrayLength)
	assert.Equal(t, 4, report.Config.MaxConcurrency)
	require.NotNil(t, report.Policy)
	assert.True(t, report.Policy.Allowed)
}

func TestValidateCommand_PolicyWarnings(t *testing.T) {
	path := writeConfig(t, "vpclambda.yaml", "lookup:\n  endpoint: http://checkip.example.com\n")

	out, _, err := executeCommand(t, "validate", path, "--environment", "production")
	require.NoError(t, err)
	assert.Contains(t, out, "WARNING lookup-endpoint-https")
	assert.Contains(t, out, "WARNING production-tracing")
	assert.Contains(t, out, "Configuration is valid")
}

func TestValidateCommand_PolicyViolation(t *testing.T) {
	path := writeConfig(t, "vpclambda.yaml", "maxArrayLength: 50000\n")

	out, _, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, out, "ERROR   array-length-bound")

	_, _, err = executeCommand(t, "validate", path, "--skip-policies")
	require.NoError(t, err)
}

func TestValidateCommand_CustomPolicy(t *testing.T) {
	dir := t.TempDir()
	rego := "# severity: error\npackage custom.concurrency\n\nimport rego.v1\n\ndeny contains msg if {\n\tinput.config.maxConcurrency == 0\n\tmsg := \"set an explicit maxConcurrency\"\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "concurrency.rego"), []byte(rego), 0o644))

	_, _, err := executeCommand(t, "validate", "--policy", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy")
}

func TestValidateCommand_ListPolicies(t *testing.T) {
	out, _, err := executeCommand(t, "validate", "--list-policies", "--disable", "lookup-timeout")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "array-length-bound"))
	assert.Contains(t, out, "fanout-invocation")

	for _, line := range lines {
		fields := strings.Fields(line)
		require.GreaterOrEqual(t, len(fields), 3, line)
		want := "enabled"
		if fields[0] == "lookup-timeout" {
			want = "disabled"
		}
		assert.Equal(t, want, fields[2], line)
	}
}

func TestValidateCommand_DisablePolicy(t *testing.T) {
	path := writeConfig(t, "vpclambda.yaml", "maxArrayLength: 50000\n")

	_, _, err := executeCommand(t, "validate", path, "--disable", "array-length-bound")
	require.NoError(t, err)

	_, _, err = executeCommand(t, "validate", path, "--disable", "no-such-policy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy not found")
}

func TestValidateCommand_EnablePolicy(t *testing.T) {
	dir := t.TempDir()
	policyJSON := `{
  "name": "explicit-concurrency",
  "severity": "error",
  "enabled": false,
  "rego": "package custom.explicit\n\nimport rego.v1\n\ndeny contains msg if {\n\tinput.config.maxConcurrency == 0\n\tmsg := \"set maxConcurrency\"\n}\n"
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "explicit.json"), []byte(policyJSON), 0o644))

	_, _, err := executeCommand(t, "validate", "--policy", dir)
	require.NoError(t, err)

	out, _, err := executeCommand(t, "validate", "--policy", dir, "--enable", "explicit-concurrency")
	require.Error(t, err)
	assert.Contains(t, out, "ERROR   explicit-concurrency")
}

func TestValidateCommand_Describe(t *testing.T) {
	out, _, err := executeCommand(t, "validate", "--describe", "array-length-bound")
	require.NoError(t, err)
	assert.Contains(t, out, "package vpclambda.policies.array_length")

	_, _, err = executeCommand(t, "validate", "--describe", "missing")
	require.Error(t, err)
}

func TestValidateCommand_Schema(t *testing.T) {
	out, _, err := executeCommand(t, "validate", "--schema")
	require.NoError(t, err)
	assert.Contains(t, out, "#Config")
	assert.Contains(t, out, "maxArrayLength?: int & >=0")
}

func TestValidateCommand_Defaults(t *testing.T) {
	out, _, err := executeCommand(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "defaults")
}

func TestValidateCommand_Invalid(t *testing.T) {
	path := writeConfig(t, "vpclambda.cue", "lookup: timeoutSeconds: 0\n")

	_, errOut, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.NotEmpty(t, errOut)
}

func TestDevCommand_RequiresConfig(t *testing.T) {
	_, _, err := executeCommand(t, "dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--config")
}

func TestDevCommand_RerunsOnChange(t *testing.T) {
	srv := useLookupServer(t, http.StatusOK, "203.0.113.5")

	path := filepath.Join(t.TempDir(), "vpclambda.yaml")
	write := func(maxConcurrency int) {
		content := fmt.Sprintf("lookup:\n  endpoint: %s\nmaxConcurrency: %d\n", srv.URL, maxConcurrency)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	root := newRootCommand("test", "none", "today")
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"dev", "--config", path, "--number", "1", "--reload-delay", "20ms"})

	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "Execution ") >= 1
	}, 5*time.Second, 20*time.Millisecond)

	// Keep touching the file until the watcher is up and a rerun lands.
	require.Eventually(t, func() bool {
		write(2)
		return strings.Count(out.String(), "Execution ") >= 2
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dev did not stop after cancellation")
	}
}
