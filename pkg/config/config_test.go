package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/vpclambda/pkg/engine"
	"github.com/openfroyo/vpclambda/pkg/telemetry"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := NewLoader()
	require.NoError(t, err)
	return l
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultCreateArrayFunction, cfg.Functions.CreateArray)
	assert.Equal(t, DefaultGetMyGlobalIPFunction, cfg.Functions.GetMyGlobalIP)
	assert.Equal(t, "https://checkip.amazonaws.com", cfg.Lookup.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.Lookup.Timeout())
	assert.Equal(t, 0, cfg.MaxArrayLength)
	assert.Equal(t, 0, cfg.MaxConcurrency)

	require.NoError(t, newTestLoader(t).Validate(cfg))
}

func TestParseCUE(t *testing.T) {
	src := `
region: "eu-west-1"
functions: createArray: "arr"
stateMachineArn: "arn:aws:states:eu-west-1:123456789012:stateMachine:sm"
lookup: timeoutSeconds: 3
maxConcurrency: 4
telemetry: logLevel: "debug"
`
	cfg, err := newTestLoader(t).ParseCUE([]byte(src), "test.cue")
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "arr", cfg.Functions.CreateArray)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, DefaultGetMyGlobalIPFunction, cfg.Functions.GetMyGlobalIP)
	assert.Equal(t, "https://checkip.amazonaws.com", cfg.Lookup.Endpoint)
	assert.Equal(t, 3, cfg.Lookup.TimeoutSeconds)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, "debug", cfg.Telemetry.LogLevel)
}

func TestParseCUE_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"zero timeout", `lookup: timeoutSeconds: 0`},
		{"negative concurrency", `maxConcurrency: -1`},
		{"bad log level", `telemetry: logLevel: "verbose"`},
		{"bad arn", `stateMachineArn: "sm"`},
		{"wrong type", `maxArrayLength: "many"`},
		{"syntax", `region: `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestLoader(t).ParseCUE([]byte(tt.src), "bad.cue")
			require.Error(t, err)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.NotEmpty(t, loadErr.Errors)
			assert.Equal(t, "bad.cue", loadErr.Source)
		})
	}
}

func TestParseYAML(t *testing.T) {
	src := `
region: us-east-1
functions:
  getMyGlobalIP: reporter
lookup:
  endpoint: http://127.0.0.1:8080
maxArrayLength: 50
telemetry:
  metricsEnabled: false
`
	cfg, err := newTestLoader(t).ParseYAML([]byte(src), "test.yaml")
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "reporter", cfg.Functions.GetMyGlobalIP)
	assert.Equal(t, DefaultCreateArrayFunction, cfg.Functions.CreateArray)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Lookup.Endpoint)
	assert.Equal(t, 50, cfg.MaxArrayLength)
	require.NotNil(t, cfg.Telemetry.MetricsEnabled)
	assert.False(t, *cfg.Telemetry.MetricsEnabled)
}

func TestParseYAML_Errors(t *testing.T) {
	l := newTestLoader(t)

	_, err := l.ParseYAML([]byte("lookup: [unclosed"), "bad.yaml")
	assert.Error(t, err)

	_, err = l.ParseYAML([]byte("maxArrayLength: -1"), "bad.yaml")
	assert.Error(t, err)
}

func TestParseYAML_Empty(t *testing.T) {
	cfg, err := newTestLoader(t).ParseYAML([]byte(""), "empty.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	l := newTestLoader(t)

	cuePath := writeFile(t, dir, "vpclambda.cue", `maxArrayLength: 20`)
	cfg, err := l.Load(cuePath)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.MaxArrayLength)

	yamlPath := writeFile(t, dir, "vpclambda.yml", `maxArrayLength: 30`)
	cfg, err = l.Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.MaxArrayLength)

	jsonPath := writeFile(t, dir, "vpclambda.json", `{"maxArrayLength": 40}`)
	cfg, err = l.Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.MaxArrayLength)

	_, err = l.Load(writeFile(t, dir, "vpclambda.toml", `x = 1`))
	assert.Error(t, err)

	_, err = l.Load(filepath.Join(dir, "missing.cue"))
	assert.Error(t, err)
}

func TestLoad_AppliesEnv(t *testing.T) {
	t.Setenv(EnvMaxConcurrency, "8")
	t.Setenv(EnvStateMachineARN, "arn:aws:states:eu-west-1:123456789012:stateMachine:env")

	path := writeFile(t, t.TempDir(), "c.cue", `maxConcurrency: 2`)
	cfg, err := newTestLoader(t).Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, "arn:aws:states:eu-west-1:123456789012:stateMachine:env", cfg.StateMachineARN)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvRegion:               "ap-southeast-2",
		EnvCreateArrayFunction:  "arr",
		EnvLookupTimeoutSeconds: "7",
		EnvLogFormat:            "json",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, ApplyEnv(cfg, lookup))

	assert.Equal(t, "ap-southeast-2", cfg.Region)
	assert.Equal(t, "arr", cfg.Functions.CreateArray)
	assert.Equal(t, 7, cfg.Lookup.TimeoutSeconds)
	assert.Equal(t, "json", cfg.Telemetry.LogFormat)

	env[EnvMaxArrayLength] = "lots"
	assert.Error(t, ApplyEnv(Default(), lookup))
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvMaxArrayLength, "5")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxArrayLength)

	t.Setenv(EnvMaxArrayLength, "0")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MaxArrayLength)

	t.Setenv(EnvMaxArrayLength, "-1")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	l := newTestLoader(t)

	cfg := Default()
	cfg.Functions.CreateArray = ""
	cfg.Lookup.Endpoint = "not a url"
	err := l.Validate(cfg)
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Len(t, loadErr.Errors, 2)
	assert.Contains(t, err.Error(), "Functions.CreateArray")
}

func TestConfig_Definition(t *testing.T) {
	cfg := Default()
	cfg.MaxConcurrency = 3

	def := cfg.Definition()
	require.NoError(t, def.Validate())
	assert.Equal(t, DefaultCreateArrayFunction, def.ArrayFunction)
	assert.Equal(t, DefaultGetMyGlobalIPFunction, def.ReportFunction)
	assert.Equal(t, 3, def.MaxConcurrency)
	assert.Equal(t, engine.InvocationEvent, def.ReportInvocation)
}

func TestConfig_ApplyTelemetry(t *testing.T) {
	enabled := false
	cfg := Default()
	cfg.Telemetry = TelemetrySettings{
		LogLevel:        "warn",
		LogFormat:       "json",
		TracingExporter: "stdout",
		MetricsEnabled:  &enabled,
	}

	tc := cfg.ApplyTelemetry(telemetry.DefaultConfig())
	assert.Equal(t, "warn", tc.Logging.Level)
	assert.Equal(t, "json", tc.Logging.Format)
	assert.True(t, tc.Tracing.Enabled)
	assert.Equal(t, "stdout", tc.Tracing.Exporter)
	assert.False(t, tc.Metrics.Enabled)
	require.NoError(t, tc.Validate())
}

func TestSchema(t *testing.T) {
	assert.Contains(t, Schema(), "#Config")
}
