package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/openfroyo/vpclambda/pkg/config"
	"github.com/openfroyo/vpclambda/pkg/engine"
	"github.com/openfroyo/vpclambda/pkg/handlers"
	"github.com/openfroyo/vpclambda/pkg/invoke"
	"github.com/openfroyo/vpclambda/pkg/telemetry"
)

const shutdownTimeout = 5 * time.Second

// lockedWriter serializes writes from concurrent event invocations.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newLockedWriter(w io.Writer) *lockedWriter {
	return &lockedWriter{w: w}
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// loadConfig reads --config when given, otherwise the defaults with
// environment overrides.
func loadConfig() (*config.Config, error) {
	return loadConfigFrom(configPath)
}

// newTelemetry builds the CLI telemetry with logs written to w.
func newTelemetry(cfg *config.Config, w io.Writer) (*telemetry.Telemetry, error) {
	tcfg := cfg.ApplyTelemetry(telemetry.DefaultConfig())
	if verbose {
		tcfg.Logging.Level = "debug"
	}
	tel, err := telemetry.NewTelemetryWithWriter(tcfg, w)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return tel, nil
}

// shutdownTelemetry flushes pending events and spans.
func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		tel.Logger.WithError(err).Warn("Telemetry shutdown incomplete")
	}
}

// newReporter builds an IpReporter that writes records to out.
func newReporter(cfg *config.Config, out io.Writer) *handlers.IPReporter {
	lookup := handlers.NewHTTPLookup(cfg.Lookup.Endpoint, cfg.Lookup.Timeout())
	return handlers.NewIPReporter(lookup, handlers.NewJSONRecordSink(out))
}

// newLocalInvoker registers both work units under their configured names.
func newLocalInvoker(cfg *config.Config, out io.Writer) *invoke.LocalInvoker {
	inv := invoke.NewLocalInvoker()
	inv.Register(cfg.Functions.CreateArray, handlers.NewArrayBuilder(cfg.MaxArrayLength).HandleJSON)
	inv.Register(cfg.Functions.GetMyGlobalIP, newReporter(cfg, out).HandleJSON)
	return inv
}

// awsOptions selects region and profile from the configuration.
func awsOptions(cfg *config.Config) invoke.AWSOptions {
	return invoke.AWSOptions{
		Region:  cfg.Region,
		Profile: cfg.Profile,
	}
}

// executionInput renders the workflow entry payload for n.
func executionInput(n int) json.RawMessage {
	raw, _ := json.Marshal(map[string]int{"numberForInputMap": n})
	return raw
}

// printExecution writes a summary of a local execution.
func printExecution(w io.Writer, exec *engine.Execution) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(exec)
	}

	fmt.Fprintf(w, "Execution %s %s in %s\n", exec.ID, exec.Status, exec.Duration)
	for _, tr := range exec.Transitions {
		line := fmt.Sprintf("  %-13s", tr.State)
		if tr.Error != "" {
			line += " error: " + tr.Error
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "Dispatched: %d\n", exec.Dispatched)
	if len(exec.Output) > 0 {
		fmt.Fprintf(w, "Output: %s\n", exec.Output)
	}
	return nil
}

// timelinePrinter prints execution events as they are published.
func timelinePrinter(w io.Writer) telemetry.EventSubscriber {
	return func(e telemetry.Event) {
		fmt.Fprintf(w, "%s %-20s %s\n", e.Timestamp.Format("15:04:05.000"), e.Type, e.Message)
	}
}
