// Package telemetry provides the observability stack shared by the work units,
// the sequencer and the CLI.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and an in-process event publisher.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// Components pull what they need from the context:
//
//	op := telemetry.StartOperation(ctx, "handlers.build_array")
//	defer op.End(err)
//	op.Logger.Info("building sequence")
//
//	telemetry.MetricsFromContext(ctx).RecordArrayBuilt()
//
// Every accessor degrades to a no-op when the context carries no telemetry, so
// handlers stay usable in tests without any setup.
//
// # Function runtimes
//
// LambdaConfig returns JSON logs on stdout, synchronous events and no metrics
// listener.
package telemetry
