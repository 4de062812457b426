package handlers

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/openfroyo/vpclambda/pkg/engine"
	"github.com/openfroyo/vpclambda/pkg/telemetry"
)

// WithTelemetry wraps h for the function runtime. Every invocation carries tel
// in its context, logs under the runtime's request id and flushes spans
// before returning, since the runtime may freeze the process afterwards.
func WithTelemetry(tel *telemetry.Telemetry, unit string, h engine.HandlerFunc) engine.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		ctx = tel.WithContext(ctx)

		logger := telemetry.FromContext(ctx).NewComponentLogger("runtime").WithField("unit", unit)
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			logger = logger.WithField("request_id", lc.AwsRequestID)
		}
		ctx = logger.WithContext(ctx)

		out, err := h(ctx, payload)
		if err != nil {
			logger.WithError(err).Error("Invocation failed")
		}

		if flushErr := tel.Tracer.ForceFlush(ctx); flushErr != nil {
			logger.WithError(flushErr).Warn("Failed to flush spans")
		}
		return out, err
	}
}
