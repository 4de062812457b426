// Command get-my-global-ip is the IpReporter function runtime entry point.
// Records go to stdout, which the runtime forwards to the function's log
// stream.
package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/vpclambda/pkg/config"
	"github.com/openfroyo/vpclambda/pkg/handlers"
	"github.com/openfroyo/vpclambda/pkg/telemetry"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	tel, err := telemetry.NewTelemetry(cfg.ApplyTelemetry(telemetry.LambdaConfig()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	lookup := handlers.NewHTTPLookup(cfg.Lookup.Endpoint, cfg.Lookup.Timeout())
	reporter := handlers.NewIPReporter(lookup, handlers.NewJSONRecordSink(os.Stdout))
	lambda.Start(handlers.WithTelemetry(tel, handlers.UnitIPReporter, reporter.HandleJSON))
}
