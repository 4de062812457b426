// Command create-array is the ArrayBuilder function runtime entry point.
package main

import (
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

	builder := handlers.NewArrayBuilder(cfg.MaxArrayLength)
	lambda.Start(handlers.WithTelemetry(tel, handlers.UnitArrayBuilder, builder.HandleJSON))
}
