package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/vpclambda/cmd/vpclambda/commands"
	"github.com/openfroyo/vpclambda/pkg/config"
	"github.com/openfroyo/vpclambda/pkg/engine"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Exit codes. Invalid input is distinguished so scripts can tell a bad number
// from a failed lookup or AWS call.
const (
	exitFailure = 1
	exitInvalid = 2
)

func main() {
	setupLogging(os.Getenv)

	// Cancel on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		log.Error().Err(err).Msg("Command execution failed")
		if engine.IsValidation(err) {
			os.Exit(exitInvalid)
		}
		os.Exit(exitFailure)
	}
}

// setupLogging configures the global logger. VPCLAMBDA_LOG_LEVEL and
// VPCLAMBDA_LOG_FORMAT match what the functions read in Lambda; LOG_LEVEL is
// still honoured when the former is unset.
func setupLogging(getenv func(string) string) {
	if getenv(config.EnvLogFormat) == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level := getenv(config.EnvLogLevel)
	if level == "" {
		level = getenv("LOG_LEVEL")
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
