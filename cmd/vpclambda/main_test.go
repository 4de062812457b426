package main

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	tests := []struct {
		name string
		env  map[string]string
		want zerolog.Level
	}{
		{"default", nil, zerolog.InfoLevel},
		{"LOG_LEVEL", map[string]string{"LOG_LEVEL": "warn"}, zerolog.WarnLevel},
		{"config level wins", map[string]string{"LOG_LEVEL": "warn", "VPCLAMBDA_LOG_LEVEL": "debug"}, zerolog.DebugLevel},
		{"unknown level", map[string]string{"VPCLAMBDA_LOG_LEVEL": "loud"}, zerolog.InfoLevel},
		{"json format", map[string]string{"VPCLAMBDA_LOG_FORMAT": "json", "LOG_LEVEL": "error"}, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupLogging(func(key string) string { return tt.env[key] })
			if got := zerolog.GlobalLevel(); got != tt.want {
				t.Errorf("Expected level %s, got %s", tt.want, got)
			}
		})
	}
}
