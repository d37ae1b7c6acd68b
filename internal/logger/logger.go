// Package logger builds the service's zap logger.
package logger

import (
	"go.uber.org/zap"
)

// New returns a logger for the given environment. "production" gets JSON
// output, "test" gets the example encoder, and anything else gets the
// development console encoder. All output goes to stdout.
func New(environment string) (*zap.Logger, error) {
	var cfg zap.Config
	switch environment {
	case "production", "prod":
		cfg = zap.NewProductionConfig()
	case "test":
		return zap.NewExample(), nil
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stdout"}
	return cfg.Build()
}

// Must is like New but panics on error.
func Must(environment string) *zap.Logger {
	return zap.Must(New(environment))
}
