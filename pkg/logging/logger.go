// Package logging provides the engine logger and helpers for keeping
// credentials out of log output.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the root logger for the engine. env selects the preset:
// "local" gets a human-readable development logger, anything else gets
// production JSON output.
func New(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
