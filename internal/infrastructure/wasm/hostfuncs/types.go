// Package hostfuncs provides the host module WASM units may import.
package hostfuncs

import (
	"context"
	"log/slog"
)

// HostModule is the import module name units use for host functions.
const HostModule = "classrunner_host"

// Scrubber removes secrets from text a unit hands to the host.
type Scrubber interface {
	ScrubString(input string) string
}

type contextKey struct {
	name string
}

var (
	unitNameKey = &contextKey{name: "unit_name"}
	loggerKey   = &contextKey{name: "logger"}
)

// WithUnitName adds the unit name to the context.
func WithUnitName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, unitNameKey, name)
}

// UnitNameFromContext retrieves the unit name from the context.
func UnitNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(unitNameKey).(string)
	return name, ok
}

// WithLogger attaches the logger unit log messages are sent to.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func loggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}
