package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/classrunner/internal/infrastructure/container"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CommandContext provides common command dependencies.
type CommandContext struct {
	Container *container.Container
	Logger    *slog.Logger
	Context   context.Context
}

// CommandHandler is a function that executes with initialized dependencies.
type CommandHandler func(*CommandContext, *cobra.Command, []string) error

// withContainer wraps a command handler with container initialization and
// releases the container's loaders and store once the handler returns.
func withContainer(handler CommandHandler) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		logger := slog.Default()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		c, err := container.New(ctx, container.Options{
			SystemConfigPath: viper.GetString("config"),
			Logger:           logger,
			Stderr:           cmd.ErrOrStderr(),
		})
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer func() {
			if closeErr := c.Close(context.WithoutCancel(ctx)); closeErr != nil {
				logger.Warn("failed to release resources", "error", closeErr)
				err = errors.Join(err, closeErr)
			}
		}()

		return handler(&CommandContext{
			Container: c,
			Logger:    logger,
			Context:   ctx,
		}, cmd, args)
	}
}
