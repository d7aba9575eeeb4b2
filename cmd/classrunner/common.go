package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/reglet-dev/classrunner/internal/infrastructure/output"
	"github.com/spf13/cobra"
)

// CommonOptions contains flags shared across commands that print results.
type CommonOptions struct {
	// Output
	Format string

	// Execution
	Timeout time.Duration

	Quiet   bool
	NoColor bool
}

// DefaultCommonOptions returns sensible defaults.
func DefaultCommonOptions() CommonOptions {
	return CommonOptions{
		Timeout: 2 * time.Minute,
		Format:  "table",
	}
}

// RegisterFlags adds common flags to a cobra command.
func (opts *CommonOptions) RegisterFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", opts.Timeout,
		"Global timeout for entire execution (0 to disable)")

	cmd.Flags().StringVar(&opts.Format, "format", opts.Format,
		"Output format: table, json, yaml")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false,
		"Print only the unit output (table format)")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false,
		"Disable colored output")
}

// ApplyToContext applies timeout to context.
// Returns new context and cancel function.
func (opts *CommonOptions) ApplyToContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if opts.Timeout > 0 {
		return context.WithTimeout(ctx, opts.Timeout)
	}
	// No timeout - return no-op cancel
	return ctx, func() {}
}

// ValidateFlags validates common options.
func (opts *CommonOptions) ValidateFlags() error {
	if verbose && opts.Quiet {
		return fmt.Errorf("--verbose and --quiet are mutually exclusive")
	}

	formats := output.NewFormatterFactory().SupportedFormats()
	if !slices.Contains(formats, opts.Format) {
		return fmt.Errorf("invalid format: %s (valid: %v)", opts.Format, formats)
	}
	if opts.Timeout < 0 {
		return fmt.Errorf("--timeout must not be negative")
	}
	return nil
}

// Formatter creates the configured formatter writing to w.
func (opts *CommonOptions) Formatter(w io.Writer) (output.Formatter, error) {
	f, err := output.NewFormatterFactory().Create(opts.Format, w, output.Options{
		Indent: true,
		Color:  !opts.NoColor && isTerminal(w),
	})
	if err != nil {
		return nil, err
	}
	if t, ok := f.(*output.TableFormatter); ok {
		t.Quiet = opts.Quiet
	}
	return f, nil
}

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
