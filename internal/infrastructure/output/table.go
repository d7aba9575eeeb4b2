package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/reglet-dev/classrunner/internal/application/dto"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// TableFormatter formats results for a terminal. A run prints its output
// verbatim, preceded by a short header.
type TableFormatter struct {
	writer      io.Writer
	EnableColor bool
	// Quiet prints only the unit output.
	Quiet bool
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{
		writer:      w,
		EnableColor: true, // Default to true, caller can disable
	}
}

// colorize returns the string wrapped in ANSI color codes if enabled.
func (f *TableFormatter) colorize(text, code string) string {
	if !f.EnableColor {
		return text
	}
	return code + text + colorReset
}

// FormatRun writes the unit output.
//
//nolint:errcheck // Best-effort terminal output
func (f *TableFormatter) FormatRun(resp *dto.RunResponse) error {
	if !f.Quiet {
		fmt.Fprintln(f.writer, f.colorize(strings.Repeat("─", 80), colorGray))
		if !resp.Profile.IsZero() {
			fmt.Fprintf(f.writer, "Profile: %s\n", f.colorize(resp.Profile.String(), colorBold))
		}
		if resp.Unit != "" {
			fmt.Fprintf(f.writer, "Unit: %s\n", resp.Unit)
		}
		if resp.Convention != "" {
			fmt.Fprintf(f.writer, "Convention: %s\n", resp.Convention)
		}
		if resp.Masked {
			fmt.Fprintf(f.writer, "Status: %s (see logs, invocation %s)\n",
				f.colorize("FAILED", colorRed), resp.Metadata.InvocationID)
		}
		fmt.Fprintf(f.writer, "Duration: %s\n", resp.Metadata.Duration.Round(time.Millisecond))
		fmt.Fprintln(f.writer, f.colorize(strings.Repeat("─", 80), colorGray))
	}

	out := resp.Output
	if out == "" {
		out = resp.Raw
	}
	if _, err := io.WriteString(f.writer, out); err != nil {
		return err
	}
	if out != "" && !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(f.writer)
	}
	return nil
}

// FormatProfiles writes one block per profile.
//
//nolint:errcheck // Best-effort terminal output
func (f *TableFormatter) FormatProfiles(profiles []dto.ProfileSummary) error {
	if len(profiles) == 0 {
		fmt.Fprintln(f.writer, "No profiles found.")
		return nil
	}

	for _, p := range profiles {
		symbol, color := f.profileStatus(p)
		fmt.Fprintf(f.writer, "%s %s\n", f.colorize(symbol, color), f.colorize(p.Ref.String(), colorBold))
		if p.Error != "" {
			fmt.Fprintf(f.writer, "  Error: %s\n", p.Error)
			continue
		}
		for _, url := range p.Packages.Snapshot {
			fmt.Fprintf(f.writer, "  %s %s\n", f.colorize("snapshot", colorYellow), url)
		}
		for _, url := range p.Packages.Stable {
			fmt.Fprintf(f.writer, "  %s   %s\n", f.colorize("stable", colorGreen), url)
		}
		if len(p.Packages.GroupIDs) > 0 {
			fmt.Fprintf(f.writer, "  Groups: %s\n", strings.Join(p.Packages.GroupIDs, ", "))
		}
	}
	return nil
}

func (f *TableFormatter) profileStatus(p dto.ProfileSummary) (string, string) {
	switch {
	case p.Error != "" || p.Packages == nil:
		return "✗", colorRed
	case p.Packages.Empty():
		return "○", colorGray
	case p.Packages.HasSnapshot():
		return "⚠", colorYellow
	default:
		return "✓", colorGreen
	}
}
