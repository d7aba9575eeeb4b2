package selection

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/reglet-dev/classrunner/internal/application/dto"
)

// ErrNotInteractive is returned by Pick when stdin is not a terminal.
var ErrNotInteractive = errors.New("profile picker needs an interactive terminal (pass --profile instead)")

// TerminalPrompter asks the user to choose a profile.
type TerminalPrompter struct{}

// NewTerminalPrompter creates a new TerminalPrompter.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{}
}

// IsInteractive checks if we're running in an interactive terminal.
func (p *TerminalPrompter) IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	// Character device (terminal), not a pipe or file
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// Pick shows the profiles and returns the chosen identifier. current is
// preselected when present.
func (p *TerminalPrompter) Pick(profiles []dto.ProfileSummary, current string) (string, error) {
	if !p.IsInteractive() {
		return "", ErrNotInteractive
	}

	choice := current
	err := huh.NewSelect[string]().
		Title("Select classloader profile").
		Options(ProfileOptions(profiles)...).
		Value(&choice).
		Run()
	if err != nil {
		return "", err
	}
	return choice, nil
}

// ProfileOptions turns summaries into picker options. Profiles whose
// packages could not be collected are left out.
func ProfileOptions(profiles []dto.ProfileSummary) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(profiles))
	for _, s := range profiles {
		if s.Error != "" || s.Packages == nil {
			continue
		}
		opts = append(opts, huh.NewOption(describeProfile(s), s.Ref.String()))
	}
	return opts
}

func describeProfile(s dto.ProfileSummary) string {
	label := s.Ref.Name
	switch {
	case s.Packages.HasSnapshot():
		label += " (snapshot)"
	case s.Packages.Empty():
		label += " (empty)"
	}
	return label
}
