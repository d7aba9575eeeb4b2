// Package output formats run results and profile listings for the CLI.
package output

import (
	"fmt"
	"io"

	"github.com/reglet-dev/classrunner/internal/application/dto"
)

// Formatter writes command results in one format.
type Formatter interface {
	FormatRun(resp *dto.RunResponse) error
	FormatProfiles(profiles []dto.ProfileSummary) error
}

// Options tune formatter output.
type Options struct {
	Indent bool
	Color  bool
}

// FormatterFactory creates formatters by name.
type FormatterFactory struct{}

// NewFormatterFactory creates a new formatter factory.
func NewFormatterFactory() *FormatterFactory {
	return &FormatterFactory{}
}

// Create returns a formatter for the given format name.
func (f *FormatterFactory) Create(format string, writer io.Writer, options Options) (Formatter, error) {
	switch format {
	case "table":
		t := NewTableFormatter(writer)
		t.EnableColor = options.Color
		return t, nil
	case "json":
		return NewJSONFormatter(writer, options.Indent), nil
	case "yaml":
		return NewYAMLFormatter(writer), nil
	default:
		return nil, fmt.Errorf(
			"unknown format: %s (supported: %v)",
			format, f.SupportedFormats(),
		)
	}
}

// SupportedFormats returns list of available format names.
func (f *FormatterFactory) SupportedFormats() []string {
	return []string{"table", "json", "yaml"}
}

// runView is the serialized shape of a run result.
type runView struct {
	Profile      string       `json:"profile" yaml:"profile"`
	Unit         string       `json:"unit" yaml:"unit"`
	Parser       string       `json:"parser,omitempty" yaml:"parser,omitempty"`
	Convention   string       `json:"convention,omitempty" yaml:"convention,omitempty"`
	Masked       bool         `json:"masked" yaml:"masked"`
	Output       string       `json:"output" yaml:"output"`
	Raw          string       `json:"raw" yaml:"raw"`
	Packages     *packageView `json:"packages,omitempty" yaml:"packages,omitempty"`
	InvocationID string       `json:"invocationId" yaml:"invocation_id"`
	RequestID    string       `json:"requestId,omitempty" yaml:"request_id,omitempty"`
	DurationMS   int64        `json:"durationMs" yaml:"duration_ms"`
}

type packageView struct {
	Stable   []string `json:"stable" yaml:"stable"`
	Snapshot []string `json:"snapshot" yaml:"snapshot"`
	GroupIDs []string `json:"groupIds" yaml:"group_ids"`
}

type profileView struct {
	Profile  string       `json:"profile" yaml:"profile"`
	Packages *packageView `json:"packages,omitempty" yaml:"packages,omitempty"`
	Error    string       `json:"error,omitempty" yaml:"error,omitempty"`
}

func newRunView(resp *dto.RunResponse) runView {
	v := runView{
		Unit:         resp.Unit,
		Parser:       resp.Parser,
		Convention:   resp.Convention,
		Masked:       resp.Masked,
		Output:       resp.Output,
		Raw:          resp.Raw,
		InvocationID: resp.Metadata.InvocationID,
		RequestID:    resp.Metadata.RequestID,
		DurationMS:   resp.Metadata.Duration.Milliseconds(),
	}
	if !resp.Profile.IsZero() {
		v.Profile = resp.Profile.String()
	}
	if resp.Packages != nil {
		v.Packages = &packageView{
			Stable:   resp.Packages.Stable,
			Snapshot: resp.Packages.Snapshot,
			GroupIDs: resp.Packages.GroupIDs,
		}
	}
	return v
}

func newProfileViews(profiles []dto.ProfileSummary) []profileView {
	views := make([]profileView, 0, len(profiles))
	for _, p := range profiles {
		v := profileView{Profile: p.Ref.String(), Error: p.Error}
		if p.Packages != nil {
			v.Packages = &packageView{
				Stable:   p.Packages.Stable,
				Snapshot: p.Packages.Snapshot,
				GroupIDs: p.Packages.GroupIDs,
			}
		}
		views = append(views, v)
	}
	return views
}
