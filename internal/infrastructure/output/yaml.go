package output

import (
	"encoding/json"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/reglet-dev/classrunner/internal/application/dto"
)

// YAMLFormatter formats results as YAML.
type YAMLFormatter struct {
	writer io.Writer
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(w io.Writer) *YAMLFormatter {
	return &YAMLFormatter{writer: w}
}

// FormatRun writes the run result as YAML.
func (f *YAMLFormatter) FormatRun(resp *dto.RunResponse) error {
	return f.encode(newRunView(resp))
}

// FormatProfiles writes the profile listing as YAML.
func (f *YAMLFormatter) FormatProfiles(profiles []dto.ProfileSummary) error {
	return f.encode(newProfileViews(profiles))
}

func (f *YAMLFormatter) encode(v any) error {
	encoder := yaml.NewEncoder(f.writer, yaml.Indent(2))

	if err := encoder.Encode(v); err != nil {
		return err
	}

	return encoder.Close()
}

// JSONFormatter formats results as JSON.
type JSONFormatter struct {
	writer io.Writer
	indent bool
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(w io.Writer, indent bool) *JSONFormatter {
	return &JSONFormatter{writer: w, indent: indent}
}

// FormatRun writes the run result as JSON.
func (f *JSONFormatter) FormatRun(resp *dto.RunResponse) error {
	return f.encode(newRunView(resp))
}

// FormatProfiles writes the profile listing as JSON.
func (f *JSONFormatter) FormatProfiles(profiles []dto.ProfileSummary) error {
	return f.encode(newProfileViews(profiles))
}

func (f *JSONFormatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	if f.indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}
