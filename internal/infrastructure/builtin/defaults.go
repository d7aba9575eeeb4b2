package builtin

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/reglet-dev/classrunner/internal/domain/units"
)

// Names of the units every registry created by RegisterDefaults provides.
const (
	EchoUnit    = "classrunner.Echo"
	ContextUnit = "classrunner.Context"
	ProfileUnit = "classrunner.Profile"
)

// RegisterDefaults installs the standard builtin units. key is the context
// key the selected profile name is stored under.
func RegisterDefaults(r *Registry, key string) error {
	defaults := map[string]Factory{
		EchoUnit:    func() any { return &echo{} },
		ContextUnit: func() any { return &contextDump{} },
		ProfileUnit: func() any { return &profile{key: key} },
	}
	for _, name := range []string{EchoUnit, ContextUnit, ProfileUnit} {
		if err := r.Register(name, defaults[name]); err != nil {
			return err
		}
	}
	return nil
}

// echo writes its arguments one per line, sorted by name.
type echo struct{}

func (e *echo) RunContext(w io.Writer, _ units.Context) error {
	return nil
}

func (e *echo) RunArgs(w io.Writer, args units.Args, _ units.Context) error {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s=%v\n", name, args[name]); err != nil {
			return err
		}
	}
	return nil
}

// contextDump writes the request context as indented JSON.
type contextDump struct{}

func (c *contextDump) RunContext(w io.Writer, uctx units.Context) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(uctx)
}

// profile uses the setter convention to report the selected profile.
type profile struct {
	key  string
	name string
}

func (p *profile) SetContext(c units.Context) error {
	if v, ok := c[p.key]; ok {
		p.name = fmt.Sprint(v)
	}
	return nil
}

func (p *profile) RunContext(w io.Writer, c units.Context) error {
	if err := p.SetContext(c); err != nil {
		return err
	}
	return p.Run(w)
}

func (p *profile) Run(w io.Writer) error {
	_, err := io.WriteString(w, p.name)
	return err
}

func (p *profile) Parser() string {
	return "plain/1.0"
}
