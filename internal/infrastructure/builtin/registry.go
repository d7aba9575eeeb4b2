// Package builtin provides the parent loader: units implemented in Go and
// compiled into the binary. It is searched before any package URL.
package builtin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/reglet-dev/classrunner/internal/domain/units"
)

// Runner is run(writer). Only usable after a context setter.
type Runner interface {
	Run(w io.Writer) error
}

// ContextRunner is run(writer, context).
type ContextRunner interface {
	RunContext(w io.Writer, c units.Context) error
}

// ArgsRunner is run(writer, args, context).
type ArgsRunner interface {
	RunArgs(w io.Writer, args units.Args, c units.Context) error
}

// ContextSetter is set_context(context).
type ContextSetter interface {
	SetContext(c units.Context) error
}

// ArgsContextSetter is set_context(args, context).
type ArgsContextSetter interface {
	SetArgsContext(args units.Args, c units.Context) error
}

// ParserProvider lets a unit choose the parser its output is rendered with.
type ParserProvider interface {
	Parser() string
}

// Factory constructs a fresh unit value. The value implements any subset of
// the interfaces above.
type Factory func() any

// Registry holds builtin unit factories by fully qualified name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	units     map[string]*unit
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: make(map[string]Factory),
		units:     make(map[string]*unit),
		logger:    logger,
	}
}

// Register adds a factory under name. Names must be unique.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("builtin unit name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("builtin unit %s: nil factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("builtin unit %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Names returns the registered unit names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Load implements units.Loader. The binding of a unit is computed on first
// load and reused afterwards.
func (r *Registry) Load(ctx context.Context, name string) (units.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Fast path
	r.mu.RLock()
	if u, ok := r.units[name]; ok {
		r.mu.RUnlock()
		return u, nil
	}
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("builtin %s: %w", name, units.ErrUnitNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.units[name]; ok {
		return u, nil
	}

	u := &unit{name: name, factory: factory, binding: bindingOf(factory())}
	r.units[name] = u
	r.logger.Debug("builtin unit bound", "unit", name, "binding", u.binding.String())
	return u, nil
}

// bindingOf inspects a sample value once to find out which shapes it has.
func bindingOf(v any) units.Binding {
	var b units.Binding
	if _, ok := v.(Runner); ok {
		b = b.With(units.ShapeWriter)
	}
	if _, ok := v.(ContextRunner); ok {
		b = b.With(units.ShapeWriterContext)
	}
	if _, ok := v.(ArgsRunner); ok {
		b = b.With(units.ShapeWriterArgsContext)
	}
	if _, ok := v.(ContextSetter); ok {
		b = b.With(units.ShapeSetterContext)
	}
	if _, ok := v.(ArgsContextSetter); ok {
		b = b.With(units.ShapeSetterArgsContext)
	}
	if _, ok := v.(ParserProvider); ok {
		b = b.With(units.ShapeParserGetter)
	}
	return b
}

type unit struct {
	name    string
	factory Factory
	binding units.Binding
}

func (u *unit) Name() string           { return u.name }
func (u *unit) Binding() units.Binding { return u.binding }

func (u *unit) NewInstance(ctx context.Context) (units.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := u.factory()
	if v == nil {
		return nil, fmt.Errorf("builtin %s: factory returned nil", u.name)
	}
	return &instance{value: v}, nil
}

// instance dispatches to the unit value through type assertions.
type instance struct {
	value any
}

func (i *instance) Run(ctx context.Context, w io.Writer) error {
	r, ok := i.value.(Runner)
	if !ok {
		return units.ErrShapeUnsupported
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.Run(w)
}

func (i *instance) RunContext(ctx context.Context, w io.Writer, c units.Context) error {
	r, ok := i.value.(ContextRunner)
	if !ok {
		return units.ErrShapeUnsupported
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.RunContext(w, c)
}

func (i *instance) RunArgsContext(ctx context.Context, w io.Writer, args units.Args, c units.Context) error {
	r, ok := i.value.(ArgsRunner)
	if !ok {
		return units.ErrShapeUnsupported
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.RunArgs(w, args, c)
}

func (i *instance) SetContext(ctx context.Context, c units.Context) error {
	s, ok := i.value.(ContextSetter)
	if !ok {
		return units.ErrShapeUnsupported
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.SetContext(c)
}

func (i *instance) SetArgsContext(ctx context.Context, args units.Args, c units.Context) error {
	s, ok := i.value.(ArgsContextSetter)
	if !ok {
		return units.ErrShapeUnsupported
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.SetArgsContext(args, c)
}

func (i *instance) Parser(context.Context) (string, error) {
	p, ok := i.value.(ParserProvider)
	if !ok {
		return "", units.ErrShapeUnsupported
	}
	return p.Parser(), nil
}

func (i *instance) Close(context.Context) error {
	if c, ok := i.value.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
