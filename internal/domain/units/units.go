// Package units defines the calling conventions a loaded unit of code can
// expose and the typed binding that records which of them it supports.
package units

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Shape is one recognized calling convention.
type Shape uint8

const (
	// ShapeWriter is run(writer); usable only after a context setter.
	ShapeWriter Shape = 1 << iota
	// ShapeWriterContext is run(writer, context).
	ShapeWriterContext
	// ShapeWriterArgsContext is run(writer, arguments, context).
	ShapeWriterArgsContext
	// ShapeSetterContext is set_context(context).
	ShapeSetterContext
	// ShapeSetterArgsContext is set_context(arguments, context).
	ShapeSetterArgsContext
	// ShapeParserGetter is get_parser() returning an output parser id.
	ShapeParserGetter
)

var shapeNames = []struct {
	shape Shape
	name  string
}{
	{ShapeWriter, "writer"},
	{ShapeWriterContext, "writer+context"},
	{ShapeWriterArgsContext, "writer+args+context"},
	{ShapeSetterContext, "setter(context)"},
	{ShapeSetterArgsContext, "setter(args,context)"},
	{ShapeParserGetter, "parser-getter"},
}

// ErrShapeUnsupported is returned by an Instance method whose shape is not
// part of the unit's binding.
var ErrShapeUnsupported = errors.New("calling convention not supported by unit")

// ErrUnitNotFound is returned by a Loader that does not define the requested
// unit. Loaders chained behind a parent use it to decide whether to keep
// searching.
var ErrUnitNotFound = errors.New("unit not found")

// Binding is the set of shapes a unit exposes. It is computed once when the
// unit is loaded.
type Binding struct {
	shapes Shape
}

// NewBinding creates a binding holding the given shapes.
func NewBinding(shapes ...Shape) Binding {
	var b Binding
	for _, s := range shapes {
		b.shapes |= s
	}
	return b
}

// With returns a copy of the binding with s added.
func (b Binding) With(s Shape) Binding {
	b.shapes |= s
	return b
}

// Has reports whether the binding includes s.
func (b Binding) Has(s Shape) bool {
	return b.shapes&s != 0
}

// HasSetter reports whether either context setter is present.
func (b Binding) HasSetter() bool {
	return b.Has(ShapeSetterContext) || b.Has(ShapeSetterArgsContext)
}

// Valid reports whether at least one direct writer is present.
func (b Binding) Valid() bool {
	return b.Has(ShapeWriterContext) || b.Has(ShapeWriterArgsContext)
}

func (b Binding) String() string {
	var names []string
	for _, sn := range shapeNames {
		if b.Has(sn.shape) {
			names = append(names, sn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// Context is the request-scoped mutable context handed to a unit.
type Context map[string]any

// Args holds the extra parameters given to a unit.
type Args map[string]any

// Add records a parameter; repeating a name turns its value into a list.
func (a Args) Add(name string, value any) {
	existing, ok := a[name]
	if !ok {
		a[name] = value
		return
	}
	if list, ok := existing.([]any); ok {
		a[name] = append(list, value)
		return
	}
	a[name] = []any{existing, value}
}

// Supplied reports whether any argument was actually given.
func (a Args) Supplied() bool {
	return len(a) > 0
}

// Unit is a loaded unit of code.
type Unit interface {
	Name() string
	Binding() Binding
	// NewInstance constructs a fresh instance; each invocation uses its own.
	NewInstance(ctx context.Context) (Instance, error)
}

// Instance is one constructed unit. Methods for shapes absent from the
// unit's binding return ErrShapeUnsupported.
type Instance interface {
	Run(ctx context.Context, w io.Writer) error
	RunContext(ctx context.Context, w io.Writer, c Context) error
	RunArgsContext(ctx context.Context, w io.Writer, args Args, c Context) error
	SetContext(ctx context.Context, c Context) error
	SetArgsContext(ctx context.Context, args Args, c Context) error
	// Parser returns the parser id chosen by the unit, or "" for none.
	Parser(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// Loader resolves unit names to loaded units.
type Loader interface {
	Load(ctx context.Context, name string) (Unit, error)
}
