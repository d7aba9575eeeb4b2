package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"github.com/reglet-dev/classrunner/internal/domain/entities"
	"github.com/reglet-dev/classrunner/internal/domain/units"
)

// Calling conventions chosen by the invoker.
const (
	ConventionSetterThenWriter = "setter-then-writer"
	ConventionDirectWriter     = "direct-writer"
)

// InvocationResult is the captured output of one unit invocation.
type InvocationResult struct {
	Output string
	// Parser is the parser id supplied by the unit, or "" to keep the configured one.
	Parser     string
	Convention string
	Binding    units.Binding
}

// Invoker loads a unit, picks its calling convention and captures its output.
//
// Selection, in priority order:
//   - a context setter exists: setter-then-writer. The two-argument setter is
//     used when arguments were supplied or no one-argument setter exists. The
//     parser getter, when present, may then override the parser id before
//     run(writer) is called.
//   - otherwise direct writer: run(writer, args, context) when arguments were
//     supplied or run(writer, context) is absent, else run(writer, context).
//
// A unit without either direct writer is rejected up front.
type Invoker struct {
	logger *slog.Logger
}

// NewInvoker creates an invoker.
func NewInvoker(logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{logger: logger}
}

// Invoke runs the unit called name from loader. Output is returned only when
// every step succeeds.
func (i *Invoker) Invoke(
	ctx context.Context,
	loader units.Loader,
	name string,
	args units.Args,
	uctx units.Context,
) (*InvocationResult, error) {
	unit, err := loader.Load(ctx, name)
	if err != nil {
		var loadErr *entities.ClassLoadError
		if errors.As(err, &loadErr) {
			return nil, err
		}
		return nil, &entities.ClassLoadError{Unit: name, Cause: err}
	}

	binding := unit.Binding()
	if !binding.Valid() {
		return nil, &entities.NoEntryPointError{
			Unit:   name,
			Reason: "neither run(writer, context) nor run(writer, args, context) is exported",
		}
	}
	if binding.HasSetter() && !binding.Has(units.ShapeWriter) {
		return nil, &entities.NoEntryPointError{
			Unit:   name,
			Reason: "context setter present but run(writer) is missing",
		}
	}

	if args == nil {
		args = units.Args{}
	}
	if uctx == nil {
		uctx = units.Context{}
	}

	inst, err := unit.NewInstance(ctx)
	if err != nil {
		return nil, &entities.InvocationError{Unit: name, Step: "construct", Cause: err}
	}
	defer func() {
		if err := inst.Close(ctx); err != nil {
			i.logger.Warn("failed to close unit instance", "unit", name, "error", err)
		}
	}()

	result := &InvocationResult{Binding: binding}
	var out bytes.Buffer

	if binding.HasSetter() {
		result.Convention = ConventionSetterThenWriter
		if err := i.runSetterThenWriter(ctx, inst, name, binding, args, uctx, &out, result); err != nil {
			return nil, err
		}
	} else {
		result.Convention = ConventionDirectWriter
		if err := i.runDirect(ctx, inst, name, binding, args, uctx, &out); err != nil {
			return nil, err
		}
	}

	i.logger.Debug("unit invoked",
		"unit", name,
		"convention", result.Convention,
		"binding", binding.String(),
		"bytes", out.Len())

	result.Output = out.String()
	return result, nil
}

func (i *Invoker) runSetterThenWriter(
	ctx context.Context,
	inst units.Instance,
	name string,
	binding units.Binding,
	args units.Args,
	uctx units.Context,
	out *bytes.Buffer,
	result *InvocationResult,
) error {
	if binding.Has(units.ShapeSetterArgsContext) && (args.Supplied() || !binding.Has(units.ShapeSetterContext)) {
		if err := inst.SetArgsContext(ctx, args, uctx); err != nil {
			return &entities.InvocationError{Unit: name, Step: "set_context(args, context)", Cause: err}
		}
	} else if err := inst.SetContext(ctx, uctx); err != nil {
		return &entities.InvocationError{Unit: name, Step: "set_context(context)", Cause: err}
	}

	if binding.Has(units.ShapeParserGetter) {
		parser, err := inst.Parser(ctx)
		if err != nil {
			return &entities.InvocationError{Unit: name, Step: "get_parser", Cause: err}
		}
		result.Parser = parser
	}

	if err := inst.Run(ctx, out); err != nil {
		return &entities.InvocationError{Unit: name, Step: "run(writer)", Cause: err}
	}
	return nil
}

func (i *Invoker) runDirect(
	ctx context.Context,
	inst units.Instance,
	name string,
	binding units.Binding,
	args units.Args,
	uctx units.Context,
	out *bytes.Buffer,
) error {
	if binding.Has(units.ShapeWriterArgsContext) && (args.Supplied() || !binding.Has(units.ShapeWriterContext)) {
		if err := inst.RunArgsContext(ctx, out, args, uctx); err != nil {
			return &entities.InvocationError{Unit: name, Step: "run(writer, args, context)", Cause: err}
		}
		return nil
	}

	if err := inst.RunContext(ctx, out, uctx); err != nil {
		return &entities.InvocationError{Unit: name, Step: "run(writer, context)", Cause: err}
	}
	return nil
}
