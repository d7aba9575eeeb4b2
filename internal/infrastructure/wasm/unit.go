package wasm

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/reglet-dev/classrunner/internal/domain/units"
	"github.com/reglet-dev/classrunner/internal/infrastructure/wasm/hostfuncs"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Unit is a compiled WebAssembly unit. It implements units.Unit.
type Unit struct {
	name    string
	module  wazero.CompiledModule
	runtime wazero.Runtime
	binding units.Binding
	entries map[units.Shape]string
	stderr  io.Writer
	logger  *slog.Logger
}

// Name returns the qualified unit name.
func (u *Unit) Name() string {
	return u.name
}

// Binding returns the shapes found when the unit was compiled.
func (u *Unit) Binding() units.Binding {
	return u.binding
}

// NewInstance instantiates the module with fresh memory. Stdout is captured
// per instance and flushed into the writer of each writer call.
func (u *Unit) NewInstance(ctx context.Context) (units.Instance, error) {
	ctx = u.callContext(ctx)

	stdout := &bytes.Buffer{}
	config := wazero.NewModuleConfig().
		WithName(""). // anonymous, so one compiled module can have many live instances
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader).
		WithStdout(stdout).
		WithStderr(u.stderr)

	mod, err := u.runtime.InstantiateModule(ctx, u.module, config)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate unit %s: %w", u.name, err)
	}

	// Modules built with -buildmode=c-shared need _initialize before anything else.
	if initFn := mod.ExportedFunction(exportInitialize); initFn != nil {
		if _, err := initFn.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("failed to initialize unit %s: %w", u.name, err)
		}
	}

	return &instance{unit: u, mod: mod, stdout: stdout}, nil
}

func (u *Unit) callContext(ctx context.Context) context.Context {
	ctx = hostfuncs.WithUnitName(ctx, u.name)
	return hostfuncs.WithLogger(ctx, u.logger)
}

type instance struct {
	unit   *Unit
	mod    api.Module
	stdout *bytes.Buffer
}

func (i *instance) Run(ctx context.Context, w io.Writer) error {
	return i.write(ctx, w, units.ShapeWriter)
}

func (i *instance) RunContext(ctx context.Context, w io.Writer, c units.Context) error {
	return i.write(ctx, w, units.ShapeWriterContext, c)
}

func (i *instance) RunArgsContext(ctx context.Context, w io.Writer, args units.Args, c units.Context) error {
	return i.write(ctx, w, units.ShapeWriterArgsContext, args, c)
}

func (i *instance) SetContext(ctx context.Context, c units.Context) error {
	_, err := i.call(ctx, units.ShapeSetterContext, c)
	i.discardStdout()
	return err
}

func (i *instance) SetArgsContext(ctx context.Context, args units.Args, c units.Context) error {
	_, err := i.call(ctx, units.ShapeSetterArgsContext, args, c)
	i.discardStdout()
	return err
}

func (i *instance) Parser(ctx context.Context) (string, error) {
	results, err := i.call(ctx, units.ShapeParserGetter)
	i.discardStdout()
	if err != nil {
		return "", err
	}
	data, err := i.readPacked(i.unit.callContext(ctx), results[0])
	if err != nil {
		return "", fmt.Errorf("failed to read get_parser() result: %w", err)
	}
	return string(data), nil
}

func (i *instance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}

// write calls a writer entry point and copies stdout followed by the packed
// result string into w.
func (i *instance) write(ctx context.Context, w io.Writer, shape units.Shape, payloads ...any) error {
	i.stdout.Reset()
	results, err := i.call(ctx, shape, payloads...)
	if err != nil {
		return err
	}

	if i.stdout.Len() > 0 {
		if _, err := w.Write(i.stdout.Bytes()); err != nil {
			return err
		}
		i.stdout.Reset()
	}

	if len(results) == 0 {
		return nil
	}
	data, err := i.readPacked(i.unit.callContext(ctx), results[0])
	if err != nil {
		return fmt.Errorf("failed to read %s() result: %w", i.unit.entries[shape], err)
	}
	_, err = w.Write(data)
	return err
}

// call marshals each payload to JSON, copies it into guest memory and
// invokes the export implementing shape with (ptr, len) pairs.
func (i *instance) call(ctx context.Context, shape units.Shape, payloads ...any) ([]uint64, error) {
	name, ok := i.unit.entries[shape]
	if !ok {
		return nil, units.ErrShapeUnsupported
	}
	ctx = i.unit.callContext(ctx)

	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("unit %s does not export %s()", i.unit.name, name)
	}

	params := make([]uint64, 0, 2*len(payloads))
	for _, payload := range payloads {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s() parameter: %w", name, err)
		}
		ptr, err := i.writeToMemory(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("failed to write %s() parameter to WASM memory: %w", name, err)
		}
		defer i.deallocate(ctx, ptr, uint32(len(data))) //nolint:gosec // G115: bounded by WASM memory
		params = append(params, uint64(ptr), uint64(len(data)))
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s(): %w", name, err)
	}
	return results, nil
}

func (i *instance) discardStdout() {
	if i.stdout.Len() > 0 {
		i.unit.logger.Debug("discarding unit stdout outside a writer call",
			"unit", i.unit.name,
			"bytes", i.stdout.Len())
		i.stdout.Reset()
	}
}

// readPacked reads the string described by a packed ptr<<32|len value and
// deallocates it. Zero means no string.
func (i *instance) readPacked(ctx context.Context, packed uint64) ([]byte, error) {
	ptr := uint32(packed >> 32)         //nolint:gosec // G115: WASM32 pointers are always 32-bit
	size := uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: WASM32 lengths are always 32-bit
	if ptr == 0 || size == 0 {
		return nil, nil
	}
	defer i.deallocate(ctx, ptr, size)

	data, ok := i.mod.Memory().Read(ptr, size)
	if !ok {
		return nil, fmt.Errorf("failed to read memory at offset %d", ptr)
	}
	result := make([]byte, size)
	copy(result, data)
	return result, nil
}

// writeToMemory allocates guest memory and copies data into it.
func (i *instance) writeToMemory(ctx context.Context, data []byte) (uint32, error) {
	allocateFn := i.mod.ExportedFunction(exportAllocate)
	if allocateFn == nil {
		return 0, fmt.Errorf("unit does not export %s() function", exportAllocate)
	}

	results, err := allocateFn.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate memory: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("%s() returned no results", exportAllocate)
	}

	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 {
		return 0, fmt.Errorf("%s() returned null pointer", exportAllocate)
	}
	if !i.mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("failed to write to WASM memory at offset %d", ptr)
	}
	return ptr, nil
}

// deallocate is best-effort; units without deallocate leak until Close.
func (i *instance) deallocate(ctx context.Context, ptr, size uint32) {
	defer func() {
		_ = recover()
	}()
	if fn := i.mod.ExportedFunction(exportDeallocate); fn != nil {
		//nolint:errcheck,gosec // G104: deallocation is best-effort cleanup
		fn.Call(ctx, uint64(ptr), uint64(size))
	}
}
