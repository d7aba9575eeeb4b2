package wasm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/reglet-dev/classrunner/internal/infrastructure/redaction"
	"github.com/reglet-dev/classrunner/internal/infrastructure/wasm/hostfuncs"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// globalCache speeds up compilation across runtimes. Compiled code is shared,
// module identity is not: every Runtime keeps its own namespace.
var globalCache = wazero.NewCompilationCache()

// DefaultMemoryLimitMB bounds the linear memory of every unit instance.
const DefaultMemoryLimitMB = 256

// Options configures a Runtime.
type Options struct {
	// MemoryLimitMB: 0 = default, -1 = unlimited, >0 = explicit limit.
	MemoryLimitMB int
	// Redactor scrubs unit stderr and host log messages. Optional.
	Redactor *redaction.Redactor
	// Stderr receives unit stderr. Defaults to os.Stderr.
	Stderr io.Writer
	Logger *slog.Logger
}

// Runtime compiles and caches units for one loader.
type Runtime struct {
	runtime  wazero.Runtime
	mu       sync.RWMutex     // protects units
	units    map[string]*Unit // compiled units by qualified name
	stderr   io.Writer
	redactor *redaction.Redactor
	logger   *slog.Logger
}

// NewRuntime creates a wazero runtime with WASI and the host module.
func NewRuntime(ctx context.Context, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	memoryLimitMB := opts.MemoryLimitMB
	switch {
	case memoryLimitMB == 0:
		memoryLimitMB = DefaultMemoryLimitMB
	case memoryLimitMB == -1:
		logger.Warn("WASM memory limit disabled (unlimited memory)")
	case memoryLimitMB > 0:
		if memoryLimitMB < 16 {
			logger.Warn("WASM memory limit very low, units may fail", "mb", memoryLimitMB)
		}
	default:
		return nil, fmt.Errorf("invalid WASM memory limit: %d (must be >= -1)", memoryLimitMB)
	}

	config := wazero.NewRuntimeConfig().
		WithCompilationCache(globalCache).
		WithCloseOnContextDone(true)
	if memoryLimitMB > 0 {
		// 1 page = 64KB, so 1 MB = 16 pages
		config = config.WithMemoryLimitPages(uint32(memoryLimitMB * 16)) //nolint:gosec // G115: bounded above
	}

	r := wazero.NewRuntimeWithConfig(ctx, config)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	var scrub hostfuncs.Scrubber
	if opts.Redactor != nil {
		scrub = opts.Redactor
	}
	if err := hostfuncs.RegisterHostFunctions(ctx, r, scrub); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Runtime{
		runtime:  r,
		units:    make(map[string]*Unit),
		stderr:   redaction.NewWriter(stderr, opts.Redactor),
		redactor: opts.Redactor,
		logger:   logger,
	}, nil
}

// LoadUnit compiles wasmBytes as the unit called name and computes its
// binding. Repeated loads of the same name return the cached unit.
func (r *Runtime) LoadUnit(ctx context.Context, name string, wasmBytes []byte) (*Unit, error) {
	// Fast path
	r.mu.RLock()
	if u, ok := r.units[name]; ok {
		r.mu.RUnlock()
		return u, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check: another goroutine may have compiled it while we waited
	if u, ok := r.units[name]; ok {
		return u, nil
	}

	compiled, err := r.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile unit %s: %w", name, err)
	}

	entries, binding := scanExports(compiled.ExportedFunctions())

	u := &Unit{
		name:    name,
		module:  compiled,
		runtime: r.runtime,
		binding: binding,
		entries: entries,
		stderr:  r.stderr,
		logger:  r.logger,
	}
	r.units[name] = u

	r.logger.Debug("compiled unit", "unit", name, "binding", binding.String())
	return u, nil
}

// Len returns the number of compiled units.
func (r *Runtime) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

// Close releases the runtime and every compiled unit.
func (r *Runtime) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}
