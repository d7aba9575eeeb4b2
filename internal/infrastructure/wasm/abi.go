// Package wasm runs units compiled to WebAssembly with wazero.
//
// A unit module exports memory, allocate(size) and optionally
// deallocate(ptr, size). Entry points are recognized by export name and
// parameter count; context and arguments cross the boundary as JSON, and
// strings come back as a packed ptr<<32|len i64.
package wasm

import (
	"github.com/reglet-dev/classrunner/internal/domain/units"
	"github.com/tetratelabs/wazero/api"
)

// Required memory-management exports.
const (
	exportAllocate   = "allocate"
	exportDeallocate = "deallocate"
	exportInitialize = "_initialize"
)

type entrySignature struct {
	name   string
	params int
	shape  units.Shape
	// setter entries must return nothing; writer entries may return one i64.
	setter bool
	getter bool
}

// entrySignatures lists every recognized entry point. A module may export a
// name only once, so each overload also has a distinct name.
var entrySignatures = []entrySignature{
	{name: "run", params: 0, shape: units.ShapeWriter},
	{name: "run", params: 2, shape: units.ShapeWriterContext},
	{name: "run", params: 4, shape: units.ShapeWriterArgsContext},
	{name: "run_context", params: 2, shape: units.ShapeWriterContext},
	{name: "run_args_context", params: 4, shape: units.ShapeWriterArgsContext},
	{name: "set_context", params: 2, shape: units.ShapeSetterContext, setter: true},
	{name: "set_context", params: 4, shape: units.ShapeSetterArgsContext, setter: true},
	{name: "set_args_context", params: 4, shape: units.ShapeSetterArgsContext, setter: true},
	{name: "get_parser", params: 0, shape: units.ShapeParserGetter, getter: true},
}

// scanExports classifies exported functions once per compiled module. The
// returned map names the export that implements each shape. Exports with
// any other signature are ignored.
func scanExports(defs map[string]api.FunctionDefinition) (map[units.Shape]string, units.Binding) {
	entries := make(map[units.Shape]string)
	var binding units.Binding

	for _, sig := range entrySignatures {
		if _, taken := entries[sig.shape]; taken {
			continue
		}
		def, ok := defs[sig.name]
		if !ok || !matches(def, sig) {
			continue
		}
		entries[sig.shape] = sig.name
		binding = binding.With(sig.shape)
	}
	return entries, binding
}

func matches(def api.FunctionDefinition, sig entrySignature) bool {
	params := def.ParamTypes()
	if len(params) != sig.params {
		return false
	}
	for _, p := range params {
		if p != api.ValueTypeI32 {
			return false
		}
	}

	results := def.ResultTypes()
	switch {
	case sig.getter:
		return len(results) == 1 && results[0] == api.ValueTypeI64
	case sig.setter:
		return len(results) == 0
	default:
		return len(results) == 0 || (len(results) == 1 && results[0] == api.ValueTypeI64)
	}
}
