// Package wasmgen writes small WebAssembly modules for tests. Modules follow
// the unit ABI: an exported memory, a bump allocator exported as allocate,
// and entry points built from a handful of canned bodies.
package wasmgen

import (
	"bytes"
)

const (
	valI32 = 0x7f
	valI64 = 0x7e

	opUnreachable = 0x00
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Const    = 0x41
	opI64Const    = 0x42
	opI32Add      = 0x6a
	opI64Or       = 0x84
	opI64Shl      = 0x86
	opI64ExtendU  = 0xad
	opEnd         = 0x0b

	// heapStart is where the bump allocator starts handing out memory.
	heapStart = 4096
	// dataStart is where canned strings are placed.
	dataStart = 64
)

type funcType struct {
	params  []byte
	results []byte
}

type function struct {
	export string
	typ    funcType
	body   []byte
}

type importDecl struct {
	module string
	name   string
	typ    funcType
}

type segment struct {
	offset uint32
	data   []byte
}

// Module accumulates functions and data for one WebAssembly module.
type Module struct {
	imports     []importDecl
	funcs       []function
	data        []segment
	nextData    uint32
	noAllocate  bool
	withDealloc bool
}

// New creates a module with memory and allocate exports.
func New() *Module {
	return &Module{nextData: dataStart}
}

// WithoutAllocate drops the allocate export.
func (m *Module) WithoutAllocate() *Module {
	m.noAllocate = true
	return m
}

// WithDeallocate adds a no-op deallocate(ptr, size) export.
func (m *Module) WithDeallocate() *Module {
	m.withDealloc = true
	return m
}

// ReturnString exports a function with params i32 parameters that returns a
// packed pointer to s.
func (m *Module) ReturnString(name string, params int, s string) *Module {
	packed := m.packedString(s)
	body := []byte{opI64Const}
	body = appendSLEB(body, packed)
	return m.add(name, i32s(params), []byte{valI64}, body)
}

// ReturnNothing exports a function with params i32 parameters. When packed
// is true it returns a zero i64, otherwise nothing.
func (m *Module) ReturnNothing(name string, params int, packed bool) *Module {
	if !packed {
		return m.add(name, i32s(params), nil, nil)
	}
	return m.add(name, i32s(params), []byte{valI64}, []byte{opI64Const, 0})
}

// EchoParam exports a function with params i32 parameters that returns the
// buffer described by parameters (ptrIndex, ptrIndex+1) packed into an i64.
// It lets tests observe exactly what the host wrote into memory.
func (m *Module) EchoParam(name string, params, ptrIndex int) *Module {
	body := []byte{
		opLocalGet, byte(ptrIndex), opI64ExtendU,
		opI64Const, 32, opI64Shl,
		opLocalGet, byte(ptrIndex + 1), opI64ExtendU,
		opI64Or,
	}
	return m.add(name, i32s(params), []byte{valI64}, body)
}

// PrintString exports a function that writes s to stdout through WASI
// fd_write and returns a zero i64.
func (m *Module) PrintString(name string, params int, s string) *Module {
	fdWrite := m.importFunc("wasi_snapshot_preview1", "fd_write", funcType{params: i32s(4), results: []byte{valI32}})
	ptr := m.placeData([]byte(s))

	// iovec{ptr, len} followed by the nwritten slot.
	iovec := make([]byte, 0, 12)
	iovec = appendU32LE(iovec, ptr)
	iovec = appendU32LE(iovec, uint32(len(s)))
	iovec = appendU32LE(iovec, 0)
	iov := m.placeData(iovec)

	body := []byte{opI32Const, 1, opI32Const}
	body = appendSLEB(body, int64(iov))
	body = append(body, opI32Const, 1, opI32Const)
	body = appendSLEB(body, int64(iov+8))
	body = append(body, opCall, byte(fdWrite), opDrop, opI64Const, 0)
	return m.add(name, i32s(params), []byte{valI64}, body)
}

// LogMessage exports a function that passes msg to the host log_message
// import and returns a zero i64.
func (m *Module) LogMessage(name string, params int, msg string) *Module {
	logFn := m.importFunc("classrunner_host", "log_message", funcType{params: []byte{valI64}})
	body := []byte{opI64Const}
	body = appendSLEB(body, m.packedString(msg))
	body = append(body, opCall, byte(logFn), opI64Const, 0)
	return m.add(name, i32s(params), []byte{valI64}, body)
}

// Trap exports a function that executes unreachable.
func (m *Module) Trap(name string, params int, packed bool) *Module {
	var results []byte
	if packed {
		results = []byte{valI64}
	}
	return m.add(name, i32s(params), results, []byte{opUnreachable})
}

// Bytes encodes the module.
func (m *Module) Bytes() []byte {
	funcs := m.allFuncs()

	imports := len(m.imports)

	// Type section: one type per import followed by one per function.
	var types [][]byte
	for _, imp := range m.imports {
		types = append(types, encodeType(imp.typ))
	}
	for _, f := range funcs {
		types = append(types, encodeType(f.typ))
	}

	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	writeSection(&out, 1, encodeVec(types))

	if imports > 0 {
		imps := make([][]byte, 0, imports)
		for i, imp := range m.imports {
			b := appendName(nil, imp.module)
			b = appendName(b, imp.name)
			b = append(b, 0x00) // func
			b = appendULEB(b, uint64(i))
			imps = append(imps, b)
		}
		writeSection(&out, 2, encodeVec(imps))
	}

	fnSec := make([][]byte, 0, len(funcs))
	for i := range funcs {
		fnSec = append(fnSec, appendULEB(nil, uint64(imports+i)))
	}
	writeSection(&out, 3, encodeVec(fnSec))

	// One page of memory.
	writeSection(&out, 5, encodeVec([][]byte{{0x00, 0x01}}))

	// Mutable i32 heap pointer used by allocate.
	global := []byte{valI32, 0x01, opI32Const}
	global = appendSLEB(global, heapStart)
	global = append(global, opEnd)
	writeSection(&out, 6, encodeVec([][]byte{global}))

	exports := [][]byte{append(appendName(nil, "memory"), 0x02, 0x00)}
	for i, f := range funcs {
		exp := appendName(nil, f.export)
		exp = append(exp, 0x00)
		exp = appendULEB(exp, uint64(imports+i))
		exports = append(exports, exp)
	}
	writeSection(&out, 7, encodeVec(exports))

	codes := make([][]byte, 0, len(funcs))
	for _, f := range funcs {
		code := append([]byte{0x00}, f.body...) // no locals
		code = append(code, opEnd)
		codes = append(codes, append(appendULEB(nil, uint64(len(code))), code...))
	}
	writeSection(&out, 10, encodeVec(codes))

	if len(m.data) > 0 {
		segs := make([][]byte, 0, len(m.data))
		for _, s := range m.data {
			seg := []byte{0x00, opI32Const}
			seg = appendSLEB(seg, int64(s.offset))
			seg = append(seg, opEnd)
			seg = appendULEB(seg, uint64(len(s.data)))
			seg = append(seg, s.data...)
			segs = append(segs, seg)
		}
		writeSection(&out, 11, encodeVec(segs))
	}

	return out.Bytes()
}

func (m *Module) allFuncs() []function {
	var funcs []function
	if !m.noAllocate {
		// global.get 0; global.get 0; local.get 0; i32.add; global.set 0
		funcs = append(funcs, function{
			export: "allocate",
			typ:    funcType{params: i32s(1), results: []byte{valI32}},
			body:   []byte{opGlobalGet, 0, opGlobalGet, 0, opLocalGet, 0, opI32Add, opGlobalSet, 0},
		})
	}
	if m.withDealloc {
		funcs = append(funcs, function{export: "deallocate", typ: funcType{params: i32s(2)}})
	}
	return append(funcs, m.funcs...)
}

// importFunc returns the function index of an import, declaring it on first use.
func (m *Module) importFunc(module, name string, typ funcType) int {
	for i, imp := range m.imports {
		if imp.module == module && imp.name == name {
			return i
		}
	}
	m.imports = append(m.imports, importDecl{module: module, name: name, typ: typ})
	return len(m.imports) - 1
}

func (m *Module) add(name string, params, results, body []byte) *Module {
	m.funcs = append(m.funcs, function{
		export: name,
		typ:    funcType{params: params, results: results},
		body:   body,
	})
	return m
}

func (m *Module) placeData(b []byte) uint32 {
	ptr := m.nextData
	m.data = append(m.data, segment{offset: ptr, data: b})
	m.nextData += uint32(len(b))
	return ptr
}

func (m *Module) packedString(s string) int64 {
	if s == "" {
		return 0
	}
	ptr := m.placeData([]byte(s))
	return int64(ptr)<<32 | int64(len(s))
}

func i32s(n int) []byte {
	return bytes.Repeat([]byte{valI32}, n)
}

func encodeType(t funcType) []byte {
	b := []byte{0x60}
	b = appendULEB(b, uint64(len(t.params)))
	b = append(b, t.params...)
	b = appendULEB(b, uint64(len(t.results)))
	return append(b, t.results...)
}

func encodeVec(items [][]byte) []byte {
	b := appendULEB(nil, uint64(len(items)))
	for _, item := range items {
		b = append(b, item...)
	}
	return b
}

func writeSection(out *bytes.Buffer, id byte, content []byte) {
	out.WriteByte(id)
	out.Write(appendULEB(nil, uint64(len(content))))
	out.Write(content)
}

func appendName(b []byte, s string) []byte {
	b = appendULEB(b, uint64(len(s)))
	return append(b, s...)
}

func appendU32LE(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendULEB(b []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

func appendSLEB(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		b = append(b, c)
		if done {
			return b
		}
	}
}
