package hostfuncs

import (
	"github.com/tetratelabs/wazero/api"
)

// unpackPtrLen splits a packed ptr<<32|len value.
//
//nolint:gosec // G115: WASM32 pointers and lengths are 32-bit
func unpackPtrLen(packed uint64) (ptr, length uint32) {
	return uint32(packed >> 32), uint32(packed)
}

// readGuest copies length bytes at ptr out of guest memory.
func readGuest(mod api.Module, ptr, length uint32) ([]byte, bool) {
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}
