package hostfuncs

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// RegisterHostFunctions instantiates the host module in runtime. scrub may be
// nil.
func RegisterHostFunctions(ctx context.Context, runtime wazero.Runtime, scrub Scrubber) error {
	builder := runtime.NewHostModuleBuilder(HostModule)

	// Parameters: messagePacked (i64) - packed ptr+len of LogMessageWire JSON
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			LogMessage(ctx, mod, stack, scrub)
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		Export("log_message")

	_, err := builder.Instantiate(ctx)
	return err
}
