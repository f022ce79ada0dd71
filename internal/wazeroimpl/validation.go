package wazeroimpl

import (
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/treasurydao/storagecost/internal/runtime/host"
	"github.com/treasurydao/storagecost/internal/wasm"
)

// ValidationError is returned by Compile when a module cannot be linked
// against the env namespace.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "static module validation: " + e.Reason
}

func invalid(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// validate checks that compiled uses the host memory and only imports
// functions the host provides, with matching signatures.
func validate(compiled wazero.CompiledModule) error {
	// 1) Exactly one memory, imported from env
	if n := len(compiled.ExportedMemories()); n != 0 {
		return invalid("module exports %d memories; rewrite it to import %s.%s", n, wasm.HostModule, wasm.HostMemory)
	}
	memories := compiled.ImportedMemories()
	if len(memories) != 1 {
		return invalid("module must import exactly one memory, found %d", len(memories))
	}
	if module, name, _ := memories[0].Import(); module != wasm.HostModule || name != wasm.HostMemory {
		return invalid("memory imported from %s.%s, expected %s.%s", module, name, wasm.HostModule, wasm.HostMemory)
	}

	// 2) Every function import is a known host function
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if module != wasm.HostModule {
			return invalid("function %s.%s is imported from an unknown module", module, name)
		}
		sig, ok := host.Signature(name)
		if !ok {
			return invalid("host function %q is not provided", name)
		}
		params, results := apiTypes(sig.Params), apiTypes(sig.Results)
		if !slices.Equal(def.ParamTypes(), params) || !slices.Equal(def.ResultTypes(), results) {
			return invalid("host function %q imported as %v -> %v, expected %v -> %v", name,
				typeNames(def.ParamTypes()), typeNames(def.ResultTypes()), typeNames(params), typeNames(results))
		}
	}
	return nil
}

func apiTypes(types []wasm.ValueType) []api.ValueType {
	out := make([]api.ValueType, len(types))
	for i, t := range types {
		out[i] = api.ValueType(t)
	}
	return out
}

func typeNames(types []api.ValueType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = api.ValueTypeName(t)
	}
	return out
}
