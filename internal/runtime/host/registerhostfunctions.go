package host

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/treasurydao/storagecost/internal/wasm"
)

// ImplementationModule is the host module holding the Go implementations.
// Modules never import it directly; they link against the env shim, which
// re-exports every function together with the linear memory.
const ImplementationModule = "near_host"

// hostFunction describes one import of the env namespace. Parameters are i64
// unless i32 is set; results are either none or a single i64.
type hostFunction struct {
	name   string
	params []string
	i32    bool
	result bool
	fn     func(e *Environment, stack []uint64)
}

func (f hostFunction) funcType() wasm.FuncType {
	vt := wasm.ValueTypeI64
	if f.i32 {
		vt = wasm.ValueTypeI32
	}
	ft := wasm.FuncType{Params: make([]wasm.ValueType, len(f.params))}
	for i := range ft.Params {
		ft.Params[i] = vt
	}
	if f.result {
		ft.Results = []wasm.ValueType{wasm.ValueTypeI64}
	}
	return ft
}

func (f hostFunction) apiTypes() (params, results []api.ValueType) {
	ft := f.funcType()
	params = make([]api.ValueType, len(ft.Params))
	for i, p := range ft.Params {
		params[i] = api.ValueType(p)
	}
	for _, r := range ft.Results {
		results = append(results, api.ValueType(r))
	}
	return params, results
}

// noop builds a promise primitive that accepts its arguments and does nothing.
func noop(name string, result bool, params ...string) hostFunction {
	return hostFunction{name: name, params: params, result: result, fn: func(_ *Environment, stack []uint64) {
		if result {
			stack[0] = 0
		}
	}}
}

var hostFunctions = []hostFunction{
	// registers
	{name: "read_register", params: []string{"register_id", "ptr"}, fn: func(e *Environment, s []uint64) {
		e.readRegister(s[0], s[1])
	}},
	{name: "register_len", params: []string{"register_id"}, result: true, fn: func(e *Environment, s []uint64) {
		s[0] = e.registerLen(s[0])
	}},
	{name: "write_register", params: []string{"register_id", "data_len", "data_ptr"}, fn: func(e *Environment, s []uint64) {
		e.writeRegister(s[0], s[1], s[2])
	}},

	// context
	{name: "current_account_id", params: []string{"register_id"}, fn: func(e *Environment, s []uint64) {
		e.currentAccountID(s[0])
	}},
	{name: "signer_account_id", params: []string{"register_id"}, fn: func(e *Environment, s []uint64) {
		e.signerAccountID(s[0])
	}},
	{name: "signer_account_pk", params: []string{"register_id"}, fn: func(e *Environment, s []uint64) {
		e.signerAccountPK(s[0])
	}},
	{name: "predecessor_account_id", params: []string{"register_id"}, fn: func(e *Environment, s []uint64) {
		e.predecessorAccountID(s[0])
	}},
	{name: "input", params: []string{"register_id"}, fn: func(e *Environment, s []uint64) {
		e.input(s[0])
	}},
	{name: "block_index", result: true, fn: func(e *Environment, s []uint64) {
		s[0] = e.cfg.BlockIndex
	}},
	{name: "block_timestamp", result: true, fn: func(e *Environment, s []uint64) {
		s[0] = e.cfg.BlockTimestamp
	}},
	{name: "epoch_height", result: true, fn: func(e *Environment, s []uint64) {
		s[0] = e.cfg.EpochHeight
	}},
	{name: "storage_usage", result: true, fn: func(e *Environment, s []uint64) {
		s[0] = e.store.Usage()
	}},
	{name: "account_balance", params: []string{"balance_ptr"}, fn: func(e *Environment, s []uint64) {
		e.accountBalance(s[0])
	}},
	{name: "account_locked_balance", params: []string{"balance_ptr"}, fn: func(e *Environment, s []uint64) {
		e.accountLockedBalance(s[0])
	}},
	{name: "attached_deposit", params: []string{"balance_ptr"}, fn: func(e *Environment, s []uint64) {
		e.attachedDeposit(s[0])
	}},
	{name: "prepaid_gas", result: true, fn: func(e *Environment, s []uint64) {
		s[0] = e.cfg.PrepaidGas
	}},
	{name: "used_gas", result: true, fn: func(e *Environment, s []uint64) {
		s[0] = e.cfg.UsedGas
	}},
	{name: "storage_byte_cost", params: []string{"balance_ptr"}, fn: func(e *Environment, s []uint64) {
		e.storageByteCost(s[0])
	}},
	{name: "validator_stake", params: []string{"account_id_len", "account_id_ptr", "stake_ptr"}, fn: func(e *Environment, s []uint64) {
		e.validatorStake(s[0], s[1], s[2])
	}},
	{name: "validator_total_stake", params: []string{"stake_ptr"}, fn: func(e *Environment, s []uint64) {
		e.validatorTotalStake(s[0])
	}},

	// crypto
	{name: "random_seed", params: []string{"register_id"}, fn: func(e *Environment, s []uint64) {
		e.randomSeed(s[0])
	}},
	{name: "sha256", params: []string{"value_len", "value_ptr", "register_id"}, fn: func(e *Environment, s []uint64) {
		e.sha256(s[0], s[1], s[2])
	}},
	{name: "keccak256", params: []string{"value_len", "value_ptr", "register_id"}, fn: func(e *Environment, s []uint64) {
		e.keccak256(s[0], s[1], s[2])
	}},
	{name: "keccak512", params: []string{"value_len", "value_ptr", "register_id"}, fn: func(e *Environment, s []uint64) {
		e.keccak512(s[0], s[1], s[2])
	}},
	{name: "ripemd160", params: []string{"value_len", "value_ptr", "register_id"}, fn: func(e *Environment, s []uint64) {
		e.ripemd160(s[0], s[1], s[2])
	}},
	{name: "ecrecover", params: []string{"hash_len", "hash_ptr", "sig_len", "sig_ptr", "v", "malleability_flag", "register_id"}, result: true, fn: func(e *Environment, s []uint64) {
		s[0] = e.ecrecover(s[0], s[1], s[2], s[3], s[4], s[5], s[6])
	}},
	{name: "ed25519_verify", params: []string{"signature_len", "signature_ptr", "message_len", "message_ptr", "public_key_len", "public_key_ptr"}, result: true, fn: func(e *Environment, s []uint64) {
		s[0] = e.ed25519Verify(s[0], s[1], s[2], s[3], s[4], s[5])
	}},

	// output and diagnostics
	{name: "value_return", params: []string{"value_len", "value_ptr"}, fn: func(e *Environment, s []uint64) {
		e.valueReturn(s[0], s[1])
	}},
	{name: "panic", fn: func(e *Environment, _ []uint64) {
		e.panicExplicit()
	}},
	{name: "panic_utf8", params: []string{"len", "ptr"}, fn: func(e *Environment, s []uint64) {
		e.panicUTF8(s[0], s[1])
	}},
	{name: "log_utf8", params: []string{"len", "ptr"}, fn: func(e *Environment, s []uint64) {
		e.logUTF8(s[0], s[1])
	}},
	{name: "log_utf16", params: []string{"len", "ptr"}, fn: func(e *Environment, s []uint64) {
		e.logUTF16(s[0], s[1])
	}},
	{name: "abort", params: []string{"msg_ptr", "filename_ptr", "line", "col"}, i32: true, fn: func(e *Environment, s []uint64) {
		e.abort(api.DecodeU32(s[0]), api.DecodeU32(s[1]), api.DecodeU32(s[2]), api.DecodeU32(s[3]))
	}},

	// promises
	noop("promise_create", true, "account_id_len", "account_id_ptr", "method_name_len", "method_name_ptr", "arguments_len", "arguments_ptr", "amount_ptr", "gas"),
	noop("promise_then", true, "promise_index", "account_id_len", "account_id_ptr", "method_name_len", "method_name_ptr", "arguments_len", "arguments_ptr", "amount_ptr", "gas"),
	noop("promise_and", true, "promise_idx_ptr", "promise_idx_count"),
	noop("promise_batch_create", true, "account_id_len", "account_id_ptr"),
	noop("promise_batch_then", true, "promise_index", "account_id_len", "account_id_ptr"),
	noop("promise_batch_action_create_account", false, "promise_index"),
	noop("promise_batch_action_deploy_contract", false, "promise_index", "code_len", "code_ptr"),
	noop("promise_batch_action_function_call", false, "promise_index", "method_name_len", "method_name_ptr", "arguments_len", "arguments_ptr", "amount_ptr", "gas"),
	noop("promise_batch_action_function_call_weight", false, "promise_index", "method_name_len", "method_name_ptr", "arguments_len", "arguments_ptr", "amount_ptr", "gas", "gas_weight"),
	noop("promise_batch_action_transfer", false, "promise_index", "amount_ptr"),
	noop("promise_batch_action_stake", false, "promise_index", "amount_ptr", "public_key_len", "public_key_ptr"),
	noop("promise_batch_action_add_key_with_full_access", false, "promise_index", "public_key_len", "public_key_ptr", "nonce"),
	noop("promise_batch_action_add_key_with_function_call", false, "promise_index", "public_key_len", "public_key_ptr", "nonce", "allowance_ptr", "receiver_id_len", "receiver_id_ptr", "method_names_len", "method_names_ptr"),
	noop("promise_batch_action_delete_key", false, "promise_index", "public_key_len", "public_key_ptr"),
	noop("promise_batch_action_delete_account", false, "promise_index", "beneficiary_id_len", "beneficiary_id_ptr"),
	noop("promise_results_count", true),
	noop("promise_result", true, "result_idx", "register_id"),
	noop("promise_return", false, "promise_id"),

	// storage
	{name: "storage_write", params: []string{"key_len", "key_ptr", "value_len", "value_ptr", "register_id"}, result: true, fn: func(e *Environment, s []uint64) {
		s[0] = e.storageWrite(s[0], s[1], s[2], s[3], s[4])
	}},
	{name: "storage_read", params: []string{"key_len", "key_ptr", "register_id"}, result: true, fn: func(e *Environment, s []uint64) {
		s[0] = e.storageRead(s[0], s[1], s[2])
	}},
	{name: "storage_remove", params: []string{"key_len", "key_ptr", "register_id"}, result: true, fn: func(e *Environment, s []uint64) {
		s[0] = e.storageRemove(s[0], s[1], s[2])
	}},
	{name: "storage_has_key", params: []string{"key_len", "key_ptr"}, result: true, fn: func(e *Environment, s []uint64) {
		s[0] = e.storageHasKey(s[0], s[1])
	}},
}

// FunctionNames lists every function of the env namespace in registration order.
func FunctionNames() []string {
	names := make([]string, len(hostFunctions))
	for i, f := range hostFunctions {
		names[i] = f.name
	}
	return names
}

// Signature returns the wasm signature of the named env function.
func Signature(name string) (wasm.FuncType, bool) {
	for _, f := range hostFunctions {
		if f.name == name {
			return f.funcType(), true
		}
	}
	return wasm.FuncType{}, false
}

// ShimModule builds the env module: it imports every host function from
// ImplementationModule, re-exports it, and defines and exports the linear
// memory with the given page limits.
func ShimModule(initialPages, maxPages uint32) []byte {
	b := wasm.NewModuleBuilder()
	for _, f := range hostFunctions {
		idx := b.ImportFunction(ImplementationModule, f.name, f.funcType())
		b.Export(f.name, wasm.ExternalFunction, idx)
	}
	b.DefineMemory(initialPages, &maxPages)
	b.Export(wasm.HostMemory, wasm.ExternalMemory, 0)
	return b.Build()
}

// Instantiate registers the host functions with r, instantiates the env shim
// and binds its memory. After it returns, modules rewritten by wasm.Rewrite
// can be instantiated in r.
func (e *Environment) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(ImplementationModule)
	for _, f := range hostFunctions {
		f := f
		params, results := f.apiTypes()
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
				f.fn(e, stack)
			}), params, results).
			WithParameterNames(f.params...).
			Export(f.name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return nil, fmt.Errorf("instantiating %s: %w", ImplementationModule, err)
	}

	shim, err := r.InstantiateWithConfig(ctx, ShimModule(e.cfg.InitialMemoryPages, e.cfg.MaxMemoryPages),
		wazero.NewModuleConfig().WithName(wasm.HostModule))
	if err != nil {
		return nil, fmt.Errorf("instantiating %s shim: %w", wasm.HostModule, err)
	}
	mem := shim.ExportedMemory(wasm.HostMemory)
	if mem == nil {
		return nil, fmt.Errorf("%s shim does not export %s", wasm.HostModule, wasm.HostMemory)
	}
	e.Bind(mem)
	e.logger.Debug().
		Uint32("initial_pages", e.cfg.InitialMemoryPages).
		Uint32("max_pages", e.cfg.MaxMemoryPages).
		Int("functions", len(hostFunctions)).
		Msg("env bound")
	return shim, nil
}
