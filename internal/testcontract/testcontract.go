// Package testcontract assembles small contract modules that link against the
// env namespace. They stand in for a real DAO build in tests: each entry
// point touches storage in a way whose accounted size is easy to predict.
package testcontract

import (
	"encoding/binary"

	"github.com/treasurydao/storagecost/internal/wasm"
	"github.com/treasurydao/storagecost/internal/wasm/leb128"
)

// Storage keys written by the DAO fixture.
const (
	KeyConfig   = "cfg"
	KeyProposal = "prop"
)

// ProposalID is the id add_proposal returns through value_return.
const ProposalID = "0"

// MinBondMessage is the panic message of add_proposal without a deposit.
const MinBondMessage = "ERR_MIN_BOND"

// Abort details raised by the abort entry point.
const (
	AbortMessage  = "bad"
	AbortFile     = "a.ts"
	AbortLine     = 7
	AbortColumn   = 3
	InitLogLine   = "initialized"
	scratchInput  = 1024
	scratchCaller = 512
	scratchU128   = 256
)

// Fixed data layout in linear memory.
const (
	offConfigKey   = 0
	offProposalKey = 16
	offPanicMsg    = 32
	offReturn      = 64
	offLog         = 80
	offAbortMsg    = 204
	offAbortFile   = 224
)

var (
	i64     = wasm.ValueTypeI64
	i32     = wasm.ValueTypeI32
	voidFn  = wasm.FuncType{}
	oneArg  = wasm.FuncType{Params: []wasm.ValueType{i64}}
	twoArgs = wasm.FuncType{Params: []wasm.ValueType{i64, i64}}
)

type imports struct {
	input, readRegister, registerLen, storageWrite, storageRemove uint32
	panicUTF8, valueReturn, predecessor, logUTF8, deposit, abort  uint32
}

// code is an instruction stream.
type code []byte

func (c code) i64(v int64) code { return leb128.AppendInt64(append(c, 0x42), v) }
func (c code) i32(v int32) code { return leb128.AppendInt64(append(c, 0x41), int64(v)) }
func (c code) call(f uint32) code { return leb128.AppendUint32(append(c, 0x10), f) }
func (c code) drop() code { return append(c, 0x1a) }
func (c code) load64() code { return append(c, 0x29, 0x03, 0x00) }

// copyInput loads the call arguments into register 0 and memory at scratchInput.
func (c code) copyInput(im imports) code {
	return c.i64(0).call(im.input).
		i64(0).i64(scratchInput).call(im.readRegister)
}

// DAO returns a module exporting new, add_proposal, act_proposal, remove_config
// and abort, with its own exported memory so that it needs rewriting before it
// can be linked against env.
//
//   - new stores its input under KeyConfig and logs InitLogLine.
//   - add_proposal panics with MinBondMessage when no deposit is attached,
//     otherwise stores the input under KeyProposal and returns ProposalID.
//   - act_proposal stores its input under the predecessor account id.
//   - remove_config deletes KeyConfig.
//   - abort aborts with AbortMessage at AbortFile:AbortLine:AbortColumn.
func DAO() []byte {
	b := wasm.NewModuleBuilder()
	im := declareImports(b)

	newBody := code{}.copyInput(im).
		i64(int64(len(KeyConfig))).i64(offConfigKey).
		i64(0).call(im.registerLen).i64(scratchInput).i64(1).call(im.storageWrite).drop().
		i64(int64(len(InitLogLine))).i64(offLog).call(im.logUTF8)

	addBody := code{}.i64(scratchU128).call(im.deposit).
		i32(scratchU128).load64().
		i32(scratchU128 + 8).load64()
	addBody = append(addBody, 0x84, 0x50, 0x04, 0x40) // i64.or; i64.eqz; if
	addBody = addBody.i64(int64(len(MinBondMessage))).i64(offPanicMsg).call(im.panicUTF8)
	addBody = append(addBody, 0x0b) // end
	addBody = addBody.copyInput(im).
		i64(int64(len(KeyProposal))).i64(offProposalKey).
		i64(0).call(im.registerLen).i64(scratchInput).i64(1).call(im.storageWrite).drop().
		i64(int64(len(ProposalID))).i64(offReturn).call(im.valueReturn)

	actBody := code{}.i64(2).call(im.predecessor).
		i64(2).i64(scratchCaller).call(im.readRegister).
		copyInput(im).
		i64(2).call(im.registerLen).i64(scratchCaller).
		i64(0).call(im.registerLen).i64(scratchInput).i64(1).call(im.storageWrite).drop()

	removeBody := code{}.i64(int64(len(KeyConfig))).i64(offConfigKey).i64(1).call(im.storageRemove).drop()

	abortBody := code{}.i32(offAbortMsg).i32(offAbortFile).i32(AbortLine).i32(AbortColumn).call(im.abort)

	for _, fn := range []struct {
		name string
		body code
	}{
		{"new", newBody},
		{"add_proposal", addBody},
		{"act_proposal", actBody},
		{"remove_config", removeBody},
		{"abort", abortBody},
	} {
		idx := b.AddFunction(voidFn, nil, fn.body)
		b.Export(fn.name, wasm.ExternalFunction, idx)
	}

	max := uint32(16)
	b.DefineMemory(1, &max)
	b.Export("memory", wasm.ExternalMemory, 0)

	b.AddData(offConfigKey, []byte(KeyConfig))
	b.AddData(offProposalKey, []byte(KeyProposal))
	b.AddData(offPanicMsg, []byte(MinBondMessage))
	b.AddData(offReturn, []byte(ProposalID))
	b.AddData(offLog, []byte(InitLogLine))
	b.AddData(offAbortMsg-4, prefixedUTF16(AbortMessage))
	b.AddData(offAbortFile-4, prefixedUTF16(AbortFile))
	b.AddCustom("name", []byte{0x00, 0x04, 0x03, 'd', 'a', 'o'})
	return b.Build()
}

// Rewritten returns DAO after wasm.Rewrite.
func Rewritten() []byte {
	out, err := wasm.Rewrite(DAO())
	if err != nil {
		panic(err)
	}
	return out
}

func declareImports(b *wasm.ModuleBuilder) imports {
	env := wasm.HostModule
	var im imports
	im.input = b.ImportFunction(env, "input", oneArg)
	im.readRegister = b.ImportFunction(env, "read_register", twoArgs)
	im.registerLen = b.ImportFunction(env, "register_len", wasm.FuncType{Params: []wasm.ValueType{i64}, Results: []wasm.ValueType{i64}})
	im.storageWrite = b.ImportFunction(env, "storage_write", wasm.FuncType{Params: []wasm.ValueType{i64, i64, i64, i64, i64}, Results: []wasm.ValueType{i64}})
	im.storageRemove = b.ImportFunction(env, "storage_remove", wasm.FuncType{Params: []wasm.ValueType{i64, i64, i64}, Results: []wasm.ValueType{i64}})
	im.panicUTF8 = b.ImportFunction(env, "panic_utf8", twoArgs)
	im.valueReturn = b.ImportFunction(env, "value_return", twoArgs)
	im.predecessor = b.ImportFunction(env, "predecessor_account_id", oneArg)
	im.logUTF8 = b.ImportFunction(env, "log_utf8", twoArgs)
	im.deposit = b.ImportFunction(env, "attached_deposit", oneArg)
	im.abort = b.ImportFunction(env, "abort", wasm.FuncType{Params: []wasm.ValueType{i32, i32, i32, i32}})
	return im
}

// prefixedUTF16 encodes ASCII s as UTF-16LE preceded by its byte length.
func prefixedUTF16(s string) []byte {
	out := binary.LittleEndian.AppendUint32(nil, uint32(2*len(s)))
	for i := 0; i < len(s); i++ {
		out = append(out, s[i], 0)
	}
	return out
}
