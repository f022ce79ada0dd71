package host

import (
	"fmt"
	"math"

	"github.com/treasurydao/storagecost/types"
)

// registerAbsent is returned by register_len for a register never written.
const registerAbsent = math.MaxUint64

// --- Registers ---

func (e *Environment) readRegister(id, ptr uint64) {
	data, ok := e.registers[id]
	if !ok {
		panic(types.NewInternalError("read_register", "register %d is not set", id))
	}
	e.write("read_register", ptr, data)
}

func (e *Environment) registerLen(id uint64) uint64 {
	data, ok := e.registers[id]
	if !ok {
		return registerAbsent
	}
	return uint64(len(data))
}

func (e *Environment) writeRegister(id, dataLen, dataPtr uint64) {
	e.setRegister(id, e.read("write_register", dataPtr, dataLen))
}

// --- Context ---

func (e *Environment) currentAccountID(registerID uint64) {
	e.setRegister(registerID, []byte(e.ctx.CurrentAccountID))
}

func (e *Environment) signerAccountID(registerID uint64) {
	e.setRegister(registerID, []byte(e.ctx.SignerAccountID))
}

func (e *Environment) signerAccountPK(registerID uint64) {
	e.setRegister(registerID, e.signerPK)
}

func (e *Environment) predecessorAccountID(registerID uint64) {
	e.setRegister(registerID, []byte(e.ctx.PredecessorAccountID))
}

func (e *Environment) input(registerID uint64) {
	e.setRegister(registerID, e.ctx.Input)
}

func (e *Environment) attachedDeposit(ptr uint64) {
	e.writeU128("attached_deposit", ptr, e.ctx.AttachedDeposit)
}

func (e *Environment) accountBalance(ptr uint64) {
	e.writeU128("account_balance", ptr, e.cfg.AccountBalance)
}

func (e *Environment) accountLockedBalance(ptr uint64) {
	e.writeU128("account_locked_balance", ptr, e.cfg.AccountLockedBalance)
}

func (e *Environment) storageByteCost(ptr uint64) {
	e.writeU128("storage_byte_cost", ptr, e.cfg.StorageByteCost)
}

func (e *Environment) validatorStake(accountIDLen, accountIDPtr, stakePtr uint64) {
	e.read("validator_stake", accountIDPtr, accountIDLen)
	e.writeU128("validator_stake", stakePtr, types.Balance{})
}

func (e *Environment) validatorTotalStake(stakePtr uint64) {
	e.writeU128("validator_total_stake", stakePtr, types.Balance{})
}

// --- Storage ---

func (e *Environment) storageWrite(keyLen, keyPtr, valueLen, valuePtr, registerID uint64) uint64 {
	key := e.read("storage_write", keyPtr, keyLen)
	value := e.read("storage_write", valuePtr, valueLen)
	old, existed, err := e.store.Set(key, value)
	if err != nil {
		panic(&types.InternalError{Function: "storage_write", Err: err})
	}
	e.logger.Trace().Bytes("key", key).Int("len", len(value)).Bool("existed", existed).Msg("storage_write")
	if !existed {
		return 0
	}
	e.setRegister(registerID, old)
	return 1
}

func (e *Environment) storageRead(keyLen, keyPtr, registerID uint64) uint64 {
	key := e.read("storage_read", keyPtr, keyLen)
	value, ok, err := e.store.Get(key)
	if err != nil {
		panic(&types.InternalError{Function: "storage_read", Err: err})
	}
	if !ok {
		return 0
	}
	e.setRegister(registerID, value)
	return 1
}

func (e *Environment) storageRemove(keyLen, keyPtr, registerID uint64) uint64 {
	key := e.read("storage_remove", keyPtr, keyLen)
	old, existed, err := e.store.Remove(key)
	if err != nil {
		panic(&types.InternalError{Function: "storage_remove", Err: err})
	}
	e.logger.Trace().Bytes("key", key).Bool("existed", existed).Msg("storage_remove")
	if !existed {
		return 0
	}
	e.setRegister(registerID, old)
	return 1
}

func (e *Environment) storageHasKey(keyLen, keyPtr uint64) uint64 {
	key := e.read("storage_has_key", keyPtr, keyLen)
	ok, err := e.store.Has(key)
	if err != nil {
		panic(&types.InternalError{Function: "storage_has_key", Err: err})
	}
	if ok {
		return 1
	}
	return 0
}

// --- Output and diagnostics ---

func (e *Environment) valueReturn(valueLen, valuePtr uint64) {
	e.returnData = e.read("value_return", valuePtr, valueLen)
	e.returned = true
}

func (e *Environment) log(line string) {
	e.logs = append(e.logs, line)
	e.logger.Debug().Str("account", e.ctx.CurrentAccountID).Msg(line)
}

func (e *Environment) logUTF8(length, ptr uint64) {
	e.log(e.readUTF8("log_utf8", length, ptr))
}

func (e *Environment) logUTF16(length, ptr uint64) {
	e.log(e.readUTF16("log_utf16", length, ptr))
}

func (e *Environment) panicExplicit() {
	panic(&types.HostPanicError{Function: "panic", Message: "explicit guest panic"})
}

func (e *Environment) panicUTF8(length, ptr uint64) {
	panic(&types.HostPanicError{Function: "panic_utf8", Message: e.readUTF8("panic_utf8", length, ptr)})
}

func (e *Environment) abort(msgPtr, filenamePtr, line, col uint32) {
	msg := e.readPrefixedUTF16("abort", msgPtr)
	file := e.readPrefixedUTF16("abort", filenamePtr)
	panic(&types.HostPanicError{
		Function: "abort",
		Message:  fmt.Sprintf("%s, filename: \"%s\" line: %d col: %d", msg, file, line, col),
	})
}
