// Package host emulates the runtime a contract module is linked against: its
// storage, registers, execution context and the host functions that expose
// them to the module.
package host

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero/api"

	"github.com/treasurydao/storagecost/internal/runtime/storage"
	"github.com/treasurydao/storagecost/types"
)

// Environment is the state behind every host function of one module instance.
// It starts uninitialized and becomes bound once Bind hands it the linear
// memory the module imports. An Environment is not safe for concurrent use.
type Environment struct {
	cfg    types.HostConfig
	logger zerolog.Logger

	store     *storage.Store
	registers map[uint64][]byte

	ctx      types.ExecutionContext
	signerPK []byte

	mem        api.Memory
	returnData []byte
	returned   bool
	logs       []string
}

// NewEnvironment creates an uninitialized environment with empty storage.
func NewEnvironment(cfg types.HostConfig, logger zerolog.Logger) *Environment {
	return &Environment{
		cfg:       cfg,
		logger:    logger.With().Str("module", "host").Logger(),
		store:     storage.New(),
		registers: make(map[uint64][]byte),
		signerPK:  make([]byte, 33),
	}
}

// Config returns the host constants.
func (e *Environment) Config() types.HostConfig {
	return e.cfg
}

// Bind attaches the linear memory shared with the module.
func (e *Environment) Bind(mem api.Memory) {
	e.mem = mem
}

// Bound reports whether a memory has been attached.
func (e *Environment) Bound() bool {
	return e.mem != nil
}

// Memory returns the bound memory, or nil.
func (e *Environment) Memory() api.Memory {
	return e.mem
}

// SetExecutionContext replaces the identities, deposit and input bytes seen by
// the next invocation.
func (e *Environment) SetExecutionContext(ctx types.ExecutionContext) error {
	pk, err := decodePublicKey(ctx.SignerPublicKey)
	if err != nil {
		return err
	}
	ctx.Input = append([]byte{}, ctx.Input...)
	e.ctx = ctx
	e.signerPK = pk
	return nil
}

// ExecutionContext returns the current execution context.
func (e *Environment) ExecutionContext() types.ExecutionContext {
	return e.ctx
}

// BeginCall clears the per-call state: return value, logs and registers.
func (e *Environment) BeginCall() {
	e.returnData = nil
	e.returned = false
	e.logs = nil
	e.registers = make(map[uint64][]byte)
}

// ReturnData returns the bytes passed to value_return during the last call and
// whether value_return was called at all.
func (e *Environment) ReturnData() ([]byte, bool) {
	return e.returnData, e.returned
}

// Logs returns the lines logged by the module during the last call.
func (e *Environment) Logs() []string {
	return e.logs
}

// StorageUsage returns the current accounted storage size.
func (e *Environment) StorageUsage() uint64 {
	return e.store.Usage()
}

// Storage exposes the underlying store.
func (e *Environment) Storage() *storage.Store {
	return e.store
}

// SnapshotStorage returns a deep copy of the storage map.
func (e *Environment) SnapshotStorage() (storage.Snapshot, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return storage.Snapshot{}, err
	}
	e.logger.Debug().Int("entries", snap.Len()).Uint64("usage", snap.Usage()).Msg("storage snapshot")
	return snap, nil
}

// RestoreStorage replaces the storage map with snap.
func (e *Environment) RestoreStorage(snap storage.Snapshot) error {
	if err := e.store.Restore(snap); err != nil {
		return err
	}
	e.logger.Debug().Int("entries", snap.Len()).Uint64("usage", snap.Usage()).Msg("storage restored")
	return nil
}

// Register returns the content of register id.
func (e *Environment) Register(id uint64) ([]byte, bool) {
	v, ok := e.registers[id]
	return v, ok
}

func (e *Environment) setRegister(id uint64, data []byte) {
	e.registers[id] = append([]byte{}, data...)
}

// decodePublicKey turns "ed25519:<base58>" or "secp256k1:<base58>" into the
// curve byte followed by the key bytes. An empty key yields 33 zero bytes.
func decodePublicKey(s string) ([]byte, error) {
	if s == "" {
		return make([]byte, 33), nil
	}
	curve, data := byte(0), s
	if prefix, rest, ok := strings.Cut(s, ":"); ok {
		switch prefix {
		case "ed25519":
		case "secp256k1":
			curve = 1
		default:
			return nil, fmt.Errorf("public key %q: unknown curve %q", s, prefix)
		}
		data = rest
	}
	raw, err := base58.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("public key %q: %w", s, err)
	}
	want := 32
	if curve == 1 {
		want = 64
	}
	if len(raw) != want {
		return nil, fmt.Errorf("public key %q: expected %d bytes, got %d", s, want, len(raw))
	}
	return append([]byte{curve}, raw...), nil
}
