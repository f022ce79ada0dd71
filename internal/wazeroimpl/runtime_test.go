package wazeroimpl

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/treasurydao/storagecost/internal/runtime/storage"
	"github.com/treasurydao/storagecost/internal/testcontract"
	"github.com/treasurydao/storagecost/internal/wasm"
	"github.com/treasurydao/storagecost/types"
)

func setupCache(t *testing.T, opts Options) (*Cache, types.Checksum) {
	t.Helper()
	ctx := context.Background()
	cfg := types.DefaultHostConfig()
	cfg.InitialMemoryPages = 2
	cfg.MaxMemoryPages = 16

	cache, err := InitCache(ctx, cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close(ctx) })

	code := testcontract.Rewritten()
	checksum, err := types.CreateChecksum(code)
	require.NoError(t, err)
	require.NoError(t, cache.Compile(ctx, checksum, code))
	return cache, checksum
}

func TestOriginalModuleIsRejected(t *testing.T) {
	ctx := context.Background()
	cache, err := InitCache(ctx, types.DefaultHostConfig(), Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer cache.Close(ctx)

	// without rewriting, the module's own memory is not the one the host sees
	code := testcontract.DAO()
	checksum, err := types.CreateChecksum(code)
	require.NoError(t, err)
	err = cache.Compile(ctx, checksum, code)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "exports 1 memories")

	_, err = cache.Instantiate(ctx, checksum)
	require.Error(t, err)
}

func TestValidateImports(t *testing.T) {
	ctx := context.Background()
	cache, err := InitCache(ctx, types.DefaultHostConfig(), Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer cache.Close(ctx)

	i64 := wasm.ValueTypeI64
	cases := map[string]struct {
		build  func(b *wasm.ModuleBuilder)
		reason string
	}{
		"no memory": {
			build:  func(b *wasm.ModuleBuilder) {},
			reason: "exactly one memory, found 0",
		},
		"foreign memory": {
			build: func(b *wasm.ModuleBuilder) {
				b.ImportMemory("other", "memory", wasm.Limits{})
			},
			reason: "memory imported from other.memory",
		},
		"foreign module": {
			build: func(b *wasm.ModuleBuilder) {
				b.ImportFunction("wasi_snapshot_preview1", "fd_write", wasm.FuncType{Params: []wasm.ValueType{i64}})
				b.ImportMemory(wasm.HostModule, wasm.HostMemory, wasm.Limits{})
			},
			reason: "wasi_snapshot_preview1.fd_write",
		},
		"unknown function": {
			build: func(b *wasm.ModuleBuilder) {
				b.ImportFunction(wasm.HostModule, "gas", wasm.FuncType{Params: []wasm.ValueType{i64}})
				b.ImportMemory(wasm.HostModule, wasm.HostMemory, wasm.Limits{})
			},
			reason: `"gas" is not provided`,
		},
		"wrong signature": {
			build: func(b *wasm.ModuleBuilder) {
				b.ImportFunction(wasm.HostModule, "register_len", wasm.FuncType{Params: []wasm.ValueType{i64}})
				b.ImportMemory(wasm.HostModule, wasm.HostMemory, wasm.Limits{})
			},
			reason: `"register_len" imported as [i64] -> [], expected [i64] -> [i64]`,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			b := wasm.NewModuleBuilder()
			tc.build(b)
			code := b.Build()
			checksum, err := types.CreateChecksum(code)
			require.NoError(t, err)

			err = cache.Compile(ctx, checksum, code)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Error(), tc.reason)
		})
	}
}

func TestCallStoresInput(t *testing.T) {
	ctx := context.Background()
	cache, checksum := setupCache(t, Options{Logger: zerolog.Nop()})
	env := cache.Environment()

	mod, err := cache.Instantiate(ctx, checksum)
	require.NoError(t, err)
	again, err := cache.Instantiate(ctx, checksum)
	require.NoError(t, err)
	assert.Same(t, mod, again)
	assert.Nil(t, mod.ExportedMemory("memory"))

	input := []byte(`{"config":{}}`)
	require.NoError(t, cache.Call(ctx, mod, "new", types.ExecutionContext{
		CurrentAccountID:     "dao.near",
		PredecessorAccountID: "deployer.near",
		Input:                input,
	}))
	assert.Equal(t, storage.EntryUsage([]byte(testcontract.KeyConfig), input), env.StorageUsage())
	assert.Equal(t, []string{testcontract.InitLogLine}, env.Logs())

	require.NoError(t, cache.Call(ctx, mod, "add_proposal", types.ExecutionContext{
		PredecessorAccountID: "member.near",
		AttachedDeposit:      types.NewBalance(1),
		Input:                []byte("p"),
	}))
	ret, ok := env.ReturnData()
	require.True(t, ok)
	assert.Equal(t, testcontract.ProposalID, string(ret))

	before := env.StorageUsage()
	require.NoError(t, cache.Call(ctx, mod, "act_proposal", types.ExecutionContext{
		PredecessorAccountID: "voter.near",
		Input:                []byte("vote"),
	}))
	assert.Equal(t, storage.EntryUsage([]byte("voter.near"), []byte("vote")), env.StorageUsage()-before)

	before = env.StorageUsage()
	require.NoError(t, cache.Call(ctx, mod, "remove_config", types.ExecutionContext{}))
	assert.Equal(t, storage.EntryUsage([]byte(testcontract.KeyConfig), input), before-env.StorageUsage())
}

func TestCallErrors(t *testing.T) {
	ctx := context.Background()
	cache, checksum := setupCache(t, Options{Logger: zerolog.Nop()})
	mod, err := cache.Instantiate(ctx, checksum)
	require.NoError(t, err)

	err = cache.Call(ctx, mod, "missing", types.ExecutionContext{})
	require.ErrorIs(t, err, ErrMethodNotFound)

	err = cache.Call(ctx, mod, "add_proposal", types.ExecutionContext{Input: []byte("x")})
	var hp *types.HostPanicError
	require.ErrorAs(t, err, &hp)
	assert.Equal(t, "panic_utf8", hp.Function)
	assert.Equal(t, testcontract.MinBondMessage, hp.Message)

	err = cache.Call(ctx, mod, "abort", types.ExecutionContext{})
	require.ErrorAs(t, err, &hp)
	assert.Equal(t, `bad, filename: "a.ts" line: 7 col: 3`, hp.Message)

	// the instance stays usable after a host panic
	require.NoError(t, cache.Call(ctx, mod, "add_proposal", types.ExecutionContext{
		AttachedDeposit: types.MustParseBalance("18446744073709551616"),
		Input:           []byte("x"),
	}))

	err = cache.Call(ctx, mod, "new", types.ExecutionContext{SignerPublicKey: "ed25519:0OIl"})
	require.Error(t, err)
}

func TestSharedCompilationCache(t *testing.T) {
	ctx := context.Background()
	cc := wazero.NewCompilationCache()
	defer cc.Close(ctx)

	a, checksum := setupCache(t, Options{CompilationCache: cc, Logger: zerolog.Nop()})
	b, _ := setupCache(t, Options{CompilationCache: cc, Logger: zerolog.Nop()})

	for _, c := range []*Cache{a, b} {
		mod, err := c.Instantiate(ctx, checksum)
		require.NoError(t, err)
		require.NoError(t, c.Call(ctx, mod, "new", types.ExecutionContext{Input: []byte("cfg")}))
	}
	// each cache owns its storage
	assert.Equal(t, a.Environment().StorageUsage(), b.Environment().StorageUsage())
	require.NoError(t, a.Environment().RestoreStorage(storage.Snapshot{}))
	assert.Equal(t, uint64(0), a.Environment().StorageUsage())
	assert.NotEqual(t, uint64(0), b.Environment().StorageUsage())
}
