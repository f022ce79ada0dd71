package types

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEstimatorConfigIsValid(t *testing.T) {
	cfg := DefaultEstimatorConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(DefaultInitialMemoryPages), cfg.Host.InitialMemoryPages)
	assert.Equal(t, uint32(DefaultMaxMemoryPages), cfg.Host.MaxMemoryPages)
	assert.Equal(t, CryptoStub, cfg.Host.Crypto)
	assert.Equal(t, "1000000000000000000000000", cfg.ProposalBond.String())
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*EstimatorConfig){
		"zero pages":        func(c *EstimatorConfig) { c.Host.InitialMemoryPages = 0 },
		"max below initial": func(c *EstimatorConfig) { c.Host.MaxMemoryPages = c.Host.InitialMemoryPages - 1 },
		"crypto mode":       func(c *EstimatorConfig) { c.Host.Crypto = "fast" },
		"no init method":    func(c *EstimatorConfig) { c.InitMethod = "" },
		"no contract":       func(c *EstimatorConfig) { c.Accounts.Contract = "" },
		"voter is member":   func(c *EstimatorConfig) { c.Accounts.Voter = c.Accounts.Member },
		"negative workers":  func(c *EstimatorConfig) { c.Parallelism = -1 },
	} {
		cfg := DefaultEstimatorConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estimator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host:
  crypto: native
  initial_memory_pages: 64
accounts:
  voter: alice.near
proposal_bond: "100000000000000000000000"
parallelism: 4
dao:
  name: grants
  metadata: bWV0YQ==
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, CryptoNative, cfg.Host.Crypto)
	assert.Equal(t, uint32(64), cfg.Host.InitialMemoryPages)
	assert.Equal(t, uint32(DefaultMaxMemoryPages), cfg.Host.MaxMemoryPages)
	assert.Equal(t, "alice.near", cfg.Accounts.Voter)
	assert.Equal(t, "member.near", cfg.Accounts.Member)
	assert.Equal(t, "100000000000000000000000", cfg.ProposalBond.String())
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, "grants", cfg.DAO.Name)
	assert.Equal(t, "meta", string(cfg.DAO.Metadata))
}

func TestLoadConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estimator.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"init_method":"init","host":{"block_index":"5"}}`), 0o600))
	_, err := LoadConfig(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"init_method":"init","host":{"block_index":5}}`), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "init", cfg.InitMethod)
	assert.Equal(t, uint64(5), cfg.Host.BlockIndex)
}

func TestLoadConfigInvalid(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("accounts:\n  voter: member.near\n"), 0o600))
	_, err = LoadConfig(path)
	require.Error(t, err)
}
