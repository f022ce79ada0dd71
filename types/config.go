package types

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CryptoMode selects how the cryptographic host functions behave.
type CryptoMode string

const (
	// CryptoStub returns zero-valued digests and failed verifications.
	CryptoStub CryptoMode = "stub"
	// CryptoNative computes real digests and ed25519 verification.
	CryptoNative CryptoMode = "native"
)

// HostConfig holds the constants the emulated runtime reports to the module.
// The values only need to keep the module's balance and gas guards quiet;
// the measured code paths do not branch on them.
type HostConfig struct {
	InitialMemoryPages uint32     `json:"initial_memory_pages" yaml:"initial_memory_pages"`
	MaxMemoryPages     uint32     `json:"max_memory_pages" yaml:"max_memory_pages"`
	Crypto             CryptoMode `json:"crypto" yaml:"crypto"`

	AccountBalance       Balance `json:"account_balance" yaml:"account_balance"`
	AccountLockedBalance Balance `json:"account_locked_balance" yaml:"account_locked_balance"`
	StorageByteCost      Balance `json:"storage_byte_cost" yaml:"storage_byte_cost"`

	BlockIndex     uint64 `json:"block_index" yaml:"block_index"`
	BlockTimestamp uint64 `json:"block_timestamp" yaml:"block_timestamp"`
	EpochHeight    uint64 `json:"epoch_height" yaml:"epoch_height"`
	PrepaidGas     uint64 `json:"prepaid_gas" yaml:"prepaid_gas"`
	UsedGas        uint64 `json:"used_gas" yaml:"used_gas"`
}

// Accounts names the identities used while driving the module.
type Accounts struct {
	// Contract is the account the module is deployed on.
	Contract string `json:"contract" yaml:"contract"`
	// Deployer calls the initializer.
	Deployer string `json:"deployer" yaml:"deployer"`
	// Member submits proposals.
	Member string `json:"member" yaml:"member"`
	// Voter acts on proposals. It must differ from Member.
	Voter string `json:"voter" yaml:"voter"`
	// SignerPublicKey is reported by signer_account_pk, "ed25519:<base58>".
	SignerPublicKey string `json:"signer_public_key,omitempty" yaml:"signer_public_key,omitempty"`
}

// EstimatorConfig configures an estimation driver.
type EstimatorConfig struct {
	Host     HostConfig `json:"host" yaml:"host"`
	Accounts Accounts   `json:"accounts" yaml:"accounts"`

	// InitMethod is the exported initializer run once to build the baseline.
	InitMethod string `json:"init_method" yaml:"init_method"`
	// DAO is the configuration payload handed to the initializer.
	DAO DAOConfig `json:"dao" yaml:"dao"`
	// ProposalBond is attached to every proposal submission.
	ProposalBond Balance `json:"proposal_bond" yaml:"proposal_bond"`
	// Parallelism bounds the number of independent instances used by report runs.
	Parallelism int `json:"parallelism" yaml:"parallelism"`
}

const (
	// DefaultInitialMemoryPages matches the runtime's initial memory size.
	DefaultInitialMemoryPages = 1024
	// DefaultMaxMemoryPages matches the runtime's memory limit.
	DefaultMaxMemoryPages = 2048
)

// DefaultHostConfig returns the host constants used when nothing is configured.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		InitialMemoryPages:   DefaultInitialMemoryPages,
		MaxMemoryPages:       DefaultMaxMemoryPages,
		Crypto:               CryptoStub,
		AccountBalance:       MustParseBalance("100000000000000000000000000"), // 100 NEAR
		AccountLockedBalance: NewBalance(0),
		StorageByteCost:      MustParseBalance("10000000000000000000"),
		BlockIndex:           100_000_000,
		BlockTimestamp:       1_700_000_000_000_000_000,
		EpochHeight:          2_000,
		PrepaidGas:           300_000_000_000_000,
		UsedGas:              0,
	}
}

// DefaultEstimatorConfig returns the configuration used by the CLI and tests.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		Host: DefaultHostConfig(),
		Accounts: Accounts{
			Contract: "treasury.sputnik-dao.near",
			Deployer: "deployer.near",
			Member:   "member.near",
			Voter:    "council.near",
		},
		InitMethod: "new",
		DAO: DAOConfig{
			Name:    "treasury",
			Purpose: "storage cost estimation",
		},
		ProposalBond: MustParseBalance("1000000000000000000000000"), // 1 NEAR
		Parallelism:  1,
	}
}

// Validate checks the configuration for values the driver cannot work with.
func (c EstimatorConfig) Validate() error {
	if c.Host.InitialMemoryPages == 0 {
		return fmt.Errorf("host.initial_memory_pages must be positive")
	}
	if c.Host.MaxMemoryPages < c.Host.InitialMemoryPages {
		return fmt.Errorf("host.max_memory_pages (%d) is below host.initial_memory_pages (%d)", c.Host.MaxMemoryPages, c.Host.InitialMemoryPages)
	}
	switch c.Host.Crypto {
	case CryptoStub, CryptoNative:
	default:
		return fmt.Errorf("host.crypto: unknown mode %q", c.Host.Crypto)
	}
	if c.InitMethod == "" {
		return fmt.Errorf("init_method must be set")
	}
	if c.Accounts.Contract == "" || c.Accounts.Deployer == "" || c.Accounts.Member == "" || c.Accounts.Voter == "" {
		return fmt.Errorf("accounts: contract, deployer, member and voter must all be set")
	}
	if c.Accounts.Member == c.Accounts.Voter {
		return fmt.Errorf("accounts: voter must differ from member")
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative")
	}
	return nil
}

// LoadConfig reads a configuration file on top of DefaultEstimatorConfig.
// Files ending in .json are decoded as JSON, everything else as YAML.
func LoadConfig(path string) (EstimatorConfig, error) {
	cfg := DefaultEstimatorConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("decoding config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}
