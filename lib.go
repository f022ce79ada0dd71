// Package storagecost measures how many bytes of contract storage a DAO
// operation consumes, by running the compiled contract against an emulated
// host and comparing storage usage before and after the call.
package storagecost

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/treasurydao/storagecost/internal/runtime/storage"
	"github.com/treasurydao/storagecost/internal/wasm"
	"github.com/treasurydao/storagecost/internal/wazeroimpl"
	"github.com/treasurydao/storagecost/types"
)

// Estimator is the entry point of this library. It keeps one instantiated
// module with its initialized baseline storage and reuses it for as long as
// it is handed the same module bytes.
//
// An Estimator is not safe for concurrent use. Use separate estimators, or
// EstimateMenu with Parallelism > 1, to measure in parallel.
type Estimator struct {
	cfg    types.EstimatorConfig
	logger zerolog.Logger

	compilation     wazero.CompilationCache
	ownsCompilation bool

	cache  *wazeroimpl.Cache
	loaded *loadedModule
}

// loadedModule is the memoized state for one module checksum.
type loadedModule struct {
	checksum  types.Checksum
	rewritten []byte
	instance  api.Module
	baseline  storage.Snapshot
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Estimator) {
		e.logger = logger
	}
}

// WithCompilationCache shares compiled code between estimators. The caller
// keeps ownership of cc.
func WithCompilationCache(cc wazero.CompilationCache) Option {
	return func(e *Estimator) {
		e.compilation = cc
	}
}

// New creates an Estimator. No module is loaded until the first estimation.
func New(cfg types.EstimatorConfig, opts ...Option) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	e := &Estimator{cfg: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.compilation == nil {
		e.compilation = wazero.NewCompilationCache()
		e.ownsCompilation = true
	}
	return e, nil
}

// Config returns the configuration the estimator was created with.
func (e *Estimator) Config() types.EstimatorConfig {
	return e.cfg
}

// Close releases the loaded module and, if the estimator created it, the
// compilation cache.
func (e *Estimator) Close(ctx context.Context) error {
	var errs []error
	if e.cache != nil {
		errs = append(errs, e.cache.Close(ctx))
		e.cache, e.loaded = nil, nil
	}
	if e.ownsCompilation && e.compilation != nil {
		errs = append(errs, e.compilation.Close(ctx))
		e.compilation = nil
	}
	return errors.Join(errs...)
}

// EstimateOperationStorage returns the number of storage bytes the operation
// adds on top of the initialized contract state. Operations that free storage
// report 0; use Measure to see both readings.
func (e *Estimator) EstimateOperationStorage(ctx context.Context, code []byte, d types.Descriptor) (uint64, error) {
	m, err := e.Measure(ctx, code, d)
	if err != nil {
		return 0, err
	}
	return m.Delta(), nil
}

// Measure runs the operation against a fresh copy of the baseline storage and
// returns the storage usage readings taken around the measured call.
func (e *Estimator) Measure(ctx context.Context, code []byte, d types.Descriptor) (types.Measurement, error) {
	m, err := e.load(ctx, code)
	if err != nil {
		return types.Measurement{}, err
	}
	return e.measure(ctx, m, d)
}

// Baseline returns the storage of the freshly initialized contract, the
// state every measurement starts from.
func (e *Estimator) Baseline(ctx context.Context, code []byte) (storage.Snapshot, error) {
	m, err := e.load(ctx, code)
	if err != nil {
		return storage.Snapshot{}, err
	}
	return m.baseline, nil
}

// load returns the memoized module for code, rebuilding it when the checksum
// differs from the one currently loaded.
func (e *Estimator) load(ctx context.Context, code []byte) (*loadedModule, error) {
	checksum, err := types.CreateChecksum(code)
	if err != nil {
		return nil, err
	}
	if e.loaded != nil && e.loaded.checksum == checksum {
		return e.loaded, nil
	}
	rewritten, err := wasm.Rewrite(code)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().Stringer("checksum", checksum).Int("size", len(code)).Int("rewritten", len(rewritten)).Msg("module rewritten")
	return e.loadRewritten(ctx, checksum, rewritten)
}

// loadRewritten instantiates rewritten code in a new runtime, runs the
// initializer and captures the baseline storage.
func (e *Estimator) loadRewritten(ctx context.Context, checksum types.Checksum, rewritten []byte) (*loadedModule, error) {
	if e.compilation == nil {
		return nil, errors.New("estimator is closed")
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			return nil, err
		}
		e.cache, e.loaded = nil, nil
	}

	cache, err := wazeroimpl.InitCache(ctx, e.cfg.Host, wazeroimpl.Options{
		CompilationCache: e.compilation,
		Logger:           e.logger,
	})
	if err != nil {
		return nil, err
	}
	m, err := e.initialize(ctx, cache, checksum, rewritten)
	if err != nil {
		_ = cache.Close(ctx)
		return nil, err
	}
	e.cache, e.loaded = cache, m
	return m, nil
}

func (e *Estimator) initialize(ctx context.Context, cache *wazeroimpl.Cache, checksum types.Checksum, rewritten []byte) (*loadedModule, error) {
	if err := cache.Compile(ctx, checksum, rewritten); err != nil {
		return nil, err
	}
	instance, err := cache.Instantiate(ctx, checksum)
	if err != nil {
		return nil, err
	}

	accounts := e.cfg.Accounts
	args, err := types.InitArgs(e.cfg.DAO, []string{accounts.Deployer, accounts.Member, accounts.Voter})
	if err != nil {
		return nil, err
	}
	if err := cache.Call(ctx, instance, e.cfg.InitMethod, e.callContext(accounts.Deployer, types.Balance{}, args)); err != nil {
		return nil, &types.EstimationError{Description: "initialize contract", Method: e.cfg.InitMethod, Err: err}
	}

	env := cache.Environment()
	baseline, err := env.SnapshotStorage()
	if err != nil {
		return nil, err
	}
	e.logger.Info().
		Stringer("checksum", checksum).
		Int("entries", baseline.Len()).
		Uint64("usage", baseline.Usage()).
		Msg("baseline ready")
	return &loadedModule{checksum: checksum, rewritten: rewritten, instance: instance, baseline: baseline}, nil
}

func (e *Estimator) callContext(caller string, deposit types.Balance, input []byte) types.ExecutionContext {
	return types.ExecutionContext{
		CurrentAccountID: e.cfg.Accounts.Contract,
		SignerPublicKey:  e.cfg.Accounts.SignerPublicKey,
		AttachedDeposit:  deposit,
		Input:            input,
	}.CallAs(caller)
}

func (e *Estimator) measure(ctx context.Context, m *loadedModule, d types.Descriptor) (types.Measurement, error) {
	env := e.cache.Environment()
	if err := env.RestoreStorage(m.baseline); err != nil {
		return types.Measurement{}, err
	}

	fail := func(method string, err error) (types.Measurement, error) {
		return types.Measurement{}, &types.EstimationError{Description: d.Description, Method: method, Err: err}
	}

	var (
		method string
		ectx   types.ExecutionContext
	)
	switch op := d.Operation.(type) {
	case types.AddProposal:
		args, err := op.Args()
		if err != nil {
			return fail(op.Method(), err)
		}
		method, ectx = op.Method(), e.callContext(e.cfg.Accounts.Member, e.cfg.ProposalBond, args)

	case types.ActProposal:
		args, err := op.Args()
		if err != nil {
			return fail(op.Method(), err)
		}
		method, ectx = op.Method(), e.callContext(e.cfg.Accounts.Voter, types.Balance{}, args)

	case types.CreateAndAct:
		args, err := op.Proposal.Args()
		if err != nil {
			return fail(op.Proposal.Method(), err)
		}
		if err := e.cache.Call(ctx, m.instance, op.Proposal.Method(), e.callContext(e.cfg.Accounts.Member, e.cfg.ProposalBond, args)); err != nil {
			return fail(op.Proposal.Method(), err)
		}
		ret, _ := env.ReturnData()
		id, err := parseProposalID(ret)
		if err != nil {
			return fail(op.Proposal.Method(), err)
		}
		act := op.Act(id)
		if args, err = act.Args(); err != nil {
			return fail(act.Method(), err)
		}
		method, ectx = act.Method(), e.callContext(e.cfg.Accounts.Voter, types.Balance{}, args)

	default:
		return fail("", fmt.Errorf("unsupported operation %T", d.Operation))
	}

	before := env.StorageUsage()
	if err := e.cache.Call(ctx, m.instance, method, ectx); err != nil {
		return fail(method, err)
	}
	result := types.Measurement{Before: before, After: env.StorageUsage()}
	e.logger.Debug().
		Str("operation", d.Description).
		Str("method", method).
		Uint64("before", result.Before).
		Uint64("after", result.After).
		Msg("measured")
	return result, nil
}

// parseProposalID decodes the id returned by add_proposal. The contract
// returns it as a JSON number, possibly quoted.
func parseProposalID(ret []byte) (uint64, error) {
	s := strings.TrimSpace(string(ret))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decoding proposal id from return value %q: %w", ret, err)
	}
	return id, nil
}
