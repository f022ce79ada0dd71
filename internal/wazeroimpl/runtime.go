// Package wazeroimpl runs rewritten contract modules on wazero, linked against
// the env namespace of a host.Environment.
package wazeroimpl

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/treasurydao/storagecost/internal/runtime/host"
	"github.com/treasurydao/storagecost/types"
)

// ErrMethodNotFound is returned when a called method is not exported.
var ErrMethodNotFound = errors.New("method not exported by module")

// Options tunes a Cache.
type Options struct {
	// CompilationCache is shared between caches that compile the same code.
	CompilationCache wazero.CompilationCache
	Logger           zerolog.Logger
}

// Cache manages a wazero runtime, its host environment and the compiled
// contract modules. Every Cache has its own linear memory and storage, so
// caches may run concurrently but a single Cache may not.
type Cache struct {
	runtime   wazero.Runtime
	env       *host.Environment
	modules   map[types.Checksum]wazero.CompiledModule
	instances map[types.Checksum]api.Module
	logger    zerolog.Logger
}

// InitCache creates a runtime whose memory limit matches cfg and binds a fresh
// host environment to it.
func InitCache(ctx context.Context, cfg types.HostConfig, opts Options) (*Cache, error) {
	rc := wazero.NewRuntimeConfig().WithMemoryLimitPages(cfg.MaxMemoryPages)
	if opts.CompilationCache != nil {
		rc = rc.WithCompilationCache(opts.CompilationCache)
	}
	r := wazero.NewRuntimeWithConfig(ctx, rc)

	env := host.NewEnvironment(cfg, opts.Logger)
	if _, err := env.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}
	return &Cache{
		runtime:   r,
		env:       env,
		modules:   make(map[types.Checksum]wazero.CompiledModule),
		instances: make(map[types.Checksum]api.Module),
		logger:    opts.Logger.With().Str("module", "wazero").Logger(),
	}, nil
}

// Environment returns the host environment the modules are linked against.
func (c *Cache) Environment() *host.Environment {
	return c.env
}

// Close releases the runtime and every module in it.
func (c *Cache) Close(ctx context.Context) error {
	c.modules = nil
	c.instances = nil
	return c.runtime.Close(ctx)
}

// Compile compiles rewritten code and stores it under checksum. Code that
// cannot be linked against env fails with a *ValidationError. Compiling the
// same checksum twice is a no-op.
func (c *Cache) Compile(ctx context.Context, checksum types.Checksum, code []byte) error {
	if _, ok := c.modules[checksum]; ok {
		return nil
	}
	mod, err := c.runtime.CompileModule(ctx, code)
	if err != nil {
		return fmt.Errorf("compiling %s: %w", checksum, err)
	}
	if err := validate(mod); err != nil {
		_ = mod.Close(ctx)
		return err
	}
	c.modules[checksum] = mod
	c.logger.Debug().Stringer("checksum", checksum).Int("size", len(code)).Msg("compiled")
	return nil
}

// Instantiate returns the instance of the module stored under checksum,
// creating it on first use. Data segments are applied to the shared memory
// only when the instance is created.
func (c *Cache) Instantiate(ctx context.Context, checksum types.Checksum) (api.Module, error) {
	if mod, ok := c.instances[checksum]; ok {
		return mod, nil
	}
	compiled, ok := c.modules[checksum]
	if !ok {
		return nil, fmt.Errorf("module %s not found", checksum)
	}
	cfg := wazero.NewModuleConfig().
		WithName("contract-" + checksum.String()[:16]).
		WithStartFunctions()
	mod, err := c.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiating %s: %w", checksum, err)
	}
	c.instances[checksum] = mod
	c.logger.Debug().Stringer("checksum", checksum).Msg("instantiated")
	return mod, nil
}

// Call invokes the exported no-argument method of mod under ectx. Failures
// raised by host functions are returned as-is so callers can match them with
// errors.As; traps and other engine errors become *types.InternalError.
func (c *Cache) Call(ctx context.Context, mod api.Module, method string, ectx types.ExecutionContext) error {
	fn := mod.ExportedFunction(method)
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	}
	if err := c.env.SetExecutionContext(ectx); err != nil {
		return err
	}
	c.env.BeginCall()

	_, err := fn.Call(ctx)
	if err == nil {
		c.logger.Debug().Str("method", method).Str("predecessor", ectx.PredecessorAccountID).Msg("call")
		return nil
	}
	var hp *types.HostPanicError
	if errors.As(err, &hp) {
		return hp
	}
	var ie *types.InternalError
	if errors.As(err, &ie) {
		return ie
	}
	return &types.InternalError{Function: method, Err: err}
}
