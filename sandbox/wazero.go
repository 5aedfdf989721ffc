package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	jssandbox "github.com/wippyai/js-sandbox"
	"github.com/wippyai/js-sandbox/errors"
	"github.com/wippyai/js-sandbox/guest"
	"github.com/wippyai/js-sandbox/shim"
)

// Guest ABI export names.
const (
	ExportMemory     = "memory"
	ExportInitialize = "_initialize"
	ExportAlloc      = "sandbox_alloc"
	ExportDispatch   = "sandbox_dispatch"
)

type funcSig struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
}

var guestABI = []funcSig{
	{ExportInitialize, nil, nil},
	{ExportAlloc, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}},
	{ExportDispatch, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI64}},
}

// WazeroConfig configures a WazeroSubstrate.
type WazeroConfig struct {
	// Cache is shared by every sandbox of the substrate. Nil means an
	// in-memory cache owned and closed by the substrate.
	Cache wazero.CompilationCache

	// Stdout and Stderr receive guest console output.
	Stdout io.Writer
	Stderr io.Writer
}

// WazeroSubstrate isolates each guest in its own wazero runtime.
type WazeroSubstrate struct {
	cache     wazero.CompilationCache
	ownsCache bool
	stdout    io.Writer
	stderr    io.Writer
}

var _ Substrate = (*WazeroSubstrate)(nil)

// NewWazeroSubstrate returns a substrate with an in-memory compilation cache.
func NewWazeroSubstrate(ctx context.Context) (*WazeroSubstrate, error) {
	return NewWazeroSubstrateWithConfig(ctx, nil)
}

// NewWazeroSubstrateWithConfig returns a substrate with custom configuration.
func NewWazeroSubstrateWithConfig(_ context.Context, cfg *WazeroConfig) (*WazeroSubstrate, error) {
	w := &WazeroSubstrate{}
	if cfg != nil {
		w.cache = cfg.Cache
		w.stdout = cfg.Stdout
		w.stderr = cfg.Stderr
	}
	if w.cache == nil {
		w.cache = wazero.NewCompilationCache()
		w.ownsCache = true
	}
	return w, nil
}

// Load compiles image, checks its exports against the guest ABI and
// instantiates it with the sandbox's memory limit, fake clock, entropy and
// limit environment. _initialize runs guest startup.
func (w *WazeroSubstrate) Load(ctx context.Context, image []byte, limits jssandbox.Limits) (Boundary, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	rtCfg := wazero.NewRuntimeConfig().
		WithCompilationCache(w.cache).
		WithCloseOnContextDone(true).
		WithCoreFeatures(api.CoreFeaturesV2).
		WithMemoryLimitPages(limits.MemoryPages())
	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)

	fail := func(err error) (Boundary, error) {
		_ = rt.Close(ctx)
		return nil, err
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return fail(errors.Load("instantiate WASI", err))
	}

	compiled, err := rt.CompileModule(ctx, image)
	if err != nil {
		return fail(errors.Load("compile guest image", err))
	}
	if err := validateABI(compiled); err != nil {
		return fail(err)
	}

	clock := shim.NewClock()
	resolution := sys.ClockResolution(shim.ClockResolution.Nanoseconds())
	modCfg := wazero.NewModuleConfig().
		WithName("guest").
		WithStartFunctions(ExportInitialize).
		WithWalltime(clock.Walltime, resolution).
		WithNanotime(clock.Nanotime, resolution).
		WithNanosleep(clock.Nanosleep).
		WithRandSource(shim.NewEntropy(nil))
	for k, v := range guest.Env(limits) {
		modCfg = modCfg.WithEnv(k, v)
	}
	if w.stdout != nil {
		modCfg = modCfg.WithStdout(w.stdout)
	}
	if w.stderr != nil {
		modCfg = modCfg.WithStderr(w.stderr)
	}

	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return fail(errors.Load("instantiate guest", err))
	}

	Logger().Debug("guest instantiated",
		zap.Uint32("memory_pages", limits.MemoryPages()),
		zap.Uint32("memory_bytes", mod.Memory().Size()))

	return &wazeroBoundary{
		rt:       rt,
		mem:      &guestMemory{mem: mod.Memory()},
		alloc:    mod.ExportedFunction(ExportAlloc),
		dispatch: mod.ExportedFunction(ExportDispatch),
	}, nil
}

// Close releases the compilation cache when the substrate created it.
func (w *WazeroSubstrate) Close(ctx context.Context) error {
	if w.ownsCache {
		return w.cache.Close(ctx)
	}
	return nil
}

// validateABI checks that a compiled guest exports the sandbox ABI.
func validateABI(m wazero.CompiledModule) error {
	if _, ok := m.ExportedMemories()[ExportMemory]; !ok {
		return missingExport(ExportMemory)
	}
	fns := m.ExportedFunctions()
	for _, want := range guestABI {
		def, ok := fns[want.name]
		if !ok {
			return missingExport(want.name)
		}
		if !slices.Equal(def.ParamTypes(), want.params) || !slices.Equal(def.ResultTypes(), want.results) {
			return errors.New(errors.PhaseLoad, errors.KindTypeMismatch).
				Op(want.name).
				Detail("export signature %s, want %s",
					formatSig(def.ParamTypes(), def.ResultTypes()),
					formatSig(want.params, want.results)).
				Build()
		}
	}
	return nil
}

func missingExport(name string) error {
	return errors.New(errors.PhaseLoad, errors.KindMissingExport).
		Op(name).
		Detail("guest image does not export %q", name).
		Build()
}

func formatSig(params, results []api.ValueType) string {
	names := func(ts []api.ValueType) string {
		var b bytes.Buffer
		for i, t := range ts {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(api.ValueTypeName(t))
		}
		return b.String()
	}
	return fmt.Sprintf("(%s) -> (%s)", names(params), names(results))
}

type wazeroBoundary struct {
	rt       wazero.Runtime
	mem      jssandbox.Memory
	alloc    api.Function
	dispatch api.Function
}

func (b *wazeroBoundary) Call(ctx context.Context, request []byte) ([]byte, error) {
	res, err := b.alloc.Call(ctx, uint64(len(request)), requestAlign)
	if err != nil {
		return nil, fault(ctx, ExportAlloc, err)
	}
	ptr := api.DecodeU32(res[0])
	if ptr == 0 {
		return nil, errors.Boundary(errors.KindAllocation,
			fmt.Sprintf("guest could not allocate %d bytes for the request", len(request)), nil)
	}
	if err := b.mem.Write(ptr, request); err != nil {
		return nil, err
	}

	res, err = b.dispatch.Call(ctx, uint64(ptr), uint64(len(request)))
	if err != nil {
		return nil, fault(ctx, ExportDispatch, err)
	}
	rptr, rlen := uint32(res[0]>>32), uint32(res[0])
	out, err := b.mem.Read(rptr, rlen)
	if err != nil {
		return nil, err
	}
	// The view aliases guest memory; the next call overwrites it.
	return bytes.Clone(out), nil
}

func (b *wazeroBoundary) Close(ctx context.Context) error {
	return b.rt.Close(ctx)
}

// fault classifies an error returned by a guest export.
func fault(ctx context.Context, export string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Boundary(errors.KindCrashed, export+" aborted: "+ctxErr.Error(), err)
	}
	var exit *sys.ExitError
	if errors.As(err, &exit) {
		return errors.New(errors.PhaseBoundary, errors.KindExited).
			Op(export).
			Value(exit.ExitCode()).
			Detail("guest exited with code %d", exit.ExitCode()).
			Cause(err).
			Build()
	}
	return errors.New(errors.PhaseBoundary, errors.KindCrashed).
		Op(export).
		Detail("guest trapped").
		Cause(err).
		Build()
}

func outOfBounds(op string, offset, length, size uint32) string {
	return fmt.Sprintf("%s of %d bytes at %#x outside guest memory of %d bytes", op, length, offset, size)
}
