package guest

import (
	"io"
	"strconv"

	"go.uber.org/zap"

	jssandbox "github.com/wippyai/js-sandbox"
	"github.com/wippyai/js-sandbox/dispatch"
	"github.com/wippyai/js-sandbox/engine"
	"github.com/wippyai/js-sandbox/envelope"
	"github.com/wippyai/js-sandbox/errors"
	"github.com/wippyai/js-sandbox/shim"
)

// Environment variables carrying the limits into a wasm guest.
const (
	EnvHeapBytes  = "SANDBOX_HEAP_BYTES"
	EnvStackBytes = "SANDBOX_STACK_BYTES"
)

// Config configures a Guest.
type Config struct {
	Limits jssandbox.Limits

	// Entropy, Stdout and Stderr are passed to the shim.
	Entropy io.Reader
	Stdout  io.Writer
	Stderr  io.Writer

	// Backend overrides the script engine. Nil means goja wired to the shim.
	Backend engine.Backend
}

// Guest is one sandboxed runtime instance.
type Guest struct {
	os     *shim.OS
	engine *engine.Engine
	intr   engine.Interrupter
	table  *dispatch.Table
	calls  uint64
}

// New runs guest startup: it builds the shim, the engine and the dispatch
// table, then seals the table.
func New(cfg Config) (*Guest, error) {
	o, err := shim.New(shim.Config{
		Limits:  cfg.Limits,
		Entropy: cfg.Entropy,
		Stdout:  cfg.Stdout,
		Stderr:  cfg.Stderr,
	})
	if err != nil {
		return nil, err
	}

	backend := cfg.Backend
	if backend == nil {
		backend = engine.NewGoja(engine.GojaConfig{
			Clock:        o.Clock,
			Entropy:      o.Entropy,
			Console:      o.Console,
			MaxCallDepth: cfg.Limits.MaxCallDepth(),
		})
	}

	g := &Guest{
		os:     o,
		engine: engine.New(backend),
		table:  dispatch.NewTable(),
	}
	g.intr, _ = backend.(engine.Interrupter)
	dispatch.Bind(g.table, g)
	g.table.Seal()

	Logger().Info("guest started",
		zap.Stringer("limits", cfg.Limits),
		zap.Strings("functions", g.table.Names()))
	return g, nil
}

// Init implements dispatch.Handlers.
func (g *Guest) Init(source string) error {
	return g.engine.Init(source)
}

// Exec implements dispatch.Handlers.
func (g *Guest) Exec() (int32, error) {
	return g.engine.Exec()
}

// Interrupt stops the running script, and every later one, with reason.
// It is safe to call from another goroutine. It reports false when the
// backend cannot be interrupted.
func (g *Guest) Interrupt(reason any) bool {
	if g.intr == nil {
		return false
	}
	g.intr.Interrupt(reason)
	return true
}

// Alloc reserves an aligned block in the exchange arena.
func (g *Guest) Alloc(size, align uint32) ([]byte, error) {
	return g.os.Arena.Alloc(size, align)
}

// Call dispatches a decoded call envelope.
func (g *Guest) Call(call envelope.Call) envelope.Response {
	g.calls++
	resp := g.table.Dispatch(call)
	g.os.Console.Flush()

	if resp.OK {
		Logger().Debug("call complete", zap.String("name", call.Name), zap.Stringer("value", resp.Value))
	} else {
		Logger().Debug("call failed",
			zap.String("name", call.Name),
			zap.String("kind", resp.Failure.Kind),
			zap.String("message", resp.Failure.Message))
	}
	return resp
}

// Handle decodes req, dispatches it and returns the encoded response. The
// exchange arena is reset once req has been decoded, so req must not be
// used after Handle returns.
func (g *Guest) Handle(req []byte) []byte {
	call, err := envelope.DecodeCall(req)
	g.os.Arena.Reset()
	if err != nil {
		return Failure("", err)
	}
	resp := g.Call(call)
	out, err := envelope.EncodeResponse(resp)
	if err != nil {
		return Failure(call.Name, err)
	}
	return out
}

// Failure encodes a failed response for err. It is used when no Guest is
// available or when encoding the real response failed.
func Failure(op string, err error) []byte {
	out, encErr := envelope.EncodeResponse(envelope.Fail(op, err))
	if encErr != nil {
		// Fail always produces a valid envelope; reaching here is a bug.
		panic(encErr)
	}
	return out
}

// OS returns the shim services.
func (g *Guest) OS() *shim.OS { return g.os }

// Engine returns the engine lifecycle.
func (g *Guest) Engine() *engine.Engine { return g.engine }

// Table returns the sealed dispatch table.
func (g *Guest) Table() *dispatch.Table { return g.table }

// Calls returns how many envelopes were dispatched.
func (g *Guest) Calls() uint64 { return g.calls }

// Close releases the engine.
func (g *Guest) Close() {
	g.os.Console.Flush()
	g.engine.Close()
}

// LimitsFromEnv reads the limits handed to a wasm guest. Missing values
// take the defaults.
func LimitsFromEnv(lookup func(string) (string, bool)) (jssandbox.Limits, error) {
	l := jssandbox.DefaultLimits()
	for _, v := range []struct {
		key string
		dst *uint32
	}{
		{EnvHeapBytes, &l.HeapBytes},
		{EnvStackBytes, &l.StackBytes},
	} {
		s, ok := lookup(v.key)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return l, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, v.key)
		}
		*v.dst = uint32(n)
	}
	return l, l.Validate()
}

// Env renders limits as the environment LimitsFromEnv reads.
func Env(l jssandbox.Limits) map[string]string {
	return map[string]string{
		EnvHeapBytes:  strconv.FormatUint(uint64(l.HeapBytes), 10),
		EnvStackBytes: strconv.FormatUint(uint64(l.StackBytes), 10),
	}
}
