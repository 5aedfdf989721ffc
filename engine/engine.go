package engine

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/wippyai/js-sandbox/errors"
)

// State is the lifecycle state of an Engine.
type State uint8

const (
	StateAbsent State = iota
	StateCompiled
)

func (s State) String() string {
	if s == StateCompiled {
		return "compiled"
	}
	return "absent"
}

// Fingerprint identifies compiled source by its BLAKE3 digest.
type Fingerprint [32]byte

func fingerprintOf(source string) Fingerprint {
	return blake3.Sum256([]byte(source))
}

// Short returns the first eight bytes in hex.
func (f Fingerprint) Short() string {
	return hex.EncodeToString(f[:8])
}

// Engine owns at most one compiled program.
type Engine struct {
	backend     Backend
	program     Program
	fingerprint Fingerprint
	runs        uint64
	closed      bool
}

// New returns an engine in the Absent state.
func New(b Backend) *Engine {
	return &Engine{backend: b}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	if e.program != nil {
		return StateCompiled
	}
	return StateAbsent
}

// Fingerprint returns the fingerprint of the compiled source.
func (e *Engine) Fingerprint() (Fingerprint, bool) {
	return e.fingerprint, e.program != nil
}

// Runs returns the number of successful Exec calls.
func (e *Engine) Runs() uint64 {
	return e.runs
}

// Init compiles source and moves the engine to Compiled. When already
// Compiled it returns nil and keeps the existing program. On failure the
// engine stays Absent.
func (e *Engine) Init(source string) error {
	if e.closed {
		return errors.New(errors.PhaseInit, errors.KindClosed).Op("Init").Detail("engine closed").Build()
	}

	fp := fingerprintOf(source)
	if e.program != nil {
		if fp != e.fingerprint {
			Logger().Info("engine already compiled, ignoring new source",
				zap.String("compiled", e.fingerprint.Short()),
				zap.String("ignored", fp.Short()))
		}
		return nil
	}

	p, err := e.backend.Compile(source)
	if err != nil {
		if p != nil {
			p.Release()
		}
		Logger().Debug("compile failed", zap.Error(err))
		return asGuestError(errors.PhaseInit, errors.KindCompile, err, "compile script")
	}
	if p == nil {
		return errors.New(errors.PhaseInit, errors.KindEngineInit).Op("Init").Detail("backend returned no program").Build()
	}

	e.program = p
	e.fingerprint = fp
	Logger().Debug("script compiled", zap.String("fingerprint", fp.Short()), zap.Int("bytes", len(source)))
	return nil
}

// Exec runs the compiled program once and returns its Int32 result. The
// engine stays Compiled whatever the outcome.
func (e *Engine) Exec() (int32, error) {
	if e.program == nil {
		return 0, errors.New(errors.PhaseExec, errors.KindNotInitialized).
			Op("Exec").
			Detail("engine not initialized, call Init first").
			Build()
	}

	v, err := e.program.Run()
	if err != nil {
		return 0, asGuestError(errors.PhaseExec, errors.KindExecution, err, "run script")
	}
	n, err := ToInt32(v)
	if err != nil {
		return 0, err
	}
	e.runs++
	return n, nil
}

// Close releases the compiled program. It is safe to call more than once.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	if e.program != nil {
		e.program.Release()
		e.program = nil
	}
}

// asGuestError keeps structured errors raised in the given phase and wraps
// everything else.
func asGuestError(phase errors.Phase, kind errors.Kind, err error, detail string) error {
	var se *errors.Error
	if errors.As(err, &se) && se.Phase == phase {
		return se
	}
	return errors.Wrap(phase, kind, err, detail)
}
