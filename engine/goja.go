package engine

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/wippyai/js-sandbox/errors"
	"github.com/wippyai/js-sandbox/shim"
)

// ScriptName is the file name compiled scripts report in errors.
const ScriptName = "inline.js"

// DefaultMaxCallDepth bounds script recursion when GojaConfig leaves it zero.
const DefaultMaxCallDepth = 4096

// GojaConfig wires a Goja backend to the guest's shim services. Nil
// services fall back to goja's defaults.
type GojaConfig struct {
	Clock        *shim.Clock
	Entropy      *shim.Entropy
	Console      *shim.Console
	MaxCallDepth int
}

// Goja is a Backend built on github.com/dop251/goja.
type Goja struct {
	cfg GojaConfig

	mu      sync.Mutex
	running *goja.Runtime
	stop    any
}

var (
	_ Backend     = (*Goja)(nil)
	_ Interrupter = (*Goja)(nil)
)

// NewGoja returns a Goja backend.
func NewGoja(cfg GojaConfig) *Goja {
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = DefaultMaxCallDepth
	}
	return &Goja{cfg: cfg}
}

// Compile parses source as a non-strict global script.
func (g *Goja) Compile(source string) (Program, error) {
	prog, err := goja.Compile(ScriptName, source, false)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseInit, errors.KindCompile, err, "compile script")
	}
	return &gojaProgram{g: g, prog: prog}, nil
}

// Interrupt stops the running script with reason. It may be called from
// any goroutine. The interrupt is sticky: later runs stop immediately.
func (g *Goja) Interrupt(reason any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stop = reason
	if g.running != nil {
		g.running.Interrupt(reason)
	}
}

func (g *Goja) attach(vm *goja.Runtime) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stop != nil {
		vm.Interrupt(g.stop)
	}
	g.running = vm
}

func (g *Goja) detach() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = nil
}

type gojaProgram struct {
	g    *Goja
	prog *goja.Program
}

func (p *gojaProgram) Run() (any, error) {
	if p.prog == nil {
		return nil, errors.New(errors.PhaseExec, errors.KindInstantiation).Detail("program released").Build()
	}

	vm, err := p.instantiate()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseExec, errors.KindInstantiation, err, "instantiate script")
	}

	p.g.attach(vm)
	defer p.g.detach()

	res, err := vm.RunProgram(p.prog)
	if err != nil {
		var intr *goja.InterruptedError
		if errors.As(err, &intr) {
			return nil, errors.Wrap(errors.PhaseExec, errors.KindExecution, err, "script interrupted")
		}
		return nil, errors.Wrap(errors.PhaseExec, errors.KindExecution, err, "script execution failed")
	}
	return res.Export(), nil
}

// instantiate builds a fresh runtime with its own global object.
func (p *gojaProgram) instantiate() (*goja.Runtime, error) {
	cfg := &p.g.cfg
	vm := goja.New()
	vm.SetMaxCallStackSize(cfg.MaxCallDepth)
	if cfg.Clock != nil {
		vm.SetTimeSource(cfg.Clock.Now)
	}
	if cfg.Entropy != nil {
		vm.SetRandSource(randSource(vm, cfg.Entropy))
	}
	if cfg.Console != nil {
		if err := installConsole(vm, cfg.Console); err != nil {
			return nil, err
		}
	}
	return vm, nil
}

func (p *gojaProgram) Release() {
	p.prog = nil
}

// randSource feeds Math.random from the shim. A failing source throws a
// GoError into the script.
func randSource(vm *goja.Runtime, e *shim.Entropy) goja.RandSource {
	return func() float64 {
		f, err := e.Float64()
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return f
	}
}

func installConsole(vm *goja.Runtime, c *shim.Console) error {
	console := vm.NewObject()
	methods := []struct {
		name string
		w    io.Writer
	}{
		{"log", c.Stdout},
		{"info", c.Stdout},
		{"debug", c.Stdout},
		{"warn", c.Stderr},
		{"error", c.Stderr},
	}
	for _, m := range methods {
		if err := console.Set(m.name, printer(m.w)); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

func printer(w io.Writer) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
		return goja.Undefined()
	}
}
