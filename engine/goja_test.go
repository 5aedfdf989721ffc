package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/wippyai/js-sandbox/errors"
	"github.com/wippyai/js-sandbox/shim"
)

const fibonacci = "function fibonacci(n){if(n<2)return n;return fibonacci(n-1)+fibonacci(n-2);} fibonacci(10);"

func newGojaEngine(t *testing.T) (*Engine, *shim.Console) {
	t.Helper()
	console := shim.NewConsole(nil, nil)
	e := New(NewGoja(GojaConfig{
		Clock:        shim.NewClock(),
		Entropy:      shim.NewEntropy(nil),
		Console:      console,
		MaxCallDepth: 256,
	}))
	t.Cleanup(e.Close)
	return e, console
}

func mustExec(t *testing.T, e *Engine) int32 {
	t.Helper()
	n, err := e.Exec()
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	return n
}

func TestGojaScripts(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   int32
	}{
		{"addition", "2+2", 4},
		{"fibonacci", fibonacci, 55},
		{"integral division", "10/2", 5},
		{"negative", "-(1<<20)", -(1 << 20)},
		{"fake clock", "Date.now() < 1700000000000 ? 1 : 0", 1},
		{"random range", "var r = Math.random(); (r >= 0 && r < 1) ? 1 : 0", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newGojaEngine(t)
			if err := e.Init(tt.source); err != nil {
				t.Fatalf("Init: %v", err)
			}
			if got := mustExec(t, e); got != tt.want {
				t.Errorf("Exec = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGojaRepeatedExec(t *testing.T) {
	e, _ := newGojaEngine(t)
	if err := e.Init("2+2"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if got := mustExec(t, e); got != 4 {
			t.Fatalf("Exec #%d = %d, want 4", i, got)
		}
	}
}

func TestGojaFreshGlobalsPerExec(t *testing.T) {
	e, _ := newGojaEngine(t)
	src := "var n = (typeof n === 'undefined') ? 1 : n + 1; n"
	if err := e.Init(src); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if got := mustExec(t, e); got != 1 {
			t.Fatalf("Exec #%d = %d, globals leaked between runs", i, got)
		}
	}
}

func TestGojaLatchOnce(t *testing.T) {
	e, _ := newGojaEngine(t)
	if err := e.Init("1"); err != nil {
		t.Fatal(err)
	}
	if err := e.Init("2"); err != nil {
		t.Fatal(err)
	}
	if got := mustExec(t, e); got != 1 {
		t.Errorf("Exec = %d, want 1", got)
	}
}

func TestGojaSyntaxErrorThenRetry(t *testing.T) {
	e, _ := newGojaEngine(t)
	err := e.Init("function (")
	if errors.KindOf(err) != errors.KindCompile || !errors.IsGuest(err) {
		t.Fatalf("Init = %v, want compile error", err)
	}
	if e.State() != StateAbsent {
		t.Fatalf("State = %s", e.State())
	}
	if err := e.Init("40+2"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := mustExec(t, e); got != 42 {
		t.Errorf("Exec = %d", got)
	}
}

func TestGojaExecFailures(t *testing.T) {
	tests := []struct {
		name   string
		source string
		kind   errors.Kind
	}{
		{"throw", "throw new Error('bad')", errors.KindExecution},
		{"reference error", "missing + 1", errors.KindExecution},
		{"runaway recursion", "function f(n){return f(n+1)} f(0)", errors.KindExecution},
		{"string result", "'four'", errors.KindResultType},
		{"fractional result", "1.5", errors.KindResultType},
		{"undefined result", "var x = 1;", errors.KindResultType},
		{"out of range", "Math.pow(2, 40)", errors.KindResultType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newGojaEngine(t)
			if err := e.Init(tt.source); err != nil {
				t.Fatalf("Init: %v", err)
			}
			_, err := e.Exec()
			if errors.KindOf(err) != tt.kind {
				t.Fatalf("Exec = %v, want kind %s", err, tt.kind)
			}
			if e.State() != StateCompiled {
				t.Errorf("State = %s after failed Exec", e.State())
			}
		})
	}
}

func TestGojaConsole(t *testing.T) {
	e, console := newGojaEngine(t)
	if err := e.Init("console.log('hello', 2); console.error('oops'); 1"); err != nil {
		t.Fatal(err)
	}
	mustExec(t, e)
	if got := console.Stdout.String(); got != "hello 2\n" {
		t.Errorf("stdout = %q", got)
	}
	if got := console.Stderr.String(); !strings.Contains(got, "oops") {
		t.Errorf("stderr = %q", got)
	}
}

type brokenSource struct{}

func (brokenSource) Read([]byte) (int, error) { return 0, errString("entropy unavailable") }

func TestGojaRandomFailureThrows(t *testing.T) {
	e := New(NewGoja(GojaConfig{Entropy: shim.NewEntropy(brokenSource{})}))
	t.Cleanup(e.Close)

	src := "try { Math.random(); 0 } catch (err) { 7 }"
	if err := e.Init(src); err != nil {
		t.Fatal(err)
	}
	if got := mustExec(t, e); got != 7 {
		t.Errorf("Exec = %d, want the catch branch", got)
	}

	e2 := New(NewGoja(GojaConfig{Entropy: shim.NewEntropy(brokenSource{})}))
	t.Cleanup(e2.Close)
	if err := e2.Init("Math.random()"); err != nil {
		t.Fatal(err)
	}
	_, err := e2.Exec()
	if errors.KindOf(err) != errors.KindExecution || !strings.Contains(err.Error(), "entropy unavailable") {
		t.Errorf("Exec = %v, want execution error carrying the source failure", err)
	}
}

func TestGojaInterruptRunning(t *testing.T) {
	g := NewGoja(GojaConfig{})
	e := New(g)
	t.Cleanup(e.Close)
	if err := e.Init("while (true) {} 0"); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.Exec()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	g.Interrupt("deadline")

	select {
	case err := <-done:
		if errors.KindOf(err) != errors.KindExecution || !strings.Contains(err.Error(), "interrupted") {
			t.Errorf("Exec = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Exec did not stop after Interrupt")
	}
}

func TestGojaInterruptIsSticky(t *testing.T) {
	g := NewGoja(GojaConfig{})
	e := New(g)
	t.Cleanup(e.Close)
	if err := e.Init("1"); err != nil {
		t.Fatal(err)
	}
	g.Interrupt("stopped")

	for i := 0; i < 2; i++ {
		if _, err := e.Exec(); errors.KindOf(err) != errors.KindExecution {
			t.Errorf("Exec #%d after Interrupt = %v", i, err)
		}
	}
}
