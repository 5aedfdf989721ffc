package dispatch

import (
	"strings"
	"testing"

	"github.com/wippyai/js-sandbox/envelope"
	"github.com/wippyai/js-sandbox/errors"
	"github.com/wippyai/js-sandbox/shim"
)

// stubHandlers records calls and returns canned results.
type stubHandlers struct {
	source  string
	inits   int
	execs   int
	initErr error
	result  int32
	execErr error
	exit    int
	panics  bool
}

func (s *stubHandlers) Init(source string) error {
	s.inits++
	s.source = source
	return s.initErr
}

func (s *stubHandlers) Exec() (int32, error) {
	s.execs++
	if s.exit != 0 {
		shim.Exit(s.exit)
	}
	if s.panics {
		var m map[string]int
		m["x"] = 1
	}
	return s.result, s.execErr
}

func boundTable(h Handlers) *Table {
	t := NewTable()
	Bind(t, h)
	t.Seal()
	return t
}

func TestBindRegistersEveryOp(t *testing.T) {
	tbl := boundTable(&stubHandlers{})
	for _, o := range Ops() {
		e, ok := tbl.Lookup(o.String())
		if !ok {
			t.Fatalf("%s not registered", o)
		}
		sig := o.Signature()
		if e.Result != sig.Result || len(e.Params) != len(sig.Params) {
			t.Errorf("%s entry = %+v, want %+v", o, e, sig)
		}
	}
	if got := strings.Join(tbl.Names(), ","); got != "Exec,Init" {
		t.Errorf("Names = %s", got)
	}
}

func TestParseOp(t *testing.T) {
	for _, o := range Ops() {
		got, ok := ParseOp(o.String())
		if !ok || got != o {
			t.Errorf("ParseOp(%q) = %v, %v", o.String(), got, ok)
		}
	}
	if _, ok := ParseOp("init"); ok {
		t.Error("ParseOp matched a name case-insensitively")
	}
	if Op(9).String() != "Op(9)" {
		t.Errorf("String = %s", Op(9))
	}
}

func TestDispatchSuccess(t *testing.T) {
	h := &stubHandlers{result: 55}
	tbl := boundTable(h)

	resp := tbl.Dispatch(envelope.NewCall("Init", envelope.String("fibonacci(10)")))
	if !resp.OK {
		t.Fatalf("Init failed: %+v", resp.Failure)
	}
	if n, _ := resp.Value.AsInt32(); n != 0 {
		t.Errorf("Init status = %d, want 0", n)
	}
	if h.source != "fibonacci(10)" {
		t.Errorf("source = %q", h.source)
	}

	resp = tbl.Dispatch(envelope.NewCall("Exec"))
	v, err := resp.Result()
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if n, _ := v.AsInt32(); n != 55 {
		t.Errorf("Exec = %d, want 55", n)
	}
}

func TestDispatchFunctionNotFound(t *testing.T) {
	tbl := boundTable(&stubHandlers{})
	_, err := tbl.Dispatch(envelope.NewCall("Eval")).Result()
	if errors.KindOf(err) != errors.KindFunctionNotFound {
		t.Fatalf("expected function not found, got %v", err)
	}
	if !errors.IsDispatch(err) {
		t.Errorf("not classified as dispatch: %v", err)
	}
	if !strings.Contains(err.Error(), `"Eval"`) {
		t.Errorf("error %q does not echo the name", err)
	}
}

func TestDispatchSignatureChecks(t *testing.T) {
	h := &stubHandlers{}
	tbl := boundTable(h)

	tests := []struct {
		name string
		call envelope.Call
		kind errors.Kind
	}{
		{"Init without source", envelope.NewCall("Init"), errors.KindArity},
		{"Init with int", envelope.NewCall("Init", envelope.Int32(1)), errors.KindTypeMismatch},
		{"Init with two args", envelope.NewCall("Init", envelope.String("a"), envelope.String("b")), errors.KindArity},
		{"Exec with arg", envelope.NewCall("Exec", envelope.Int32(1)), errors.KindArity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tbl.Dispatch(tt.call).Result()
			if errors.KindOf(err) != tt.kind {
				t.Errorf("KindOf = %s, want %s (%v)", errors.KindOf(err), tt.kind, err)
			}
		})
	}
	if h.inits != 0 || h.execs != 0 {
		t.Errorf("handlers ran on rejected calls: inits=%d execs=%d", h.inits, h.execs)
	}
}

func TestDispatchGuestErrors(t *testing.T) {
	h := &stubHandlers{
		initErr: errors.New(errors.PhaseInit, errors.KindCompile).Detail("bad syntax").Build(),
		execErr: errors.NotInitialized(errors.PhaseExec, "engine"),
	}
	tbl := boundTable(h)

	_, err := tbl.Dispatch(envelope.NewCall("Init", envelope.String("("))).Result()
	if !errors.IsGuest(err) || errors.KindOf(err) != errors.KindCompile {
		t.Errorf("Init error = %v", err)
	}
	_, err = tbl.Dispatch(envelope.NewCall("Exec")).Result()
	if !errors.IsGuest(err) || errors.KindOf(err) != errors.KindNotInitialized {
		t.Errorf("Exec error = %v", err)
	}
}

func TestDispatchContainsExitAndPanic(t *testing.T) {
	h := &stubHandlers{exit: 7}
	tbl := boundTable(h)

	_, err := tbl.Dispatch(envelope.NewCall("Exec")).Result()
	if errors.KindOf(err) != errors.KindExited {
		t.Errorf("exit: %v", err)
	}

	h.exit = 0
	h.panics = true
	_, err = tbl.Dispatch(envelope.NewCall("Exec")).Result()
	if errors.KindOf(err) != errors.KindPanic {
		t.Errorf("panic: %v", err)
	}

	// The table keeps serving after both.
	h.panics = false
	h.result = 3
	v, err := tbl.Dispatch(envelope.NewCall("Exec")).Result()
	if err != nil {
		t.Fatalf("Exec after recovery: %v", err)
	}
	if n, _ := v.AsInt32(); n != 3 {
		t.Errorf("Exec = %d", n)
	}
}

func TestDispatchResultTypeChecked(t *testing.T) {
	tbl := NewTable()
	tbl.Register("Bad", nil, envelope.TagInt32, func([]envelope.Value) (envelope.Value, error) {
		return envelope.String("oops"), nil
	})
	_, err := tbl.Dispatch(envelope.NewCall("Bad")).Result()
	if errors.KindOf(err) != errors.KindTypeMismatch {
		t.Errorf("KindOf = %s", errors.KindOf(err))
	}
}

func TestRegisterMisuse(t *testing.T) {
	noop := func([]envelope.Value) (envelope.Value, error) { return envelope.Int32(0), nil }

	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		fn()
	}

	tbl := NewTable()
	tbl.Register("A", nil, envelope.TagInt32, noop)
	mustPanic("duplicate", func() { tbl.Register("A", nil, envelope.TagInt32, noop) })
	mustPanic("nil func", func() { tbl.Register("B", nil, envelope.TagInt32, nil) })
	mustPanic("bad result tag", func() { tbl.Register("C", nil, envelope.TagInvalid, noop) })

	tbl.Seal()
	if !tbl.Sealed() {
		t.Error("Sealed = false")
	}
	mustPanic("after seal", func() { tbl.Register("D", nil, envelope.TagInt32, noop) })
}
