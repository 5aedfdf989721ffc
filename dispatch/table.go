package dispatch

import (
	"fmt"
	"runtime/debug"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/js-sandbox/envelope"
	"github.com/wippyai/js-sandbox/errors"
	"github.com/wippyai/js-sandbox/shim"
)

// Func is an entry point. Arguments have already been checked against the
// entry's signature.
type Func func(args []envelope.Value) (envelope.Value, error)

// Entry is one registered operation.
type Entry struct {
	Fn     Func
	Name   string
	Params []envelope.TypeTag
	Result envelope.TypeTag
}

// Table is the guest dispatch table. It is not safe for concurrent use;
// the guest dispatches one call at a time.
type Table struct {
	entries map[string]*Entry
	sealed  bool
}

// NewTable returns an empty, unsealed table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Register adds an entry. Registering after Seal or registering a name twice
// is a programming error and panics.
func (t *Table) Register(name string, params []envelope.TypeTag, result envelope.TypeTag, fn Func) {
	if t.sealed {
		panic(fmt.Sprintf("dispatch: register %q after seal", name))
	}
	if _, dup := t.entries[name]; dup {
		panic(fmt.Sprintf("dispatch: duplicate registration of %q", name))
	}
	if name == "" || fn == nil || !result.Valid() {
		panic(fmt.Sprintf("dispatch: invalid registration of %q", name))
	}
	t.entries[name] = &Entry{
		Name:   name,
		Params: append([]envelope.TypeTag(nil), params...),
		Result: result,
		Fn:     fn,
	}
	Logger().Debug("registered guest function",
		zap.String("name", name),
		zap.Int("params", len(params)),
		zap.Stringer("result", result))
}

// Seal freezes the table.
func (t *Table) Seal() {
	t.sealed = true
}

// Sealed reports whether Seal was called.
func (t *Table) Sealed() bool {
	return t.sealed
}

// Lookup returns the entry registered under name.
func (t *Table) Lookup(name string) (*Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Names returns the registered names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs call and returns its response. It never panics: an exit
// raised through the shim and any other panic in the entry point are turned
// into failures.
func (t *Table) Dispatch(call envelope.Call) envelope.Response {
	e, ok := t.entries[call.Name]
	if !ok {
		Logger().Debug("function not found", zap.String("name", call.Name))
		return envelope.Fail(call.Name, errors.FunctionNotFound(call.Name))
	}
	if err := e.check(call.Args); err != nil {
		return envelope.Fail(e.Name, err)
	}

	v, err := e.invoke(call.Args)
	if err != nil {
		return envelope.Fail(e.Name, err)
	}
	if v.Tag != e.Result {
		return envelope.Fail(e.Name, errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
			Op(e.Name).
			Detail("result: want %s, got %s", e.Result, v.Tag).
			Build())
	}
	return envelope.Success(v)
}

func (e *Entry) check(args []envelope.Value) error {
	if len(args) != len(e.Params) {
		return errors.ArityMismatch(e.Name, len(e.Params), len(args))
	}
	for i, a := range args {
		if a.Tag != e.Params[i] {
			return errors.TypeMismatch(errors.PhaseDispatch, e.Name, i, e.Params[i].String(), a.Tag.String())
		}
	}
	return nil
}

func (e *Entry) invoke(args []envelope.Value) (v envelope.Value, err error) {
	phase := errors.PhaseExec
	if e.Name == OpInit.String() {
		phase = errors.PhaseInit
	}
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("guest function panicked",
				zap.String("name", e.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			v = envelope.Value{}
			err = errors.New(phase, errors.KindPanic).
				Op(e.Name).
				Detail("%v", r).
				Build()
		}
	}()
	err = shim.Catch(phase, func() error {
		var ferr error
		v, ferr = e.Fn(args)
		return ferr
	})
	return v, err
}
