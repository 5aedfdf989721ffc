package dispatch

import (
	"fmt"

	"github.com/wippyai/js-sandbox/envelope"
)

// Op is one operation of the guest protocol.
type Op uint8

const (
	// OpInit compiles a script. Params: [String]. Returns Int32 status 0.
	OpInit Op = iota + 1
	// OpExec runs the compiled script. Params: none. Returns the Int32 result.
	OpExec
)

var opNames = [...]string{
	OpInit: "Init",
	OpExec: "Exec",
}

// Ops returns every operation in declaration order.
func Ops() []Op {
	return []Op{OpInit, OpExec}
}

// String returns the wire name of o.
func (o Op) String() string {
	if o >= OpInit && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// ParseOp returns the Op with wire name name.
func ParseOp(name string) (Op, bool) {
	for _, o := range Ops() {
		if opNames[o] == name {
			return o, true
		}
	}
	return 0, false
}

// Signature is the parameter and return types of an operation.
type Signature struct {
	Params []envelope.TypeTag
	Result envelope.TypeTag
}

// Signature returns the wire signature of o.
func (o Op) Signature() Signature {
	switch o {
	case OpInit:
		return Signature{Params: []envelope.TypeTag{envelope.TagString}, Result: envelope.TagInt32}
	case OpExec:
		return Signature{Result: envelope.TagInt32}
	default:
		panic(fmt.Sprintf("dispatch: signature of unknown %s", o))
	}
}

// Handlers implements the guest operations.
type Handlers interface {
	Init(source string) error
	Exec() (int32, error)
}

// Bind registers an entry for every Op on t, backed by h.
func Bind(t *Table, h Handlers) {
	for _, o := range Ops() {
		sig := o.Signature()
		var fn Func
		switch o {
		case OpInit:
			fn = func(args []envelope.Value) (envelope.Value, error) {
				if err := h.Init(args[0].Str); err != nil {
					return envelope.Value{}, err
				}
				return envelope.Int32(0), nil
			}
		case OpExec:
			fn = func([]envelope.Value) (envelope.Value, error) {
				n, err := h.Exec()
				if err != nil {
					return envelope.Value{}, err
				}
				return envelope.Int32(n), nil
			}
		default:
			panic(fmt.Sprintf("dispatch: no handler for %s", o))
		}
		t.Register(o.String(), sig.Params, sig.Result, fn)
	}
}
