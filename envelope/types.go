package envelope

import (
	"fmt"

	"github.com/wippyai/js-sandbox/errors"
)

// Version is the protocol version written into every envelope.
const Version uint8 = 1

// TypeTag identifies the type of a Value.
type TypeTag uint8

const (
	TagInvalid TypeTag = iota
	TagInt32
	TagString
	TagBytes
)

func (t TypeTag) String() string {
	switch t {
	case TagInt32:
		return "Int32"
	case TagString:
		return "String"
	case TagBytes:
		return "Bytes"
	default:
		return fmt.Sprintf("TypeTag(%d)", uint8(t))
	}
}

// Valid reports whether t is a known tag.
func (t TypeTag) Valid() bool {
	return t >= TagInt32 && t <= TagBytes
}

// Value is a tagged union over Int32, String and Bytes.
// Only the field matching Tag may be set.
type Value struct {
	Tag   TypeTag `cbor:"1,keyasint"`
	I32   int32   `cbor:"2,keyasint,omitempty"`
	Str   string  `cbor:"3,keyasint,omitempty"`
	Bytes []byte  `cbor:"4,keyasint,omitempty"`
}

// Int32 returns an Int32 value.
func Int32(v int32) Value {
	return Value{Tag: TagInt32, I32: v}
}

// String returns a String value.
func String(s string) Value {
	return Value{Tag: TagString, Str: s}
}

// Bytes returns a Bytes value.
func Bytes(b []byte) Value {
	return Value{Tag: TagBytes, Bytes: b}
}

// AsInt32 returns the payload of an Int32 value.
func (v Value) AsInt32() (int32, error) {
	if v.Tag != TagInt32 {
		return 0, errors.TypeMismatch(errors.PhaseDecode, "", 0, TagInt32.String(), v.Tag.String())
	}
	return v.I32, nil
}

// AsString returns the payload of a String value.
func (v Value) AsString() (string, error) {
	if v.Tag != TagString {
		return "", errors.TypeMismatch(errors.PhaseDecode, "", 0, TagString.String(), v.Tag.String())
	}
	return v.Str, nil
}

// Validate rejects unknown tags and payloads that do not match the tag.
func (v Value) Validate() error {
	if !v.Tag.Valid() {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Value(uint8(v.Tag)).
			Detail("unknown type tag %d", uint8(v.Tag)).
			Build()
	}
	stray := (v.Tag != TagInt32 && v.I32 != 0) ||
		(v.Tag != TagString && v.Str != "") ||
		(v.Tag != TagBytes && len(v.Bytes) != 0)
	if stray {
		return errors.InvalidData(errors.PhaseDecode, fmt.Sprintf("%s value carries a foreign payload", v.Tag))
	}
	return nil
}

func (v Value) String() string {
	switch v.Tag {
	case TagInt32:
		return fmt.Sprintf("Int32(%d)", v.I32)
	case TagString:
		return fmt.Sprintf("String(%q)", v.Str)
	case TagBytes:
		return fmt.Sprintf("Bytes(%d)", len(v.Bytes))
	default:
		return v.Tag.String()
	}
}

// Call is a request to run one named guest operation.
type Call struct {
	Version uint8   `cbor:"1,keyasint"`
	Name    string  `cbor:"2,keyasint"`
	Args    []Value `cbor:"3,keyasint,omitempty"`
}

// NewCall builds a call envelope for the current protocol version.
func NewCall(name string, args ...Value) Call {
	return Call{Version: Version, Name: name, Args: args}
}

// Failure is the error branch of a response.
type Failure struct {
	Phase   string `cbor:"1,keyasint"`
	Kind    string `cbor:"2,keyasint"`
	Message string `cbor:"3,keyasint,omitempty"`
	Op      string `cbor:"4,keyasint,omitempty"`
}

// Err rebuilds the structured error carried by f.
func (f *Failure) Err() *errors.Error {
	return errors.FromWire(f.Phase, f.Kind, f.Op, f.Message)
}

// Response is the result of one call: a value when OK, a failure otherwise.
type Response struct {
	Version uint8    `cbor:"1,keyasint"`
	OK      bool     `cbor:"2,keyasint"`
	Value   *Value   `cbor:"3,keyasint,omitempty"`
	Failure *Failure `cbor:"4,keyasint,omitempty"`
}

// Success builds an OK response carrying v.
func Success(v Value) Response {
	return Response{Version: Version, OK: true, Value: &v}
}

// Fail builds an error response from err. Structured errors keep their
// phase and kind; anything else is reported as an exec failure.
func Fail(op string, err error) Response {
	f := &Failure{
		Phase:   string(errors.PhaseExec),
		Kind:    string(errors.KindExecution),
		Message: err.Error(),
		Op:      op,
	}
	var e *errors.Error
	if errors.As(err, &e) {
		f.Phase = string(e.Phase)
		f.Kind = string(e.Kind)
		f.Message = e.Message()
		if e.Op != "" {
			f.Op = e.Op
		}
	}
	return Response{Version: Version, OK: false, Failure: f}
}

// Result returns the carried value, or the rebuilt error for a failure.
func (r Response) Result() (Value, error) {
	if !r.OK {
		if r.Failure == nil {
			return Value{}, errors.InvalidData(errors.PhaseDecode, "failed response without failure")
		}
		return Value{}, r.Failure.Err()
	}
	if r.Value == nil {
		return Value{}, errors.InvalidData(errors.PhaseDecode, "ok response without value")
	}
	return *r.Value, nil
}
