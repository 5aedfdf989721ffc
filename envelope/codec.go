package envelope

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/js-sandbox/errors"
)

const (
	// MaxArgs is the largest argument list a call may carry.
	MaxArgs = 16
	// maxNesting covers Call -> Args -> Value.
	maxNesting = 4
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items.
var encMode cbor.EncMode

// decMode rejects duplicate keys, unknown fields and oversized containers.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("envelope: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		MaxNestedLevels:   maxNesting,
		MaxArrayElements:  MaxArgs,
		MaxMapPairs:       16,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("envelope: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeCall serializes a call envelope.
func EncodeCall(c Call) ([]byte, error) {
	if err := c.validate(errors.PhaseEncode); err != nil {
		return nil, err
	}
	data, err := encMode.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "marshal call")
	}
	return data, nil
}

// DecodeCall parses and validates a call envelope.
func DecodeCall(data []byte) (Call, error) {
	var c Call
	if len(data) == 0 {
		return c, errors.InvalidData(errors.PhaseDecode, "empty call envelope")
	}
	if err := decMode.Unmarshal(data, &c); err != nil {
		return Call{}, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "malformed call envelope")
	}
	if err := c.validate(errors.PhaseDecode); err != nil {
		return Call{}, err
	}
	return c, nil
}

// EncodeResponse serializes a response envelope.
func EncodeResponse(r Response) ([]byte, error) {
	if err := r.validate(errors.PhaseEncode); err != nil {
		return nil, err
	}
	data, err := encMode.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "marshal response")
	}
	return data, nil
}

// DecodeResponse parses and validates a response envelope.
func DecodeResponse(data []byte) (Response, error) {
	var r Response
	if len(data) == 0 {
		return r, errors.InvalidData(errors.PhaseDecode, "empty response envelope")
	}
	if err := decMode.Unmarshal(data, &r); err != nil {
		return Response{}, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "malformed response envelope")
	}
	if err := r.validate(errors.PhaseDecode); err != nil {
		return Response{}, err
	}
	return r, nil
}

// Diagnose returns the CBOR diagnostic notation of an envelope.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}

func checkVersion(phase errors.Phase, v uint8) error {
	if v != Version {
		err := errors.Unsupported(phase, fmt.Sprintf("protocol version %d, want %d", v, Version))
		err.Value = v
		return err
	}
	return nil
}

func (c Call) validate(phase errors.Phase) error {
	if err := checkVersion(phase, c.Version); err != nil {
		return err
	}
	if c.Name == "" {
		return errors.InvalidData(phase, "call without operation name")
	}
	if len(c.Args) > MaxArgs {
		return errors.InvalidData(phase, fmt.Sprintf("%d arguments exceeds limit of %d", len(c.Args), MaxArgs))
	}
	for i, a := range c.Args {
		if err := a.Validate(); err != nil {
			return errors.Wrap(phase, errors.KindInvalidData, err, fmt.Sprintf("argument %d", i))
		}
	}
	return nil
}

func (r Response) validate(phase errors.Phase) error {
	if err := checkVersion(phase, r.Version); err != nil {
		return err
	}
	switch {
	case r.OK && r.Value == nil:
		return errors.InvalidData(phase, "ok response without value")
	case r.OK && r.Failure != nil:
		return errors.InvalidData(phase, "ok response carries a failure")
	case !r.OK && r.Failure == nil:
		return errors.InvalidData(phase, "failed response without failure")
	case !r.OK && r.Value != nil:
		return errors.InvalidData(phase, "failed response carries a value")
	}
	if r.Value != nil {
		if err := r.Value.Validate(); err != nil {
			return err
		}
	}
	if r.Failure != nil && (r.Failure.Phase == "" || r.Failure.Kind == "") {
		return errors.InvalidData(phase, "failure without phase or kind")
	}
	return nil
}
