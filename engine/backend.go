package engine

import (
	"math"

	"github.com/wippyai/js-sandbox/errors"
)

// Backend compiles script source into a reusable program.
type Backend interface {
	// Compile parses source. On failure it must not leak partially built
	// resources; a non-nil Program returned with an error is released by
	// the caller.
	Compile(source string) (Program, error)
}

// Program is a compiled script.
type Program interface {
	// Run instantiates a fresh execution environment, runs the program to
	// completion and returns the exported value of its completion.
	Run() (any, error)
	// Release frees the program. Calls after the first are no-ops.
	Release()
}

// Interrupter is implemented by backends that can stop a running program
// from another goroutine.
type Interrupter interface {
	Interrupt(reason any)
}

// ToInt32 converts a script result to an Int32. Integers and integral
// floating point values in int32 range are accepted.
func ToInt32(v any) (int32, error) {
	switch n := v.(type) {
	case int32:
		return n, nil
	case int:
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n), nil
		}
	case int64:
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n), nil
		}
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n), nil
		}
	}
	return 0, errors.New(errors.PhaseExec, errors.KindResultType).
		Value(v).
		Detail("script result %s is not an Int32", describe(v)).
		Build()
}

func describe(v any) string {
	switch n := v.(type) {
	case nil:
		return "undefined"
	case int, int32, int64:
		return "out of range"
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return "non-finite"
		}
		if n != math.Trunc(n) {
			return "fractional"
		}
		return "out of range"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	default:
		return "an object"
	}
}
