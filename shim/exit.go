package shim

import (
	"fmt"

	"github.com/wippyai/js-sandbox/errors"
)

// Pid is the process id the guest sees for itself.
const Pid = 1

// ExitError carries the status of an Exit through a panic. It never escapes
// the guest call that raised it.
type ExitError struct {
	Status int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Status)
}

// Exit ends the current guest call with status. It does not return.
func Exit(status int) {
	panic(&ExitError{Status: status})
}

// AsExit reports whether a recovered panic value is an Exit.
func AsExit(r any) (*ExitError, bool) {
	e, ok := r.(*ExitError)
	return e, ok
}

// Catch runs fn and converts an Exit raised inside it into an error of kind
// exited. Other panics propagate.
func Catch(phase errors.Phase, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := AsExit(r)
			if !ok {
				panic(r)
			}
			err = errors.Exited(phase, e.Status)
		}
	}()
	return fn()
}

// Kill delivers sig to pid. The guest is the only process: signalling it
// takes the exit path with status 128+sig, and any other pid does not exist.
// Signal 0 probes for existence and has no effect.
func Kill(pid, sig int) error {
	if pid != 0 && pid != Pid {
		return errors.New(errors.PhaseShim, errors.KindNoSuchProcess).
			Value(pid).
			Detail("no such process %d", pid).
			Build()
	}
	if sig < 0 || sig > 64 {
		return errors.InvalidInput(errors.PhaseShim, fmt.Sprintf("invalid signal %d", sig))
	}
	if sig == 0 {
		return nil
	}
	Logger().Debug("signal delivered to guest")
	Exit(128 + sig)
	return nil
}

// Raise sends sig to the guest itself.
func Raise(sig int) error {
	return Kill(0, sig)
}
