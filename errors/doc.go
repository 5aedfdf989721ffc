// Package errors provides structured error types for the sandbox host and guest.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Phases map onto the three classes a caller cares about:
//
//   - boundary: the isolation substrate could not deliver or receive a call
//   - dispatch: the requested operation is unknown or was called with the wrong shape
//   - init, exec: the guest ran the operation and it failed
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDispatch, errors.KindTypeMismatch).
//		Op("Init").
//		Detail("parameter 0: want String, got Int32").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.FunctionNotFound("Eval")
//	err := errors.NotInitialized(errors.PhaseExec, "engine")
//
// Guest errors cross the boundary as (phase, kind, message) and are rebuilt on
// the host with FromWire, so errors.Is matches on both sides.
package errors
