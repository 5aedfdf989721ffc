// Package engine holds the script engine lifecycle of one sandbox.
//
// An Engine is in one of two states:
//
//	Absent ──Init(source)──▶ Compiled ──Exec()──▶ Compiled
//	   ▲          │
//	   └─ compile error
//
// Init compiles once. While Compiled, further Init calls are accepted and
// ignored; the first program stays in place. Exec instantiates a fresh
// execution environment from the compiled program on every call, runs it to
// completion and converts the result to an Int32. Execution state never
// survives between Exec calls.
//
// The script engine itself sits behind Backend. Goja is the production
// backend; it routes Date.now, Math.random and console output through the
// shim services of the guest.
//
// An Engine is owned by the guest runtime and is not safe for concurrent use.
package engine
