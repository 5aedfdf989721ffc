// Package shim provides deterministic stand-ins for the operating system
// services a script engine expects, for a guest that runs without a kernel.
//
// The shim is single-threaded. No type in this package is safe for
// concurrent use; a guest owns exactly one OS and drives it from one
// goroutine.
//
// # Services
//
//   - Arena: aligned bump allocation with deterministic exhaustion
//   - Clock: a counter clock that advances on every read and never blocks
//   - Entropy: cryptographic randomness, with hardware RNG detection
//   - Sysconf: fixed system configuration values
//   - Exit and Kill: termination scoped to the current guest call
//   - Console: bounded stdout/stderr buffers and an always-empty stdin
//
// The same Clock and Entropy values feed both the script engine (through
// its time and random sources) and the WASI system configuration the host
// hands to the guest module, so every reader sees one source of time and
// one source of randomness.
package shim
