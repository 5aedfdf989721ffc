// Package sandbox is the host side of the sandbox: it owns the isolation
// boundary and drives a guest through its lifecycle.
//
// A Substrate loads a guest image into an isolated context sized by
// jssandbox.Limits and returns a Boundary that carries raw envelope bytes
// across. Two substrates are provided:
//
//   - WazeroSubstrate runs the wasm guest from cmd/guest in its own wazero
//     runtime, with the memory limit, clock, entropy and environment of
//     the sandbox. This is the real isolation boundary.
//   - LocalSubstrate runs the guest runtime in process. It ignores the image
//     and exists for tests and tooling.
//
// A Sandbox issues calls one at a time. Any boundary failure (trap, exit,
// deadline, undecodable response) poisons the sandbox; every later call
// fails with a boundary error of kind closed. Guest and dispatch failures
// do not: the guest reported them through a valid response and remains
// usable.
//
// Example:
//
//	sub, _ := sandbox.NewWazeroSubstrate(ctx)
//	defer sub.Close(ctx)
//
//	sb, err := sandbox.CreateFromFile(ctx, sub, "guest.wasm", jssandbox.DefaultLimits())
//	if err != nil {
//	    return err
//	}
//	defer sb.Close(ctx)
//
//	_ = sb.Init(ctx, "function f(n){return n*2} f(21)")
//	n, _ := sb.Exec(ctx) // 42
package sandbox
