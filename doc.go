// Package jssandbox runs untrusted JavaScript inside an isolated WebAssembly
// guest and reports a single Int32 result back to the controlling process.
//
// The host never shares memory or calls guest code directly. Every interaction
// crosses the isolation boundary as a versioned, self-describing call envelope
// naming one guest operation and carrying typed arguments.
//
// # Architecture Overview
//
//	jssandbox/          Root package with Limits and the Memory/Allocator interfaces
//	├── envelope/       CBOR call and response envelopes (TypedValue, Call, Response)
//	├── shim/           Fake-OS services for the kernel-less guest
//	├── dispatch/       Closed operation set and the guest dispatch table
//	├── engine/         Script engine lifecycle (Absent -> Compiled) backed by goja
//	├── guest/          Guest runtime: shim + engine + dispatch behind one byte-level entry
//	├── sandbox/        Host controller and isolation substrates (wazero, local)
//	├── errors/         Structured error taxonomy shared by host and guest
//	└── cmd/            guest (wasip1 reactor) and sandbox (host CLI)
//
// # Quick Start
//
// Build the guest image once:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o guest.wasm ./cmd/guest
//
// Then drive it from the host:
//
//	sub, err := sandbox.NewWazeroSubstrate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sub.Close(ctx)
//
//	sb, err := sandbox.Create(ctx, sub, image, jssandbox.DefaultLimits())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sb.Close(ctx)
//
//	if err := sb.Init(ctx, "2 + 2"); err != nil {
//	    log.Fatal(err)
//	}
//	n, err := sb.Exec(ctx) // 4
//
// # Lifecycle
//
// Init compiles the script once. A second Init while compiled is a no-op and
// keeps the first program. Exec instantiates a fresh global environment from
// the compiled program on every call, so repeated Exec calls measure execution
// cost only.
//
// # Thread Safety
//
// A Sandbox serializes its calls; there is never more than one call in flight
// against a guest. Independent sandboxes share nothing.
package jssandbox
