//go:build wasip1

// Command guest is the sandbox guest image: a WASI reactor that exports the
// sandbox ABI.
//
// Build it with:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o guest.wasm ./cmd/guest
//
// Exports:
//
//	sandbox_alloc(size, align i32) -> i32      aligned block in the exchange arena, 0 on failure
//	sandbox_dispatch(ptr, len i32) -> i64      (resp_ptr << 32) | resp_len
//
// The response stays valid until the next sandbox_dispatch call.
package main

import (
	"os"
	"unsafe"

	"github.com/wippyai/js-sandbox/errors"
	"github.com/wippyai/js-sandbox/guest"
)

var (
	g       *guest.Guest
	initErr error

	// resp pins the last response until the host has read it.
	resp []byte

	// scratch receives the request when startup failed, so the startup
	// error still reaches the host as a response.
	scratch []byte
)

// init runs from _initialize and populates the dispatch table.
func init() {
	limits, err := guest.LimitsFromEnv(os.LookupEnv)
	if err != nil {
		initErr = err
		return
	}
	g, initErr = guest.New(guest.Config{
		Limits: limits,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
}

//go:wasmexport sandbox_alloc
func sandboxAlloc(size, align uint32) uint32 {
	if g == nil {
		scratch = make([]byte, size)
		return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(scratch))))
	}
	block, err := g.Alloc(size, align)
	if err != nil {
		return 0
	}
	return uint32(g.OS().Arena.Addr(block))
}

//go:wasmexport sandbox_dispatch
func sandboxDispatch(ptr, length uint32) uint64 {
	switch {
	case initErr != nil:
		resp = guest.Failure("", errors.Wrap(errors.PhaseInit, errors.KindEngineInit, initErr, "guest startup failed"))
	default:
		req, err := g.OS().Arena.Slice(uintptr(ptr), length)
		if err != nil {
			resp = guest.Failure("", err)
			break
		}
		resp = g.Handle(req)
	}
	addr := uint64(uintptr(unsafe.Pointer(unsafe.SliceData(resp))))
	return addr<<32 | uint64(len(resp))
}

func main() {}
