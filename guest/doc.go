// Package guest is the runtime that lives inside the sandbox.
//
// A Guest owns the three pieces of per-sandbox state explicitly: the shim
// services, the engine lifecycle and the sealed dispatch table. Nothing is
// held in package globals, so one process can host any number of
// independent guests (the local substrate does exactly that) and the wasm
// reactor in cmd/guest holds exactly one.
//
// The byte-level entry point is Handle: a call envelope in, a response
// envelope out. Handle never panics and always produces a decodable response.
package guest
