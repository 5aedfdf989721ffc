// Package dispatch maps operation names to guest entry points.
//
// The operations a guest serves are a closed set known at build time, listed
// by Op. Each Op carries its wire name and signature, and Bind registers a
// handler for every Op through one exhaustive switch, so adding an Op without
// wiring it fails loudly at startup instead of at call time.
//
// A Table is populated once during guest startup and sealed. After that it is
// read-only: Dispatch looks up the call by exact name, checks arity and
// argument tags against the registered signature, invokes the entry point and
// wraps its result, or its failure, into a response envelope.
package dispatch
