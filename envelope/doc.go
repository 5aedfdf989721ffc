// Package envelope implements the call marshalling envelope that crosses the
// host/guest boundary.
//
// A request names one guest operation and carries an ordered list of typed
// values. A response carries either one typed value or a failure. Both are
// CBOR maps with small integer keys, encoded with Core Deterministic Encoding
// so identical calls produce identical bytes:
//
//	Value    {1: tag, 2: int32, 3: text, 4: bytes}
//	Call     {1: version, 2: name, 3: [Value...]}
//	Response {1: version, 2: ok, 3: Value, 4: Failure}
//	Failure  {1: phase, 2: kind, 3: message, 4: op}
//
// Every value carries its tag, so a receiver can check arity and types before
// dispatching.
package envelope
