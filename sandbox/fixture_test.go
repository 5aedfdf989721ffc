package sandbox

// Minimal wasm binaries that speak the guest ABI without a Go runtime
// inside, so the wazero boundary can be tested without building cmd/guest.

const (
	opUnreachable = 0x00
	opLoop        = 0x03
	opBr          = 0x0c
	opEnd         = 0x0b
	opI32Const    = 0x41
	opI64Const    = 0x42
	blockEmpty    = 0x40
)

type fixture struct {
	allocBody    []byte
	dispatchBody []byte
	data         []byte
	dataOffset   uint32
	memPages     uint32
	allocType    byte
	noMemory     bool
	noDispatch   bool
}

// guestFixture returns a fixture whose alloc hands out reqPtr and whose
// dispatch returns resp placed at respPtr.
func guestFixture(resp []byte) fixture {
	const reqPtr, respPtr = 1024, 4096
	return fixture{
		allocBody:    i32Const(reqPtr),
		dispatchBody: i64Const(int64(respPtr)<<32 | int64(len(resp))),
		data:         resp,
		dataOffset:   respPtr,
		memPages:     1,
		allocType:    1,
	}
}

func (f fixture) build() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	out = section(out, 1, vec([][]byte{
		{0x60, 0x00, 0x00},
		{0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f},
		{0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7e},
	}))
	out = section(out, 3, vec([][]byte{{0}, {f.allocType}, {2}}))
	if !f.noMemory {
		out = section(out, 5, vec([][]byte{append([]byte{0x00}, uleb(uint64(f.memPages))...)}))
	}

	exports := [][]byte{
		export("_initialize", 0x00, 0),
		export("sandbox_alloc", 0x00, 1),
	}
	if !f.noDispatch {
		exports = append(exports, export("sandbox_dispatch", 0x00, 2))
	}
	if !f.noMemory {
		exports = append(exports, export("memory", 0x02, 0))
	}
	out = section(out, 7, vec(exports))

	out = section(out, 10, vec([][]byte{
		body(nil),
		body(f.allocBody),
		body(f.dispatchBody),
	}))

	if len(f.data) > 0 && !f.noMemory {
		seg := []byte{0x00}
		seg = append(seg, i32Const(int32(f.dataOffset))...)
		seg = append(seg, opEnd)
		seg = append(seg, uleb(uint64(len(f.data)))...)
		seg = append(seg, f.data...)
		out = section(out, 11, vec([][]byte{seg}))
	}
	return out
}

func section(out []byte, id byte, content []byte) []byte {
	out = append(out, id)
	out = append(out, uleb(uint64(len(content)))...)
	return append(out, content...)
}

func vec(items [][]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func export(name string, kind byte, idx uint32) []byte {
	out := uleb(uint64(len(name)))
	out = append(out, name...)
	out = append(out, kind)
	return append(out, uleb(uint64(idx))...)
}

func body(instrs []byte) []byte {
	b := []byte{0x00} // no locals
	b = append(b, instrs...)
	b = append(b, opEnd)
	return append(uleb(uint64(len(b))), b...)
}

func i32Const(v int32) []byte {
	return append([]byte{opI32Const}, sleb(int64(v))...)
}

func i64Const(v int64) []byte {
	return append([]byte{opI64Const}, sleb(v)...)
}

// spin loops forever and never produces its i64 result.
func spin() []byte {
	return []byte{opLoop, blockEmpty, opBr, 0x00, opEnd, opUnreachable}
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		out = append(out, c)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		out = append(out, c)
		if done {
			return out
		}
	}
}
