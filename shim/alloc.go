package shim

import (
	"fmt"
	"unsafe"

	jssandbox "github.com/wippyai/js-sandbox"
	"github.com/wippyai/js-sandbox/errors"
)

// MaxAlign is the largest alignment the arena supports.
const MaxAlign = 4096

var _ jssandbox.Allocator = (*Arena)(nil)

// Arena is a bump allocator over a fixed buffer. Alignment is computed from
// the real address of the buffer, so a block's address is a multiple of the
// requested alignment, not just its offset.
type Arena struct {
	buf  []byte
	base uintptr
	off  uintptr
	last uintptr // offset before the most recent allocation
	n    int
}

// NewArena returns an arena with capacity usable bytes. The backing buffer
// carries MaxAlign bytes of slack so a maximally aligned block of the full
// capacity still fits.
func NewArena(capacity uint32) *Arena {
	buf := make([]byte, uint64(capacity)+MaxAlign)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	// Start on a MaxAlign boundary so capacity is exact regardless of alignment.
	start := alignUp(base, MaxAlign) - base
	return &Arena{
		buf:  buf[start : start+uintptr(capacity)],
		base: base + start,
	}
}

// ValidAlign reports whether align is a power of two in [1, MaxAlign].
func ValidAlign(align uint32) bool {
	return align != 0 && align <= MaxAlign && align&(align-1) == 0
}

// Alloc returns a zeroed block of at least size bytes whose address is a
// multiple of align. The size is rounded up to a multiple of align. Zero
// size and invalid alignment are rejected; exhaustion fails without
// touching existing blocks.
func (a *Arena) Alloc(size, align uint32) ([]byte, error) {
	if !ValidAlign(align) {
		return nil, errors.New(errors.PhaseShim, errors.KindInvalidInput).
			Value(align).
			Detail("alignment %d is not a power of two in [1, %d]", align, MaxAlign).
			Build()
	}
	if size == 0 {
		return nil, errors.InvalidInput(errors.PhaseShim, "zero-size allocation")
	}

	rounded := (uint64(size) + uint64(align) - 1) &^ (uint64(align) - 1)
	start := alignUp(a.base+a.off, uintptr(align)) - a.base
	end := uint64(start) + rounded
	if end > uint64(len(a.buf)) {
		Logger().Debug("arena exhausted")
		return nil, errors.AllocationFailed(errors.PhaseShim, size, align)
	}

	block := a.buf[start:uintptr(end):uintptr(end)]
	clear(block)
	a.last = a.off
	a.off = uintptr(end)
	a.n++
	return block[:size], nil
}

// Free releases block if it is the most recent allocation and reports
// whether it did. Older blocks are released only by Reset.
func (a *Arena) Free(block []byte) bool {
	if len(block) == 0 || a.n == 0 {
		return false
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(block)))
	if addr < a.base || addr-a.base < a.last || uintptr(cap(block))+addr-a.base != a.off {
		return false
	}
	a.off = a.last
	a.n--
	return true
}

// Reset releases every block.
func (a *Arena) Reset() {
	a.off = 0
	a.last = 0
	a.n = 0
}

// Used returns the number of bytes consumed, including alignment padding.
func (a *Arena) Used() uint32 { return uint32(a.off) }

// Cap returns the arena capacity.
func (a *Arena) Cap() uint32 { return uint32(len(a.buf)) }

// Live returns the number of blocks handed out since the last Reset.
func (a *Arena) Live() int { return a.n }

func (a *Arena) String() string {
	return fmt.Sprintf("arena{used=%d cap=%d live=%d}", a.off, len(a.buf), a.n)
}

func alignUp(p, align uintptr) uintptr {
	return (p + align - 1) &^ (align - 1)
}

// Addr returns the address of block, which must come from this arena.
func (a *Arena) Addr(block []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(block)))
}

// Slice returns the n bytes at addr. The range must lie inside the part of
// the arena handed out since the last Reset.
func (a *Arena) Slice(addr uintptr, n uint32) ([]byte, error) {
	if addr < a.base || addr-a.base+uintptr(n) > a.off {
		return nil, errors.New(errors.PhaseShim, errors.KindInvalidInput).
			Value(addr).
			Detail("range %#x+%d is outside allocated arena memory", addr, n).
			Build()
	}
	start := addr - a.base
	return a.buf[start : start+uintptr(n) : start+uintptr(n)], nil
}
