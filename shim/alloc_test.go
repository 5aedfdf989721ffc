package shim

import (
	"testing"
	"unsafe"

	"github.com/wippyai/js-sandbox/errors"
)

func addr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

func TestArenaAlignment(t *testing.T) {
	a := NewArena(1 << 20)
	sizes := []uint32{1, 3, 7, 8, 17, 100, 4095}

	for align := uint32(1); align <= MaxAlign; align <<= 1 {
		for _, size := range sizes {
			block, err := a.Alloc(size, align)
			if err != nil {
				t.Fatalf("Alloc(%d, %d): %v", size, align, err)
			}
			if len(block) != int(size) {
				t.Errorf("Alloc(%d, %d) len = %d", size, align, len(block))
			}
			if addr(block)%uintptr(align) != 0 {
				t.Errorf("Alloc(%d, %d) = %#x, misaligned", size, align, addr(block))
			}
		}
	}
}

func TestArenaRoundsSize(t *testing.T) {
	a := NewArena(64 * 1024)
	block, err := a.Alloc(10, 16)
	if err != nil {
		t.Fatal(err)
	}
	if cap(block) != 16 {
		t.Errorf("cap = %d, want 16", cap(block))
	}
	if a.Used() != 16 {
		t.Errorf("Used = %d, want 16", a.Used())
	}
}

func TestArenaNoOverlap(t *testing.T) {
	a := NewArena(64 * 1024)
	first, err := a.Alloc(5, 8)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Alloc(5, 64)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first {
		first[i] = 0xAA
	}
	for i := range second {
		if second[i] != 0 {
			t.Fatalf("second block byte %d = %#x, want 0", i, second[i])
		}
	}
	if addr(second) < addr(first)+uintptr(cap(first)) {
		t.Errorf("blocks overlap: %#x+%d > %#x", addr(first), cap(first), addr(second))
	}
}

func TestArenaRejects(t *testing.T) {
	a := NewArena(64 * 1024)

	tests := []struct {
		name  string
		size  uint32
		align uint32
		kind  errors.Kind
	}{
		{"zero align", 8, 0, errors.KindInvalidInput},
		{"non power of two", 8, 24, errors.KindInvalidInput},
		{"above max", 8, MaxAlign * 2, errors.KindInvalidInput},
		{"zero size", 0, 8, errors.KindInvalidInput},
		{"exhausted", 64*1024 + 1, 1, errors.KindAllocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := a.Alloc(tt.size, tt.align)
			if err == nil {
				t.Fatalf("expected error, got block of %d", len(block))
			}
			if errors.KindOf(err) != tt.kind {
				t.Errorf("KindOf = %s, want %s", errors.KindOf(err), tt.kind)
			}
		})
	}
	if a.Used() != 0 {
		t.Errorf("failed allocations consumed %d bytes", a.Used())
	}
}

func TestArenaExhaustionKeepsBlocks(t *testing.T) {
	a := NewArena(64 * 1024)
	block, err := a.Alloc(60*1024, 4096)
	if err != nil {
		t.Fatal(err)
	}
	block[0] = 1
	if _, err := a.Alloc(8*1024, 8); !errors.Is(err, errors.AllocationFailed(errors.PhaseShim, 0, 0)) {
		t.Fatalf("expected allocation failure, got %v", err)
	}
	if block[0] != 1 {
		t.Error("exhaustion modified a live block")
	}
	if a.Live() != 1 {
		t.Errorf("Live = %d, want 1", a.Live())
	}
}

func TestArenaFullCapacityAtMaxAlign(t *testing.T) {
	a := NewArena(64 * 1024)
	if _, err := a.Alloc(64*1024, MaxAlign); err != nil {
		t.Fatalf("full-capacity aligned allocation failed: %v", err)
	}
}

func TestArenaFreeAndReset(t *testing.T) {
	a := NewArena(64 * 1024)
	first, _ := a.Alloc(100, 8)
	second, _ := a.Alloc(100, 8)

	if a.Free(first) {
		t.Error("Free released a block that is not the most recent")
	}
	if !a.Free(second) {
		t.Error("Free did not release the most recent block")
	}
	if a.Live() != 1 {
		t.Errorf("Live = %d, want 1", a.Live())
	}

	third, _ := a.Alloc(100, 8)
	if addr(third) != addr(second) {
		t.Errorf("freed space not reused: %#x != %#x", addr(third), addr(second))
	}

	a.Reset()
	if a.Used() != 0 || a.Live() != 0 {
		t.Errorf("after Reset: %s", a)
	}
	again, _ := a.Alloc(100, 8)
	if addr(again) != addr(first) {
		t.Errorf("Reset did not rewind: %#x != %#x", addr(again), addr(first))
	}
}

func TestArenaSlice(t *testing.T) {
	a := NewArena(64 * 1024)
	block, err := a.Alloc(32, 8)
	if err != nil {
		t.Fatal(err)
	}
	copy(block, "request")

	got, err := a.Slice(a.Addr(block), 7)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if string(got) != "request" {
		t.Errorf("Slice = %q", got)
	}

	if _, err := a.Slice(a.Addr(block), 64); err == nil {
		t.Error("expected error for range past the allocated region")
	}
	if _, err := a.Slice(a.Addr(block)-1, 1); err == nil {
		t.Error("expected error for address below the arena")
	}

	a.Reset()
	if _, err := a.Slice(a.Addr(block), 1); err == nil {
		t.Error("expected error after Reset")
	}
}
