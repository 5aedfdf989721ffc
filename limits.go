package jssandbox

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/wippyai/js-sandbox/errors"
)

// WasmPageSize is the size of one WebAssembly linear memory page.
const WasmPageSize = 64 * 1024

const (
	DefaultHeapBytes  uint32 = 32 * 1024 * 1024
	DefaultStackBytes uint32 = 1024 * 1024

	MinHeapBytes  uint32 = 4 * 1024 * 1024
	MaxHeapBytes  uint32 = 2 * 1024 * 1024 * 1024
	MinStackBytes uint32 = 16 * 1024
	MaxStackBytes uint32 = 64 * 1024 * 1024
)

// Exchange arena bounds. The arena holds inbound call envelopes only.
const (
	minExchangeBytes = 64 * 1024
	maxExchangeBytes = 8 * 1024 * 1024
)

// Limits are the resource limits of one sandbox. They are fixed at creation.
type Limits struct {
	HeapBytes  uint32 `yaml:"heap_bytes"`
	StackBytes uint32 `yaml:"stack_bytes"`
}

// DefaultLimits returns a 32 MiB heap and a 1 MiB stack.
func DefaultLimits() Limits {
	return Limits{
		HeapBytes:  DefaultHeapBytes,
		StackBytes: DefaultStackBytes,
	}
}

// Validate rejects zero and out-of-range limits.
func (l Limits) Validate() error {
	if l.HeapBytes < MinHeapBytes || l.HeapBytes > MaxHeapBytes {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(l.HeapBytes).
			Detail("heap_bytes %s outside [%s, %s]",
				humanize.IBytes(uint64(l.HeapBytes)),
				humanize.IBytes(uint64(MinHeapBytes)),
				humanize.IBytes(uint64(MaxHeapBytes))).
			Build()
	}
	if l.StackBytes < MinStackBytes || l.StackBytes > MaxStackBytes {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(l.StackBytes).
			Detail("stack_bytes %s outside [%s, %s]",
				humanize.IBytes(uint64(l.StackBytes)),
				humanize.IBytes(uint64(MinStackBytes)),
				humanize.IBytes(uint64(MaxStackBytes))).
			Build()
	}
	return nil
}

// MemoryPages returns the linear memory limit in wasm pages, rounded up.
func (l Limits) MemoryPages() uint32 {
	return uint32((uint64(l.HeapBytes) + WasmPageSize - 1) / WasmPageSize)
}

// ExchangeBytes returns the size of the guest arena that receives call
// envelopes: one eighth of the heap, clamped to [64 KiB, 8 MiB].
func (l Limits) ExchangeBytes() uint32 {
	n := l.HeapBytes / 8
	if n < minExchangeBytes {
		n = minExchangeBytes
	}
	if n > maxExchangeBytes {
		n = maxExchangeBytes
	}
	return n
}

// MaxCallDepth returns the script call stack bound derived from StackBytes.
func (l Limits) MaxCallDepth() int {
	depth := int(l.StackBytes / 256)
	if depth < 64 {
		depth = 64
	}
	return depth
}

func (l Limits) String() string {
	return fmt.Sprintf("heap=%s stack=%s",
		humanize.IBytes(uint64(l.HeapBytes)),
		humanize.IBytes(uint64(l.StackBytes)))
}
