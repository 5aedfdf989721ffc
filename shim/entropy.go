package shim

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/klauspost/cpuid/v2"

	"github.com/wippyai/js-sandbox/errors"
)

// MaxEntropyRequest is the largest buffer GetEntropy fills in one call.
const MaxEntropyRequest = 256

// Entropy supplies unpredictable bytes. It is the only shim service that is
// not deterministic.
//
// Bytes always come from the configured reader, which defaults to the
// operating system CSPRNG. The RDRAND/RDSEED detection only reports what
// the CPU advertises (Hardware, Describe) and does not select the source.
// Inside a wasm guest nothing is detected and the reader is the host's
// random source handed over through WASI.
type Entropy struct {
	src    io.Reader
	rdrand bool
	rdseed bool
}

// NewEntropy returns an entropy source reading from src, or from the
// operating system CSPRNG when src is nil.
func NewEntropy(src io.Reader) *Entropy {
	if src == nil {
		src = rand.Reader
	}
	e := &Entropy{
		src:    src,
		rdrand: cpuid.CPU.Supports(cpuid.RDRAND),
		rdseed: cpuid.CPU.Supports(cpuid.RDSEED),
	}
	Logger().Debug("entropy source ready")
	return e
}

// Hardware reports whether the CPU advertises a hardware RNG instruction.
func (e *Entropy) Hardware() bool {
	return e.rdrand || e.rdseed
}

// Describe names the detected hardware RNG capabilities.
func (e *Entropy) Describe() string {
	switch {
	case e.rdrand && e.rdseed:
		return "rdrand+rdseed"
	case e.rdrand:
		return "rdrand"
	case e.rdseed:
		return "rdseed"
	default:
		return "none"
	}
}

// GetEntropy fills buf completely. Requests above MaxEntropyRequest bytes
// are rejected.
func (e *Entropy) GetEntropy(buf []byte) error {
	if len(buf) > MaxEntropyRequest {
		return errors.New(errors.PhaseShim, errors.KindInvalidInput).
			Value(len(buf)).
			Detail("entropy request of %d bytes exceeds %d", len(buf), MaxEntropyRequest).
			Build()
	}
	if _, err := io.ReadFull(e.src, buf); err != nil {
		return errors.Wrap(errors.PhaseShim, errors.KindInvalidData, err, "entropy source failed")
	}
	return nil
}

// Read fills p in MaxEntropyRequest sized chunks. It implements io.Reader.
func (e *Entropy) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		end := min(n+MaxEntropyRequest, len(p))
		if err := e.GetEntropy(p[n:end]); err != nil {
			return n, err
		}
		n = end
	}
	return n, nil
}

// Uint64 returns a uniformly distributed 64-bit value.
func (e *Entropy) Uint64() (uint64, error) {
	var b [8]byte
	if err := e.GetEntropy(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Float64 returns a value in [0, 1) built from 53 random bits.
func (e *Entropy) Float64() (float64, error) {
	n, err := e.Uint64()
	if err != nil {
		return 0, err
	}
	return float64(n>>11) / (1 << 53), nil
}
