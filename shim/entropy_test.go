package shim

import (
	"bytes"
	"io"
	"testing"

	"github.com/wippyai/js-sandbox/errors"
)

// countingReader returns 0, 1, 2, ... and records request sizes.
type countingReader struct {
	next  byte
	sizes []int
}

func (r *countingReader) Read(p []byte) (int, error) {
	r.sizes = append(r.sizes, len(p))
	for i := range p {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}

func TestGetEntropyLimit(t *testing.T) {
	e := NewEntropy(&countingReader{})

	if err := e.GetEntropy(make([]byte, MaxEntropyRequest)); err != nil {
		t.Errorf("GetEntropy(%d): %v", MaxEntropyRequest, err)
	}
	err := e.GetEntropy(make([]byte, MaxEntropyRequest+1))
	if errors.KindOf(err) != errors.KindInvalidInput {
		t.Errorf("GetEntropy(%d) = %v, want invalid input", MaxEntropyRequest+1, err)
	}
}

func TestEntropyReadChunks(t *testing.T) {
	src := &countingReader{}
	e := NewEntropy(src)

	buf := make([]byte, 600)
	n, err := e.Read(buf)
	if err != nil || n != 600 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	want := []int{256, 256, 88}
	if len(src.sizes) != len(want) {
		t.Fatalf("requests = %v, want %v", src.sizes, want)
	}
	for i := range want {
		if src.sizes[i] != want[i] {
			t.Errorf("request %d = %d, want %d", i, src.sizes[i], want[i])
		}
	}
	if buf[599] != byte(599%256) {
		t.Errorf("buf[599] = %d", buf[599])
	}
}

func TestEntropySystemSource(t *testing.T) {
	e := NewEntropy(nil)
	a := make([]byte, 32)
	b := make([]byte, 32)
	if err := e.GetEntropy(a); err != nil {
		t.Fatal(err)
	}
	if err := e.GetEntropy(b); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("two 32-byte reads returned identical output")
	}
	switch e.Describe() {
	case "rdrand+rdseed", "rdrand", "rdseed", "none":
	default:
		t.Errorf("Describe = %q", e.Describe())
	}
}

func TestEntropyFloat64Range(t *testing.T) {
	e := NewEntropy(nil)
	for i := 0; i < 1000; i++ {
		f, err := e.Float64()
		if err != nil {
			t.Fatal(err)
		}
		if f < 0 || f >= 1 {
			t.Fatalf("Float64 = %v", f)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestEntropySourceFailure(t *testing.T) {
	e := NewEntropy(failingReader{})
	if _, err := e.Uint64(); errors.KindOf(err) != errors.KindInvalidData {
		t.Errorf("Uint64 = %v", err)
	}
	if _, err := e.Float64(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Float64 = %v, want wrapped source error", err)
	}
}
