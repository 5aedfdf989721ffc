package shim

import (
	"bytes"
	"strings"
	"testing"

	jssandbox "github.com/wippyai/js-sandbox"
	"github.com/wippyai/js-sandbox/errors"
)

func TestSysconf(t *testing.T) {
	s := NewSysconf(32 * 1024 * 1024)

	tests := []struct {
		name SysconfName
		want int64
	}{
		{ScPageSize, 4096},
		{ScNProcessorsConf, 1},
		{ScNProcessorsOnln, 1},
		{ScClkTck, 100},
		{ScOpenMax, 16},
		{ScPhysPages, 8192},
	}
	for _, tt := range tests {
		t.Run(tt.name.String(), func(t *testing.T) {
			got, err := s.Get(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Get = %d, want %d", got, tt.want)
			}
		})
	}

	if v, err := s.Get(SysconfName(99)); err == nil || v != -1 {
		t.Errorf("Get(99) = %d, %v", v, err)
	}
}

func TestCatchExit(t *testing.T) {
	err := Catch(errors.PhaseExec, func() error {
		Exit(3)
		return nil
	})
	if errors.KindOf(err) != errors.KindExited {
		t.Fatalf("Catch = %v, want exited", err)
	}
	if !strings.Contains(err.Error(), "exit status 3") {
		t.Errorf("error = %q", err)
	}

	if err := Catch(errors.PhaseExec, func() error { return nil }); err != nil {
		t.Errorf("Catch(nil) = %v", err)
	}
}

func TestCatchRepanics(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recovered %v, want boom", r)
		}
	}()
	_ = Catch(errors.PhaseExec, func() error { panic("boom") })
	t.Error("Catch swallowed a foreign panic")
}

func TestKill(t *testing.T) {
	if err := Kill(42, 9); errors.KindOf(err) != errors.KindNoSuchProcess {
		t.Errorf("Kill(42) = %v", err)
	}
	if err := Kill(Pid, 0); err != nil {
		t.Errorf("Kill(self, 0) = %v", err)
	}
	if err := Kill(Pid, 100); errors.KindOf(err) != errors.KindInvalidInput {
		t.Errorf("Kill(self, 100) = %v", err)
	}

	err := Catch(errors.PhaseExec, func() error { return Raise(15) })
	if errors.KindOf(err) != errors.KindExited || !strings.Contains(err.Error(), "143") {
		t.Errorf("Raise(15) = %v", err)
	}
}

func TestStreamBounded(t *testing.T) {
	var sink bytes.Buffer
	s := NewStream("stdout", 8, &sink)

	s.WriteString("hello\n")
	s.WriteString("world\n")

	if got := s.String(); got != "o\nworld\n" {
		t.Errorf("retained = %q", got)
	}
	if s.Dropped() != 4 {
		t.Errorf("Dropped = %d, want 4", s.Dropped())
	}
	if sink.String() != "hello\nworld\n" {
		t.Errorf("sink = %q", sink.String())
	}

	s.Reset()
	if s.String() != "" || s.Dropped() != 0 {
		t.Errorf("after Reset: %q, %d", s.String(), s.Dropped())
	}
}

func TestConsoleStdinEOF(t *testing.T) {
	c := NewConsole(nil, nil)
	n, err := c.Stdin.Read(make([]byte, 4))
	if n != 0 || err == nil {
		t.Errorf("Stdin.Read = %d, %v", n, err)
	}
	c.Stdout.WriteString("partial")
	c.Flush()
	if c.Stdout.String() != "partial" {
		t.Errorf("Stdout = %q", c.Stdout.String())
	}
}

func TestNewOS(t *testing.T) {
	o, err := New(Config{Limits: jssandbox.DefaultLimits()})
	if err != nil {
		t.Fatal(err)
	}
	if o.Arena.Cap() != jssandbox.DefaultLimits().ExchangeBytes() {
		t.Errorf("arena cap = %d", o.Arena.Cap())
	}
	if o.Limits() != jssandbox.DefaultLimits() {
		t.Errorf("Limits = %v", o.Limits())
	}

	if _, err := New(Config{}); errors.KindOf(err) != errors.KindInvalidInput {
		t.Errorf("New with zero limits = %v", err)
	}
}
