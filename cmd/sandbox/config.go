package main

import (
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	jssandbox "github.com/wippyai/js-sandbox"
	"github.com/wippyai/js-sandbox/errors"
)

// Environment variables read after .env is loaded. Flags override them.
const (
	envGuest    = "JSSANDBOX_GUEST"
	envHeap     = "JSSANDBOX_HEAP"
	envStack    = "JSSANDBOX_STACK"
	envTimeout  = "JSSANDBOX_TIMEOUT"
	envLogLevel = "JSSANDBOX_LOG_LEVEL"
)

// ByteSize is a uint32 byte count written with optional units ("32MiB").
type ByteSize uint32

func parseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "byte size "+strconv.Quote(s))
	}
	if n > uint64(^uint32(0)) {
		return 0, errors.InvalidInput(errors.PhaseConfig, "byte size "+s+" does not fit in 32 bits")
	}
	return ByteSize(n), nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

func (b *ByteSize) UnmarshalYAML(n *yaml.Node) error {
	v, err := parseByteSize(n.Value)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

type settings struct {
	Guest    string        `yaml:"guest"`
	LogLevel string        `yaml:"log_level"`
	Heap     ByteSize      `yaml:"heap"`
	Stack    ByteSize      `yaml:"stack"`
	Timeout  time.Duration `yaml:"timeout"`
	Local    bool          `yaml:"local"`
}

func defaultSettings() settings {
	l := jssandbox.DefaultLimits()
	return settings{
		LogLevel: "warn",
		Heap:     ByteSize(l.HeapBytes),
		Stack:    ByteSize(l.StackBytes),
	}
}

func (s settings) limits() jssandbox.Limits {
	return jssandbox.Limits{HeapBytes: uint32(s.Heap), StackBytes: uint32(s.Stack)}
}

func (s *settings) loadEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envGuest); ok {
		s.Guest = v
	}
	if v, ok := lookup(envLogLevel); ok {
		s.LogLevel = v
	}
	for key, dst := range map[string]*ByteSize{envHeap: &s.Heap, envStack: &s.Stack} {
		if v, ok := lookup(key); ok {
			n, err := parseByteSize(v)
			if err != nil {
				return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, key)
			}
			*dst = n
		}
	}
	if v, ok := lookup(envTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, envTimeout)
		}
		s.Timeout = d
	}
	return nil
}

// loadFile overlays the YAML file at path. Keys missing from the file keep
// their current values.
func (s *settings) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config")
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse config "+path)
	}
	return nil
}

// applyFlags overlays flags the user set explicitly.
func (s *settings) applyFlags(fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		v := f.Value.String()
		switch f.Name {
		case "guest":
			s.Guest = v
		case "local":
			s.Local, err = strconv.ParseBool(v)
		case "log-level":
			s.LogLevel = v
		case "heap":
			s.Heap, err = parseByteSize(v)
		case "stack":
			s.Stack, err = parseByteSize(v)
		case "timeout":
			s.Timeout, err = time.ParseDuration(v)
		}
	})
	if err != nil {
		return err
	}
	return s.limits().Validate()
}
