package shim

import (
	"io"

	"go.uber.org/zap"

	jssandbox "github.com/wippyai/js-sandbox"
)

// Config configures an OS.
type Config struct {
	Limits jssandbox.Limits

	// Entropy overrides the randomness source. Nil means crypto/rand.
	Entropy io.Reader

	// Stdout and Stderr receive a copy of console output when set.
	Stdout io.Writer
	Stderr io.Writer
}

// OS is the full set of shim services for one guest.
type OS struct {
	Clock   *Clock
	Entropy *Entropy
	Arena   *Arena
	Sysconf Sysconf
	Console *Console

	limits jssandbox.Limits
}

// New builds the shim services for a guest with the given limits.
func New(cfg Config) (*OS, error) {
	if err := cfg.Limits.Validate(); err != nil {
		return nil, err
	}

	o := &OS{
		Clock:   NewClock(),
		Entropy: NewEntropy(cfg.Entropy),
		Arena:   NewArena(cfg.Limits.ExchangeBytes()),
		Sysconf: NewSysconf(cfg.Limits.HeapBytes),
		Console: NewConsole(cfg.Stdout, cfg.Stderr),
		limits:  cfg.Limits,
	}

	Logger().Debug("shim ready",
		zap.Stringer("limits", cfg.Limits),
		zap.Uint32("arena_bytes", o.Arena.Cap()),
		zap.String("hw_rng", o.Entropy.Describe()))
	return o, nil
}

// Limits returns the limits the OS was built with.
func (o *OS) Limits() jssandbox.Limits {
	return o.limits
}
