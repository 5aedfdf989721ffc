package shim

import (
	"fmt"
	"time"

	"github.com/wippyai/js-sandbox/errors"
)

// ClockID selects a clock for Gettime and Getres.
type ClockID int

const (
	ClockRealtime  ClockID = 0
	ClockMonotonic ClockID = 1
)

func (c ClockID) String() string {
	switch c {
	case ClockRealtime:
		return "realtime"
	case ClockMonotonic:
		return "monotonic"
	default:
		return fmt.Sprintf("clock(%d)", int(c))
	}
}

const (
	// clockStart is the first value returned by the counter: one hour.
	clockStart = 3600 * 1_000_000
	// clockStep is how far the counter advances on every read, in microseconds.
	clockStep = 1000
	// RealtimeEpoch is the wall clock at counter zero: 2021-01-01T00:00:00Z.
	RealtimeEpoch = 1609459200
)

// ClockResolution is the granularity of every clock the shim reports.
const ClockResolution = time.Microsecond

// Timespec is a seconds and nanoseconds pair.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// Duration converts ts to a duration since its clock's origin.
func (ts Timespec) Duration() time.Duration {
	return time.Duration(ts.Sec)*time.Second + time.Duration(ts.Nsec)
}

// Clock is a fake clock driven by a microsecond counter. Every read returns
// the current counter and then advances it, so successive reads are strictly
// increasing. Sleeping advances the counter instead of blocking.
type Clock struct {
	us uint64
}

// NewClock returns a clock positioned at its start value.
func NewClock() *Clock {
	return &Clock{us: clockStart}
}

func (c *Clock) advance() uint64 {
	v := c.us
	c.us += clockStep
	return v
}

// Gettime reads clock id. Only realtime and monotonic clocks exist.
func (c *Clock) Gettime(id ClockID) (Timespec, error) {
	switch id {
	case ClockRealtime:
		us := c.advance()
		return Timespec{Sec: RealtimeEpoch + int64(us/1_000_000), Nsec: int64(us%1_000_000) * 1000}, nil
	case ClockMonotonic:
		us := c.advance()
		return Timespec{Sec: int64(us / 1_000_000), Nsec: int64(us%1_000_000) * 1000}, nil
	default:
		return Timespec{}, errors.New(errors.PhaseShim, errors.KindInvalidInput).
			Value(int(id)).
			Detail("unknown clock %s", id).
			Build()
	}
}

// Getres returns the resolution of clock id without advancing the counter.
func (c *Clock) Getres(id ClockID) (Timespec, error) {
	switch id {
	case ClockRealtime, ClockMonotonic:
		return Timespec{Nsec: int64(ClockResolution)}, nil
	default:
		return Timespec{}, errors.InvalidInput(errors.PhaseShim, fmt.Sprintf("unknown clock %s", id))
	}
}

// Gettimeofday returns realtime seconds and microseconds.
func (c *Clock) Gettimeofday() (sec, usec int64) {
	us := c.advance()
	return RealtimeEpoch + int64(us/1_000_000), int64(us % 1_000_000)
}

// Sleep advances the counter by d, rounded up to whole microseconds.
// It returns immediately.
func (c *Clock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	c.us += uint64((d + ClockResolution - 1) / ClockResolution)
}

// Now returns the realtime clock as a time.Time.
func (c *Clock) Now() time.Time {
	ts, _ := c.Gettime(ClockRealtime)
	return time.Unix(ts.Sec, ts.Nsec).UTC()
}

// Nanotime returns the monotonic clock in nanoseconds.
func (c *Clock) Nanotime() int64 {
	ts, _ := c.Gettime(ClockMonotonic)
	return int64(ts.Duration())
}

// Walltime returns the realtime clock split into seconds and nanoseconds.
func (c *Clock) Walltime() (sec int64, nsec int32) {
	ts, _ := c.Gettime(ClockRealtime)
	return ts.Sec, int32(ts.Nsec)
}

// Nanosleep advances the counter by ns nanoseconds.
func (c *Clock) Nanosleep(ns int64) {
	c.Sleep(time.Duration(ns))
}
