package shim

import (
	"github.com/wippyai/js-sandbox/errors"
)

// SysconfName names a system configuration value.
type SysconfName int

const (
	ScPageSize SysconfName = iota + 1
	ScNProcessorsConf
	ScNProcessorsOnln
	ScClkTck
	ScOpenMax
	ScPhysPages
)

var sysconfNames = map[SysconfName]string{
	ScPageSize:        "_SC_PAGESIZE",
	ScNProcessorsConf: "_SC_NPROCESSORS_CONF",
	ScNProcessorsOnln: "_SC_NPROCESSORS_ONLN",
	ScClkTck:          "_SC_CLK_TCK",
	ScOpenMax:         "_SC_OPEN_MAX",
	ScPhysPages:       "_SC_PHYS_PAGES",
}

func (n SysconfName) String() string {
	if s, ok := sysconfNames[n]; ok {
		return s
	}
	return "_SC_UNKNOWN"
}

// Fixed configuration values.
const (
	PageSize   = 4096
	NumCPU     = 1
	ClockTicks = 100
	OpenMax    = 16
)

// Sysconf answers configuration queries with constants. Only the physical
// page count depends on the sandbox heap limit.
type Sysconf struct {
	heapBytes uint32
}

// NewSysconf returns a Sysconf for a guest with heapBytes of memory.
func NewSysconf(heapBytes uint32) Sysconf {
	return Sysconf{heapBytes: heapBytes}
}

// Get returns the value of name.
func (s Sysconf) Get(name SysconfName) (int64, error) {
	switch name {
	case ScPageSize:
		return PageSize, nil
	case ScNProcessorsConf, ScNProcessorsOnln:
		return NumCPU, nil
	case ScClkTck:
		return ClockTicks, nil
	case ScOpenMax:
		return OpenMax, nil
	case ScPhysPages:
		return int64(s.heapBytes / PageSize), nil
	default:
		return -1, errors.New(errors.PhaseShim, errors.KindInvalidInput).
			Value(int(name)).
			Detail("unsupported sysconf name %d", int(name)).
			Build()
	}
}
