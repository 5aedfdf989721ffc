package sandbox

import (
	"github.com/tetratelabs/wazero/api"

	jssandbox "github.com/wippyai/js-sandbox"
	"github.com/wippyai/js-sandbox/errors"
)

var _ jssandbox.Memory = (*guestMemory)(nil)

// guestMemory adapts wazero linear memory to jssandbox.Memory.
type guestMemory struct {
	mem api.Memory
}

func (m *guestMemory) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.Boundary(errors.KindInvalidData,
			outOfBounds("read", offset, length, m.mem.Size()), nil)
	}
	return data, nil
}

func (m *guestMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.Boundary(errors.KindInvalidData,
			outOfBounds("write", offset, uint32(len(data)), m.mem.Size()), nil)
	}
	return nil
}

func (m *guestMemory) Size() uint32 {
	return m.mem.Size()
}
