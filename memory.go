package jssandbox

// Memory is a view of guest linear memory as seen from the host.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	Size() uint32
}

// Allocator hands out aligned blocks. Blocks stay valid until Reset.
type Allocator interface {
	Alloc(size, align uint32) ([]byte, error)
	Reset()
}
