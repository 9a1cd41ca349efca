package host

import (
	"fmt"
	"unsafe"

	"github.com/achilleasa/wavefront/tracer/device"
)

type memory struct {
	name string
	size int

	// Backed by uint64 words so record views are 8 byte aligned.
	data     []uint64
	released bool
}

func (m *memory) Size() int {
	return m.size
}

func (m *memory) bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&m.data[0])), m.size)
}

func (m *memory) check(offset, n int) error {
	if m.released {
		return fmt.Errorf("host device: buffer %s: %w", m.name, device.ErrReleased)
	}
	if offset < 0 || offset+n > m.size {
		return fmt.Errorf("host device: buffer %s: %w: [%d, %d) of %d bytes", m.name, device.ErrOutOfBounds, offset, offset+n, m.size)
	}
	return nil
}

func (m *memory) Write(offset int, data []byte) error {
	if err := m.check(offset, len(data)); err != nil {
		return err
	}
	copy(m.bytes()[offset:], data)
	return nil
}

func (m *memory) Read(offset int, data []byte) error {
	if err := m.check(offset, len(data)); err != nil {
		return err
	}
	copy(data, m.bytes()[offset:])
	return nil
}

func (m *memory) Clear() error {
	if err := m.check(0, 0); err != nil {
		return err
	}
	clear(m.data)
	return nil
}

func (m *memory) Release() {
	m.released = true
	m.data = nil
}

// View a memory allocation as a slice of fixed-size records.
func view[T any](m *memory) []T {
	var zero T
	n := m.size / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&m.data[0])), n)
}
