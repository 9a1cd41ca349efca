//go:build opencl

package opencl

import (
	"fmt"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"

	"github.com/achilleasa/wavefront/tracer/device"
)

// Size of the zero block used for clearing buffers.
const clearChunkSize = 1 << 20

// A wrapper around an opencl buffer.
type memory struct {
	dev  *clDevice
	name string
	size int
	buf  *cl.MemObject
}

func (m *memory) Size() int {
	return m.size
}

func (m *memory) check(offset, length int) error {
	if m.buf == nil {
		return fmt.Errorf("opencl buffer %s: %w", m.name, device.ErrReleased)
	}
	if offset < 0 || offset+length > m.size {
		return fmt.Errorf("opencl buffer %s: %w: [%d, %d) of %d bytes", m.name, device.ErrOutOfBounds, offset, offset+length, m.size)
	}
	return nil
}

func (m *memory) Write(offset int, data []byte) error {
	if err := m.check(offset, len(data)); err != nil || len(data) == 0 {
		return err
	}
	ev, err := m.dev.cmdQueue.EnqueueWriteBuffer(m.buf, true, offset, len(data), unsafe.Pointer(&data[0]), nil)
	if err != nil {
		return fmt.Errorf("opencl buffer %s: write failed: %w", m.name, err)
	}
	ev.Release()
	return nil
}

func (m *memory) Read(offset int, data []byte) error {
	if err := m.check(offset, len(data)); err != nil || len(data) == 0 {
		return err
	}
	ev, err := m.dev.cmdQueue.EnqueueReadBuffer(m.buf, true, offset, len(data), unsafe.Pointer(&data[0]), nil)
	if err != nil {
		return fmt.Errorf("opencl buffer %s: read failed: %w", m.name, err)
	}
	ev.Release()
	return nil
}

func (m *memory) Clear() error {
	if err := m.check(0, 0); err != nil {
		return err
	}
	chunk := make([]byte, min(m.size, clearChunkSize))
	for offset := 0; offset < m.size; offset += len(chunk) {
		n := min(len(chunk), m.size-offset)
		if err := m.Write(offset, chunk[:n]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memory) Release() {
	if m.buf != nil {
		m.buf.Release()
		m.buf = nil
	}
}
