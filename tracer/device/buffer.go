package device

import (
	"fmt"
	"unsafe"
)

// Location selects the side(s) of a mirrored buffer an operation applies to.
type Location uint8

const (
	OnHost Location = 1 << iota
	OnDevice
)

// GrowCapacity returns the capacity to allocate when at least required
// records are needed and previous records were allocated before. Growing by
// an extra 1/16th amortizes reallocations when the requirement creeps up.
func GrowCapacity(required, previous int) int {
	grown := previous + previous>>4
	if required > grown {
		return required
	}
	return grown
}

// Buffer is a typed allocation mirrored between host and device memory. T
// must be a fixed-size type without pointers.
type Buffer[T any] struct {
	dev  Device
	name string
	loc  Location

	// Number of records in use and allocated.
	count    int
	capacity int

	host []T
	mem  Memory
}

// Allocate a mirrored buffer holding count records. Devices reject empty
// allocations so at least one record is always allocated.
func NewBuffer[T any](dev Device, name string, count int, loc Location) (*Buffer[T], error) {
	b := &Buffer[T]{dev: dev, name: name, loc: loc}
	if err := b.alloc(count); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Buffer[T]) alloc(count int) error {
	capacity := count
	if capacity < 1 {
		capacity = 1
	}

	var mem Memory
	if b.loc&OnDevice != 0 {
		var err error
		mem, err = b.dev.Alloc(b.name, capacity*b.recordSize())
		if err != nil {
			return fmt.Errorf("buffer %s: could not allocate %d records: %w", b.name, capacity, err)
		}
	}

	// Replace the previous allocation only after the new one succeeded.
	if b.mem != nil {
		b.mem.Release()
	}
	b.mem = mem
	if b.loc&OnHost != 0 {
		b.host = make([]T, capacity)
	}
	b.count = count
	b.capacity = capacity
	return nil
}

func (b *Buffer[T]) recordSize() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Name of the buffer.
func (b *Buffer[T]) Name() string {
	return b.name
}

// Number of records in use.
func (b *Buffer[T]) Len() int {
	return b.count
}

// Number of allocated records.
func (b *Buffer[T]) Capacity() int {
	return b.capacity
}

// The host side records. Returns nil for device-only buffers.
func (b *Buffer[T]) HostPtr() []T {
	if b.host == nil {
		return nil
	}
	return b.host[:b.count]
}

// The device allocation. Returns nil for host-only buffers.
func (b *Buffer[T]) DevPtr() Memory {
	return b.mem
}

// Replace the allocation with one holding count records. The previous
// allocation is released and its contents are lost.
func (b *Buffer[T]) Resize(count int) error {
	return b.alloc(count)
}

// Replace the buffer contents with data, reallocating when data does not fit
// the current capacity. Returns true if the allocation was replaced.
func (b *Buffer[T]) SetData(data []T) (bool, error) {
	reallocated := false
	if len(data) > b.capacity {
		if err := b.alloc(len(data)); err != nil {
			return false, err
		}
		reallocated = true
	}
	b.count = len(data)
	if b.host != nil {
		copy(b.host, data)
	}
	if b.mem == nil {
		return reallocated, nil
	}
	if b.host != nil {
		return reallocated, b.CopyToDevice()
	}
	return reallocated, b.mem.Write(0, asBytes(data))
}

// Upload the host records to the device.
func (b *Buffer[T]) CopyToDevice() error {
	if b.mem == nil || b.host == nil {
		return fmt.Errorf("buffer %s: CopyToDevice requires a host and device mirror", b.name)
	}
	if err := b.mem.Write(0, asBytes(b.host[:b.count])); err != nil {
		return fmt.Errorf("buffer %s: %w", b.name, err)
	}
	return nil
}

// Download the device records to the host.
func (b *Buffer[T]) CopyToHost() error {
	if b.mem == nil || b.host == nil {
		return fmt.Errorf("buffer %s: CopyToHost requires a host and device mirror", b.name)
	}
	if err := b.mem.Read(0, asBytes(b.host[:b.count])); err != nil {
		return fmt.Errorf("buffer %s: %w", b.name, err)
	}
	return nil
}

// Zero the buffer contents on the selected side(s).
func (b *Buffer[T]) Clear(loc Location) error {
	if loc&OnHost != 0 && b.host != nil {
		clear(b.host)
	}
	if loc&OnDevice != 0 && b.mem != nil {
		if err := b.mem.Clear(); err != nil {
			return fmt.Errorf("buffer %s: %w", b.name, err)
		}
	}
	return nil
}

// Free the device allocation and drop the host mirror.
func (b *Buffer[T]) Release() {
	if b.mem != nil {
		b.mem.Release()
		b.mem = nil
	}
	b.host = nil
	b.count = 0
	b.capacity = 0
}

// View a slice of fixed-size records as raw bytes.
func asBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(data))), len(data)*int(unsafe.Sizeof(zero)))
}
