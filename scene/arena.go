package scene

import "fmt"

// Arena stores items under contiguous integer ids. New items are appended by
// setting the id equal to the current length; existing ids are updated in
// place.
type Arena[T any] struct {
	items []T
}

// Set stores item at idx. Returns true if the item was appended.
func (a *Arena[T]) Set(idx int, item T) (bool, error) {
	switch {
	case idx == len(a.items):
		a.items = append(a.items, item)
		return true, nil
	case idx >= 0 && idx < len(a.items):
		a.items[idx] = item
		return false, nil
	}
	return false, fmt.Errorf("%w: id %d (len %d)", ErrIndexOutOfRange, idx, len(a.items))
}

// Get returns the item stored at idx.
func (a *Arena[T]) Get(idx int) (T, error) {
	if idx < 0 || idx >= len(a.items) {
		var zero T
		return zero, fmt.Errorf("%w: id %d (len %d)", ErrIndexOutOfRange, idx, len(a.items))
	}
	return a.items[idx], nil
}

// Ptr returns a pointer to the item stored at idx. The pointer is invalidated
// by the next append.
func (a *Arena[T]) Ptr(idx int) (*T, error) {
	if idx < 0 || idx >= len(a.items) {
		return nil, fmt.Errorf("%w: id %d (len %d)", ErrIndexOutOfRange, idx, len(a.items))
	}
	return &a.items[idx], nil
}

// Len returns the number of stored items.
func (a *Arena[T]) Len() int {
	return len(a.items)
}

// Items returns the stored items. The returned slice must not be modified.
func (a *Arena[T]) Items() []T {
	return a.items
}
