package collections

import (
	apperrors "github.com/graph-analysis/pkg/errors"
)

// Number is the set of primitive element types a paged array can hold.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// PagedArray is a fixed-size array split into power-of-two pages so that
// large per-node state never needs one contiguous allocation.
//
// A PagedArray is not safe for concurrent writes to the same index. Distinct
// indices may be written by different goroutines.
type PagedArray[T Number] struct {
	layout
	pages [][]T
}

// NewPagedArray allocates a zero-initialized array of size elements.
func NewPagedArray[T Number](size int64, opts ...Option) *PagedArray[T] {
	l := newLayout(size, opts)
	pages := make([][]T, l.numPages())
	for p := range pages {
		pages[p] = make([]T, l.pageLen(p))
	}
	return &PagedArray[T]{layout: l, pages: pages}
}

// Size returns the number of addressable elements.
func (a *PagedArray[T]) Size() int64 {
	return a.size
}

// Get returns the value at index i.
func (a *PagedArray[T]) Get(i int64) T {
	apperrors.CheckIndex(i, a.size)
	return a.pages[i>>a.shift][i&a.mask]
}

// Set stores v at index i.
func (a *PagedArray[T]) Set(i int64, v T) {
	apperrors.CheckIndex(i, a.size)
	a.pages[i>>a.shift][i&a.mask] = v
}

// AddTo adds delta to the value at index i. Not atomic.
func (a *PagedArray[T]) AddTo(i int64, delta T) {
	apperrors.CheckIndex(i, a.size)
	a.pages[i>>a.shift][i&a.mask] += delta
}

// Fill sets every element to v.
func (a *PagedArray[T]) Fill(v T) {
	for _, page := range a.pages {
		for j := range page {
			page[j] = v
		}
	}
}

// SetAll sets every element to gen(i).
func (a *PagedArray[T]) SetAll(gen func(i int64) T) {
	for p, page := range a.pages {
		base := int64(p) << a.shift
		for j := range page {
			page[j] = gen(base + int64(j))
		}
	}
}

// PageCount returns the number of pages.
func (a *PagedArray[T]) PageCount() int {
	return len(a.pages)
}

// Page returns page p. The slice aliases the array's storage.
func (a *PagedArray[T]) Page(p int) []T {
	return a.pages[p]
}

// PageSize returns the element capacity of a full page.
func (a *PagedArray[T]) PageSize() int64 {
	return a.pageSize()
}

// ForEach calls fn for every index in order until fn returns false.
func (a *PagedArray[T]) ForEach(fn func(i int64, v T) bool) {
	for p, page := range a.pages {
		base := int64(p) << a.shift
		for j, v := range page {
			if !fn(base+int64(j), v) {
				return
			}
		}
	}
}

// ToSlice copies the array into a contiguous slice.
func (a *PagedArray[T]) ToSlice() []T {
	out := make([]T, 0, a.size)
	for _, page := range a.pages {
		out = append(out, page...)
	}
	return out
}

// PagedArrayFromSlice builds a paged array holding a copy of values.
func PagedArrayFromSlice[T Number](values []T, opts ...Option) *PagedArray[T] {
	a := NewPagedArray[T](int64(len(values)), opts...)
	offset := 0
	for _, page := range a.pages {
		offset += copy(page, values[offset:])
	}
	return a
}
