package collections

import (
	"math"
	"sync/atomic"

	apperrors "github.com/graph-analysis/pkg/errors"
)

// ============================================================================
// AtomicLongArray
// ============================================================================

// AtomicLongArray is a paged int64 array whose slots are read and written
// with single atomic instructions. It is the only container that may be
// mutated by several workers at the same index.
type AtomicLongArray struct {
	layout
	pages [][]int64
}

// NewAtomicLongArray allocates a zero-initialized array of size slots.
func NewAtomicLongArray(size int64, opts ...Option) *AtomicLongArray {
	l := newLayout(size, opts)
	pages := make([][]int64, l.numPages())
	for p := range pages {
		pages[p] = make([]int64, l.pageLen(p))
	}
	return &AtomicLongArray{layout: l, pages: pages}
}

func (a *AtomicLongArray) slot(i int64) *int64 {
	apperrors.CheckIndex(i, a.size)
	return &a.pages[i>>a.shift][i&a.mask]
}

// Size returns the number of slots.
func (a *AtomicLongArray) Size() int64 {
	return a.size
}

// Get atomically loads slot i.
func (a *AtomicLongArray) Get(i int64) int64 {
	return atomic.LoadInt64(a.slot(i))
}

// Set atomically stores v into slot i.
func (a *AtomicLongArray) Set(i int64, v int64) {
	atomic.StoreInt64(a.slot(i), v)
}

// GetAndAdd adds delta to slot i and returns the previous value.
func (a *AtomicLongArray) GetAndAdd(i int64, delta int64) int64 {
	return atomic.AddInt64(a.slot(i), delta) - delta
}

// AddAndGet adds delta to slot i and returns the new value.
func (a *AtomicLongArray) AddAndGet(i int64, delta int64) int64 {
	return atomic.AddInt64(a.slot(i), delta)
}

// CompareAndSwap sets slot i to update if it currently holds expect.
func (a *AtomicLongArray) CompareAndSwap(i int64, expect, update int64) bool {
	return atomic.CompareAndSwapInt64(a.slot(i), expect, update)
}

// CompareAndExchange is CompareAndSwap that returns the witnessed value:
// expect on success, the conflicting value otherwise.
func (a *AtomicLongArray) CompareAndExchange(i int64, expect, update int64) int64 {
	p := a.slot(i)
	for {
		if atomic.CompareAndSwapInt64(p, expect, update) {
			return expect
		}
		if current := atomic.LoadInt64(p); current != expect {
			return current
		}
	}
}

// Fill sets every slot to v. Only for use while no worker is running.
func (a *AtomicLongArray) Fill(v int64) {
	for _, page := range a.pages {
		for j := range page {
			page[j] = v
		}
	}
}

// Snapshot copies the current values into a plain PagedArray with the same geometry.
func (a *AtomicLongArray) Snapshot() *PagedArray[int64] {
	out := &PagedArray[int64]{layout: a.layout, pages: make([][]int64, len(a.pages))}
	for p, page := range a.pages {
		dst := make([]int64, len(page))
		for j := range page {
			dst[j] = atomic.LoadInt64(&page[j])
		}
		out.pages[p] = dst
	}
	return out
}

// ============================================================================
// AtomicDoubleArray
// ============================================================================

// AtomicDoubleArray is a paged float64 array with lock-free accumulation.
// Values are stored as their IEEE-754 bit patterns.
type AtomicDoubleArray struct {
	layout
	pages [][]uint64
}

// NewAtomicDoubleArray allocates an array of size slots initialized to 0.0.
func NewAtomicDoubleArray(size int64, opts ...Option) *AtomicDoubleArray {
	l := newLayout(size, opts)
	pages := make([][]uint64, l.numPages())
	for p := range pages {
		pages[p] = make([]uint64, l.pageLen(p))
	}
	return &AtomicDoubleArray{layout: l, pages: pages}
}

func (a *AtomicDoubleArray) slot(i int64) *uint64 {
	apperrors.CheckIndex(i, a.size)
	return &a.pages[i>>a.shift][i&a.mask]
}

// Size returns the number of slots.
func (a *AtomicDoubleArray) Size() int64 {
	return a.size
}

// Get atomically loads slot i.
func (a *AtomicDoubleArray) Get(i int64) float64 {
	return math.Float64frombits(atomic.LoadUint64(a.slot(i)))
}

// Set atomically stores v into slot i.
func (a *AtomicDoubleArray) Set(i int64, v float64) {
	atomic.StoreUint64(a.slot(i), math.Float64bits(v))
}

// GetAndAdd adds delta to slot i and returns the previous value.
func (a *AtomicDoubleArray) GetAndAdd(i int64, delta float64) float64 {
	p := a.slot(i)
	for {
		oldBits := atomic.LoadUint64(p)
		old := math.Float64frombits(oldBits)
		if atomic.CompareAndSwapUint64(p, oldBits, math.Float64bits(old+delta)) {
			return old
		}
	}
}

// AddAndGet adds delta to slot i and returns the new value.
func (a *AtomicDoubleArray) AddAndGet(i int64, delta float64) float64 {
	return a.GetAndAdd(i, delta) + delta
}

// CompareAndSwap sets slot i to update if it currently holds exactly expect.
// Comparison is on bit patterns, so NaN matches NaN and -0 does not match +0.
func (a *AtomicDoubleArray) CompareAndSwap(i int64, expect, update float64) bool {
	return atomic.CompareAndSwapUint64(a.slot(i), math.Float64bits(expect), math.Float64bits(update))
}

// Fill sets every slot to v. Only for use while no worker is running.
func (a *AtomicDoubleArray) Fill(v float64) {
	b := math.Float64bits(v)
	for _, page := range a.pages {
		for j := range page {
			page[j] = b
		}
	}
}

// Snapshot copies the current values into a plain PagedArray with the same geometry.
func (a *AtomicDoubleArray) Snapshot() *PagedArray[float64] {
	out := &PagedArray[float64]{layout: a.layout, pages: make([][]float64, len(a.pages))}
	for p, page := range a.pages {
		dst := make([]float64, len(page))
		for j := range page {
			dst[j] = math.Float64frombits(atomic.LoadUint64(&page[j]))
		}
		out.pages[p] = dst
	}
	return out
}
