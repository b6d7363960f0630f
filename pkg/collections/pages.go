// Package collections provides the paged containers that hold per-node and
// per-edge state for graph computations: plain and atomic paged arrays and
// paged bit sets. Every container is indexed by a dense int64 id.
package collections

import (
	"fmt"
)

// ============================================================================
// Page geometry
// ============================================================================

const (
	// PageShift is the default log2 of the number of elements per page.
	PageShift = 12
	// PageSize is the default number of elements per page.
	PageSize = 1 << PageShift
	// PageMask extracts the in-page offset for the default page size.
	PageMask = PageSize - 1

	minPageShift = 1
	maxPageShift = 30
)

// layout describes how a logical index range maps onto pages.
type layout struct {
	size  int64
	shift uint
	mask  int64
}

func newLayout(size int64, opts []Option) layout {
	if size < 0 {
		panic(fmt.Sprintf("collections: negative size %d", size))
	}
	o := options{pageShift: PageShift}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pageShift < minPageShift || o.pageShift > maxPageShift {
		panic(fmt.Sprintf("collections: page shift %d outside [%d, %d]", o.pageShift, minPageShift, maxPageShift))
	}
	return layout{
		size:  size,
		shift: uint(o.pageShift),
		mask:  int64(1)<<uint(o.pageShift) - 1,
	}
}

func (l layout) pageSize() int64 { return l.mask + 1 }

func (l layout) numPages() int {
	return int((l.size + l.mask) >> l.shift)
}

// lastPageLen is the element count of the final, possibly partial, page.
func (l layout) lastPageLen() int {
	rem := l.size & l.mask
	if rem == 0 {
		return int(l.pageSize())
	}
	return int(rem)
}

func (l layout) pageLen(p int) int {
	if p == l.numPages()-1 {
		return l.lastPageLen()
	}
	return int(l.pageSize())
}

// PageIndex returns the page holding index i for the default page size.
func PageIndex(i int64) int64 {
	return i >> PageShift
}

// IndexInPage returns the offset of index i inside its page for the default page size.
func IndexInPage(i int64) int64 {
	return i & PageMask
}

// NumPages returns the number of default-sized pages needed to hold size elements.
func NumPages(size int64) int64 {
	return (size + PageMask) >> PageShift
}

// MemoryEstimate returns the bytes needed to hold size elements of elemBytes each,
// including the page table.
func MemoryEstimate(size int64, elemBytes int64) int64 {
	const sliceHeader = 24
	return size*elemBytes + NumPages(size)*sliceHeader
}

// ============================================================================
// Options
// ============================================================================

type options struct {
	pageShift int
}

// Option configures a paged container.
type Option func(*options)

// WithPageShift overrides the page size to 1<<shift elements.
// Small shifts are useful for exercising page boundaries in tests.
func WithPageShift(shift int) Option {
	return func(o *options) {
		o.pageShift = shift
	}
}
