package collections

import (
	"math/bits"
	"sync/atomic"

	apperrors "github.com/graph-analysis/pkg/errors"
)

// ============================================================================
// BitSet - paged bit vector
// ============================================================================

const wordBits = 64

func wordCount(size int64) int64 {
	return (size + wordBits - 1) / wordBits
}

// BitSet maps each id in [0, size) to one bit, stored in a paged array of
// 64-bit words. A 1M-node visited set costs 128KB.
//
// BitSet is not safe for concurrent mutation; see AtomicBitSet.
type BitSet struct {
	words *PagedArray[uint64]
	size  int64
}

// NewBitSet creates an empty bit set for ids in [0, size).
func NewBitSet(size int64, opts ...Option) *BitSet {
	if size < 0 {
		panic(&apperrors.IndexOutOfBoundsError{Index: size, Size: 0})
	}
	return &BitSet{
		words: NewPagedArray[uint64](wordCount(size), opts...),
		size:  size,
	}
}

// Size returns the number of addressable bits.
func (b *BitSet) Size() int64 {
	return b.size
}

// Set sets bit i.
func (b *BitSet) Set(i int64) {
	apperrors.CheckIndex(i, b.size)
	w := i / wordBits
	b.words.Set(w, b.words.Get(w)|1<<uint(i%wordBits))
}

// GetAndSet sets bit i and reports whether it was already set.
func (b *BitSet) GetAndSet(i int64) bool {
	apperrors.CheckIndex(i, b.size)
	w := i / wordBits
	mask := uint64(1) << uint(i%wordBits)
	word := b.words.Get(w)
	b.words.Set(w, word|mask)
	return word&mask != 0
}

// Clear clears bit i.
func (b *BitSet) Clear(i int64) {
	apperrors.CheckIndex(i, b.size)
	w := i / wordBits
	b.words.Set(w, b.words.Get(w)&^(1<<uint(i%wordBits)))
}

// Get reports whether bit i is set.
func (b *BitSet) Get(i int64) bool {
	apperrors.CheckIndex(i, b.size)
	return b.words.Get(i/wordBits)&(1<<uint(i%wordBits)) != 0
}

// ClearAll resets every bit without releasing pages.
func (b *BitSet) ClearAll() {
	b.words.Fill(0)
}

// Cardinality returns the number of set bits.
func (b *BitSet) Cardinality() int64 {
	var count int64
	for p := 0; p < b.words.PageCount(); p++ {
		for _, word := range b.words.Page(p) {
			count += int64(bits.OnesCount64(word))
		}
	}
	return count
}

// IsEmpty reports whether no bit is set.
func (b *BitSet) IsEmpty() bool {
	for p := 0; p < b.words.PageCount(); p++ {
		for _, word := range b.words.Page(p) {
			if word != 0 {
				return false
			}
		}
	}
	return true
}

// NextSetBit returns the smallest set bit >= from, or -1 when there is none.
// Zero words are skipped whole, so a full scan costs O(words + set bits).
func (b *BitSet) NextSetBit(from int64) int64 {
	if from < 0 {
		panic(&apperrors.IndexOutOfBoundsError{Index: from, Size: b.size})
	}
	if from >= b.size {
		return -1
	}

	w := from / wordBits
	// mask off bits below from in the first word
	word := b.words.Get(w) & (^uint64(0) << uint(from%wordBits))
	last := b.words.Size()
	for {
		if word != 0 {
			return w*wordBits + int64(bits.TrailingZeros64(word))
		}
		w++
		if w >= last {
			return -1
		}
		word = b.words.Get(w)
	}
}

// ForEach calls fn for every set bit in ascending order until fn returns false.
func (b *BitSet) ForEach(fn func(i int64) bool) {
	for p := 0; p < b.words.PageCount(); p++ {
		base := int64(p) * b.words.PageSize() * wordBits
		for j, word := range b.words.Page(p) {
			for word != 0 {
				idx := base + int64(j)*wordBits + int64(bits.TrailingZeros64(word))
				if !fn(idx) {
					return
				}
				word &= word - 1
			}
		}
	}
}

// Union sets every bit that is set in other. Both sets must have the same size.
func (b *BitSet) Union(other *BitSet) {
	if other.size != b.size {
		panic(&apperrors.IndexOutOfBoundsError{Index: other.size, Size: b.size})
	}
	for p := 0; p < b.words.PageCount(); p++ {
		dst, src := b.words.Page(p), other.words.Page(p)
		for j := range dst {
			dst[j] |= src[j]
		}
	}
}

// ToSlice returns the set bits in ascending order.
func (b *BitSet) ToSlice() []int64 {
	out := make([]int64, 0, b.Cardinality())
	b.ForEach(func(i int64) bool {
		out = append(out, i)
		return true
	})
	return out
}

// ============================================================================
// AtomicBitSet - concurrent set-only bit vector
// ============================================================================

// AtomicBitSet is a bit set whose Set and GetAndSet are lock-free, so many
// workers can mark ids concurrently.
type AtomicBitSet struct {
	layout
	pages [][]uint64
	bits  int64
}

// NewAtomicBitSet creates an empty atomic bit set for ids in [0, size).
func NewAtomicBitSet(size int64, opts ...Option) *AtomicBitSet {
	if size < 0 {
		panic(&apperrors.IndexOutOfBoundsError{Index: size, Size: 0})
	}
	l := newLayout(wordCount(size), opts)
	pages := make([][]uint64, l.numPages())
	for p := range pages {
		pages[p] = make([]uint64, l.pageLen(p))
	}
	return &AtomicBitSet{layout: l, pages: pages, bits: size}
}

func (b *AtomicBitSet) word(i int64) (*uint64, uint64) {
	apperrors.CheckIndex(i, b.bits)
	w := i / wordBits
	return &b.pages[w>>b.shift][w&b.mask], uint64(1) << uint(i%wordBits)
}

// Size returns the number of addressable bits.
func (b *AtomicBitSet) Size() int64 {
	return b.bits
}

// Get reports whether bit i is set.
func (b *AtomicBitSet) Get(i int64) bool {
	p, mask := b.word(i)
	return atomic.LoadUint64(p)&mask != 0
}

// Set sets bit i.
func (b *AtomicBitSet) Set(i int64) {
	b.GetAndSet(i)
}

// GetAndSet sets bit i and reports whether it was already set. Exactly one
// concurrent caller observes false for a given bit.
func (b *AtomicBitSet) GetAndSet(i int64) bool {
	p, mask := b.word(i)
	for {
		old := atomic.LoadUint64(p)
		if old&mask != 0 {
			return true
		}
		if atomic.CompareAndSwapUint64(p, old, old|mask) {
			return false
		}
	}
}

// Cardinality returns the number of set bits.
func (b *AtomicBitSet) Cardinality() int64 {
	var count int64
	for _, page := range b.pages {
		for j := range page {
			count += int64(bits.OnesCount64(atomic.LoadUint64(&page[j])))
		}
	}
	return count
}
