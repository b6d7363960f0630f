package collections

import (
	"sync"
)

// ============================================================================
// SlicePool - reusable scratch slices
// ============================================================================

// SlicePool hands out cleared slices backed by a sync.Pool.
type SlicePool[T any] struct {
	pool sync.Pool
}

// NewSlicePool creates a pool whose fresh slices have initialCap capacity.
func NewSlicePool[T any](initialCap int) *SlicePool[T] {
	if initialCap <= 0 {
		initialCap = 256
	}
	return &SlicePool[T]{
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]T, 0, initialCap)
				return &s
			},
		},
	}
}

// Get returns an empty slice from the pool.
func (p *SlicePool[T]) Get() *[]T {
	return p.pool.Get().(*[]T)
}

// Put truncates s and returns it to the pool.
func (p *SlicePool[T]) Put(s *[]T) {
	*s = (*s)[:0]
	p.pool.Put(s)
}

// NodeSlicePool holds int64 node-id buffers.
var NodeSlicePool = NewSlicePool[int64](1024)

// ============================================================================
// NodeQueue - FIFO of node ids
// ============================================================================

// NodeQueue is a FIFO of node ids backed by a single slice with a read cursor.
// The slice is compacted once more than half of it has been consumed.
type NodeQueue struct {
	data []int64
	head int
}

// NewNodeQueue creates a queue, borrowing its buffer from NodeSlicePool.
func NewNodeQueue() *NodeQueue {
	return &NodeQueue{data: *NodeSlicePool.Get()}
}

// Push appends a node id.
func (q *NodeQueue) Push(v int64) {
	q.data = append(q.data, v)
}

// Pop removes and returns the oldest node id.
func (q *NodeQueue) Pop() (int64, bool) {
	if q.head >= len(q.data) {
		return 0, false
	}
	v := q.data[q.head]
	q.head++
	if q.head > 1024 && q.head > len(q.data)/2 {
		n := copy(q.data, q.data[q.head:])
		q.data = q.data[:n]
		q.head = 0
	}
	return v, true
}

// Len returns the number of queued ids.
func (q *NodeQueue) Len() int {
	return len(q.data) - q.head
}

// Release returns the buffer to NodeSlicePool. The queue must not be used afterwards.
func (q *NodeQueue) Release() {
	buf := q.data
	q.data, q.head = nil, 0
	NodeSlicePool.Put(&buf)
}
