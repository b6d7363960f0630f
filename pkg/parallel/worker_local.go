package parallel

import (
	"sync/atomic"

	apperrors "github.com/graph-analysis/pkg/errors"
)

// WorkerLocal holds one lazily created value per worker id, so scratch
// buffers are allocated once per worker instead of once per batch.
//
// Slot i is only touched by the worker with id i, which is what makes the
// unsynchronized slot access safe.
type WorkerLocal[T any] struct {
	factory func() T
	slots   []workerSlot[T]
	created atomic.Int64
}

type workerSlot[T any] struct {
	value T
	ok    bool
	// keep neighbouring slots on separate cache lines
	_ [48]byte
}

// NewWorkerLocal creates storage for concurrency workers.
func NewWorkerLocal[T any](concurrency int, factory func() T) *WorkerLocal[T] {
	if concurrency < 1 {
		concurrency = 1
	}
	return &WorkerLocal[T]{
		factory: factory,
		slots:   make([]workerSlot[T], concurrency),
	}
}

// NewWorkerLocalFor sizes the storage for the executor's workers.
func NewWorkerLocalFor[T any](e *Executor, factory func() T) *WorkerLocal[T] {
	return NewWorkerLocal(e.Concurrency(), factory)
}

// Get returns the worker's value, creating it on first use.
func (w *WorkerLocal[T]) Get(workerID int) T {
	apperrors.CheckIndex(int64(workerID), int64(len(w.slots)))
	slot := &w.slots[workerID]
	if !slot.ok {
		slot.value = w.factory()
		slot.ok = true
		w.created.Add(1)
	}
	return slot.value
}

// Created returns how many values the factory has produced.
func (w *WorkerLocal[T]) Created() int64 {
	return w.created.Load()
}

// ForEachCreated calls fn for every value created so far. Must not run
// concurrently with Get.
func (w *WorkerLocal[T]) ForEachCreated(fn func(workerID int, value T)) {
	for i := range w.slots {
		if w.slots[i].ok {
			fn(i, w.slots[i].value)
		}
	}
}
