package collections

import (
	"math/rand"
	"sync"
	"testing"
)

func TestBitSet_Basic(t *testing.T) {
	bs := NewBitSet(1000)

	if bs.Get(0) {
		t.Error("Expected bit 0 to be unset initially")
	}

	bs.Set(0)
	bs.Set(63)
	bs.Set(64)
	bs.Set(999)

	for _, i := range []int64{0, 63, 64, 999} {
		if !bs.Get(i) {
			t.Errorf("Expected bit %d to be set", i)
		}
	}
	if bs.Get(1) || bs.Get(65) {
		t.Error("Unexpected bit set")
	}

	bs.Clear(63)
	if bs.Get(63) {
		t.Error("Expected bit 63 to be cleared")
	}
	if bs.Cardinality() != 3 {
		t.Errorf("Expected cardinality 3, got %d", bs.Cardinality())
	}
}

func TestBitSet_RoundTrip(t *testing.T) {
	const size = 517
	bs := NewBitSet(size, WithPageShift(2))

	var expected int64
	for i := int64(0); i < size; i++ {
		bs.Set(i)
		expected++
		if !bs.Get(i) {
			t.Fatalf("bit %d not set after Set", i)
		}
		if bs.Cardinality() != expected {
			t.Fatalf("cardinality after Set(%d) = %d, want %d", i, bs.Cardinality(), expected)
		}
		// setting again must not change cardinality
		bs.Set(i)
		if bs.Cardinality() != expected {
			t.Fatalf("cardinality changed on repeated Set(%d)", i)
		}
	}

	for i := int64(0); i < size; i += 2 {
		bs.Clear(i)
		expected--
		if bs.Get(i) {
			t.Fatalf("bit %d still set after Clear", i)
		}
	}
	if bs.Cardinality() != expected {
		t.Errorf("Expected cardinality %d, got %d", expected, bs.Cardinality())
	}
}

func TestBitSet_GetAndSet(t *testing.T) {
	bs := NewBitSet(10)
	if bs.GetAndSet(4) {
		t.Error("first GetAndSet should report unset")
	}
	if !bs.GetAndSet(4) {
		t.Error("second GetAndSet should report set")
	}
}

func TestBitSet_NextSetBit(t *testing.T) {
	// 4 words per page puts page boundaries every 256 bits
	bs := NewBitSet(2000, WithPageShift(2))
	set := []int64{3, 64, 255, 256, 257, 1023, 1999}
	for _, i := range set {
		bs.Set(i)
	}

	tests := []struct {
		from int64
		want int64
	}{
		{0, 3},
		{3, 3},
		{4, 64},
		{65, 255},
		{256, 256},
		{258, 1023},
		{1024, 1999},
		{1999, 1999},
		{2000, -1},
		{5000, -1},
	}
	for _, tt := range tests {
		if got := bs.NextSetBit(tt.from); got != tt.want {
			t.Errorf("NextSetBit(%d) = %d, want %d", tt.from, got, tt.want)
		}
	}

	bs.Clear(1999)
	if got := bs.NextSetBit(1024); got != -1 {
		t.Errorf("NextSetBit after clearing tail = %d, want -1", got)
	}
}

func TestBitSet_IterationMatchesForEach(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	bs := NewBitSet(10000, WithPageShift(3))
	for i := 0; i < 700; i++ {
		bs.Set(rng.Int63n(bs.Size()))
	}

	var viaNext []int64
	for i := bs.NextSetBit(0); i >= 0; i = bs.NextSetBit(i + 1) {
		viaNext = append(viaNext, i)
	}
	viaForEach := bs.ToSlice()

	if int64(len(viaNext)) != bs.Cardinality() {
		t.Fatalf("NextSetBit visited %d bits, cardinality %d", len(viaNext), bs.Cardinality())
	}
	for i := range viaNext {
		if viaNext[i] != viaForEach[i] {
			t.Fatalf("mismatch at %d: %d vs %d", i, viaNext[i], viaForEach[i])
		}
		if i > 0 && viaNext[i] <= viaNext[i-1] {
			t.Fatalf("iteration not ascending at %d", i)
		}
	}
}

func TestBitSet_ClearAllAndUnion(t *testing.T) {
	a := NewBitSet(300)
	b := NewBitSet(300)
	a.Set(1)
	b.Set(2)
	b.Set(299)

	a.Union(b)
	if a.Cardinality() != 3 || !a.Get(299) {
		t.Errorf("Union produced cardinality %d", a.Cardinality())
	}

	a.ClearAll()
	if !a.IsEmpty() || a.Cardinality() != 0 {
		t.Error("Expected empty set after ClearAll")
	}
	if a.NextSetBit(0) != -1 {
		t.Error("Expected no set bits after ClearAll")
	}
	a.Set(5)
	if !a.Get(5) {
		t.Error("ClearAll must keep the set usable")
	}
}

func TestBitSet_Empty(t *testing.T) {
	bs := NewBitSet(0)
	if bs.Cardinality() != 0 || !bs.IsEmpty() {
		t.Error("Expected empty set")
	}
	if bs.NextSetBit(0) != -1 {
		t.Error("Expected -1 on empty set")
	}
	bs.ForEach(func(int64) bool {
		t.Error("ForEach should not visit anything")
		return true
	})
}

func TestBitSet_OutOfRangePanics(t *testing.T) {
	bs := NewBitSet(64)
	assertIndexPanic(t, func() { bs.Set(64) })
	assertIndexPanic(t, func() { bs.Get(-1) })
	assertIndexPanic(t, func() { bs.NextSetBit(-1) })
}

func TestAtomicBitSet_Concurrent(t *testing.T) {
	const size = 5000
	bs := NewAtomicBitSet(size, WithPageShift(2))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		firstSets int
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := 0
			for i := int64(0); i < size; i++ {
				if !bs.GetAndSet(i) {
					local++
				}
			}
			mu.Lock()
			firstSets += local
			mu.Unlock()
		}()
	}
	wg.Wait()

	if firstSets != size {
		t.Errorf("Expected exactly %d first sets, got %d", size, firstSets)
	}
	if bs.Cardinality() != size {
		t.Errorf("Expected cardinality %d, got %d", size, bs.Cardinality())
	}
	if !bs.Get(size - 1) {
		t.Error("Expected last bit set")
	}
}
