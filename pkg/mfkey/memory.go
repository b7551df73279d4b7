package mfkey

import (
	"math"
	"runtime"
	"runtime/debug"
)

// MemoryProbe reports how many bytes a new search workspace may take.
type MemoryProbe func() uint64

// RuntimeMemory probes headroom under the Go runtime's soft memory limit
// (GOMEMLIMIT). Without a limit everything fits.
func RuntimeMemory() uint64 {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit == math.MaxInt64 {
		return math.MaxUint64
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	used := ms.Sys - ms.HeapReleased
	if used >= uint64(limit) {
		return 0
	}
	return uint64(limit) - used
}

// FixedMemory returns a probe that always reports n bytes.
func FixedMemory(n uint64) MemoryProbe {
	return func() uint64 { return n }
}

// workspace holds every buffer one search owns. It is allocated per nonce
// and reused across that nonce's chunks.
type workspace struct {
	budget    Budget
	odd       []bucket
	even      []bucket
	mergeOdd  []uint32
	mergeEven []uint32
	scratch   candidates
}

func newWorkspace(b Budget, probe MemoryProbe) (*workspace, error) {
	if probe == nil {
		probe = RuntimeMemory
	}
	need := b.Footprint()
	if avail := probe(); avail < need {
		return nil, &MemoryError{Tier: b.Tier, Need: need, Available: avail}
	}

	w := &workspace{
		budget:    b,
		odd:       make([]bucket, b.MSBLimit),
		even:      make([]bucket, b.MSBLimit),
		mergeOdd:  make([]uint32, 0, b.BucketCapacity+mergeHeadroom),
		mergeEven: make([]uint32, 0, b.BucketCapacity+mergeHeadroom),
		scratch:   make(candidates, 0, statesBufferLen),
	}
	for i := range w.odd {
		w.odd[i] = make(bucket, 0, b.BucketCapacity)
		w.even[i] = make(bucket, 0, b.BucketCapacity)
	}
	return w, nil
}

func (w *workspace) reset() {
	for i := range w.odd {
		w.odd[i] = w.odd[i][:0]
		w.even[i] = w.even[i][:0]
	}
}
