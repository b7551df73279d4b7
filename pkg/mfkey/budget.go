package mfkey

import (
	"fmt"
	"time"
)

// Tier is a point on the time/space trade-off of the chunked search.
type Tier int

const (
	TierFull Tier = iota
	TierReduced
)

func (t Tier) String() string {
	switch t {
	case TierFull:
		return "full"
	case TierReduced:
		return "reduced"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

const (
	// Extra room in the merge buffers for candidates that branch while
	// being extended.
	mergeHeadroom = 512
	// Scratch entries for one semi-state while it is extended.
	statesBufferLen = 1024
)

// Budget carries every search tunable. It is passed by value to each call;
// nothing in this package keeps tunables of its own.
type Budget struct {
	// MSBLimit is how many of the 256 most-significant-byte values one
	// chunk covers. It must divide 256.
	MSBLimit int
	// BucketCapacity is the preallocated size of each per-MSB bucket.
	// Buckets grow past it when a chunk needs more.
	BucketCapacity int
	// PollInterval is how many semi-states are enumerated between
	// cancellation checks.
	PollInterval int
	// RoundETA and TotalETA seed the progress estimates.
	RoundETA time.Duration
	TotalETA time.Duration
	Tier     Tier
}

// DefaultBudget is the full-speed tier.
func DefaultBudget() Budget {
	return Budget{
		MSBLimit:       16,
		BucketCapacity: 768,
		PollInterval:   32768,
		RoundETA:       44 * time.Second,
		TotalETA:       705 * time.Second,
		Tier:           TierFull,
	}
}

func (b Budget) Validate() error {
	if b.MSBLimit < 1 || b.MSBLimit > 256 || 256%b.MSBLimit != 0 {
		return fmt.Errorf("msb limit must divide 256, got %d", b.MSBLimit)
	}
	if b.BucketCapacity < 1 {
		return fmt.Errorf("bucket capacity must be > 0, got %d", b.BucketCapacity)
	}
	if b.PollInterval < 1 {
		return fmt.Errorf("poll interval must be > 0, got %d", b.PollInterval)
	}
	if b.RoundETA < 0 || b.TotalETA < 0 {
		return fmt.Errorf("eta estimates must be >= 0")
	}
	return nil
}

// Rounds is the number of chunks a full search takes.
func (b Budget) Rounds() int {
	return 256 / b.MSBLimit
}

// Reduce steps a full budget down to the reduced tier: half the chunk
// width, twice the time. It reports false when no lower tier exists.
func (b Budget) Reduce() (Budget, bool) {
	if b.Tier != TierFull || b.MSBLimit < 2 {
		return b, false
	}
	b.MSBLimit /= 2
	b.TotalETA *= 2
	b.Tier = TierReduced
	return b, true
}

// Footprint is the number of bytes a search workspace allocates up front.
func (b Budget) Footprint() uint64 {
	bucket := uint64(4 + 4*b.BucketCapacity)
	buckets := 2 * uint64(b.MSBLimit) * bucket
	merge := 2 * 4 * uint64(b.BucketCapacity+mergeHeadroom)
	return buckets + merge + 4*statesBufferLen
}

func (b Budget) estimate(kind AttackKind) (round, total time.Duration) {
	round, total = b.RoundETA, b.TotalETA
	if kind == StaticEncrypted {
		// No early exit: every chunk is always searched. Full-tier chunks
		// are wider, so each one takes four times longer again.
		round *= 4
		total *= 4
		if b.Tier == TierFull {
			round *= 4
			total *= 4
		}
	}
	return round, total
}
