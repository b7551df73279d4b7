package mfkey

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultBudget(t *testing.T) {
	b := DefaultBudget()
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if b.Rounds() != 16 {
		t.Fatalf("Rounds() = %d, want 16", b.Rounds())
	}
	// Two tables of 16 buckets, two merge buffers and the scratch buffer.
	if got := b.Footprint(); got != 112768 {
		t.Fatalf("Footprint() = %d, want 112768", got)
	}
}

func TestBudgetValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Budget)
		want   string
	}{
		{"msb zero", func(b *Budget) { b.MSBLimit = 0 }, "msb limit"},
		{"msb not divisor", func(b *Budget) { b.MSBLimit = 24 }, "msb limit"},
		{"msb too large", func(b *Budget) { b.MSBLimit = 512 }, "msb limit"},
		{"bucket capacity", func(b *Budget) { b.BucketCapacity = 0 }, "bucket capacity"},
		{"poll interval", func(b *Budget) { b.PollInterval = -1 }, "poll interval"},
		{"negative eta", func(b *Budget) { b.TotalETA = -time.Second }, "eta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := DefaultBudget()
			tt.mutate(&b)
			err := b.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestBudgetReduce(t *testing.T) {
	full := DefaultBudget()
	reduced, ok := full.Reduce()
	if !ok {
		t.Fatal("full tier did not reduce")
	}
	if reduced.Tier != TierReduced || reduced.MSBLimit != 8 || reduced.Rounds() != 32 {
		t.Fatalf("reduced = %+v", reduced)
	}
	if reduced.TotalETA != 2*full.TotalETA || reduced.RoundETA != full.RoundETA {
		t.Fatalf("reduced ETAs = %v/%v", reduced.RoundETA, reduced.TotalETA)
	}
	if reduced.Footprint() >= full.Footprint() {
		t.Fatalf("reduced footprint %d not below full %d", reduced.Footprint(), full.Footprint())
	}
	if _, ok := reduced.Reduce(); ok {
		t.Fatal("reduced tier reduced again")
	}
}

func TestBudgetEstimate(t *testing.T) {
	b := DefaultBudget()
	round, total := b.estimate(Mfkey32)
	if round != 44*time.Second || total != 705*time.Second {
		t.Fatalf("mfkey32 estimate = %v/%v", round, total)
	}
	round, total = b.estimate(StaticEncrypted)
	if round != 16*44*time.Second || total != 16*705*time.Second {
		t.Fatalf("static encrypted estimate = %v/%v", round, total)
	}

	reduced, _ := b.Reduce()
	round, total = reduced.estimate(StaticEncrypted)
	if round != 4*44*time.Second || total != 4*2*705*time.Second {
		t.Fatalf("reduced static encrypted estimate = %v/%v", round, total)
	}
}

func TestFixedMemory(t *testing.T) {
	b := DefaultBudget()
	if _, err := newWorkspace(b, FixedMemory(b.Footprint())); err != nil {
		t.Fatalf("exact footprint rejected: %v", err)
	}
	if _, err := newWorkspace(b, FixedMemory(b.Footprint()-1)); !IsInsufficientMemory(err) {
		t.Fatalf("err = %v, want insufficient memory", err)
	}
}
