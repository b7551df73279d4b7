package mfkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/barnettlynn/mfkeytools/pkg/crypto1"
)

// KeyDictionary is the store of keys known before and learned during a run.
type KeyDictionary interface {
	// ContainsKeyFor reports whether some stored key explains n.
	ContainsKeyFor(n *Nonce) bool
	// Add stores a newly recovered key.
	Add(k crypto1.Key) error
}

// Attack runs the search over a batch of records.
type Attack struct {
	Budget Budget
	// Dictionary is optional. Without one there is no dictionary pass and
	// recovered keys are only returned.
	Dictionary KeyDictionary
	Memory     MemoryProbe
	State      *ProgramState

	// OnKey is called for every record the search solves.
	OnKey func(n *Nonce)
	// OnCandidates receives the candidate set of each StaticEncrypted
	// record. An error stops the run.
	OnCandidates func(n *Nonce, keys []crypto1.Key) error
}

// CandidateSet is what a StaticEncrypted search leaves behind.
type CandidateSet struct {
	Nonce Nonce
	Keys  []crypto1.Key
}

// Summary is the outcome of a run. It is returned, partially filled, on
// cancellation too.
type Summary struct {
	// Keys holds the distinct keys recovered, in order of recovery.
	Keys []crypto1.Key
	// Solved holds records with Key set, by search or by a key recovered
	// earlier in the run.
	Solved           []Nonce
	Unsolved         []Nonce
	DictionarySolved []Nonce
	Candidates       []CandidateSet
	// Tier is the tier the run finished on.
	Tier Tier
}

// Run checks every record against the dictionary, then searches the rest
// one at a time. nonces is not modified.
func (a *Attack) Run(ctx context.Context, nonces []Nonce) (*Summary, error) {
	st := a.State
	st.setPhase(PhaseInitializing)
	if len(nonces) == 0 {
		st.fail(ErrMissingInput)
		return nil, ErrMissingInput
	}
	if err := a.Budget.Validate(); err != nil {
		st.fail(err)
		return nil, err
	}

	sum := &Summary{Tier: a.Budget.Tier}
	records := make([]Nonce, len(nonces))
	copy(records, nonces)

	st.setPhase(PhaseDictionaryAttack)
	if c, ok := a.Dictionary.(interface{ Len() int }); ok {
		st.setDictCount(c.Len())
	}
	var work []*Nonce
	for i := range records {
		n := &records[i]
		if a.Dictionary != nil && a.Dictionary.ContainsKeyFor(n) {
			sum.DictionarySolved = append(sum.DictionarySolved, *n)
			st.addCracked(false)
			continue
		}
		work = append(work, n)
	}
	slog.Debug("dictionary pass done", "records", len(records), "solved", len(sum.DictionarySolved))
	if len(work) == 0 {
		st.fail(ErrNoWorkRemaining)
		return sum, ErrNoWorkRemaining
	}

	st.setTotal(len(work))
	st.setPhase(PhaseAttacking)

	b := a.Budget
	for i, n := range work {
		if err := ctx.Err(); err != nil {
			return a.stop(sum, work[i:], err)
		}
		if k, ok := matchKnown(sum.Keys, n); ok {
			n.Key = k
			sum.Solved = append(sum.Solved, *n)
			st.addCracked(false)
			st.addCompleted()
			slog.Debug("record solved by earlier key", "nonce", n.String(), "key", k.String())
			continue
		}

		res, err := a.search(ctx, &b, n)
		sum.Tier = b.Tier
		if res != nil && len(res.Candidates) > 0 {
			if cerr := a.keepCandidates(sum, n, res.Candidates); cerr != nil {
				return a.abort(sum, work[i:], cerr)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return a.stop(sum, work[i:], err)
			}
			return a.abort(sum, work[i:], err)
		}

		st.addCompleted()
		if !res.Found {
			sum.Unsolved = append(sum.Unsolved, *n)
			continue
		}
		unique := !containsKey(sum.Keys, res.Key)
		if unique {
			sum.Keys = append(sum.Keys, res.Key)
		}
		sum.Solved = append(sum.Solved, *n)
		st.addCracked(unique)
		slog.Info("key recovered", "nonce", n.String(), "key", res.Key.String(), "new", unique)
		if a.OnKey != nil {
			a.OnKey(n)
		}
	}

	if err := a.store(sum.Keys); err != nil {
		st.fail(err)
		return sum, err
	}
	st.setPhase(PhaseComplete)
	return sum, nil
}

// search runs one recovery, stepping down a tier if the workspace does not
// fit. A failure on the lowest tier is returned.
func (a *Attack) search(ctx context.Context, b *Budget, n *Nonce) (*Result, error) {
	ks2, in := n.Target()
	for {
		s := Searcher{Budget: *b, Memory: a.Memory, State: a.State}
		res, err := s.Recover(ctx, n, ks2, in)
		var merr *MemoryError
		if !errors.As(err, &merr) {
			return res, err
		}
		reduced, ok := b.Reduce()
		if !ok {
			return nil, err
		}
		slog.Warn("not enough memory for search, falling back to reduced tier",
			"need", merr.Need, "available", merr.Available, "msb_limit", reduced.MSBLimit)
		*b = reduced
	}
}

func (a *Attack) keepCandidates(sum *Summary, n *Nonce, keys []crypto1.Key) error {
	sum.Candidates = append(sum.Candidates, CandidateSet{Nonce: *n, Keys: keys})
	slog.Info("key candidates found", "nonce", n.String(), "count", len(keys))
	if a.OnCandidates == nil {
		return nil
	}
	if err := a.OnCandidates(n, keys); err != nil {
		return fmt.Errorf("store candidates for %08x: %w", n.UID, err)
	}
	return nil
}

// stop ends a cancelled run. Keys already recovered are still stored.
func (a *Attack) stop(sum *Summary, rest []*Nonce, cause error) (*Summary, error) {
	for _, n := range rest {
		sum.Unsolved = append(sum.Unsolved, *n)
	}
	if err := a.store(sum.Keys); err != nil {
		slog.Error("store recovered keys", "err", err)
	}
	a.State.setPhase(PhaseComplete)
	return sum, cause
}

// abort ends a run that failed. Keys already recovered are still stored.
func (a *Attack) abort(sum *Summary, rest []*Nonce, cause error) (*Summary, error) {
	for _, n := range rest {
		sum.Unsolved = append(sum.Unsolved, *n)
	}
	if err := a.store(sum.Keys); err != nil {
		slog.Error("store recovered keys", "err", err)
	}
	a.State.fail(cause)
	return sum, cause
}

func (a *Attack) store(keys []crypto1.Key) error {
	if a.Dictionary == nil {
		return nil
	}
	for _, k := range keys {
		if err := a.Dictionary.Add(k); err != nil {
			return fmt.Errorf("add key %s: %w", k, err)
		}
	}
	return nil
}

func matchKnown(keys []crypto1.Key, n *Nonce) (crypto1.Key, bool) {
	for _, k := range keys {
		if KeyMatches(k, n) {
			return k, true
		}
	}
	return crypto1.Key{}, false
}

func containsKey(keys []crypto1.Key, k crypto1.Key) bool {
	for _, x := range keys {
		if x == k {
			return true
		}
	}
	return false
}
