package mfkey

import (
	"context"
	"log/slog"
	"slices"
	"sort"

	"github.com/barnettlynn/mfkeytools/pkg/crypto1"
)

// Result is the outcome of one search. A search that runs to the end
// without a match is not an error: Found stays false.
type Result struct {
	Key   crypto1.Key
	Found bool
	// Candidates holds every key consistent with a StaticEncrypted record.
	Candidates []crypto1.Key
	// Rounds is the number of MSB chunks searched.
	Rounds int
}

// Searcher runs the meet-in-the-middle search for one nonce at a time.
type Searcher struct {
	Budget Budget
	// Memory is probed before the workspace is allocated. Nil probes the
	// runtime.
	Memory MemoryProbe
	// State, if set, receives round and ETA updates.
	State *ProgramState
}

// RecoverNonce searches for the key of n under b, using n.Target().
func RecoverNonce(ctx context.Context, n *Nonce, b Budget) (*Result, error) {
	ks2, in := n.Target()
	s := Searcher{Budget: b}
	return s.Recover(ctx, n, ks2, in)
}

// Recover inverts the 32 keystream bits ks2, produced while in was clocked
// into the register, and confirms each candidate state against the rest of
// n. On a confirmed match n.Key is set. Cancellation is checked every
// PollInterval semi-states and between buckets; the partial result is
// returned along with ctx.Err().
func (s *Searcher) Recover(ctx context.Context, n *Nonce, ks2, in uint32) (*Result, error) {
	if err := s.Budget.Validate(); err != nil {
		return nil, err
	}
	w, err := newWorkspace(s.Budget, s.Memory)
	if err != nil {
		return nil, err
	}

	oks, eks := splitKeystream(ks2)
	in = (in>>16&0xff | in<<16 | in&0xff00) << 1

	r := &recovery{nonce: n, state: s.State}
	s.State.beginRecovery(n.Attack, s.Budget)

	for round := 0; round < s.Budget.Rounds(); round++ {
		r.rounds = round + 1
		s.State.beginRound(round)
		if err := w.fill(ctx, round, oks, eks, in, s.State.sync); err != nil {
			return r.result(), err
		}

		for i := range w.odd {
			if err := ctx.Err(); err != nil {
				return r.result(), err
			}
			s.State.sync()
			if len(w.odd[i]) == 0 || len(w.even[i]) == 0 {
				continue
			}
			odd := append(w.mergeOdd[:0], w.odd[i]...)
			even := append(w.mergeEven[:0], w.even[i]...)
			stop := r.merge(odd, oks>>expandRounds, even, eks>>expandRounds, 3, in>>16, true)
			w.mergeOdd, w.mergeEven = odd[:0], even[:0]
			if stop {
				slog.Debug("state confirmed", "nonce", n.String(), "round", round, "msb", w.budget.MSBLimit*round+i)
				return r.result(), nil
			}
		}
		slog.Debug("round searched", "nonce", n.String(), "round", round+1, "of", s.Budget.Rounds())
	}
	return r.result(), nil
}

// splitKeystream separates the odd- and even-indexed keystream bits.
func splitKeystream(ks2 uint32) (oks, eks uint32) {
	for i := 31; i >= 0; i -= 2 {
		oks = oks<<1 | crypto1.BEBit(ks2, uint(i))
	}
	for i := 30; i >= 0; i -= 2 {
		eks = eks<<1 | crypto1.BEBit(ks2, uint(i))
	}
	return oks, eks
}

type recovery struct {
	nonce  *Nonce
	state  *ProgramState
	key    crypto1.Key
	found  bool
	seen   map[crypto1.Key]struct{}
	cands  []crypto1.Key
	rounds int
}

func (r *recovery) result() *Result {
	return &Result{Key: r.key, Found: r.found, Candidates: r.cands, Rounds: r.rounds}
}

// merge pairs odd and even candidates whose contribution bytes agree. Each
// level but the first extends both lists by up to rem more keystream bits;
// at rem == -1 every remaining pair is a full register state. Both lists
// are views into buffers whose elements past the end are already consumed
// by the caller, so extension may append in place. It reports true when
// the search should stop.
func (r *recovery) merge(odd []uint32, oks uint32, even []uint32, eks uint32, rem int, in uint32, first bool) bool {
	if rem == -1 {
		for _, e := range even {
			e = e<<1 ^ crypto1.EvenParity32(e&crypto1.LFPolyEven) ^ in>>2&1
			for _, o := range odd {
				t := crypto1.State{
					Odd:  (e ^ crypto1.EvenParity32(o&crypto1.LFPolyOdd)) & stateMask,
					Even: o & stateMask,
				}
				if r.check(t) {
					return true
				}
			}
		}
		return false
	}

	if !first {
		for i := 0; i < 4; i++ {
			prev := rem
			rem--
			if prev == 0 {
				break
			}
			oks >>= 1
			eks >>= 1
			in >>= 2
			odd = candidates(odd).extend(oks&1, oddM1, oddM2, 0, true)
			if len(odd) == 0 {
				return false
			}
			even = candidates(even).extend(eks&1, evenM1, evenM2, in&3, true)
			if len(even) == 0 {
				return false
			}
		}
	}

	slices.Sort(odd)
	slices.Sort(even)
	ot, et := len(odd)-1, len(even)-1
	for ot >= 0 && et >= 0 {
		ov, ev := odd[ot], even[et]
		switch {
		case (ov^ev)>>24 == 0:
			os, es := runStart(odd[:ot+1]), runStart(even[:et+1])
			if r.merge(odd[os:ot+1], oks, even[es:et+1], eks, rem, in, false) {
				return true
			}
			ot, et = os-1, es-1
		case ov > ev:
			ot = runStart(odd[:ot+1]) - 1
		default:
			et = runStart(even[:et+1]) - 1
		}
	}
	return false
}

// runStart returns the index of the first element of the sorted list s that
// shares the top byte of its last element.
func runStart(s []uint32) int {
	top := s[len(s)-1] >> 24
	return sort.Search(len(s), func(i int) bool { return s[i]>>24 >= top })
}

// check confirms a candidate state, which sits just after the keystream
// the search inverted, against the independently observed half of the
// exchange.
func (r *recovery) check(t crypto1.State) bool {
	if t.IsZero() {
		return false
	}
	n := r.nonce
	switch n.Attack {
	case Mfkey32:
		if t.RollbackWord(0, false)^n.P64 != n.AR0Enc {
			return false
		}
		t.RollbackWord(n.NR0Enc, true)
		t.RollbackWord(n.UIDXorNT0, false)
		key := t
		t.Word(n.UIDXorNT1, false)
		t.Word(n.NR1Enc, true)
		if t.Word(0, false)^n.P64b == n.AR1Enc {
			r.accept(key.Key())
			return true
		}
	case StaticNested:
		t.RollbackWord(n.UIDXorNT1, false)
		key := t
		if t.Word(n.UIDXorNT0, false) == n.KS11Enc {
			r.accept(key.Key())
			return true
		}
	case StaticEncrypted:
		if t.RollbackWord(n.UIDXorNT0, false) != n.KS11Enc {
			return false
		}
		probe := t
		ks, par := probe.WordParity(n.UIDXorNT0, false, n.NT0)
		if ks == n.KS11Enc && par == n.Par1 {
			r.candidate(t.Key())
		}
	}
	return false
}

func (r *recovery) accept(k crypto1.Key) {
	r.key = k
	r.found = true
	r.nonce.Key = k
}

func (r *recovery) candidate(k crypto1.Key) {
	if r.seen == nil {
		r.seen = make(map[crypto1.Key]struct{})
	}
	if _, ok := r.seen[k]; ok {
		return
	}
	r.seen[k] = struct{}{}
	r.cands = append(r.cands, k)
	r.state.addCandidates(1)
}
