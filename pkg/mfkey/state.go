package mfkey

import (
	"fmt"
	"sync"
	"time"
)

// Phase is where an Attack run currently is.
type Phase int

const (
	PhaseReady Phase = iota
	PhaseInitializing
	PhaseDictionaryAttack
	PhaseAttacking
	PhaseComplete
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseInitializing:
		return "initializing"
	case PhaseDictionaryAttack:
		return "dictionary attack"
	case PhaseAttacking:
		return "attacking"
	case PhaseComplete:
		return "complete"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ProgramState is shared between the search worker and whoever reports
// progress. Every access takes the mutex for the length of one read or
// write only; the search never holds it across a chunk. All methods are
// safe on a nil receiver, which discards updates.
type ProgramState struct {
	mu  sync.Mutex
	now func() time.Time

	phase Phase
	err   error

	total         int
	cracked       int
	uniqueCracked int
	completed     int
	candidates    int
	dictCount     int

	attack AttackKind
	tier   Tier
	round  int
	rounds int

	seedRound time.Duration
	seedTotal time.Duration
	etaRound  time.Duration
	etaTotal  time.Duration
	etaStamp  time.Time
}

func NewProgramState() *ProgramState {
	return &ProgramState{now: time.Now}
}

// Progress is a consistent copy of ProgramState.
type Progress struct {
	Phase Phase
	Err   error

	// Total is the number of records left for the search after the
	// dictionary pass.
	Total         int
	Cracked       int
	UniqueCracked int
	Completed     int
	Candidates    int
	DictCount     int

	Attack AttackKind
	Tier   Tier
	Round  int // zero based
	Rounds int

	RoundETA time.Duration
	TotalETA time.Duration
	// Seeds the ETAs started from in the current recovery.
	RoundETASeed time.Duration
	TotalETASeed time.Duration
}

// Snapshot copies the current counters.
func (p *ProgramState) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return Progress{
		Phase:         p.phase,
		Err:           p.err,
		Total:         p.total,
		Cracked:       p.cracked,
		UniqueCracked: p.uniqueCracked,
		Completed:     p.completed,
		Candidates:    p.candidates,
		DictCount:     p.dictCount,
		Attack:        p.attack,
		Tier:          p.tier,
		Round:         p.round,
		Rounds:        p.rounds,
		RoundETA:      p.etaRound,
		TotalETA:      p.etaTotal,
		RoundETASeed:  p.seedRound,
		TotalETASeed:  p.seedTotal,
	}
}

// Done is the fraction of records searched, in [0, 1].
func (pr Progress) Done() float64 {
	if pr.Total <= 0 {
		return 0
	}
	return clamp(float64(pr.Completed) / float64(pr.Total))
}

// RoundDone is the elapsed fraction of the current round estimate.
func (pr Progress) RoundDone() float64 {
	return elapsedFraction(pr.RoundETA, pr.RoundETASeed)
}

// TotalDone is the elapsed fraction of the current record's estimate.
func (pr Progress) TotalDone() float64 {
	return elapsedFraction(pr.TotalETA, pr.TotalETASeed)
}

func elapsedFraction(left, seed time.Duration) float64 {
	if seed <= 0 {
		return 1
	}
	return clamp(1 - float64(left)/float64(seed))
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func (p *ProgramState) setPhase(ph Phase) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.phase = ph
	p.mu.Unlock()
}

func (p *ProgramState) fail(err error) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.phase = PhaseError
	p.err = err
	p.mu.Unlock()
}

func (p *ProgramState) setDictCount(n int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.dictCount = n
	p.mu.Unlock()
}

func (p *ProgramState) setTotal(n int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.total = n
	p.mu.Unlock()
}

// addCracked counts a solved record. unique marks a key not seen before in
// this run.
func (p *ProgramState) addCracked(unique bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.cracked++
	if unique {
		p.uniqueCracked++
	}
	p.mu.Unlock()
}

func (p *ProgramState) addCompleted() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.completed++
	p.mu.Unlock()
}

func (p *ProgramState) addCandidates(n int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.candidates += n
	p.mu.Unlock()
}

func (p *ProgramState) beginRecovery(kind AttackKind, b Budget) {
	if p == nil {
		return
	}
	round, total := b.estimate(kind)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attack = kind
	p.tier = b.Tier
	p.round = 0
	p.rounds = b.Rounds()
	p.seedRound = round
	p.seedTotal = total
	p.etaRound = round
	p.etaTotal = total
	p.etaStamp = p.now()
}

// beginRound resets the round estimate and charges every earlier round
// against the total.
func (p *ProgramState) beginRound(round int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.round = round
	p.etaRound = p.seedRound
	p.etaTotal = p.seedTotal - p.seedRound*time.Duration(round)
	if p.etaTotal < 0 {
		p.etaTotal = 0
	}
	p.etaStamp = p.now()
}

// sync decays both estimates by the wall-clock time since the last call.
func (p *ProgramState) sync() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ts := p.now()
	elapsed := ts.Sub(p.etaStamp)
	p.etaStamp = ts
	if elapsed <= 0 {
		return
	}
	p.etaRound = decay(p.etaRound, elapsed)
	p.etaTotal = decay(p.etaTotal, elapsed)
}

func decay(eta, elapsed time.Duration) time.Duration {
	if elapsed < eta {
		return eta - elapsed
	}
	return 0
}
