package mfkey

import (
	"context"
	"slices"

	"github.com/barnettlynn/mfkeytools/pkg/crypto1"
)

// Parity masks for the two feedback contributions carried in the top byte
// of a candidate while its half of the register is being rebuilt.
const (
	oddM1  = crypto1.LFPolyEven<<1 | 1
	oddM2  = crypto1.LFPolyOdd << 1
	evenM1 = crypto1.LFPolyOdd
	evenM2 = crypto1.LFPolyEven<<1 | 1
)

const (
	stateMask = 0xFFFFFF
	semiMax   = 1 << 20
	// Keystream bits consumed while a semi-state is expanded.
	expandRounds = 12
	// Of those, the first ones carry no feedback contribution.
	plainRounds = 4
)

func updateContribution(v, m1, m2 uint32) uint32 {
	p := v >> 25
	p = p<<1 | crypto1.EvenParity32(v&m1)
	p = p<<1 | crypto1.EvenParity32(v&m2)
	return p<<24 | v&stateMask
}

// candidates is a working list of partial half-states. Low 24 bits are
// register bits, the top byte holds the feedback contributions.
type candidates []uint32

// extend pushes every candidate one bit further and keeps the completions
// whose filter output equals bit. A candidate whose filter ignores the new
// bit branches in two; one the keystream rules out is swap-removed. With
// contribute set, the contribution byte is updated and the two input bits
// in are folded into it.
func (c candidates) extend(bit, m1, m2, in uint32, contribute bool) candidates {
	in <<= 24
	for i := 0; i < len(c); i++ {
		v := c[i] << 1
		f0, f1 := crypto1.Filter(v), crypto1.Filter(v|1)
		switch {
		case f0 != f1:
			v |= f0 ^ bit
			if contribute {
				v = updateContribution(v, m1, m2) ^ in
			}
			c[i] = v
		case f0 == bit:
			w := v | 1
			if contribute {
				v = updateContribution(v, m1, m2) ^ in
				w = updateContribution(w, m1, m2) ^ in
			}
			c[i] = v
			// The unvisited neighbour moves to the tail so the branch
			// lands next to its sibling and is not visited again.
			if i+1 < len(c) {
				c = append(c, c[i+1])
				c[i+1] = w
			} else {
				c = append(c, w)
			}
			i++
		default:
			last := len(c) - 1
			c[i] = c[last]
			c = c[:last]
			i--
		}
	}
	return c
}

// expand grows one semi-state through keystream bits 1..12 of ks. Bits
// after the plain rounds also fold in two bits of in each, masked by inMask.
func (c candidates) expand(seed, ks, m1, m2, in, inMask uint32) candidates {
	c = append(c[:0], seed)
	for round := uint32(1); round <= expandRounds; round++ {
		bit := ks >> round & 1
		if round <= plainRounds {
			c = c.extend(bit, 0, 0, 0, false)
		} else {
			c = c.extend(bit, m1, m2, in>>(2*(round-plainRounds))&inMask, true)
		}
		if len(c) == 0 {
			break
		}
	}
	return c
}

// bucket collects the distinct candidates sharing one MSB value.
type bucket []uint32

func (b *bucket) add(v uint32) {
	if slices.Contains(*b, v) {
		return
	}
	*b = append(*b, v)
}

// fill enumerates every semi-state and keeps the expanded candidates whose
// MSB falls in this round's chunk. poll runs every PollInterval semi-states.
func (w *workspace) fill(ctx context.Context, round int, oks, eks, in uint32, poll func()) error {
	lo := uint32(w.budget.MSBLimit * round)
	hi := lo + uint32(w.budget.MSBLimit)
	every := w.budget.PollInterval
	w.reset()

	for semi := semiMax; semi >= 0; semi-- {
		if semi%every == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			poll()
		}
		s := uint32(semi)
		f := crypto1.Filter(s)
		if f == oks&1 {
			w.scratch = w.scratch.expand(s, oks, oddM1, oddM2, 0, 0)
			for _, v := range w.scratch {
				if msb := v >> 24; msb >= lo && msb < hi {
					w.odd[msb-lo].add(v)
				}
			}
		}
		if f == eks&1 {
			w.scratch = w.scratch.expand(s, eks, evenM1, evenM2, in, 3)
			for _, v := range w.scratch {
				if msb := v >> 24; msb >= lo && msb < hi {
					w.even[msb-lo].add(v)
				}
			}
		}
	}
	return nil
}
