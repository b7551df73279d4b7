package crypto1

import "fmt"

// State is the cipher LFSR split into its odd and even halves.
type State struct {
	Odd  uint32
	Even uint32
}

// NewState builds a State and panics if either half has bits above the
// 24-bit register field.
func NewState(odd, even uint32) State {
	s := State{Odd: odd, Even: even}
	s.mustBeValid()
	return s
}

// IsZero reports whether both halves are zero. The all-zero state never
// occurs in a real session.
func (s State) IsZero() bool {
	return s.Odd|s.Even == 0
}

func (s *State) mustBeValid() {
	if (s.Odd|s.Even)&^regMask != 0 {
		panic(fmt.Sprintf("crypto1: register bits outside 24-bit field (odd=%08X even=%08X)", s.Odd, s.Even))
	}
}

// Step clocks the register once, feeding in the low bit of in. When
// encrypted is set the input is ciphertext and the keystream bit is folded
// back in to recover the plaintext bit. It returns the keystream bit output
// before the shift.
func (s *State) Step(in uint32, encrypted bool) uint32 {
	ks := Filter(s.Odd)
	fb := in & 1
	if encrypted {
		fb ^= ks
	}
	fb ^= EvenParity32(LFPolyOdd&s.Odd ^ LFPolyEven&s.Even)
	s.Odd, s.Even = (s.Even<<1|fb)&regMask, s.Odd
	return ks
}

// Rollback undoes one Step made with the same in and encrypted arguments and
// returns the keystream bit that Step produced.
func (s *State) Rollback(in uint32, encrypted bool) uint32 {
	s.Odd, s.Even = s.Even, s.Odd
	out := s.Even & 1
	s.Even >>= 1
	ks := Filter(s.Odd)
	out ^= in & 1
	if encrypted {
		out ^= ks
	}
	out ^= EvenParity32(LFPolyEven&s.Even ^ LFPolyOdd&s.Odd)
	s.Even |= out << 23
	return ks
}

// Word clocks 32 bits of in through the register in transmission order and
// returns the keystream, laid out in the same order as in.
func (s *State) Word(in uint32, encrypted bool) uint32 {
	s.mustBeValid()
	var ks uint32
	for i := uint(0); i < 32; i++ {
		ks |= s.Step(BEBit(in, i), encrypted) << (24 ^ i)
	}
	return ks
}

// RollbackWord undoes Word(in, encrypted) and returns the same keystream.
func (s *State) RollbackWord(in uint32, encrypted bool) uint32 {
	s.mustBeValid()
	var ks uint32
	for i := 31; i >= 0; i-- {
		ks |= s.Rollback(BEBit(in, uint(i)), encrypted) << (24 ^ uint(i))
	}
	return ks
}

// WordParity is Word plus the encrypted parity bits a tag would send when
// transmitting plain under this keystream. Bit 3 of the returned parity is
// the first transmitted byte.
func (s *State) WordParity(in uint32, encrypted bool, plain uint32) (uint32, uint8) {
	s.mustBeValid()
	var ks uint32
	var par uint8
	for i := uint(0); i < 32; i++ {
		ks |= s.Step(BEBit(in, i), encrypted) << (24 ^ i)
		if i%8 == 7 {
			k := i / 8
			b := byte(plain >> (24 - 8*k))
			par |= (OddParity8(b) ^ uint8(Filter(s.Odd))) << (3 - k)
		}
	}
	return ks, par
}
