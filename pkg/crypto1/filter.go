package crypto1

import "math/bits"

// Feedback polynomials of the two register halves.
const (
	LFPolyOdd  uint32 = 0x29CE5C
	LFPolyEven uint32 = 0x870804
)

const regMask uint32 = 0xFFFFFF

// filterLUT1 covers the first two 4-bit sub-functions (register bits 0-7),
// filterLUT2 the next two (bits 8-15). The fifth sub-function is a single
// bit lookup on bits 16-19.
var filterLUT1, filterLUT2 [256]uint8

func init() {
	for i := 0; i < 256; i++ {
		lo, hi := uint32(i&0xf), uint32(i>>4)
		filterLUT1[i] = uint8(uint32(0xf22c0)>>lo&16 | uint32(0x6c9c0)>>hi&8)
		filterLUT2[i] = uint8(uint32(0x3c8b0)>>lo&4 | uint32(0x1e458)>>hi&2)
	}
}

// Filter is the nonlinear output function over the low 20 bits of x.
func Filter(x uint32) uint32 {
	f := uint32(filterLUT1[x&0xff]) | uint32(filterLUT2[x>>8&0xff])
	f |= uint32(0x0d938) >> (x >> 16 & 0xf) & 1
	return uint32(0xEC57E80A) >> f & 1
}

// EvenParity32 returns the XOR of all bits of x.
func EvenParity32(x uint32) uint32 {
	return uint32(bits.OnesCount32(x) & 1)
}

// OddParity8 returns the ISO 14443-A parity bit for b.
func OddParity8(b byte) uint8 {
	return uint8(bits.OnesCount8(b)&1) ^ 1
}

// Bit returns bit n of x.
func Bit(x uint32, n uint) uint32 {
	return x >> n & 1
}

// BEBit returns the n-th transmitted bit of x (see package doc).
func BEBit(x uint32, n uint) uint32 {
	return x >> (n ^ 24) & 1
}
