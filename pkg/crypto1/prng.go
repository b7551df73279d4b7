package crypto1

import "math/bits"

// Successor advances the tag PRNG value x by n clocks.
func Successor(x, n uint32) uint32 {
	x = bits.ReverseBytes32(x)
	for ; n > 0; n-- {
		x = x>>1 | (x>>16^x>>18^x>>19^x>>21)<<31
	}
	return bits.ReverseBytes32(x)
}
