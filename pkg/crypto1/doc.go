/*
Package crypto1 implements the Crypto1 stream cipher used by MIFARE Classic
cards, at the granularity needed for key recovery: single clock steps forward
and backward, 32-bit word helpers, and conversion between the cipher state
and the 6-byte sector key.

# Register Layout

The 48-bit LFSR is held as two interleaved 24-bit halves:

	Odd:  LFSR bits 1, 3, 5, ... 47
	Even: LFSR bits 0, 2, 4, ... 46

Each clock the halves swap roles, so the filter function always reads the
Odd half. Only the low 24 bits of each half are meaningful; any bit above
that is an invariant violation and the word helpers panic on it.

# Bit Order

ISO 14443-A transmits the bytes of a 32-bit value most significant byte
first and each byte least significant bit first. The word helpers follow that
order: bit i of the stream is bit (i XOR 24) of the value.

# Key Encoding

Key bit 2i+1 is Odd bit (i XOR 3) and key bit 2i is Even bit (i XOR 3), with
the key read as a big-endian 48-bit integer. FromKey and State.Key are exact
inverses.

# Tag PRNG

Tags generate nonces with a 16-bit LFSR clocked through a 32-bit window.
Successor advances such a nonce by n clocks, which is how the expected reader
and tag answers (suc64, suc96) are predicted.
*/
package crypto1
