package crypto1

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// KeySize is the length of a MIFARE Classic sector key.
const KeySize = 6

// Key is a 48-bit sector key, big-endian.
type Key [KeySize]byte

// KeyFromUint64 takes the low 48 bits of v.
func KeyFromUint64(v uint64) Key {
	var k Key
	for i := KeySize - 1; i >= 0; i-- {
		k[i] = byte(v)
		v >>= 8
	}
	return k
}

// ParseKey decodes a 12-character hex key.
func ParseKey(s string) (Key, error) {
	var k Key
	s = strings.TrimSpace(s)
	if len(s) != 2*KeySize {
		return k, fmt.Errorf("key must be %d hex chars, got %d", 2*KeySize, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("invalid hex key: %w", err)
	}
	copy(k[:], b)
	return k, nil
}

// Uint64 returns the key as a 48-bit integer.
func (k Key) Uint64() uint64 {
	var v uint64
	for _, b := range k {
		v = v<<8 | uint64(b)
	}
	return v
}

func (k Key) String() string {
	return strings.ToUpper(hex.EncodeToString(k[:]))
}

// Key de-interleaves the register into the sector key it was loaded from.
func (s State) Key() Key {
	s.mustBeValid()
	var v uint64
	for i := 23; i >= 0; i-- {
		n := uint(i) ^ 3
		v = v<<1 | uint64(s.Odd>>n&1)
		v = v<<1 | uint64(s.Even>>n&1)
	}
	return KeyFromUint64(v)
}

// FromKey loads a sector key into a fresh register.
func FromKey(k Key) State {
	v := k.Uint64()
	var s State
	for i := uint(0); i < 24; i++ {
		s.Odd |= uint32(v>>(2*i+1)&1) << (i ^ 3)
		s.Even |= uint32(v>>(2*i)&1) << (i ^ 3)
	}
	return s
}
