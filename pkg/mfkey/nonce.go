package mfkey

import (
	"fmt"

	"github.com/barnettlynn/mfkeytools/pkg/crypto1"
)

// AttackKind selects which part of an authentication was captured and so
// which relation confirms a candidate state.
type AttackKind int

const (
	// Mfkey32 uses two reader authentications against the same key, as
	// sniffed or emulated by the device acting as a tag.
	Mfkey32 AttackKind = iota
	// StaticNested uses two nested authentications from a tag with a
	// static nonce, where the plain nonces are known.
	StaticNested
	// StaticEncrypted uses a single nested authentication. It cannot
	// single out one key and yields a candidate set.
	StaticEncrypted
)

func (k AttackKind) String() string {
	switch k {
	case Mfkey32:
		return "mfkey32"
	case StaticNested:
		return "static_nested"
	case StaticEncrypted:
		return "static_encrypted"
	default:
		return fmt.Sprintf("AttackKind(%d)", int(k))
	}
}

// Nonce is one captured authentication record. The derived fields
// (UIDXorNT0, UIDXorNT1, P64, P64b) are filled by the constructors and never
// recomputed.
type Nonce struct {
	Attack AttackKind

	UID       uint32
	NT0       uint32
	NT1       uint32
	UIDXorNT0 uint32
	UIDXorNT1 uint32

	// Mfkey32
	P64    uint32 // suc64(NT0), the plain reader answer of the first session
	P64b   uint32 // suc64(NT1)
	NR0Enc uint32
	AR0Enc uint32
	NR1Enc uint32
	AR1Enc uint32

	// Static nested / encrypted
	KS11Enc uint32 // keystream over the first tag nonce
	KS12Enc uint32 // keystream over the second tag nonce
	Par1    uint8  // encrypted parity bits of the first nonce, 4 bits
	Par2    uint8

	// Where the record came from; informational.
	Sector  int
	KeyType byte // 'A' or 'B', 0 if unknown

	// Key is set once the record is solved.
	Key crypto1.Key
}

// NewMfkey32Nonce builds a record from two reader authentications.
func NewMfkey32Nonce(uid, nt0, nr0Enc, ar0Enc, nt1, nr1Enc, ar1Enc uint32) Nonce {
	return Nonce{
		Attack:    Mfkey32,
		UID:       uid,
		NT0:       nt0,
		NT1:       nt1,
		UIDXorNT0: uid ^ nt0,
		UIDXorNT1: uid ^ nt1,
		P64:       crypto1.Successor(nt0, 64),
		P64b:      crypto1.Successor(nt1, 64),
		NR0Enc:    nr0Enc,
		AR0Enc:    ar0Enc,
		NR1Enc:    nr1Enc,
		AR1Enc:    ar1Enc,
	}
}

// NewStaticNestedNonce builds a record from two nested authentications.
func NewStaticNestedNonce(uid, nt0, ks1, par1, nt1, ks2, par2 uint32) Nonce {
	return Nonce{
		Attack:    StaticNested,
		UID:       uid,
		NT0:       nt0,
		NT1:       nt1,
		UIDXorNT0: uid ^ nt0,
		UIDXorNT1: uid ^ nt1,
		KS11Enc:   ks1,
		KS12Enc:   ks2,
		Par1:      uint8(par1 & 0xF),
		Par2:      uint8(par2 & 0xF),
	}
}

// NewStaticEncryptedNonce builds a record from a single nested
// authentication.
func NewStaticEncryptedNonce(uid, nt0, ks1, par1 uint32) Nonce {
	return Nonce{
		Attack:    StaticEncrypted,
		UID:       uid,
		NT0:       nt0,
		UIDXorNT0: uid ^ nt0,
		KS11Enc:   ks1,
		Par1:      uint8(par1 & 0xF),
	}
}

// Target returns the 32 keystream bits the search inverts and the value
// that was clocked into the register while they were produced.
func (n *Nonce) Target() (ks2, in uint32) {
	switch n.Attack {
	case Mfkey32:
		return n.AR0Enc ^ n.P64, 0
	case StaticNested:
		return n.KS12Enc, n.UIDXorNT1
	case StaticEncrypted:
		return n.KS11Enc, n.UIDXorNT0
	default:
		panic(fmt.Sprintf("mfkey: unknown attack kind %d", int(n.Attack)))
	}
}

func (n *Nonce) String() string {
	kt := "?"
	if n.KeyType != 0 {
		kt = string(n.KeyType)
	}
	return fmt.Sprintf("%s uid=%08x sec=%d key=%s nt0=%08x", n.Attack, n.UID, n.Sector, kt, n.NT0)
}
