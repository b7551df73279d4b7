package mfkey

import "github.com/barnettlynn/mfkeytools/pkg/crypto1"

// KeyMatches reports whether k explains the authentication captured in n.
// It is an algebraic check: the key is loaded into the cipher and the
// observed values are recomputed. A StaticEncrypted record can only be
// checked against its single keystream and parity, so several keys may
// match it.
func KeyMatches(k crypto1.Key, n *Nonce) bool {
	switch n.Attack {
	case Mfkey32:
		s := crypto1.FromKey(k)
		s.Word(n.UIDXorNT0, false)
		s.Word(n.NR0Enc, true)
		if s.Word(0, false)^n.P64 != n.AR0Enc {
			return false
		}
		s = crypto1.FromKey(k)
		s.Word(n.UIDXorNT1, false)
		s.Word(n.NR1Enc, true)
		return s.Word(0, false)^n.P64b == n.AR1Enc
	case StaticNested:
		s := crypto1.FromKey(k)
		if s.Word(n.UIDXorNT0, false) != n.KS11Enc {
			return false
		}
		s = crypto1.FromKey(k)
		return s.Word(n.UIDXorNT1, false) == n.KS12Enc
	case StaticEncrypted:
		s := crypto1.FromKey(k)
		ks, par := s.WordParity(n.UIDXorNT0, false, n.NT0)
		return ks == n.KS11Enc && par == n.Par1
	default:
		return false
	}
}
