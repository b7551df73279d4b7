package mfkey

import (
	"math"
	"math/rand"
	"testing"

	"github.com/barnettlynn/mfkeytools/pkg/crypto1"
)

// quickBudget covers the whole contribution byte in one chunk.
func quickBudget() Budget {
	b := DefaultBudget()
	b.MSBLimit = 256
	return b
}

func quickSearcher() *Searcher {
	return &Searcher{Budget: quickBudget(), Memory: FixedMemory(math.MaxUint64)}
}

// readerAuth runs the reader side of one authentication under key and
// returns the encrypted reader nonce and answer.
func readerAuth(key crypto1.Key, uid, nt, nr uint32) (nrEnc, arEnc uint32) {
	s := crypto1.FromKey(key)
	s.Word(uid^nt, false)
	nrEnc = s.Word(nr, false) ^ nr
	arEnc = s.Word(0, false) ^ crypto1.Successor(nt, 64)
	return nrEnc, arEnc
}

func mfkey32Record(key crypto1.Key, uid, nt0, nr0, nt1, nr1 uint32) Nonce {
	nr0Enc, ar0Enc := readerAuth(key, uid, nt0, nr0)
	nr1Enc, ar1Enc := readerAuth(key, uid, nt1, nr1)
	return NewMfkey32Nonce(uid, nt0, nr0Enc, ar0Enc, nt1, nr1Enc, ar1Enc)
}

// tagNonce returns the keystream over uid^nt and the parity bits a tag
// sends with nt under key.
func tagNonce(key crypto1.Key, uid, nt uint32) (ks, par uint32) {
	s := crypto1.FromKey(key)
	k, p := s.WordParity(uid^nt, false, nt)
	return k, uint32(p)
}

func nestedRecord(key crypto1.Key, uid, nt0, nt1 uint32) Nonce {
	ks1, par1 := tagNonce(key, uid, nt0)
	ks2, par2 := tagNonce(key, uid, nt1)
	return NewStaticNestedNonce(uid, nt0, ks1, par1, nt1, ks2, par2)
}

func encryptedRecord(key crypto1.Key, uid, nt uint32) Nonce {
	ks, par := tagNonce(key, uid, nt)
	return NewStaticEncryptedNonce(uid, nt, ks, par)
}

func randomKey(rng *rand.Rand) crypto1.Key {
	return crypto1.KeyFromUint64(rng.Uint64() & (1<<48 - 1))
}

func mustParseKey(t *testing.T, s string) crypto1.Key {
	t.Helper()
	k, err := crypto1.ParseKey(s)
	if err != nil {
		t.Fatalf("ParseKey(%q): %v", s, err)
	}
	return k
}
