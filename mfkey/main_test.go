package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/barnettlynn/mfkeytools/pkg/crypto1"
	"github.com/barnettlynn/mfkeytools/pkg/mfkey"
)

// card accepts key A of sector s when keys[s] matches the loaded key.
// A failed authentication halts it until Reselect.
type card struct {
	keys   map[byte]crypto1.Key // first block -> key A
	slot   crypto1.Key
	halted bool
}

func (c *card) Reselect() error {
	c.halted = false
	return nil
}

func (c *card) Transmit(apdu []byte) ([]byte, error) {
	switch apdu[1] {
	case 0x82:
		copy(c.slot[:], apdu[5:])
		return []byte{0x90, 0x00}, nil
	case 0x86:
		if k, ok := c.keys[apdu[7]]; ok && !c.halted && apdu[8] == 0x60 && k == c.slot {
			return []byte{0x90, 0x00}, nil
		}
		c.halted = true
		return []byte{0x63, 0x00}, nil
	}
	return []byte{0x6A, 0x81}, nil
}

type addedKeys []crypto1.Key

func (a *addedKeys) Add(k crypto1.Key) error {
	*a = append(*a, k)
	return nil
}

func mustKey(t *testing.T, s string) crypto1.Key {
	t.Helper()
	k, err := crypto1.ParseKey(s)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func testSummary(t *testing.T) *mfkey.Summary {
	solved := mfkey.NewMfkey32Nonce(0x11223344, 1, 2, 3, 4, 5, 6)
	solved.Sector, solved.KeyType, solved.Key = 1, 'A', mustKey(t, "A0A1A2A3A4A5")
	wrong := mfkey.NewMfkey32Nonce(0x11223344, 1, 2, 3, 4, 5, 6)
	wrong.Sector, wrong.KeyType, wrong.Key = 2, 'A', mustKey(t, "FFFFFFFFFFFF")
	other := mfkey.NewMfkey32Nonce(0x55667788, 1, 2, 3, 4, 5, 6)
	other.Sector, other.KeyType, other.Key = 1, 'A', mustKey(t, "000000000000")

	enc := mfkey.NewStaticEncryptedNonce(0x11223344, 7, 8, 9)
	enc.Sector = 3
	return &mfkey.Summary{
		Keys:     []crypto1.Key{solved.Key, wrong.Key, other.Key},
		Solved:   []mfkey.Nonce{solved, wrong, other},
		Unsolved: []mfkey.Nonce{mfkey.NewStaticNestedNonce(0x11223344, 1, 2, 3, 4, 5, 6)},
		Candidates: []mfkey.CandidateSet{{
			Nonce: enc,
			Keys:  []crypto1.Key{mustKey(t, "010203040506"), mustKey(t, "B0B1B2B3B4B5")},
		}},
		Tier: mfkey.TierFull,
	}
}

func TestConfirmOnCard(t *testing.T) {
	sum := testSummary(t)
	c := &card{keys: map[byte]crypto1.Key{
		4:  mustKey(t, "A0A1A2A3A4A5"),
		8:  mustKey(t, "A0A1A2A3A4A5"),
		12: mustKey(t, "B0B1B2B3B4B5"),
	}}
	// A second record of sector 1 reports the key already confirmed.
	again := sum.Solved[0]
	again.NT0 ^= 1
	sum.Solved = append(sum.Solved, again)

	var added addedKeys
	var out bytes.Buffer
	confirmed, err := confirmOnCard(c, 0x11223344, sum, &added, &out)
	if err != nil {
		t.Fatalf("confirmOnCard() error = %v", err)
	}

	if k := confirmed[confirmKey{0x11223344, 1, 'A'}]; k != mustKey(t, "A0A1A2A3A4A5") {
		t.Fatalf("sector 1 = %s", k)
	}
	if _, ok := confirmed[confirmKey{0x11223344, 2, 'A'}]; ok {
		t.Fatal("sector 2 confirmed with the wrong key")
	}
	if _, ok := confirmed[confirmKey{0x55667788, 1, 'A'}]; ok {
		t.Fatal("record of another card confirmed")
	}
	if k := confirmed[confirmKey{0x11223344, 3, 'A'}]; k != mustKey(t, "B0B1B2B3B4B5") {
		t.Fatalf("sector 3 = %s", k)
	}
	if len(added) != 1 || added[0] != mustKey(t, "B0B1B2B3B4B5") {
		t.Fatalf("added = %v", added)
	}
	if got := strings.Count(out.String(), "sector  1 key A: A0A1A2A3A4A5 confirmed"); got != 2 {
		t.Errorf("sector 1 confirmed %d times in output:\n%s", got, out.String())
	}
	if got := strings.Count(out.String(), "rejected"); got != 1 {
		t.Errorf("%d rejections in output, want 1:\n%s", got, out.String())
	}
}

func TestBuildReport(t *testing.T) {
	sum := testSummary(t)
	confirmed := map[confirmKey]crypto1.Key{
		{0x11223344, 1, 'A'}: mustKey(t, "A0A1A2A3A4A5"),
		{0x11223344, 3, 'A'}: mustKey(t, "B0B1B2B3B4B5"),
	}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := buildReport(at, sum, map[uint32]string{0x11223344: "/tmp/mf_classic_dict_11223344.nfc"}, confirmed)

	if r.GeneratedAt != "2024-05-01T12:00:00Z" || r.Tier != "full" {
		t.Fatalf("header = %q %q", r.GeneratedAt, r.Tier)
	}
	if len(r.Keys) != 3 || !r.Keys[0].Confirmed || r.Keys[1].Confirmed || r.Keys[2].Confirmed {
		t.Fatalf("keys = %+v", r.Keys)
	}
	if r.Keys[0].UID != "11223344" || r.Keys[0].Key != "A0A1A2A3A4A5" || r.Keys[0].KeyType != "A" {
		t.Fatalf("keys[0] = %+v", r.Keys[0])
	}
	if len(r.Candidates) != 1 || r.Candidates[0].Count != 2 || r.Candidates[0].Confirmed != "B0B1B2B3B4B5" {
		t.Fatalf("candidates = %+v", r.Candidates)
	}
	if len(r.Unsolved) != 1 {
		t.Fatalf("unsolved = %v", r.Unsolved)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"generated_at:", "key_type: A", "dict: /tmp/mf_classic_dict_11223344.nfc"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("report missing %q:\n%s", want, data)
		}
	}
}

func TestRender(t *testing.T) {
	p := mfkey.Progress{
		Phase:        mfkey.PhaseAttacking,
		Total:        4,
		Completed:    1,
		Round:        2,
		Rounds:       16,
		RoundETA:     22 * time.Second,
		RoundETASeed: 44 * time.Second,
		TotalETA:     600 * time.Second,
		TotalETASeed: 705 * time.Second,
	}
	lines := render(p, 10)
	want := []string{
		"[###.......] Cracking: 1/4 - in prog.",
		"[#####.....] Round: 3/16 - ETA 22 Sec",
		"[#.........] Total ETA 600 Sec",
	}
	if len(lines) != len(want) {
		t.Fatalf("render() = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	p.Tier = mfkey.TierReduced
	if lines := render(p, 10); lines[len(lines)-1] != "Low memory: reduced tier" {
		t.Fatalf("reduced tier line = %q", lines[len(lines)-1])
	}

	done := render(mfkey.Progress{Phase: mfkey.PhaseComplete, UniqueCracked: 2}, 4)
	if done[0] != "[####] Complete" || done[1] != "Keys added to user dict: 2" {
		t.Fatalf("complete = %q", done)
	}
	if got := render(mfkey.Progress{Phase: mfkey.PhaseReady}, 4); got[0] != "Ready" {
		t.Fatalf("ready = %q", got)
	}
}

func TestIsStopKey(t *testing.T) {
	for _, b := range []byte{'q', 'Q', 0x1B, 0x03} {
		if !isStopKey(b) {
			t.Errorf("isStopKey(%#x) = false", b)
		}
	}
	if isStopKey('x') {
		t.Error("isStopKey('x') = true")
	}
}
