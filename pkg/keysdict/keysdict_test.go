package keysdict

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/barnettlynn/mfkeytools/pkg/crypto1"
	"github.com/barnettlynn/mfkeytools/pkg/mfkey"
)

func writeDict(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write dict: %v", err)
	}
	return path
}

func mustKey(t *testing.T, s string) crypto1.Key {
	t.Helper()
	k, err := crypto1.ParseKey(s)
	if err != nil {
		t.Fatalf("ParseKey(%q): %v", s, err)
	}
	return k
}

// nestedNonce captures two tag nonces sent under key.
func nestedNonce(key crypto1.Key, uid, nt0, nt1 uint32) mfkey.Nonce {
	tag := func(nt uint32) (uint32, uint32) {
		s := crypto1.FromKey(key)
		ks, par := s.WordParity(uid^nt, false, nt)
		return ks, uint32(par)
	}
	ks1, par1 := tag(nt0)
	ks2, par2 := tag(nt1)
	return mfkey.NewStaticNestedNonce(uid, nt0, ks1, par1, nt1, ks2, par2)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := writeDict(t, dir, "system.nfc", strings.Join([]string{
		"# factory keys",
		"FFFFFFFFFFFF",
		"a0a1a2a3a4a5  # MAD",
		"",
		"FFFFFFFFFFFF",
		"not-a-key",
		"D3F7D3F7D3F7",
	}, "\n"))

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}
	want := []string{"FFFFFFFFFFFF", "A0A1A2A3A4A5", "D3F7D3F7D3F7"}
	for i, k := range d.Keys() {
		if k.String() != want[i] {
			t.Errorf("key %d = %s, want %s", i, k, want[i])
		}
	}
	if !d.Has(mustKey(t, "A0A1A2A3A4A5")) {
		t.Error("Has() missed a key")
	}
	if err := d.Add(mustKey(t, "000000000000")); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Add() on read-only dict = %v, want ErrReadOnly", err)
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.nfc"))
	if err == nil || !isNotExist(err) {
		t.Fatalf("Open() error = %v, want not-exist", err)
	}
}

func TestAddAppends(t *testing.T) {
	dir := t.TempDir()
	// No trailing newline.
	path := writeDict(t, dir, "user.nfc", "FFFFFFFFFFFF")

	d, err := OpenOrCreate(path)
	if err != nil {
		t.Fatalf("OpenOrCreate() error: %v", err)
	}
	if err := d.Add(mustKey(t, "A0A1A2A3A4A5")); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := d.Add(mustKey(t, "FFFFFFFFFFFF")); err != nil {
		t.Fatalf("Add() of duplicate error: %v", err)
	}
	n, err := d.AddAll([]crypto1.Key{mustKey(t, "B0B1B2B3B4B5"), mustKey(t, "B0B1B2B3B4B5")})
	if err != nil || n != 1 {
		t.Fatalf("AddAll() = %d, %v, want 1, nil", n, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "FFFFFFFFFFFF\nA0A1A2A3A4A5\nB0B1B2B3B4B5\n"
	if string(data) != want {
		t.Fatalf("file = %q, want %q", data, want)
	}

	again, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Len() != 3 {
		t.Fatalf("reloaded Len() = %d, want 3", again.Len())
	}
}

func TestOpenOrCreateMakesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets", "nested", "user.nfc")
	d, err := OpenOrCreate(path)
	if err != nil {
		t.Fatalf("OpenOrCreate() error: %v", err)
	}
	if d.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", d.Len())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not created: %v", err)
	}
}

func TestSet(t *testing.T) {
	dir := t.TempDir()
	key := mustKey(t, "4A6352684677")
	system := writeDict(t, dir, "system.nfc", "FFFFFFFFFFFF\n")
	user := filepath.Join(dir, "user.nfc")

	s, err := OpenSet(system, user)
	if err != nil {
		t.Fatalf("OpenSet() error: %v", err)
	}
	n := nestedNonce(key, 0x12345678, 0xAABBCCDD, 0x01020304)
	if s.ContainsKeyFor(&n) {
		t.Fatal("ContainsKeyFor() before the key was added")
	}
	if err := s.Add(key); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if !s.ContainsKeyFor(&n) {
		t.Fatal("ContainsKeyFor() after the key was added")
	}
	// Keys the system dictionary already has are not copied.
	if err := s.Add(mustKey(t, "FFFFFFFFFFFF")); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(key); err != nil {
		t.Fatal(err)
	}
	if s.User.Len() != 1 || s.Len() != 2 {
		t.Fatalf("user %d, total %d, want 1 and 2", s.User.Len(), s.Len())
	}
	if s.Added() != 1 {
		t.Fatalf("Added() = %d, want 1", s.Added())
	}

	var _ mfkey.KeyDictionary = s
}

func TestOpenSetWithoutSystem(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSet(filepath.Join(dir, "absent.nfc"), filepath.Join(dir, "user.nfc"))
	if err != nil {
		t.Fatalf("OpenSet() error: %v", err)
	}
	if s.System != nil {
		t.Fatal("missing system dictionary was loaded")
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestWriteCandidates(t *testing.T) {
	dir := t.TempDir()
	keys := []crypto1.Key{mustKey(t, "A0A1A2A3A4A5"), mustKey(t, "B0B1B2B3B4B5")}

	path, err := WriteCandidates(dir, 0x0A0B0C0D, keys)
	if err != nil {
		t.Fatalf("WriteCandidates() error: %v", err)
	}
	if filepath.Base(path) != "mf_classic_dict_0a0b0c0d.nfc" {
		t.Fatalf("path = %s", path)
	}
	if _, err := WriteCandidates(dir, 0x0A0B0C0D, keys); err != nil {
		t.Fatal(err)
	}
	d, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
}

func TestParse(t *testing.T) {
	keys, err := Parse(strings.NewReader("# c\nffffffffffff\r\nzz\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0].String() != "FFFFFFFFFFFF" {
		t.Fatalf("Parse() = %v", keys)
	}
}
