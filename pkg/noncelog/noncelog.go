// Package noncelog parses the authentication captures a Flipper writes to
// .mfkey32.log (reader side) and .nested.log (tag side).
//
// Every record is one line of keyword/value pairs starting with "Sec":
//
//	Sec 2 key A cuid 2a234f80 nt0 55721809 nr0 ce9985f6 ar0 772f55be nt1 a27173f2 nr1 e9f8d7ea ar1 b3b5e0cd
//	Sec 0 key B cuid 9c599b32 nt0 5f2c8d11 ks0 8c04e1b7 par0 1011 nt1 e04ac7b3 ks1 15b35230 par1 0010
//
// Values are hex except the sector (decimal), the key letter and the
// parity strings, which hold one binary digit per nonce byte in
// transmission order. Unknown keywords are skipped.
package noncelog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/barnettlynn/mfkeytools/pkg/mfkey"
)

// LineError reports a line that looked like a record but could not be
// used.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Log is the content of one log file.
type Log struct {
	Nonces []mfkey.Nonce
	// Errors lists skipped lines; a torn last line is common on devices.
	Errors []*LineError
}

// LoadFile parses the log at path.
func LoadFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open nonce log: %w", err)
	}
	defer f.Close()
	l, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read nonce log %s: %w", path, err)
	}
	return l, nil
}

// Parse reads every record from r. Lines not starting with "Sec" are
// ignored; malformed records are collected in Log.Errors.
func Parse(r io.Reader) (*Log, error) {
	l := &Log{}
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(text, "Sec") {
			continue
		}
		n, err := ParseLine(text)
		if err != nil {
			l.Errors = append(l.Errors, &LineError{Line: line, Err: err})
			continue
		}
		l.Nonces = append(l.Nonces, n)
	}
	if err := sc.Err(); err != nil {
		return l, err
	}
	return l, nil
}

var errNotRecord = errors.New("not a nonce record")

// ParseLine decodes one record.
func ParseLine(line string) (mfkey.Nonce, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "Sec" {
		return mfkey.Nonce{}, errNotRecord
	}
	if len(fields)%2 != 0 {
		return mfkey.Nonce{}, fmt.Errorf("keyword %q has no value", fields[len(fields)-1])
	}
	kv := make(map[string]string, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		k := strings.ToLower(fields[i])
		if _, dup := kv[k]; dup {
			return mfkey.Nonce{}, fmt.Errorf("keyword %q repeated", fields[i])
		}
		kv[k] = fields[i+1]
	}

	p := parser{kv: kv}
	var n mfkey.Nonce
	switch {
	case p.has("nr0"):
		n = mfkey.NewMfkey32Nonce(p.hex("cuid"), p.hex("nt0"), p.hex("nr0"), p.hex("ar0"),
			p.hex("nt1"), p.hex("nr1"), p.hex("ar1"))
	case p.has("ks0") && p.has("nt1"):
		n = mfkey.NewStaticNestedNonce(p.hex("cuid"), p.hex("nt0"), p.hex("ks0"), p.parity("par0"),
			p.hex("nt1"), p.hex("ks1"), p.parity("par1"))
	case p.has("ks0"):
		n = mfkey.NewStaticEncryptedNonce(p.hex("cuid"), p.hex("nt0"), p.hex("ks0"), p.parity("par0"))
	default:
		return mfkey.Nonce{}, errors.New("record has neither nr0 nor ks0")
	}
	n.Sector = p.sector()
	n.KeyType = p.keyType()
	if p.err != nil {
		return mfkey.Nonce{}, p.err
	}
	return n, nil
}

// parser keeps the first error so a record can be decoded in one
// expression.
type parser struct {
	kv  map[string]string
	err error
}

func (p *parser) has(k string) bool {
	_, ok := p.kv[k]
	return ok
}

func (p *parser) value(k string) (string, bool) {
	v, ok := p.kv[k]
	if !ok && p.err == nil {
		p.err = fmt.Errorf("missing %s", k)
	}
	return v, ok
}

func (p *parser) hex(k string) uint32 {
	v, ok := p.value(k)
	if !ok {
		return 0
	}
	x, err := strconv.ParseUint(v, 16, 32)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: invalid hex %q", k, v)
	}
	return uint32(x)
}

func (p *parser) parity(k string) uint32 {
	v, ok := p.value(k)
	if !ok {
		return 0
	}
	if len(v) != 4 {
		if p.err == nil {
			p.err = fmt.Errorf("%s: want 4 parity bits, got %q", k, v)
		}
		return 0
	}
	var par uint32
	for _, c := range v {
		switch c {
		case '0', '1':
			par = par<<1 | uint32(c-'0')
		default:
			if p.err == nil {
				p.err = fmt.Errorf("%s: invalid parity %q", k, v)
			}
			return 0
		}
	}
	return par
}

func (p *parser) sector() int {
	v, ok := p.value("sec")
	if !ok {
		return 0
	}
	s, err := strconv.Atoi(v)
	if (err != nil || s < 0) && p.err == nil {
		p.err = fmt.Errorf("sec: invalid sector %q", v)
	}
	return s
}

func (p *parser) keyType() byte {
	v, ok := p.kv["key"]
	if !ok {
		return 0
	}
	switch strings.ToUpper(v) {
	case "A":
		return 'A'
	case "B":
		return 'B'
	}
	if p.err == nil {
		p.err = fmt.Errorf("key: want A or B, got %q", v)
	}
	return 0
}

// FormatMfkey32 renders n the way the device logs reader captures.
func FormatMfkey32(n *mfkey.Nonce) string {
	return fmt.Sprintf("Sec %d key %s cuid %08x nt0 %08x nr0 %08x ar0 %08x nt1 %08x nr1 %08x ar1 %08x",
		n.Sector, keyLetter(n.KeyType), n.UID, n.NT0, n.NR0Enc, n.AR0Enc, n.NT1, n.NR1Enc, n.AR1Enc)
}

// FormatNested renders a StaticNested or StaticEncrypted record.
func FormatNested(n *mfkey.Nonce) string {
	s := fmt.Sprintf("Sec %d key %s cuid %08x nt0 %08x ks0 %08x par0 %04b",
		n.Sector, keyLetter(n.KeyType), n.UID, n.NT0, n.KS11Enc, n.Par1)
	if n.Attack == mfkey.StaticNested {
		s += fmt.Sprintf(" nt1 %08x ks1 %08x par1 %04b", n.NT1, n.KS12Enc, n.Par2)
	}
	return s
}

func keyLetter(k byte) string {
	if k == 0 {
		return "A"
	}
	return string(k)
}
