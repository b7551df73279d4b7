// Package keysdict reads and appends Flipper-format Mifare Classic key
// dictionaries: one 12-hex-digit key per line, '#' starts a comment.
package keysdict

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/barnettlynn/mfkeytools/pkg/crypto1"
	"github.com/barnettlynn/mfkeytools/pkg/mfkey"
)

// ErrReadOnly is returned when adding to a dictionary opened with Open.
var ErrReadOnly = errors.New("dictionary is read-only")

// Dict is one dictionary file held in memory. Keys keep file order;
// duplicates in the file are dropped.
type Dict struct {
	path     string
	writable bool
	keys     []crypto1.Key
	index    map[crypto1.Key]struct{}
	// The file does not end in a newline yet.
	unterminated bool
}

// Open loads an existing dictionary for reading only.
func Open(path string) (*Dict, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()
	return load(path, f, false)
}

// OpenOrCreate loads a dictionary that Add may append to, creating the file
// and its directory when missing.
func OpenOrCreate(path string) (*Dict, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dictionary directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()
	return load(path, f, true)
}

func load(path string, r io.Reader, writable bool) (*Dict, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read dictionary %s: %w", path, err)
	}
	keys, skipped := parse(data)
	if skipped > 0 {
		slog.Warn("skipped malformed dictionary lines", "path", path, "lines", skipped)
	}
	d := &Dict{
		path:         path,
		writable:     writable,
		index:        make(map[crypto1.Key]struct{}, len(keys)),
		unterminated: len(data) > 0 && data[len(data)-1] != '\n',
	}
	for _, k := range keys {
		d.insert(k)
	}
	slog.Debug("dictionary loaded", "path", path, "keys", len(d.keys))
	return d, nil
}

// Parse reads keys from r, skipping comments, blank lines and lines that do
// not hold a key.
func Parse(r io.Reader) ([]crypto1.Key, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	keys, _ := parse(data)
	return keys, nil
}

func parse(data []byte) (keys []crypto1.Key, skipped int) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, err := crypto1.ParseKey(line)
		if err != nil {
			skipped++
			continue
		}
		keys = append(keys, k)
	}
	return keys, skipped
}

func (d *Dict) insert(k crypto1.Key) bool {
	if _, ok := d.index[k]; ok {
		return false
	}
	d.index[k] = struct{}{}
	d.keys = append(d.keys, k)
	return true
}

func (d *Dict) Path() string { return d.path }

func (d *Dict) Len() int { return len(d.keys) }

// Keys returns a copy of the keys in file order.
func (d *Dict) Keys() []crypto1.Key {
	return append([]crypto1.Key(nil), d.keys...)
}

func (d *Dict) Has(k crypto1.Key) bool {
	_, ok := d.index[k]
	return ok
}

// ContainsKeyFor reports whether some key in the dictionary explains n.
func (d *Dict) ContainsKeyFor(n *mfkey.Nonce) bool {
	for _, k := range d.keys {
		if mfkey.KeyMatches(k, n) {
			return true
		}
	}
	return false
}

// Add appends k to the file unless it is already present.
func (d *Dict) Add(k crypto1.Key) error {
	_, err := d.AddAll([]crypto1.Key{k})
	return err
}

// AddAll appends every key not yet present in one write and reports how
// many were new.
func (d *Dict) AddAll(keys []crypto1.Key) (int, error) {
	if !d.writable {
		return 0, ErrReadOnly
	}
	var buf bytes.Buffer
	if d.unterminated {
		buf.WriteByte('\n')
	}
	var fresh []crypto1.Key
	seen := make(map[crypto1.Key]struct{}, len(keys))
	for _, k := range keys {
		if d.Has(k) {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		fresh = append(fresh, k)
		buf.WriteString(k.String())
		buf.WriteByte('\n')
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	f, err := os.OpenFile(d.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open dictionary for append: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return 0, fmt.Errorf("append to %s: %w", d.path, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", d.path, err)
	}

	d.unterminated = false
	for _, k := range fresh {
		d.insert(k)
	}
	return len(fresh), nil
}
