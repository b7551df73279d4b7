package keysdict

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/barnettlynn/mfkeytools/pkg/crypto1"
	"github.com/barnettlynn/mfkeytools/pkg/mfkey"
)

// Set is the system dictionary shipped with the device plus the user
// dictionary recovered keys are appended to. System may be nil.
type Set struct {
	System *Dict
	User   *Dict

	added int
}

// OpenSet loads both dictionaries. An empty systemPath or a missing system
// file means no system dictionary; the user dictionary is created if
// needed.
func OpenSet(systemPath, userPath string) (*Set, error) {
	s := &Set{}
	if systemPath != "" {
		d, err := Open(systemPath)
		switch {
		case err == nil:
			s.System = d
		case isNotExist(err):
		default:
			return nil, err
		}
	}
	u, err := OpenOrCreate(userPath)
	if err != nil {
		return nil, err
	}
	s.User = u
	return s, nil
}

// Len is the number of keys across both dictionaries.
func (s *Set) Len() int {
	n := s.User.Len()
	if s.System != nil {
		n += s.System.Len()
	}
	return n
}

func (s *Set) Has(k crypto1.Key) bool {
	return s.User.Has(k) || (s.System != nil && s.System.Has(k))
}

func (s *Set) ContainsKeyFor(n *mfkey.Nonce) bool {
	if s.System != nil && s.System.ContainsKeyFor(n) {
		return true
	}
	return s.User.ContainsKeyFor(n)
}

// Add stores k in the user dictionary unless either dictionary has it.
func (s *Set) Add(k crypto1.Key) error {
	if s.Has(k) {
		return nil
	}
	n, err := s.User.AddAll([]crypto1.Key{k})
	s.added += n
	return err
}

// Added is the number of keys Add appended to the user dictionary.
func (s *Set) Added() int { return s.added }

// CandidatePath is the per-card dictionary a static encrypted search
// writes its candidates to.
func CandidatePath(dir string, uid uint32) string {
	return filepath.Join(dir, fmt.Sprintf("mf_classic_dict_%08x.nfc", uid))
}

// WriteCandidates appends keys to the candidate dictionary of uid under dir
// and returns its path.
func WriteCandidates(dir string, uid uint32, keys []crypto1.Key) (string, error) {
	path := CandidatePath(dir, uid)
	d, err := OpenOrCreate(path)
	if err != nil {
		return "", err
	}
	if _, err := d.AddAll(keys); err != nil {
		return "", err
	}
	return path, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
