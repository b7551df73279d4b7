package classic

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/barnettlynn/mfkeytools/pkg/crypto1"
)

// KeyType selects key A or key B of a sector.
type KeyType byte

const (
	KeyA KeyType = 0x60
	KeyB KeyType = 0x61
)

func (k KeyType) String() string {
	switch k {
	case KeyA:
		return "A"
	case KeyB:
		return "B"
	default:
		return fmt.Sprintf("KeyType(0x%02X)", byte(k))
	}
}

// KeyTypeFromLetter maps the 'A'/'B' letters used in nonce logs.
func KeyTypeFromLetter(c byte) (KeyType, error) {
	switch c {
	case 'A', 'a':
		return KeyA, nil
	case 'B', 'b':
		return KeyB, nil
	default:
		return 0, fmt.Errorf("unknown key type %q", c)
	}
}

const (
	insLoadKey      = 0x82
	insAuthenticate = 0x86
)

// MaxSector is the last sector of a 4K card.
const MaxSector = 39

// FirstBlock returns the first block of a sector. Sectors 0-31 have four
// blocks, sectors 32-39 of a 4K card sixteen.
func FirstBlock(sector int) (byte, error) {
	switch {
	case sector < 0 || sector > MaxSector:
		return 0, fmt.Errorf("sector %d out of range (0..%d)", sector, MaxSector)
	case sector < 32:
		return byte(sector * 4), nil
	default:
		return byte(128 + (sector-32)*16), nil
	}
}

// LoadKey stores key in the reader's volatile key slot.
// APDU: FF 82 00 <slot> 06 <key>.
func LoadKey(card Card, slot byte, key crypto1.Key) error {
	apdu := append([]byte{0xFF, insLoadKey, 0x00, slot, crypto1.KeySize}, key[:]...)
	_, sw, err := Transmit(card, apdu)
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}
	if !SwOK(sw) {
		return &SWError{Cmd: insLoadKey, SW: sw}
	}
	return nil
}

// Authenticate runs a Crypto1 authentication for block with the key in
// slot. APDU: FF 86 00 00 05 01 00 <block> <type> <slot>.
func Authenticate(card Card, block byte, kt KeyType, slot byte) error {
	apdu := []byte{0xFF, insAuthenticate, 0x00, 0x00, 0x05, 0x01, 0x00, block, byte(kt), slot}
	_, sw, err := Transmit(card, apdu)
	if err != nil {
		return fmt.Errorf("authenticate block %d: %w", block, err)
	}
	if !SwOK(sw) {
		return &SWError{Cmd: insAuthenticate, SW: sw}
	}
	return nil
}

// ErrNoKeyConfirmed is returned by Confirm when the card rejects every key.
var ErrNoKeyConfirmed = errors.New("card accepted none of the keys")

// Confirm tries keys in order against the first block of sector and
// returns the one the card accepts. After each rejection the card is
// reselected when it supports that, and the next key is tried; any other
// failure stops.
func Confirm(card Card, sector int, kt KeyType, keys []crypto1.Key) (crypto1.Key, error) {
	block, err := FirstBlock(sector)
	if err != nil {
		return crypto1.Key{}, err
	}
	for i, k := range keys {
		if err := LoadKey(card, 0, k); err != nil {
			return crypto1.Key{}, err
		}
		err := Authenticate(card, block, kt, 0)
		if err == nil {
			slog.Debug("key confirmed", "sector", sector, "type", kt.String(), "key", k.String(), "tried", i+1)
			return k, nil
		}
		if !IsAuthError(err) {
			return crypto1.Key{}, err
		}
		if r, ok := card.(Reselecter); ok {
			if err := r.Reselect(); err != nil {
				return crypto1.Key{}, fmt.Errorf("reselect after key %d: %w", i+1, err)
			}
		}
	}
	return crypto1.Key{}, ErrNoKeyConfirmed
}
