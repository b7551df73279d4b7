package classic

import (
	"encoding/binary"
	"fmt"
)

// Card abstracts card transmit behavior for real PC/SC cards and test doubles.
type Card interface {
	Transmit(apdu []byte) ([]byte, error)
}

// Reselecter is implemented by cards that can be reset and selected again.
// A MIFARE Classic card halts after a failed authentication and ignores
// commands until it is reselected.
type Reselecter interface {
	Reselect() error
}

// Transmit sends an APDU to the card and extracts the status word.
// The response data does NOT include the trailing SW bytes.
func Transmit(card Card, apdu []byte) ([]byte, uint16, error) {
	resp, err := card.Transmit(apdu)
	if err != nil {
		return nil, 0, err
	}
	if len(resp) < 2 {
		return nil, 0, fmt.Errorf("short response: %d bytes", len(resp))
	}
	sw := uint16(resp[len(resp)-2])<<8 | uint16(resp[len(resp)-1])
	return resp[:len(resp)-2], sw, nil
}

// GetUID retrieves the card UID via GET DATA (FF CA 00 00).
func GetUID(card Card) ([]byte, error) {
	for _, le := range []byte{0x00, 0x04} {
		data, sw, err := Transmit(card, []byte{0xFF, 0xCA, 0x00, 0x00, le})
		if err == nil && SwOK(sw) && len(data) > 0 {
			return data, nil
		}
	}
	return nil, fmt.Errorf("UID not available via GET DATA")
}

// CUID is the 32-bit UID the cipher is initialised with: the UID itself
// for 4-byte UIDs, its last four bytes for 7-byte UIDs.
func CUID(uid []byte) (uint32, error) {
	switch len(uid) {
	case 4:
		return binary.BigEndian.Uint32(uid), nil
	case 7:
		return binary.BigEndian.Uint32(uid[3:]), nil
	default:
		return 0, fmt.Errorf("unexpected UID length %d", len(uid))
	}
}
