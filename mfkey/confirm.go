package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/barnettlynn/mfkeytools/mfkey/internal/config"
	"github.com/barnettlynn/mfkeytools/pkg/classic"
	"github.com/barnettlynn/mfkeytools/pkg/crypto1"
	"github.com/barnettlynn/mfkeytools/pkg/mfkey"
)

// confirmKey identifies one sector key of one card.
type confirmKey struct {
	UID     uint32
	Sector  int
	KeyType byte
}

func nonceKey(n *mfkey.Nonce) confirmKey {
	kt := n.KeyType
	if kt == 0 {
		kt = 'A'
	}
	return confirmKey{UID: n.UID, Sector: n.Sector, KeyType: kt}
}

// keyAdder is the part of the dictionary set confirmation writes to.
type keyAdder interface {
	Add(k crypto1.Key) error
}

// confirmKeys authenticates recovered keys and key candidates against the
// card on the configured reader.
func confirmKeys(cfg *config.Config, sum *mfkey.Summary, dicts keyAdder) (map[confirmKey]crypto1.Key, error) {
	fmt.Printf("Waiting for card on reader %d...\n", *cfg.Runtime.ReaderIndex)
	conn, err := classic.Connect(*cfg.Runtime.ReaderIndex, cfg.CardWait())
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	uid, err := classic.GetUID(conn)
	if err != nil {
		return nil, err
	}
	cuid, err := classic.CUID(uid)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Card UID: %X (cuid %08x)\n", uid, cuid)

	return confirmOnCard(conn, cuid, sum, dicts, os.Stdout)
}

// confirmOnCard runs the confirmation against an open card. Records of
// other cards are skipped. A confirmed candidate key is added to dicts.
// Results are printed to out.
func confirmOnCard(card classic.Card, cuid uint32, sum *mfkey.Summary, dicts keyAdder, out io.Writer) (map[confirmKey]crypto1.Key, error) {
	confirmed := map[confirmKey]crypto1.Key{}

	try := func(n *mfkey.Nonce, keys []crypto1.Key) (crypto1.Key, bool, error) {
		ck := nonceKey(n)
		if k, ok := confirmed[ck]; ok {
			return k, true, nil
		}
		kt, err := classic.KeyTypeFromLetter(ck.KeyType)
		if err != nil {
			return crypto1.Key{}, false, err
		}
		k, err := classic.Confirm(card, n.Sector, kt, keys)
		if errors.Is(err, classic.ErrNoKeyConfirmed) {
			return crypto1.Key{}, false, nil
		}
		if err != nil {
			return crypto1.Key{}, false, fmt.Errorf("sector %d key %c: %w", n.Sector, ck.KeyType, err)
		}
		confirmed[ck] = k
		return k, true, nil
	}

	skipped := 0
	for i := range sum.Solved {
		n := &sum.Solved[i]
		if n.UID != cuid {
			skipped++
			continue
		}
		k, ok, err := try(n, []crypto1.Key{n.Key})
		if err != nil {
			return confirmed, err
		}
		if ok {
			fmt.Fprintf(out, "  sector %2d key %c: %s confirmed\n", n.Sector, nonceKey(n).KeyType, k)
		} else {
			fmt.Fprintf(out, "  sector %2d key %c: %s rejected\n", n.Sector, nonceKey(n).KeyType, n.Key)
		}
	}

	for i := range sum.Candidates {
		c := &sum.Candidates[i]
		if c.Nonce.UID != cuid {
			skipped++
			continue
		}
		k, ok, err := try(&c.Nonce, c.Keys)
		if err != nil {
			return confirmed, err
		}
		if !ok {
			fmt.Fprintf(out, "  sector %2d: none of %d candidates accepted\n", c.Nonce.Sector, len(c.Keys))
			continue
		}
		fmt.Fprintf(out, "  sector %2d key %c: %s confirmed from %d candidates\n",
			c.Nonce.Sector, nonceKey(&c.Nonce).KeyType, k, len(c.Keys))
		if err := dicts.Add(k); err != nil {
			return confirmed, err
		}
	}

	if skipped > 0 {
		slog.Info("records for other cards skipped", "count", skipped)
	}
	return confirmed, nil
}
