package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/barnettlynn/mfkeytools/pkg/crypto1"
	"github.com/barnettlynn/mfkeytools/pkg/mfkey"
)

type report struct {
	GeneratedAt      string            `yaml:"generated_at"`
	Tier             string            `yaml:"tier"`
	Keys             []reportKey       `yaml:"keys,omitempty"`
	Unsolved         []string          `yaml:"unsolved,omitempty"`
	DictionarySolved []string          `yaml:"dictionary_solved,omitempty"`
	Candidates       []reportCandidate `yaml:"candidates,omitempty"`
}

type reportKey struct {
	UID       string `yaml:"uid"`
	Sector    int    `yaml:"sector"`
	KeyType   string `yaml:"key_type"`
	Key       string `yaml:"key"`
	Confirmed bool   `yaml:"confirmed"`
}

type reportCandidate struct {
	UID       string `yaml:"uid"`
	Sector    int    `yaml:"sector"`
	Count     int    `yaml:"count"`
	Dict      string `yaml:"dict,omitempty"`
	Confirmed string `yaml:"confirmed,omitempty"`
}

func buildReport(now time.Time, sum *mfkey.Summary, candidateDicts map[uint32]string, confirmed map[confirmKey]crypto1.Key) report {
	r := report{
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Tier:        sum.Tier.String(),
	}
	for i := range sum.Solved {
		n := &sum.Solved[i]
		k, ok := confirmed[nonceKey(n)]
		r.Keys = append(r.Keys, reportKey{
			UID:       fmt.Sprintf("%08x", n.UID),
			Sector:    n.Sector,
			KeyType:   keyLetter(n.KeyType),
			Key:       n.Key.String(),
			Confirmed: ok && k == n.Key,
		})
	}
	for i := range sum.Unsolved {
		r.Unsolved = append(r.Unsolved, formatNonce(&sum.Unsolved[i]))
	}
	for i := range sum.DictionarySolved {
		r.DictionarySolved = append(r.DictionarySolved, formatNonce(&sum.DictionarySolved[i]))
	}
	for i := range sum.Candidates {
		c := &sum.Candidates[i]
		rc := reportCandidate{
			UID:    fmt.Sprintf("%08x", c.Nonce.UID),
			Sector: c.Nonce.Sector,
			Count:  len(c.Keys),
			Dict:   candidateDicts[c.Nonce.UID],
		}
		if k, ok := confirmed[nonceKey(&c.Nonce)]; ok {
			rc.Confirmed = k.String()
		}
		r.Candidates = append(r.Candidates, rc)
	}
	return r
}

func writeReport(path string, sum *mfkey.Summary, candidateDicts map[uint32]string, confirmed map[confirmKey]crypto1.Key) error {
	data, err := yaml.Marshal(buildReport(time.Now(), sum, candidateDicts, confirmed))
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
