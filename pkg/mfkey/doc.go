// Package mfkey recovers Crypto1 keys from captured Mifare Classic
// authentications.
//
// A search inverts 32 bits of keystream: both 24-bit register halves are
// rebuilt from every 20-bit semi-state that fits the first keystream bit,
// bucketed by the byte of feedback contributions each half accumulates,
// and merged where the contributions agree. The space is walked in chunks
// of Budget.MSBLimit contribution values so only one chunk of buckets is
// resident at a time. Every full state the merge produces is confirmed
// against the half of the exchange the search did not use.
//
// Three capture kinds are supported, see AttackKind. Attack runs a batch of
// records with a dictionary pass, in-run deduplication and a memory tier
// fallback, reporting progress through a ProgramState.
package mfkey
