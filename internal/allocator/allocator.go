// Package allocator derives short numeric room codes from conference
// identifiers. Derivation is deterministic: the same identifier always
// yields the same candidate sequence, across calls and across process
// restarts, because it hashes the identifier's UTF-8 bytes with FNV-1a
// rather than a per-process seeded hash.
package allocator

import (
	"errors"
	"fmt"
	"hash/fnv"
)

// DefaultCodeLength is the number of decimal digits in a room code.
const DefaultCodeLength = 5

// ErrSpaceExhausted is returned by Allocate when every candidate in the
// code space has been probed without finding a free one.
var ErrSpaceExhausted = errors.New("room code space exhausted")

// ExistsFunc reports whether a candidate code is already taken. It is
// supplied by the caller, typically as a read against the mapping store,
// and may fail if that read fails.
type ExistsFunc func(code int64) (bool, error)

// Allocator derives candidate codes within a fixed decimal width.
type Allocator struct {
	codeLength int
	space      int64
	maxProbes  int64
}

// New returns an Allocator producing codes of codeLength decimal digits.
// A non-positive codeLength falls back to DefaultCodeLength.
func New(codeLength int) *Allocator {
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	space := int64(1)
	for i := 0; i < codeLength; i++ {
		space *= 10
	}
	return &Allocator{
		codeLength: codeLength,
		space:      space,
		maxProbes:  space,
	}
}

// CodeLength returns the configured code width in decimal digits.
func (a *Allocator) CodeLength() int {
	return a.codeLength
}

// Derive computes the candidate code for a conference identifier at the
// given probe offset: FNV-1a over the identifier bytes, plus the offset,
// reduced to the last codeLength decimal digits. Small values are valid
// codes; no zero-padding is implied.
func (a *Allocator) Derive(conference string, offset uint64) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(conference))
	return int64((h.Sum64() + offset) % uint64(a.space))
}

// Allocate probes candidate codes for the identifier, starting at offset
// zero, until taken reports one free. Candidate 0 is never returned:
// codes must be positive, so it is treated as occupied and probed past.
// Probing is bounded by the size of the code space; running it out
// yields ErrSpaceExhausted.
func (a *Allocator) Allocate(conference string, taken ExistsFunc) (int64, error) {
	for offset := int64(0); offset < a.maxProbes; offset++ {
		candidate := a.Derive(conference, uint64(offset))
		if candidate == 0 {
			continue
		}
		inUse, err := taken(candidate)
		if err != nil {
			return 0, fmt.Errorf("probing code %d for %q: %w", candidate, conference, err)
		}
		if !inUse {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("allocating code for %q after %d probes: %w", conference, a.maxProbes, ErrSpaceExhausted)
}
