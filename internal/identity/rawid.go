package identity

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// IDSize is the size of one RawID and of one record in an ids file.
const IDSize = 64

// RawID is one position a backend owns in the cluster hash space.
type RawID [IDSize]byte

// String returns the first 6 bytes in hex, the form used in logs.
func (id RawID) String() string {
	return hex.EncodeToString(id[:6])
}

// Hex returns the full hex encoding.
func (id RawID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Compare orders ids bytewise.
func (id RawID) Compare(other RawID) int {
	return bytes.Compare(id[:], other[:])
}

// ParseRawID decodes a full-length hex id.
func ParseRawID(s string) (RawID, error) {
	var id RawID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid raw id: %w", err)
	}
	if len(b) != IDSize {
		return id, fmt.Errorf("invalid raw id length %d, want %d", len(b), IDSize)
	}
	copy(id[:], b)
	return id, nil
}

// Set is the ordered identity set of one backend.
type Set []RawID

// Clone returns a copy that shares no memory with s.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Equal reports whether both sets hold the same ids in the same order.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}
