package identity

import (
	"lukechampine.com/blake3"
)

// Transform is the cluster's keyed hash. It must be deterministic and free of
// side effects: equal input always yields the same RawID.
type Transform interface {
	Transform(buf []byte) RawID
}

// TransformFunc adapts a function to Transform.
type TransformFunc func(buf []byte) RawID

// Transform calls f.
func (f TransformFunc) Transform(buf []byte) RawID {
	return f(buf)
}

// Blake3Transform hashes with BLAKE3 in keyed mode and a 64-byte output.
type Blake3Transform struct {
	key []byte
}

// NewBlake3Transform derives a 32-byte key from secret. An empty secret selects
// unkeyed hashing.
func NewBlake3Transform(secret string) *Blake3Transform {
	t := &Blake3Transform{}
	if secret != "" {
		key := blake3.Sum256([]byte(secret))
		t.key = key[:]
	}
	return t
}

// Transform implements Transform.
func (t *Blake3Transform) Transform(buf []byte) RawID {
	var id RawID
	if t.key == nil {
		id = blake3.Sum512(buf)
		return id
	}
	h := blake3.New(IDSize, t.key)
	_, _ = h.Write(buf)
	copy(id[:], h.Sum(nil))
	return id
}
