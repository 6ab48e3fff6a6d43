package core

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// Hash is a hex-encoded SHA256 digest
type Hash string

// String returns the hex digest
func (h Hash) String() string { return string(h) }

// Short returns the first 12 hex characters, for logs
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// HashString hashes an arbitrary string
func HashString(s string) Hash {
	sum := sha256.Sum256([]byte(s))
	return Hash(fmt.Sprintf("%x", sum))
}

// HashFloats hashes the exact bit patterns of a float slice, so two slices
// hash equal only when they are bit-identical.
func HashFloats(values ...[]float64) Hash {
	h := sha256.New()
	var buf [8]byte
	for _, vs := range values {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(vs)))
		h.Write(buf[:])
		for _, v := range vs {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return Hash(fmt.Sprintf("%x", h.Sum(nil)))
}
