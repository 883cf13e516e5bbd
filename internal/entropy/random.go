// Package entropy resolves simulation seeds and hands out independent
// random streams, one per concern.
// A zero seed means "unseeded": a fresh seed is drawn from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
	"time"
)

// Stream offsets keep generation, spawning and movement on separate
// sequences so adding agents never changes the next generated nest.
const (
	StreamNest    int64 = 100
	StreamSpawner int64 = 300
	StreamMotion  int64 = 500
)

// ResolveSeed returns seed unchanged, or a crypto-random seed when seed is 0.
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return CryptoSeed()
}

// CryptoSeed returns a non-zero seed from crypto/rand.
// Falls back to the wall clock if the system source is unavailable.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen but the clock is a usable default.
		return time.Now().UnixNano() | 1
	}
	// Clear the sign bit so seeds print and persist as positive numbers.
	s := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if s == 0 {
		s = 1
	}
	return s
}

// NewRand creates a deterministic generator for seed.
func NewRand(seed int64) *mathrand.Rand {
	return mathrand.New(mathrand.NewSource(seed))
}

// Stream creates the generator for one concern derived from the base seed.
func Stream(seed, offset int64) *mathrand.Rand {
	return NewRand(seed + offset)
}
