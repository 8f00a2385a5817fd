package cards

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"
)

// NewRNG returns a math/rand generator seeded from the OS entropy source.
// Determinism across runs is not a goal; unbiased dealing is.
func NewRNG() *rand.Rand {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(b[:]))))
}

// Shuffle permutes the deck in place with a uniform Fisher-Yates pass.
func Shuffle(deck []Card, rng *rand.Rand) {
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
}
