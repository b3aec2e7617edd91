// Package random draws sleep durations for workers.
package random

import (
	crand "crypto/rand"
	"math/rand/v2"
)

// Duration returns a value uniformly distributed over [1, max]. Every call
// seeds a fresh generator from OS entropy, so concurrent callers never share
// generator state. max < 1 yields 1.
func Duration(max int) int {
	if max <= 1 {
		return 1
	}
	r := rand.New(rand.NewChaCha8(seed()))
	return 1 + r.IntN(max)
}

func seed() [32]byte {
	var s [32]byte
	// never returns an error, it crashes the program instead
	crand.Read(s[:])
	return s
}
