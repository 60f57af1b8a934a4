// Package shortcode allocates the unique codes that identify shortened URLs.
// Auto-generated codes combine a monotonically increasing counter with random
// entropy so they stay both collision-free and unguessable.
package shortcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
)

// alphabet is the closed 64-symbol output set. The symbols are deliberately
// shuffled and restricted to characters that need no URL escaping.
const alphabet = "FjTG0s5dgWkbLf_8etOZqMzNhmp7u6lUJoXIDiQB9-wRxCKyrPcv4En3Y21aASHV"

const (
	// minCodeLength is the number of random symbols appended to the counter.
	minCodeLength = 5
	// maxAttempts bounds the allocation retry loop. Collisions need both a
	// duplicate counter value and identical random suffixes, so any small
	// bound is safe.
	maxAttempts = 10
)

// ErrCollisionExhausted is returned when no free code was found within the
// retry bound.
var ErrCollisionExhausted = errors.New("exhausted attempts to generate a free short code")

// Storage is the slice of the storage gateway the generator needs: a counter
// that never hands out the same value twice, and an existence check for
// candidate codes.
type Storage interface {
	NextCounterValue(ctx context.Context) (int64, error)
	Exists(ctx context.Context, code string) (bool, error)
}

// Generator produces unique short codes backed by Storage.
type Generator struct {
	storage Storage
}

// New returns a Generator backed by the given storage.
func New(storage Storage) *Generator {
	return &Generator{storage: storage}
}

// Allocate returns a code for a new short URL. A non-empty vanity is returned
// verbatim: uniqueness of vanity codes is the caller's concern, so a taken
// vanity surfaces as a conflict instead of a silent retry. Otherwise a fresh
// counter value and fresh randomness are drawn on every attempt; counter
// values consumed by failed attempts are never reclaimed.
func (g *Generator) Allocate(ctx context.Context, vanity string) (string, error) {
	const op = "shortcode.Generator.Allocate"

	if vanity != "" {
		return vanity, nil
	}

	for i := 0; i < maxAttempts; i++ {
		n, err := g.storage.NextCounterValue(ctx)
		if err != nil {
			return "", fmt.Errorf("%s: failed to obtain counter value: %w", op, err)
		}

		code, err := Encode(n)
		if err != nil {
			return "", fmt.Errorf("%s: failed to encode counter value: %w", op, err)
		}

		exists, err := g.storage.Exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check code existence: %w", op, err)
		}
		if !exists {
			return code, nil
		}
	}

	return "", fmt.Errorf("%s: %w", op, ErrCollisionExhausted)
}

// Encode builds the code for a counter value: the decimal counter followed by
// minCodeLength random symbols, reversed. The counter prefix keeps codes
// distinguishable while the random suffix defeats sequential guessing.
// Encode(0) is the alphabet's first symbol.
func Encode(n int64) (string, error) {
	const op = "shortcode.Encode"

	if n == 0 {
		return string(alphabet[0]), nil
	}

	buf := make([]byte, minCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: failed to read random bytes: %w", op, err)
	}

	token := make([]byte, minCodeLength)
	for i, b := range buf {
		token[minCodeLength-1-i] = alphabet[int(b)%len(alphabet)]
	}

	return strconv.FormatInt(n, 10) + string(token), nil
}
