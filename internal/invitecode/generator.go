// Package invitecode generates invite codes and moves them in and out of
// deep links.
package invitecode

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// Length is the number of characters in a generated code.
	Length   = 10
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// largest multiple of len(alphabet) that fits in a byte; bytes above it are rejected
	maxByte = 256 - (256 % len(alphabet))
)

// Generator produces invite codes. Uniqueness is enforced by the invite store.
type Generator interface {
	Generate() (string, error)
}

// RandomGenerator draws codes from a cryptographically secure source.
type RandomGenerator struct {
	src io.Reader
}

// NewRandomGenerator returns a generator backed by crypto/rand.
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{src: rand.Reader}
}

// Generate returns a new code of Length alphanumeric characters.
func (g *RandomGenerator) Generate() (string, error) {
	out := make([]byte, 0, Length)
	buf := make([]byte, Length*2)
	for len(out) < Length {
		if _, err := io.ReadFull(g.src, buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out), nil
}

// Valid reports whether code has the shape of a generated code.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
