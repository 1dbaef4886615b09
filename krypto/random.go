package krypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// randomSource feeds salts, IVs and generated passwords. It must be a CSPRNG.
var randomSource io.Reader = rand.Reader

// SetRandSource replaces the random source and returns a function restoring
// the previous one. It is intended for tests only.
func SetRandSource(r io.Reader) (restore func()) {
	prev := randomSource
	randomSource = r
	return func() { randomSource = prev }
}

// RandReader returns the current random source.
func RandReader() io.Reader {
	return randomSource
}

// RandomBytes returns n bytes read from the random source.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("random length %d: %w", n, ErrInvalidParameter)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(randomSource, buf); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return buf, nil
}

// Zeroize overwrites sensitive byte slices in place.
func Zeroize(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
