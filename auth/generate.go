package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/Hussein-Mazeh/cipherbox/krypto"
)

// Classes selects the character sets a generated password draws from.
type Classes uint8

const (
	Lower Classes = 1 << iota
	Upper
	Digits
	Symbols

	AllClasses = Lower | Upper | Digits | Symbols
)

const (
	MinGeneratedLength = 8
	MaxGeneratedLength = 1024

	lowerChars = "abcdefghijklmnopqrstuvwxyz"
	upperChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars = "0123456789"
)

func (c Classes) sets() []string {
	var out []string
	if c&Lower != 0 {
		out = append(out, lowerChars)
	}
	if c&Upper != 0 {
		out = append(out, upperChars)
	}
	if c&Digits != 0 {
		out = append(out, digitChars)
	}
	if c&Symbols != 0 {
		out = append(out, specialChars)
	}
	return out
}

// ParseClasses reads a set of class letters: l, u, d and s.
func ParseClasses(s string) (Classes, error) {
	var c Classes
	for _, r := range strings.ToLower(s) {
		switch r {
		case 'l':
			c |= Lower
		case 'u':
			c |= Upper
		case 'd':
			c |= Digits
		case 's':
			c |= Symbols
		default:
			return 0, fmt.Errorf("unknown character class %q: %w", r, krypto.ErrInvalidParameter)
		}
	}
	return c, nil
}

// randIndex returns a uniform index in [0, n) from the krypto random source.
func randIndex(n int) (int, error) {
	v, err := rand.Int(krypto.RandReader(), big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("read random index: %w", err)
	}
	return int(v.Int64()), nil
}

// GeneratePassword returns a random password of length characters drawn
// uniformly from the selected classes, with at least one character from each.
func GeneratePassword(length int, classes Classes) (string, error) {
	if length < MinGeneratedLength || length > MaxGeneratedLength {
		return "", fmt.Errorf("password length %d: %w", length, krypto.ErrInvalidParameter)
	}
	sets := classes.sets()
	if len(sets) == 0 {
		return "", fmt.Errorf("no character classes selected: %w", krypto.ErrInvalidParameter)
	}
	alphabet := strings.Join(sets, "")

	out := make([]byte, length)
	for i := range out {
		src := alphabet
		if i < len(sets) {
			src = sets[i]
		}
		j, err := randIndex(len(src))
		if err != nil {
			return "", err
		}
		out[i] = src[j]
	}

	for i := len(out) - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}
