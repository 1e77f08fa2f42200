// Package uniuri generates random tokens for sessions and password resets.
// Characters are drawn from crypto/rand with rejection sampling so every
// character of the alphabet is equally likely.
package uniuri

import (
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// TokenLen gives ~380 bits of entropy with the default alphabet.
	TokenLen = 64

	byteRange = 256
	maxBufLen = 1024
)

// ErrAlphabet is returned for an alphabet outside 2..256 characters.
var ErrAlphabet = errors.New("uniuri: alphabet must hold 2 to 256 characters")

// Alphabet is the default character set, safe in URLs without escaping.
var Alphabet = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789") //nolint:gochecknoglobals

// Token returns a TokenLen token over Alphabet.
func Token() (string, error) {
	return NewLenChars(TokenLen, Alphabet)
}

// NewLen returns a token of length n over Alphabet.
func NewLen(n int) (string, error) {
	return NewLenChars(n, Alphabet)
}

// NewLenChars returns a token of length n over chars.
func NewLenChars(n int, chars []byte) (string, error) {
	clen := len(chars)
	if clen < 2 || clen > byteRange {
		return "", ErrAlphabet
	}

	if n <= 0 {
		return "", nil
	}

	// bytes above limit would favour the first characters
	limit := byteRange - (byteRange % clen)
	buf := make([]byte, min(maxBufLen, n+n/2+1))
	out := make([]byte, 0, n)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("uniuri: read random bytes: %w", err)
		}

		for _, b := range buf {
			if int(b) >= limit {
				continue
			}

			out = append(out, chars[int(b)%clen])
			if len(out) == n {
				break
			}
		}
	}

	return string(out), nil
}
