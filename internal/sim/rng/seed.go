package rng

import (
	crand "crypto/rand"
	"fmt"
	"regexp"
)

const (
	SeedLength = 12

	base62 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

var seedPattern = regexp.MustCompile(`^[0-9A-Za-z]{12}$`)

// GenerateSeedString returns a fresh base62 seed drawn from crypto/rand.
func GenerateSeedString(length int) (string, error) {
	if length <= 0 {
		length = SeedLength
	}
	out := make([]byte, 0, length)
	var buf [32]byte
	for len(out) < length {
		if _, err := crand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("read random seed: %w", err)
		}
		for _, b := range buf {
			// 248 = 4*62; reject the tail so every symbol is equally likely.
			if b >= 248 {
				continue
			}
			out = append(out, base62[int(b)%62])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

func IsValidSeed(s string) bool {
	return seedPattern.MatchString(s)
}
