// Package rng is the session's deterministic random stream.
//
// The same seed string and the same call sequence produce the same floats on every
// platform: the seed hash and the mixing steps are defined on 32-bit wraparound
// integers only.
package rng

import (
	"unicode/utf16"
)

type Generator struct {
	seed    string
	initial uint32
	state   uint32
}

func New(seed string) *Generator {
	s := HashSeed(seed)
	return &Generator{seed: seed, initial: s, state: s}
}

// HashSeed folds the seed's UTF-16 code units with the 31-multiplier string hash and
// returns its absolute value, never zero.
func HashSeed(seed string) uint32 {
	var h int32
	for _, c := range utf16.Encode([]rune(seed)) {
		h = (h << 5) - h + int32(c)
	}
	var out uint32
	if h < 0 {
		out = uint32(-int64(h))
	} else {
		out = uint32(h)
	}
	if out == 0 {
		out = 1
	}
	return out
}

func (g *Generator) Seed() string { return g.seed }

// Next returns a float in [0,1).
func (g *Generator) Next() float64 {
	g.state += 0x6D2B79F5
	t := g.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// NextInt returns an int in [min,max], both inclusive.
func (g *Generator) NextInt(min, max int) int {
	if max < min {
		min, max = max, min
	}
	span := max - min + 1
	return min + int(g.Next()*float64(span))
}

// Chance reports whether a roll lands under p.
func (g *Generator) Chance(p float64) bool {
	if p >= 1 {
		return true
	}
	if p <= 0 {
		return false
	}
	return g.Next() < p
}

func (g *Generator) Reset() { g.state = g.initial }

func (g *Generator) State() uint32 { return g.state }

func (g *Generator) SetState(s uint32) {
	if s == 0 {
		s = 1
	}
	g.state = s
}

// Shuffle permutes s in place (Fisher–Yates).
func Shuffle[T any](g *Generator, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := g.NextInt(0, i)
		s[i], s[j] = s[j], s[i]
	}
}

// Pick returns one element of s; ok is false when s is empty.
func Pick[T any](g *Generator, s []T) (v T, ok bool) {
	if len(s) == 0 {
		return v, false
	}
	return s[g.NextInt(0, len(s)-1)], true
}

// PickN samples up to n distinct positions of s without replacement. s is not modified.
func PickN[T any](g *Generator, s []T, n int) []T {
	if n <= 0 || len(s) == 0 {
		return nil
	}
	if n > len(s) {
		n = len(s)
	}
	cp := make([]T, len(s))
	copy(cp, s)
	Shuffle(g, cp)
	return cp[:n]
}
