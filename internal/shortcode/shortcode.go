// Package shortcode produces short codes for new links.
package shortcode

import (
	"math/rand"
)

// Base58 alphabet: no 0/O or I/l, so codes survive being read aloud.
const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// DefaultLength keeps codes short while leaving ~38 billion combinations;
// collisions are rare enough to resolve reactively via the store's unique
// index rather than probing here.
const DefaultLength = 6

type Allocator struct {
	length int
}

func New(length int) *Allocator {
	if length <= 0 {
		length = DefaultLength
	}
	return &Allocator{length: length}
}

// Allocate returns the caller's alias verbatim when one is given, otherwise
// a freshly generated random code. Uniqueness is the store's job either way.
func (a *Allocator) Allocate(customAlias string) string {
	if customAlias != "" {
		return customAlias
	}
	return a.generate()
}

func (a *Allocator) generate() string {
	buf := make([]byte, a.length)
	for i := range buf {
		buf[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(buf)
}
