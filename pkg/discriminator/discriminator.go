// Package discriminator computes and matches the 8-byte identifiers that
// prefix every instruction, account and event of the continuum wrapper.
//
// A discriminator is the first 8 bytes of SHA-256(namespace + ":" + name).
// Producers and the receiving program must agree bit for bit, so every
// identifier used on the wire is pinned in this package (see registry.go)
// instead of being recomputed at call sites.
package discriminator

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a discriminator in bytes.
const Size = 8

// Namespaces used by the wrapper program. A rename of any canonical name
// is a breaking protocol change; new versions get a new namespace.
const (
	NamespaceGlobal  = "global"
	NamespaceAccount = "account"
	NamespaceEvent   = "event"
)

// Discriminator is an 8-byte instruction, account or event identifier.
type Discriminator [Size]byte

// Compute returns the first 8 bytes of SHA-256(namespace + ":" + name).
func Compute(namespace, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], sum[:Size])
	return d
}

// FromBytes copies the leading 8 bytes of data. The second return value is
// false when data is shorter than a discriminator.
func FromBytes(data []byte) (Discriminator, bool) {
	var d Discriminator
	if len(data) < Size {
		return d, false
	}
	copy(d[:], data[:Size])
	return d, true
}

// Bytes returns the discriminator as a byte slice.
func (d Discriminator) Bytes() []byte {
	return d[:]
}

// Equals checks if two discriminators are equal.
func (d Discriminator) Equals(other Discriminator) bool {
	return d == other
}

// HasPrefix reports whether data starts with d.
func (d Discriminator) HasPrefix(data []byte) bool {
	other, ok := FromBytes(data)
	return ok && other == d
}

func (d Discriminator) String() string {
	return hex.EncodeToString(d[:])
}
