// Package oid provides opaque persistent object identifiers.
//
// An OID names exactly one stored object for the lifetime of a repository.
// Objects with a natural semantic identity (the root catalog, the graphs,
// entities keyed by path and checksum) derive their OID one-way from that
// identity so that independent processes agree on it. Everything else gets
// a random 256-bit identifier at first store.
package oid

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"

	"golang.org/x/text/unicode/norm"
)

// Size is the digest width in bytes.
const Size = sha256.Size

var pattern = regexp.MustCompile("^[0-9a-f]{64}$")

// OID is an opaque 256-bit object identifier.
// The zero value is the empty identifier, which never names a stored object.
type OID struct {
	digest [Size]byte
}

// FromSemantic derives a deterministic OID from a natural semantic identity.
// Format: SHA256(domain + 0x00 + NFC(id)). The null separator prevents
// domain/id boundary ambiguity; id strings are NFC normalized so that
// visually identical names hash identically.
func FromSemantic(domain, id string) OID {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write([]byte(norm.NFC.String(id)))
	var o OID
	h.Sum(o.digest[:0])
	return o
}

// Random returns a freshly generated random OID.
func Random() OID {
	var o OID
	if _, err := rand.Read(o.digest[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("oid: rand: %v", err))
	}
	return o
}

// Parse decodes the hex text form produced by String.
func Parse(s string) (OID, error) {
	var o OID
	if !pattern.MatchString(s) {
		return o, fmt.Errorf("oid: malformed identifier %q", s)
	}
	if _, err := hex.Decode(o.digest[:], []byte(s)); err != nil {
		return o, fmt.Errorf("oid: %w", err)
	}
	return o, nil
}

// String returns the lower-case hex text encoding of the identifier.
func (o OID) String() string {
	return hex.EncodeToString(o.digest[:])
}

// IsEmpty reports whether the identifier is the zero value.
func (o OID) IsEmpty() bool {
	return o == OID{}
}

// Less gives a stable total order over identifiers, used where
// deterministic iteration matters.
func Less(a, b OID) bool {
	for i := 0; i < Size; i++ {
		if a.digest[i] != b.digest[i] {
			return a.digest[i] < b.digest[i]
		}
	}
	return false
}
