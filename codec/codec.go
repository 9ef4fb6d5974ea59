// Package codec provides the canonical binary encoding and content
// addressing for ledger records. Records are CBOR maps with integer keys;
// the identity of a stored record is the SHA-256 of its encoded bytes.
//
// The encoder is deterministic for a given logical value within this
// implementation. Cross-implementation bit-for-bit stability is not a
// contract; implementations targeting interop must adopt canonical CBOR
// rules and re-hash.
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// SchemaVersion is the current record schema. Decode itself does not
// inspect the embedded version; the trade details and witness decoders
// reject records whose version exceeds it.
const SchemaVersion = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.CoreDetEncOptions()
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: enc mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		IndefLength:       cbor.IndefLengthForbidden,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: dec mode: %v", err))
	}
}

// Encode serialises a record value to its binary form.
func Encode(v any) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return b, nil
}

// Decode parses b into v. Unknown map keys, duplicate keys, indefinite
// lengths and trailing bytes are all rejected.
func Decode(b []byte, v any) error {
	if err := decMode.Unmarshal(b, v); err != nil {
		return fmt.Errorf("codec: decode: %w", err)
	}
	return nil
}

// Hash is a SHA-256 content address.
type Hash [32]byte

// Sum hashes encoded record bytes.
func Sum(b []byte) Hash {
	return sha256.Sum256(b)
}

// HashOf encodes v and returns both the encoding and its content address.
func HashOf(v any) ([]byte, Hash, error) {
	b, err := Encode(v)
	if err != nil {
		return nil, Hash{}, err
	}
	return b, Sum(b), nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a fresh copy of the 32-byte digest.
func (h Hash) Bytes() []byte {
	return append([]byte(nil), h[:]...)
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// HashFromBytes copies a 32-byte slice into a Hash.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != len(h) {
		return h, fmt.Errorf("codec: hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Equal reports whether two encodings are byte-identical.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}
