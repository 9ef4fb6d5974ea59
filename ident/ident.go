// Package ident implements the wire identifiers used across the ledger:
// time-ordered 128-bit UUIDs rendered as <prefix>_<bech32-body>. The
// bech32 checksum is computed with the prefix as the human-readable part,
// so corrupting either half of the wire form fails verification.
package ident

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/google/uuid"
)

const (
	PrefixTrade = "trade"
	PrefixUser  = "user"
)

type ErrorCode string

const (
	ID_ERR_PREFIX    ErrorCode = "ID_ERR_PREFIX"
	ID_ERR_SEPARATOR ErrorCode = "ID_ERR_SEPARATOR"
	ID_ERR_CHARSET   ErrorCode = "ID_ERR_CHARSET"
	ID_ERR_CHECKSUM  ErrorCode = "ID_ERR_CHECKSUM"
	ID_ERR_PAYLOAD   ErrorCode = "ID_ERR_PAYLOAD"
)

// InvalidIdentifier reports a parse failure with the failing input.
type InvalidIdentifier struct {
	Code  ErrorCode
	Input string
	Msg   string
}

func (e *InvalidIdentifier) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s: %q", e.Code, e.Input)
	}
	return fmt.Sprintf("%s: %q: %s", e.Code, e.Input, e.Msg)
}

func iderr(code ErrorCode, input, msg string) error {
	return &InvalidIdentifier{Code: code, Input: input, Msg: msg}
}

// TradeID identifies one witness chain.
type TradeID [16]byte

// UserID identifies an actor. Equality of user ids is the authorisation
// stub; there are no signatures.
type UserID [16]byte

// NewTradeID generates a fresh version-7 (time-prefixed) trade id.
func NewTradeID() (TradeID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return TradeID{}, fmt.Errorf("ident: new trade id: %w", err)
	}
	return TradeID(u), nil
}

// NewUserID generates a fresh version-7 user id.
func NewUserID() (UserID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return UserID{}, fmt.Errorf("ident: new user id: %w", err)
	}
	return UserID(u), nil
}

func (id TradeID) IsZero() bool { return id == TradeID{} }
func (id UserID) IsZero() bool  { return id == UserID{} }

func (id TradeID) Bytes() []byte { return append([]byte(nil), id[:]...) }
func (id UserID) Bytes() []byte  { return append([]byte(nil), id[:]...) }

// Time returns the millisecond timestamp embedded in a v7 id.
func (id TradeID) Time() time.Time {
	ms := int64(id[0])<<40 | int64(id[1])<<32 | int64(id[2])<<24 |
		int64(id[3])<<16 | int64(id[4])<<8 | int64(id[5])
	return time.UnixMilli(ms).UTC()
}

func (id TradeID) String() string { return format(PrefixTrade, id[:]) }
func (id UserID) String() string  { return format(PrefixUser, id[:]) }

// ParseTradeID parses the wire form trade_<body>.
func ParseTradeID(s string) (TradeID, error) {
	var id TradeID
	payload, err := parse(PrefixTrade, s)
	if err != nil {
		return id, err
	}
	copy(id[:], payload)
	return id, nil
}

// ParseUserID parses the wire form user_<body>.
func ParseUserID(s string) (UserID, error) {
	var id UserID
	payload, err := parse(PrefixUser, s)
	if err != nil {
		return id, err
	}
	copy(id[:], payload)
	return id, nil
}

// TradeIDFromBytes copies a 16-byte payload into a TradeID.
func TradeIDFromBytes(b []byte) (TradeID, error) {
	var id TradeID
	if len(b) != len(id) {
		return id, iderr(ID_ERR_PAYLOAD, "", fmt.Sprintf("want %d bytes, got %d", len(id), len(b)))
	}
	copy(id[:], b)
	return id, nil
}

// UserIDFromBytes copies a 16-byte payload into a UserID.
func UserIDFromBytes(b []byte) (UserID, error) {
	var id UserID
	if len(b) != len(id) {
		return id, iderr(ID_ERR_PAYLOAD, "", fmt.Sprintf("want %d bytes, got %d", len(id), len(b)))
	}
	copy(id[:], b)
	return id, nil
}

func format(prefix string, payload []byte) string {
	data, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		// 8-to-5 regrouping of 16 bytes cannot fail.
		panic(fmt.Sprintf("ident: convert bits: %v", err))
	}
	enc, err := bech32.Encode(prefix, data)
	if err != nil {
		panic(fmt.Sprintf("ident: bech32 encode: %v", err))
	}
	// bech32.Encode yields "<hrp>1<body>"; the wire form replaces the
	// separator so ids read as trade_... / user_... . The checksum still
	// covers the hrp.
	return prefix + "_" + enc[len(prefix)+1:]
}

func parse(wantPrefix, s string) ([]byte, error) {
	i := strings.IndexByte(s, '_')
	if i < 0 {
		return nil, iderr(ID_ERR_SEPARATOR, s, "missing '_'")
	}
	prefix, body := s[:i], s[i+1:]
	if prefix != wantPrefix {
		return nil, iderr(ID_ERR_PREFIX, s, fmt.Sprintf("want %q", wantPrefix))
	}
	if body == "" {
		return nil, iderr(ID_ERR_SEPARATOR, s, "empty body")
	}

	hrp, data, err := bech32.Decode(prefix + "1" + body)
	if err != nil {
		return nil, iderr(classify(err), s, err.Error())
	}
	if hrp != wantPrefix {
		return nil, iderr(ID_ERR_PREFIX, s, fmt.Sprintf("decoded hrp %q", hrp))
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, iderr(ID_ERR_PAYLOAD, s, err.Error())
	}
	if len(payload) != 16 {
		return nil, iderr(ID_ERR_PAYLOAD, s, fmt.Sprintf("payload %d bytes", len(payload)))
	}
	return payload, nil
}

func classify(err error) ErrorCode {
	var nonCharset bech32.ErrNonCharsetChar
	var invalidChar bech32.ErrInvalidCharacter
	var checksum bech32.ErrInvalidChecksum
	switch {
	case errors.As(err, &nonCharset), errors.As(err, &invalidChar):
		return ID_ERR_CHARSET
	case errors.As(err, &checksum):
		return ID_ERR_CHECKSUM
	default:
		return ID_ERR_CHARSET
	}
}

// EqualUsers is the signature stub: an action is authorised when the
// acting id equals the designated id byte for byte.
func EqualUsers(a, b UserID) bool {
	return bytes.Equal(a[:], b[:])
}
