// Package store persists ledger records. A single physical key-value
// store is partitioned by one-byte key prefix:
//
//	0x01 || sha256(32B)     -> encoded object bytes
//	0x02 || trade_id(16B)   -> encoded ordered list of witness hashes
//	0x03 || "schema_version" -> integer, currently 1
//
// Objects are immutable and content-addressed; the chain rows are the only
// keys ever rewritten, and only by appending one hash under an optimistic
// length check.
package store

import (
	"errors"
	"fmt"

	"fxledger.dev/ledger/codec"
	"fxledger.dev/ledger/ident"
)

const SchemaVersionV1 = 1

const (
	prefixObjects byte = 0x01
	prefixChains  byte = 0x02
	prefixMeta    byte = 0x03
)

var keySchemaVersion = append([]byte{prefixMeta}, "schema_version"...)

func objectKey(h codec.Hash) []byte {
	k := make([]byte, 1+len(h))
	k[0] = prefixObjects
	copy(k[1:], h[:])
	return k
}

func chainKey(id ident.TradeID) []byte {
	k := make([]byte, 1+len(id))
	k[0] = prefixChains
	copy(k[1:], id[:])
	return k
}

type chainRowWire struct {
	V      uint8    `cbor:"0,keyasint"`
	Hashes [][]byte `cbor:"1,keyasint"`
}

type metaWire struct {
	V             uint8 `cbor:"0,keyasint"`
	SchemaVersion uint8 `cbor:"1,keyasint"`
}

// Object pairs a content hash with its encoded bytes for a batched write.
type Object struct {
	Hash  codec.Hash
	Bytes []byte
}

// Store exposes the object store and chain index over a Backend.
type Store struct {
	be Backend
}

// Open opens a bbolt-backed store at path.
func Open(path string) (*Store, error) {
	be, err := OpenBolt(path)
	if err != nil {
		return nil, err
	}
	s, err := New(be)
	if err != nil {
		_ = be.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already-open backend, stamping or verifying the schema
// version row.
func New(be Backend) (*Store, error) {
	s := &Store{be: be}
	if err := be.Update(func(tx Tx) error {
		raw := tx.Get(keySchemaVersion)
		if raw == nil {
			b, err := codec.Encode(metaWire{V: codec.SchemaVersion, SchemaVersion: SchemaVersionV1})
			if err != nil {
				return err
			}
			return tx.Put(keySchemaVersion, b)
		}
		var m metaWire
		if err := codec.Decode(raw, &m); err != nil {
			return fmt.Errorf("schema_version row: %w", err)
		}
		if m.SchemaVersion > SchemaVersionV1 {
			return fmt.Errorf("schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
		}
		return nil
	}); err != nil {
		return nil, failure("init", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.be == nil {
		return nil
	}
	return s.be.Close()
}

// GetObject returns the stored bytes for a content hash.
func (s *Store) GetObject(h codec.Hash) ([]byte, error) {
	var out []byte
	err := s.be.View(func(tx Tx) error {
		v := tx.Get(objectKey(h))
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HasObject reports whether a content hash resolves.
func (s *Store) HasObject(h codec.Hash) bool {
	found := false
	_ = s.be.View(func(tx Tx) error {
		found = tx.Get(objectKey(h)) != nil
		return nil
	})
	return found
}

// PutObject writes one object outside any chain append. Idempotent.
func (s *Store) PutObject(h codec.Hash, b []byte) error {
	return s.be.Update(func(tx Tx) error {
		return putObject(tx, h, b)
	})
}

func putObject(tx Tx, h codec.Hash, b []byte) error {
	existing := tx.Get(objectKey(h))
	if existing != nil {
		if !codec.Equal(existing, b) {
			return fmt.Errorf("%w: %s", ErrHashCollision, h)
		}
		return nil // identical re-insert
	}
	return tx.Put(objectKey(h), b)
}

// LoadChain returns the ordered witness hashes for a trade.
func (s *Store) LoadChain(id ident.TradeID) ([]codec.Hash, error) {
	var out []codec.Hash
	err := s.be.View(func(tx Tx) error {
		hashes, err := readChainRow(tx, id)
		if err != nil {
			return err
		}
		out = hashes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ChainLen returns the current chain length, or 0 with ErrUnknownTrade.
func (s *Store) ChainLen(id ident.TradeID) (int, error) {
	hashes, err := s.LoadChain(id)
	if err != nil {
		return 0, err
	}
	return len(hashes), nil
}

func readChainRow(tx Tx, id ident.TradeID) ([]codec.Hash, error) {
	raw := tx.Get(chainKey(id))
	if raw == nil {
		return nil, ErrUnknownTrade
	}
	var row chainRowWire
	if err := codec.Decode(raw, &row); err != nil {
		return nil, failure("chain row", err)
	}
	out := make([]codec.Hash, 0, len(row.Hashes))
	for i, hb := range row.Hashes {
		h, err := codec.HashFromBytes(hb)
		if err != nil {
			return nil, failure(fmt.Sprintf("chain row hash[%d]", i), err)
		}
		out = append(out, h)
	}
	return out, nil
}

// AppendWitness commits one workflow step atomically: every object in
// objs (the witness record plus, for submit/update, the new trade
// details), then the chain-index append. The append succeeds only if the
// row currently holds exactly expectedLen hashes; a zero expectedLen with
// no existing row creates the chain.
func (s *Store) AppendWitness(id ident.TradeID, expectedLen int, witnessHash codec.Hash, objs ...Object) error {
	return s.be.Update(func(tx Tx) error {
		current, err := readChainRow(tx, id)
		switch {
		case err == nil:
		case errors.Is(err, ErrUnknownTrade):
			current = nil
		default:
			return err
		}
		if len(current) != expectedLen {
			return ErrConcurrentAppend
		}

		for _, o := range objs {
			if err := putObject(tx, o.Hash, o.Bytes); err != nil {
				return err
			}
		}

		row := chainRowWire{V: codec.SchemaVersion, Hashes: make([][]byte, 0, len(current)+1)}
		for _, h := range current {
			row.Hashes = append(row.Hashes, h.Bytes())
		}
		row.Hashes = append(row.Hashes, witnessHash[:])
		raw, err := codec.Encode(row)
		if err != nil {
			return err
		}
		return tx.Put(chainKey(id), raw)
	})
}

// ScanTrades visits every trade id that has a chain row, in key order.
func (s *Store) ScanTrades(fn func(id ident.TradeID, chainLen int) error) error {
	return s.be.View(func(tx Tx) error {
		return tx.Scan([]byte{prefixChains}, func(key, value []byte) error {
			id, err := ident.TradeIDFromBytes(key[1:])
			if err != nil {
				return failure("chain key", err)
			}
			var row chainRowWire
			if err := codec.Decode(value, &row); err != nil {
				return failure("chain row", err)
			}
			return fn(id, len(row.Hashes))
		})
	})
}
