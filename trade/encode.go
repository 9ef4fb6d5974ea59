package trade

import (
	"fmt"

	"fxledger.dev/ledger/codec"
	"fxledger.dev/ledger/ident"
)

// Wire layouts. Field numbers are fixed; changing or reusing one is a
// schema break and requires a version bump. Domain structs are converted
// through these so the stored shape never leaks into the API.

type detailsWire struct {
	V             uint8  `cbor:"0,keyasint"`
	Entity        string `cbor:"1,keyasint"`
	Counterparty  string `cbor:"2,keyasint"`
	Direction     uint8  `cbor:"3,keyasint"`
	NotionalCcy   string `cbor:"4,keyasint"`
	NotionalAmt   uint64 `cbor:"5,keyasint"`
	UnderlyingCcy string `cbor:"6,keyasint"`
	UnderlyingAmt uint64 `cbor:"7,keyasint"`
	TradeDate     int64  `cbor:"8,keyasint"`
	ValueDate     int64  `cbor:"9,keyasint"`
	DeliveryDate  int64  `cbor:"10,keyasint"`
	StrikeUnsc    uint64 `cbor:"11,keyasint,omitempty"`
	StrikeScale   uint8  `cbor:"12,keyasint,omitempty"`
	HasStrike     bool   `cbor:"13,keyasint,omitempty"`
}

type witnessWire struct {
	V         uint8  `cbor:"0,keyasint"`
	TradeID   []byte `cbor:"1,keyasint"`
	Seq       uint64 `cbor:"2,keyasint"`
	Prev      []byte `cbor:"3,keyasint,omitempty"`
	Timestamp int64  `cbor:"4,keyasint"`
	Kind      uint8  `cbor:"5,keyasint"`
	Actor     []byte `cbor:"6,keyasint"`

	DetailsHash []byte `cbor:"7,keyasint,omitempty"`
	Requester   []byte `cbor:"8,keyasint,omitempty"`
	Approver    []byte `cbor:"9,keyasint,omitempty"`
	Address     string `cbor:"10,keyasint,omitempty"`
	StrikeUnsc  uint64 `cbor:"11,keyasint,omitempty"`
	StrikeScale uint8  `cbor:"12,keyasint,omitempty"`
	HasStrike   bool   `cbor:"13,keyasint,omitempty"`
}

// EncodeDetails serialises details and returns bytes plus content hash.
func EncodeDetails(d *TradeDetails) ([]byte, codec.Hash, error) {
	if err := d.Validate(); err != nil {
		return nil, codec.Hash{}, err
	}
	w := detailsWire{
		V:             codec.SchemaVersion,
		Entity:        d.Entity,
		Counterparty:  d.Counterparty,
		Direction:     uint8(d.Direction),
		NotionalCcy:   string(d.Notional.Currency),
		NotionalAmt:   d.Notional.Amount,
		UnderlyingCcy: string(d.Underlying.Currency),
		UnderlyingAmt: d.Underlying.Amount,
		TradeDate:     int64(d.TradeDate),
		ValueDate:     int64(d.ValueDate),
		DeliveryDate:  int64(d.DeliveryDate),
	}
	if d.Strike != nil {
		w.HasStrike = true
		w.StrikeUnsc = d.Strike.Unscaled
		w.StrikeScale = d.Strike.Scale
	}
	return codec.HashOf(w)
}

// DecodeDetails parses a stored details record.
func DecodeDetails(b []byte) (*TradeDetails, error) {
	var w detailsWire
	if err := codec.Decode(b, &w); err != nil {
		return nil, err
	}
	if w.V > codec.SchemaVersion {
		return nil, fmt.Errorf("trade: details schema %d > supported %d", w.V, codec.SchemaVersion)
	}
	d := &TradeDetails{
		Entity:       w.Entity,
		Counterparty: w.Counterparty,
		Direction:    Direction(w.Direction),
		Notional:     CurrencyAmount{Currency: Currency(w.NotionalCcy), Amount: w.NotionalAmt},
		Underlying:   CurrencyAmount{Currency: Currency(w.UnderlyingCcy), Amount: w.UnderlyingAmt},
		TradeDate:    TimeStamp(w.TradeDate),
		ValueDate:    TimeStamp(w.ValueDate),
		DeliveryDate: TimeStamp(w.DeliveryDate),
	}
	if w.HasStrike {
		d.Strike = &Strike{Unscaled: w.StrikeUnsc, Scale: w.StrikeScale}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// EncodeWitness serialises a witness and returns bytes plus content hash.
func EncodeWitness(w *Witness) ([]byte, codec.Hash, error) {
	if err := w.ValidatePayload(); err != nil {
		return nil, codec.Hash{}, err
	}
	ww := witnessWire{
		V:         codec.SchemaVersion,
		TradeID:   w.TradeID.Bytes(),
		Seq:       w.Seq,
		Timestamp: int64(w.Timestamp),
		Kind:      uint8(w.Kind),
		Actor:     w.Actor.Bytes(),
	}
	if !w.Prev.IsZero() {
		ww.Prev = w.Prev.Bytes()
	}
	if !w.DetailsHash.IsZero() {
		ww.DetailsHash = w.DetailsHash.Bytes()
	}
	if !w.Requester.IsZero() {
		ww.Requester = w.Requester.Bytes()
	}
	if !w.Approver.IsZero() {
		ww.Approver = w.Approver.Bytes()
	}
	ww.Address = w.Address
	if w.Strike != nil {
		ww.HasStrike = true
		ww.StrikeUnsc = w.Strike.Unscaled
		ww.StrikeScale = w.Strike.Scale
	}
	return codec.HashOf(ww)
}

// DecodeWitness parses a stored witness record.
func DecodeWitness(b []byte) (*Witness, error) {
	var ww witnessWire
	if err := codec.Decode(b, &ww); err != nil {
		return nil, err
	}
	if ww.V > codec.SchemaVersion {
		return nil, fmt.Errorf("trade: witness schema %d > supported %d", ww.V, codec.SchemaVersion)
	}

	tradeID, err := ident.TradeIDFromBytes(ww.TradeID)
	if err != nil {
		return nil, fmt.Errorf("trade: witness trade_id: %w", err)
	}
	actor, err := ident.UserIDFromBytes(ww.Actor)
	if err != nil {
		return nil, fmt.Errorf("trade: witness actor: %w", err)
	}

	w := &Witness{
		TradeID:   tradeID,
		Seq:       ww.Seq,
		Timestamp: TimeStamp(ww.Timestamp),
		Kind:      WitnessKind(ww.Kind),
		Actor:     actor,
		Address:   ww.Address,
	}
	if ww.Prev != nil {
		w.Prev, err = codec.HashFromBytes(ww.Prev)
		if err != nil {
			return nil, fmt.Errorf("trade: witness prev: %w", err)
		}
	}
	if ww.DetailsHash != nil {
		w.DetailsHash, err = codec.HashFromBytes(ww.DetailsHash)
		if err != nil {
			return nil, fmt.Errorf("trade: witness details hash: %w", err)
		}
	}
	if ww.Requester != nil {
		w.Requester, err = ident.UserIDFromBytes(ww.Requester)
		if err != nil {
			return nil, fmt.Errorf("trade: witness requester: %w", err)
		}
	}
	if ww.Approver != nil {
		w.Approver, err = ident.UserIDFromBytes(ww.Approver)
		if err != nil {
			return nil, fmt.Errorf("trade: witness approver: %w", err)
		}
	}
	if ww.HasStrike {
		w.Strike = &Strike{Unscaled: ww.StrikeUnsc, Scale: ww.StrikeScale}
	}
	if err := w.ValidatePayload(); err != nil {
		return nil, err
	}
	return w, nil
}

// HashWitness re-encodes a witness and returns its content address.
// Encoding is deterministic, so this always reproduces the stored hash.
func HashWitness(w *Witness) (codec.Hash, error) {
	_, h, err := EncodeWitness(w)
	return h, err
}
