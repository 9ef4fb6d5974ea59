package trade

import (
	"bytes"
	"testing"

	"fxledger.dev/ledger/codec"
	"fxledger.dev/ledger/ident"
)

func fixedUser(t *testing.T, fill byte) ident.UserID {
	t.Helper()
	b := make([]byte, 16)
	for i := range b {
		b[i] = fill
	}
	id, err := ident.UserIDFromBytes(b)
	if err != nil {
		t.Fatalf("user id: %v", err)
	}
	return id
}

func fixedTrade(t *testing.T, fill byte) ident.TradeID {
	t.Helper()
	b := make([]byte, 16)
	for i := range b {
		b[i] = fill
	}
	id, err := ident.TradeIDFromBytes(b)
	if err != nil {
		t.Fatalf("trade id: %v", err)
	}
	return id
}

func TestDetailsEncodeRoundTrip(t *testing.T) {
	d, err := validBuilder().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, h, err := EncodeDetails(d)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if h != codec.Sum(b) {
		t.Fatalf("hash is not the sum of the encoding")
	}

	got, err := DecodeDetails(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b2, h2, err := EncodeDetails(got)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if h2 != h || !bytes.Equal(b2, b) {
		t.Fatalf("decoded value re-encodes differently")
	}
}

func TestDetailsHashChangesWithContent(t *testing.T) {
	d1, err := validBuilder().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	d2, err := validBuilder().Notional(USD, 2_000_000_00).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, h1, err := EncodeDetails(d1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, h2, err := EncodeDetails(d2)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("different details share a content hash")
	}
}

func TestDetailsWithStrikeRoundTrip(t *testing.T) {
	d, err := validBuilder().Strike(Strike{Unscaled: 10850, Scale: 4}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, _, err := EncodeDetails(d)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeDetails(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Strike == nil || got.Strike.Unscaled != 10850 || got.Strike.Scale != 4 {
		t.Fatalf("strike lost in round trip: %+v", got.Strike)
	}
}

func TestDecodeDetailsRejectsGarbage(t *testing.T) {
	if _, err := DecodeDetails([]byte{0xff, 0x00, 0x01}); err == nil {
		t.Fatalf("expected decode failure")
	}
}

func submitWitness(t *testing.T) *Witness {
	t.Helper()
	d, err := validBuilder().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, dh, err := EncodeDetails(d)
	if err != nil {
		t.Fatalf("encode details: %v", err)
	}
	return &Witness{
		TradeID:     fixedTrade(t, 0x11),
		Seq:         0,
		Timestamp:   TimeStamp(1_750_000_000_000),
		Kind:        KindSubmit,
		Actor:       fixedUser(t, 0xaa),
		DetailsHash: dh,
		Requester:   fixedUser(t, 0xaa),
		Approver:    fixedUser(t, 0xbb),
		Address:     "ops-desk-4",
	}
}

func TestWitnessEncodeRoundTrip(t *testing.T) {
	w := submitWitness(t)
	b, h, err := EncodeWitness(w)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeWitness(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	h2, err := HashWitness(got)
	if err != nil {
		t.Fatalf("re-hash: %v", err)
	}
	if h2 != h {
		t.Fatalf("decoded witness hashes differently")
	}
	if got.Kind != KindSubmit || got.Address != "ops-desk-4" || got.Approver != w.Approver {
		t.Fatalf("payload lost: %+v", got)
	}
}

func TestWitnessExecuteRoundTrip(t *testing.T) {
	w := &Witness{
		TradeID:   fixedTrade(t, 0x11),
		Seq:       3,
		Prev:      codec.Sum([]byte("prev")),
		Timestamp: TimeStamp(1_750_000_000_000),
		Kind:      KindExecute,
		Actor:     fixedUser(t, 0xbb),
		Strike:    &Strike{Unscaled: 10850, Scale: 4},
	}
	b, _, err := EncodeWitness(w)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeWitness(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Strike == nil || got.Strike.String() != "1.0850" {
		t.Fatalf("strike lost: %+v", got.Strike)
	}
}

func TestWitnessPayloadValidation(t *testing.T) {
	base := func() *Witness { return submitWitness(t) }

	t.Run("submit without details hash", func(t *testing.T) {
		w := base()
		w.DetailsHash = codec.Hash{}
		if _, _, err := EncodeWitness(w); err == nil {
			t.Fatalf("expected rejection")
		}
	})
	t.Run("submit without approver", func(t *testing.T) {
		w := base()
		w.Approver = ident.UserID{}
		if _, _, err := EncodeWitness(w); err == nil {
			t.Fatalf("expected rejection")
		}
	})
	t.Run("execute without strike", func(t *testing.T) {
		w := base()
		w.Kind = KindExecute
		w.Seq = 1
		w.Prev = codec.Sum([]byte("prev"))
		w.Strike = nil
		if _, _, err := EncodeWitness(w); err == nil {
			t.Fatalf("expected rejection")
		}
	})
	t.Run("first witness with prev hash", func(t *testing.T) {
		w := base()
		w.Prev = codec.Sum([]byte("bogus"))
		if _, _, err := EncodeWitness(w); err == nil {
			t.Fatalf("expected rejection")
		}
	})
	t.Run("later witness without prev hash", func(t *testing.T) {
		w := base()
		w.Kind = KindCancel
		w.Seq = 2
		if _, _, err := EncodeWitness(w); err == nil {
			t.Fatalf("expected rejection")
		}
	})
	t.Run("unknown kind", func(t *testing.T) {
		w := base()
		w.Kind = WitnessKind(99)
		if _, _, err := EncodeWitness(w); err == nil {
			t.Fatalf("expected rejection")
		}
	})
}

func TestDecodeWitnessRejectsTrailing(t *testing.T) {
	b, _, err := EncodeWitness(submitWitness(t))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeWitness(append(b, 0x00)); err == nil {
		t.Fatalf("expected trailing bytes to be rejected")
	}
}
