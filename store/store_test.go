package store

import (
	"errors"
	"fmt"
	"testing"

	"fxledger.dev/ledger/codec"
	"fxledger.dev/ledger/ident"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(NewMemory())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func mustTradeID(t *testing.T) ident.TradeID {
	t.Helper()
	id, err := ident.NewTradeID()
	if err != nil {
		t.Fatalf("new trade id: %v", err)
	}
	return id
}

func obj(payload string) Object {
	b := []byte(payload)
	return Object{Hash: codec.Sum(b), Bytes: b}
}

func TestPutGetObject(t *testing.T) {
	s := newMemStore(t)
	o := obj("details-v1")

	if err := s.PutObject(o.Hash, o.Bytes); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.GetObject(o.Hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "details-v1" {
		t.Fatalf("got %q", got)
	}
	if !s.HasObject(o.Hash) {
		t.Fatalf("HasObject false for stored object")
	}
}

func TestPutObjectIdempotent(t *testing.T) {
	s := newMemStore(t)
	o := obj("same-bytes")

	if err := s.PutObject(o.Hash, o.Bytes); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := s.PutObject(o.Hash, o.Bytes); err != nil {
		t.Fatalf("identical re-insert should be a no-op, got %v", err)
	}
}

func TestHashCollisionDetected(t *testing.T) {
	s := newMemStore(t)
	o := obj("original")

	if err := s.PutObject(o.Hash, o.Bytes); err != nil {
		t.Fatalf("put: %v", err)
	}
	err := s.PutObject(o.Hash, []byte("different"))
	if !errors.Is(err, ErrHashCollision) {
		t.Fatalf("expected ErrHashCollision, got %v", err)
	}
}

func TestGetObjectNotFound(t *testing.T) {
	s := newMemStore(t)
	_, err := s.GetObject(codec.Sum([]byte("never stored")))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadChainUnknownTrade(t *testing.T) {
	s := newMemStore(t)
	_, err := s.LoadChain(mustTradeID(t))
	if !errors.Is(err, ErrUnknownTrade) {
		t.Fatalf("expected ErrUnknownTrade, got %v", err)
	}
}

func TestAppendWitness(t *testing.T) {
	s := newMemStore(t)
	id := mustTradeID(t)

	w0 := obj("witness-0")
	if err := s.AppendWitness(id, 0, w0.Hash, w0); err != nil {
		t.Fatalf("append 0: %v", err)
	}
	w1 := obj("witness-1")
	if err := s.AppendWitness(id, 1, w1.Hash, w1); err != nil {
		t.Fatalf("append 1: %v", err)
	}

	hashes, err := s.LoadChain(id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(hashes) != 2 || hashes[0] != w0.Hash || hashes[1] != w1.Hash {
		t.Fatalf("chain %v", hashes)
	}
}

func TestAppendExpectedLenMismatch(t *testing.T) {
	s := newMemStore(t)
	id := mustTradeID(t)

	w0 := obj("w0")
	if err := s.AppendWitness(id, 0, w0.Hash, w0); err != nil {
		t.Fatalf("append: %v", err)
	}

	t.Run("stale expected len", func(t *testing.T) {
		w1 := obj("w1")
		err := s.AppendWitness(id, 0, w1.Hash, w1)
		if !errors.Is(err, ErrConcurrentAppend) {
			t.Fatalf("expected ErrConcurrentAppend, got %v", err)
		}
	})
	t.Run("future expected len", func(t *testing.T) {
		w1 := obj("w1")
		err := s.AppendWitness(id, 5, w1.Hash, w1)
		if !errors.Is(err, ErrConcurrentAppend) {
			t.Fatalf("expected ErrConcurrentAppend, got %v", err)
		}
	})
}

func TestAppendAtomicity(t *testing.T) {
	s := newMemStore(t)
	id := mustTradeID(t)

	// Poison the batch: second object collides, so neither the first
	// object nor the chain row may become visible.
	good := obj("good")
	bad := Object{Hash: good.Hash, Bytes: []byte("colliding")}

	w := obj("w")
	err := s.AppendWitness(id, 0, w.Hash, good, bad, w)
	if !errors.Is(err, ErrHashCollision) {
		t.Fatalf("expected ErrHashCollision, got %v", err)
	}
	if s.HasObject(good.Hash) {
		t.Fatalf("aborted batch leaked an object")
	}
	if _, err := s.LoadChain(id); !errors.Is(err, ErrUnknownTrade) {
		t.Fatalf("aborted batch leaked a chain row: %v", err)
	}
}

func TestChainLen(t *testing.T) {
	s := newMemStore(t)
	id := mustTradeID(t)
	for i := 0; i < 3; i++ {
		o := obj(fmt.Sprintf("w%d", i))
		if err := s.AppendWitness(id, i, o.Hash, o); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	n, err := s.ChainLen(id)
	if err != nil {
		t.Fatalf("chain len: %v", err)
	}
	if n != 3 {
		t.Fatalf("chain len %d, want 3", n)
	}
}

func TestScanTrades(t *testing.T) {
	s := newMemStore(t)
	ids := map[ident.TradeID]int{
		mustTradeID(t): 1,
		mustTradeID(t): 2,
	}
	for id, n := range ids {
		for i := 0; i < n; i++ {
			o := obj(id.String() + fmt.Sprintf("-w%d", i))
			if err := s.AppendWitness(id, i, o.Hash, o); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
	}

	seen := map[ident.TradeID]int{}
	if err := s.ScanTrades(func(id ident.TradeID, chainLen int) error {
		seen[id] = chainLen
		return nil
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(seen) != len(ids) {
		t.Fatalf("scan saw %d trades, want %d", len(seen), len(ids))
	}
	for id, n := range ids {
		if seen[id] != n {
			t.Fatalf("trade %s: len %d, want %d", id, seen[id], n)
		}
	}
}

func TestCrossTradeIndependence(t *testing.T) {
	s := newMemStore(t)
	a, b := mustTradeID(t), mustTradeID(t)

	oa := obj("a0")
	if err := s.AppendWitness(a, 0, oa.Hash, oa); err != nil {
		t.Fatalf("append a: %v", err)
	}
	ob := obj("b0")
	if err := s.AppendWitness(b, 0, ob.Hash, ob); err != nil {
		t.Fatalf("append b must not conflict with a: %v", err)
	}
}
