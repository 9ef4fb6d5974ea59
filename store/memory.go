package store

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryBackend mirrors the bbolt semantics in process memory: Update
// holds the write lock for the whole transaction, so reads inside it see
// a stable snapshot plus the transaction's own writes.
type MemoryBackend struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemory() *MemoryBackend {
	return &MemoryBackend{m: make(map[string][]byte)}
}

func (b *MemoryBackend) Close() error { return nil }

func (b *MemoryBackend) View(fn func(tx Tx) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fn(&memTx{m: b.m})
}

func (b *MemoryBackend) Update(fn func(tx Tx) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx := &memTx{m: b.m, staged: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	for k, v := range tx.staged {
		b.m[k] = v
	}
	return nil
}

type memTx struct {
	m      map[string][]byte
	staged map[string][]byte // nil in read-only transactions
}

func (t *memTx) Get(key []byte) []byte {
	if t.staged != nil {
		if v, ok := t.staged[string(key)]; ok {
			return v
		}
	}
	return t.m[string(key)]
}

func (t *memTx) Put(key, value []byte) error {
	t.staged[string(key)] = append([]byte(nil), value...)
	return nil
}

func (t *memTx) Scan(prefix []byte, fn func(key, value []byte) error) error {
	keys := make([]string, 0, len(t.m))
	for k := range t.m {
		keys = append(keys, k)
	}
	if t.staged != nil {
		for k := range t.staged {
			if _, ok := t.m[k]; !ok {
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		kb := []byte(k)
		if !bytes.HasPrefix(kb, prefix) {
			continue
		}
		if err := fn(kb, t.Get(kb)); err != nil {
			return err
		}
	}
	return nil
}
