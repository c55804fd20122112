package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemStore implements the contract on a mutex-guarded map. Conditional
// updates hold the write lock across check and write, so it exhibits the
// same single-winner behavior as the real backends; tests lean on that.
type MemStore struct {
	mu    sync.RWMutex
	items map[string]map[string]Attrs
}

func NewMemStore() *MemStore {
	return &MemStore{items: make(map[string]map[string]Attrs)}
}

func (s *MemStore) Get(_ context.Context, pk, sk string) (Attrs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attrs, ok := s.items[pk][sk]
	if !ok {
		return nil, nil
	}
	return attrs.clone(), nil
}

func (s *MemStore) Put(_ context.Context, pk, sk string, attrs Attrs, requireAbsent bool) (PutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[pk][sk]; exists && requireAbsent {
		return AlreadyExists, nil
	}
	s.put(pk, sk, attrs.clone())
	return Created, nil
}

func (s *MemStore) ConditionalUpdate(_ context.Context, pk, sk string, set Attrs, remove []string, cond *Condition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs := s.items[pk][sk]
	if !cond.holds(attrs) {
		return false, nil
	}

	merged := attrs.clone()
	for k, v := range set {
		merged[k] = v
	}
	for _, k := range remove {
		delete(merged, k)
	}
	s.put(pk, sk, merged)
	return true, nil
}

func (s *MemStore) QueryByPrefix(_ context.Context, pk, skPrefix string) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []Item
	for sk, attrs := range s.items[pk] {
		if strings.HasPrefix(sk, skPrefix) {
			items = append(items, Item{PK: pk, SK: sk, Attrs: attrs.clone()})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SK < items[j].SK })
	return items, nil
}

func (s *MemStore) ScanWithFilter(_ context.Context, attr string, equals any, limit int) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pks []string
	for pk := range s.items {
		pks = append(pks, pk)
	}
	sort.Strings(pks)

	var items []Item
	for _, pk := range pks {
		for sk, attrs := range s.items[pk] {
			if attrs[attr] != equals {
				continue
			}
			items = append(items, Item{PK: pk, SK: sk, Attrs: attrs.clone()})
			if limit > 0 && len(items) == limit {
				return items, nil
			}
		}
	}
	return items, nil
}

// Len reports the total number of stored items; tests use it to assert that
// an operation produced zero writes.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, part := range s.items {
		n += len(part)
	}
	return n
}

func (s *MemStore) put(pk, sk string, attrs Attrs) {
	part, ok := s.items[pk]
	if !ok {
		part = make(map[string]Attrs)
		s.items[pk] = part
	}
	part[sk] = attrs
}
