package application

import (
	"sync"
	"time"
)

type keyedSlot[T any] struct {
	key     int64
	value   T
	storeAt time.Time
	used    bool
}

// keyedStore holds transient per-issue entries in a reusable slot arena with an
// issue-id index. Entries older than ttl are removed by sweepExpired.
type keyedStore[T any] struct {
	mu    sync.Mutex
	slots []keyedSlot[T]
	free  []int
	index map[int64]int
	ttl   time.Duration
}

func newKeyedStore[T any](ttl time.Duration) *keyedStore[T] {
	return &keyedStore[T]{index: make(map[int64]int), ttl: ttl}
}

func (s *keyedStore[T]) put(key int64, value T, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[key]; ok {
		s.slots[i].value = value
		s.slots[i].storeAt = now
		return
	}
	slot := keyedSlot[T]{key: key, value: value, storeAt: now, used: true}
	if n := len(s.free); n > 0 {
		i := s.free[n-1]
		s.free = s.free[:n-1]
		s.slots[i] = slot
		s.index[key] = i
		return
	}
	s.slots = append(s.slots, slot)
	s.index[key] = len(s.slots) - 1
}

func (s *keyedStore[T]) peek(key int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	return s.slots[i].value, true
}

// take returns the entry and removes it.
func (s *keyedStore[T]) take(key int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	value := s.slots[i].value
	s.releaseLocked(key, i)
	return value, true
}

func (s *keyedStore[T]) remove(key int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if ok {
		s.releaseLocked(key, i)
	}
	return ok
}

func (s *keyedStore[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

func (s *keyedStore[T]) sweepExpired(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, i := range s.index {
		if now.Sub(s.slots[i].storeAt) > s.ttl {
			s.releaseLocked(key, i)
			removed++
		}
	}
	return removed
}

func (s *keyedStore[T]) releaseLocked(key int64, i int) {
	delete(s.index, key)
	s.slots[i] = keyedSlot[T]{}
	s.free = append(s.free, i)
}
