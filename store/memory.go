// store/memory.go
package store

import (
	"bytes"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	version   int64
	expiresAt time.Time // zero value means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore 进程内实现，带后台清扫
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryStore 创建内存 store 并启动过期清扫
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, e := range s.entries {
				if e.expired(now) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *MemoryStore) Get(key string) ([]byte, int64, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || e.expired(time.Now()) {
		return nil, 0, ErrNotFound
	}
	val := make([]byte, len(e.value))
	copy(val, e.value)
	return val, e.version, nil
}

func (s *MemoryStore) Put(key string, value []byte, version int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.entries[key]
	if ok && e.expired(now) {
		delete(s.entries, key)
		ok = false
	}

	if !ok {
		if version != 0 {
			return 0, ErrVersionConflict
		}
		ne := &entry{value: append([]byte(nil), value...), version: 1}
		if ttl > 0 {
			ne.expiresAt = now.Add(ttl)
		}
		s.entries[key] = ne
		return 1, nil
	}

	if e.version != version {
		return 0, ErrVersionConflict
	}
	e.value = append([]byte(nil), value...)
	e.version++
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	return e.version, nil
}

func (s *MemoryStore) SetNX(key string, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.entries[key]; ok && !e.expired(now) {
		return false, nil
	}
	e := &entry{value: []byte(value), version: 1}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.entries[key] = e
	return true, nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CompareAndDelete(key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		return false, nil
	}
	if !bytes.Equal(e.value, value) {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *MemoryStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var keys []string
	for key, e := range s.entries {
		if e.expired(now) {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *MemoryStore) Close() {
	s.once.Do(func() {
		close(s.stop)
	})
}
