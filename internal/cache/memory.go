package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type entry struct {
	value   string
	expires time.Time
}

// Memory is an in-process KV bounded to size entries. maxTTL caps the
// lifetime of every entry; per-entry ttl values shorter than that are
// honoured on read.
type Memory struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

// NewMemory returns a Memory holding at most size entries, none of them
// older than maxTTL.
func NewMemory(size int, maxTTL time.Duration) *Memory {
	return &Memory{
		lru: expirable.NewLRU[string, entry](size, nil, maxTTL),
		now: time.Now,
	}
}

// Get returns the value of key or ErrCacheMiss.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return "", ErrCacheMiss
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.lru.Remove(key)
		return "", ErrCacheMiss
	}
	return e.value, nil
}

// Set stores value under key. A non-positive ttl leaves only the maxTTL
// cap.
func (m *Memory) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.lru.Add(key, e)
	return nil
}

// Delete removes keys. Absent keys are ignored.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.lru.Remove(k)
	}
	return nil
}

// Len returns the number of entries currently held.
func (m *Memory) Len() int {
	return m.lru.Len()
}
