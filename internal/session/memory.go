package session

import (
	"context"
	"sync"
	"time"

	"github.com/tinoosan/billy/internal/errs"
	"github.com/tinoosan/billy/internal/meta"
)

type memItem struct {
	fields    meta.Metadata
	expiresAt time.Time
}

// Memory is an in-process Cache for development and tests.
// Expired items are dropped lazily on access and by CleanExpired.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memItem
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]memItem), now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Put(_ context.Context, key string, fields meta.Metadata, ttl time.Duration) error {
	if err := fields.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memItem{fields: meta.New(fields), expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (meta.Metadata, error) {
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.ErrNotFound
	}
	if !m.now().Before(it.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, errs.ErrNotFound
	}
	return meta.New(it.fields), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// CleanExpired removes expired items and returns how many were dropped.
func (m *Memory) CleanExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, it := range m.items {
		if !now.Before(it.expiresAt) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

// Ready always succeeds.
func (m *Memory) Ready(context.Context) error { return nil }
