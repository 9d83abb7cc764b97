package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxKeys bounds the number of tracked keys in a Memory limiter.
const DefaultMaxKeys = 10000

type memoryBucket struct {
	count     int
	windowEnd time.Time
}

// Memory is a process-local Limiter. Suitable for single instances and tests.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	data    map[string]*memoryBucket
	maxKeys int
}

// NewMemory returns a Memory limiter. A nil now uses time.Now; maxKeys <= 0
// uses DefaultMaxKeys.
func NewMemory(now func() time.Time, maxKeys int) *Memory {
	if now == nil {
		now = time.Now
	}
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Memory{now: now, data: make(map[string]*memoryBucket), maxKeys: maxKeys}
}

func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true, Limit: limit, Counted: true}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.data[key]
	if !ok || !now.Before(b.windowEnd) {
		if !ok && len(m.data) >= m.maxKeys {
			m.gc(now)
			if len(m.data) >= m.maxKeys {
				return Decision{}, fmt.Errorf("%w: capacity exceeded", ErrUnavailable)
			}
		}
		b = &memoryBucket{windowEnd: now.Add(window)}
		m.data[key] = b
	}

	counted := b.count <= limit
	if counted {
		b.count++
	}
	return decide(b.count, limit, b.windowEnd, counted), nil
}

// Reset forgets key.
func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) gc(now time.Time) {
	for key, b := range m.data {
		if !now.Before(b.windowEnd) {
			delete(m.data, key)
		}
	}
}
