package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// sweepInterval 两次清理过期条目的最小间隔
const sweepInterval = time.Minute

// MemoryCache 进程内缓存，未配置 redis 时使用
type MemoryCache struct {
	mu        sync.RWMutex
	items     map[string]entry
	nextSweep time.Time
	now       func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]entry), now: time.Now}
}

// Len 当前条目数，含尚未清理的过期条目
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.expiresAt) {
		if ok {
			m.mu.Lock()
			// 期间可能已被新值覆盖
			if cur, still := m.items[key]; still && !m.now().Before(cur.expiresAt) {
				delete(m.items, key)
			}
			m.mu.Unlock()
		}
		record("memory", false)
		return nil, false, nil
	}
	record("memory", true)
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	v := make([]byte, len(value))
	copy(v, value)
	now := m.now()
	m.mu.Lock()
	if !now.Before(m.nextSweep) {
		m.sweep(now)
		m.nextSweep = now.Add(sweepInterval)
	}
	m.items[key] = entry{value: v, expiresAt: now.Add(ttl)}
	m.mu.Unlock()
	return nil
}

// sweep 删除过期条目，调用方持有写锁
func (m *MemoryCache) sweep(now time.Time) {
	for k, e := range m.items {
		if !now.Before(e.expiresAt) {
			delete(m.items, k)
		}
	}
}

func (m *MemoryCache) Clear(_ context.Context) error {
	m.mu.Lock()
	m.items = make(map[string]entry)
	m.mu.Unlock()
	clears.WithLabelValues("memory").Inc()
	return nil
}
