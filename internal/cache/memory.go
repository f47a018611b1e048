package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryTier is the fastest tier, backed by an in-process go-cache store
// with an LRU bound on top. It cannot fault.
type MemoryTier struct {
	store      *gocache.Cache
	ttl        time.Duration
	maxEntries int

	mu    sync.Mutex
	order *list.List // front = most recently used
	elems map[string]*list.Element
}

// NewMemoryTier creates the memory tier. maxEntries <= 0 disables the
// LRU bound.
func NewMemoryTier(ttl time.Duration, maxEntries int) *MemoryTier {
	return &MemoryTier{
		store:      gocache.New(ttl, 2*ttl),
		ttl:        ttl,
		maxEntries: maxEntries,
		order:      list.New(),
		elems:      make(map[string]*list.Element),
	}
}

func (m *MemoryTier) Name() string       { return "memory" }
func (m *MemoryTier) TTL() time.Duration { return m.ttl }

func (m *MemoryTier) Get(_ context.Context, key string) (Entry, bool) {
	v, ok := m.store.Get(key)
	m.mu.Lock()
	if el, tracked := m.elems[key]; tracked {
		if ok {
			m.order.MoveToFront(el)
		} else {
			// Expired underneath the LRU bookkeeping.
			m.order.Remove(el)
			delete(m.elems, key)
		}
	}
	m.mu.Unlock()
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

func (m *MemoryTier) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 || ttl > m.ttl {
		ttl = m.ttl
	}
	m.store.Set(key, Entry{Value: value, ExpiresAt: time.Now().Add(ttl)}, ttl)

	m.mu.Lock()
	if el, ok := m.elems[key]; ok {
		m.order.MoveToFront(el)
	} else {
		m.elems[key] = m.order.PushFront(key)
	}
	for m.maxEntries > 0 && m.order.Len() > m.maxEntries {
		back := m.order.Back()
		evicted := back.Value.(string)
		m.order.Remove(back)
		delete(m.elems, evicted)
		m.store.Delete(evicted)
	}
	m.mu.Unlock()
}

func (m *MemoryTier) Delete(_ context.Context, key string) {
	m.store.Delete(key)
	m.mu.Lock()
	if el, ok := m.elems[key]; ok {
		m.order.Remove(el)
		delete(m.elems, key)
	}
	m.mu.Unlock()
}

// Len reports the number of live entries.
func (m *MemoryTier) Len() int { return m.store.ItemCount() }
