// Package cache holds rendered responses so repeated reads skip the database.
package cache

import (
	"errors"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"go.uber.org/zap"
)

type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Flush()
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(string) ([]byte, bool) { return nil, false }

func (Nop) Set(string, []byte, time.Duration) {}

func (Nop) Flush() {}

// Memcached stores values in a memcached cluster. Keys carry a generation
// kept on the server under "<prefix>:gen"; Flush increments it, which hides
// every earlier entry from all instances sharing the prefix and leaves the
// server's other keys alone.
type Memcached struct {
	Prefix string
	Logger *zap.Logger

	client memcacheClient
	now    func() time.Time

	// used while the server cannot be reached
	mu       sync.Mutex
	fallback string
}

// memcacheClient is the part of *memcache.Client the cache uses.
type memcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Add(item *memcache.Item) error
	Increment(key string, delta uint64) (uint64, error)
}

// maxRelativeExpiration is the longest expiration memcached reads as seconds
// from now; larger values are taken as a Unix time.
const maxRelativeExpiration = 30 * 24 * time.Hour

func NewMemcached(addr, prefix string, logger *zap.Logger) *Memcached {
	return newMemcached(memcache.New(addr), prefix, logger)
}

func newMemcached(client memcacheClient, prefix string, logger *zap.Logger) *Memcached {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Memcached{
		Prefix: prefix,
		Logger: logger,
		client: client,
		now:    time.Now,
	}
	m.fallback = m.seed()
	return m
}

// seed starts a new generation above any earlier one.
func (m *Memcached) seed() string {
	return strconv.FormatInt(m.now().UnixNano(), 10)
}

func (m *Memcached) genKey() string {
	return m.Prefix + ":gen"
}

func (m *Memcached) generation() string {
	for attempt := 0; attempt < 2; attempt++ {
		item, err := m.client.Get(m.genKey())
		if err == nil {
			return string(item.Value)
		}
		if !errors.Is(err, memcache.ErrCacheMiss) {
			m.Logger.Warn("memcached generation read failed", zap.Error(err))
			break
		}
		gen := m.seed()
		err = m.client.Add(&memcache.Item{Key: m.genKey(), Value: []byte(gen)})
		if err == nil {
			return gen
		}
		if !errors.Is(err, memcache.ErrNotStored) {
			m.Logger.Warn("memcached generation write failed", zap.Error(err))
			break
		}
		// another instance created it first
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fallback
}

func (m *Memcached) key(key string) string {
	return m.Prefix + ":" + m.generation() + ":" + key
}

func (m *Memcached) Get(key string) ([]byte, bool) {
	item, err := m.client.Get(m.key(key))
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			m.Logger.Warn("memcached get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return item.Value, true
}

func (m *Memcached) Set(key string, value []byte, ttl time.Duration) {
	err := m.client.Set(&memcache.Item{
		Key:        m.key(key),
		Value:      value,
		Expiration: expiration(ttl, m.now()),
	})
	if err != nil {
		m.Logger.Warn("memcached set failed", zap.String("key", key), zap.Error(err))
	}
}

// expiration converts ttl to memcached's Expiration field: seconds for up to
// 30 days, an absolute Unix time beyond that, 0 for no expiry.
func expiration(ttl time.Duration, now time.Time) int32 {
	switch {
	case ttl <= 0:
		return 0
	case ttl < time.Second:
		return 1
	case ttl <= maxRelativeExpiration:
		return int32(ttl / time.Second)
	}
	at := now.Add(ttl).Unix()
	if at > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(at)
}

func (m *Memcached) Flush() {
	m.mu.Lock()
	m.fallback = m.seed()
	m.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		_, err := m.client.Increment(m.genKey(), 1)
		if err == nil {
			return
		}
		if !errors.Is(err, memcache.ErrCacheMiss) {
			m.Logger.Warn("memcached flush failed", zap.Error(err))
			return
		}
		err = m.client.Add(&memcache.Item{Key: m.genKey(), Value: []byte(m.seed())})
		if err == nil {
			return
		}
		if !errors.Is(err, memcache.ErrNotStored) {
			m.Logger.Warn("memcached flush failed", zap.Error(err))
			return
		}
	}
}

// Memory is an in-process cache, used when no memcached address is set.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

type entry struct {
	value   []byte
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry), now: time.Now}
}

func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
}

func (m *Memory) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
}
