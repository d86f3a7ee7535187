package cache

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"
)

// janitorInterval is how often expired entries are swept.
const janitorInterval = 1 * time.Minute

type entry struct {
	value     string
	bucket    *TokenBucket
	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-process TTL cache. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	done    chan struct{}
	once    sync.Once
}

// NewMemory creates a memory cache and starts its janitor goroutine.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		done:    make(chan struct{}),
	}
	go m.janitor()
	return m
}

func (m *Memory) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for k, e := range m.entries {
				if e.expired(now) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *Memory) get(key string) (*entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(m.entries, key)
		return nil, false
	}
	return e, true
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// Get returns the string value for key, or ErrNotFound.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(key)
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

// Set stores value under key with the given TTL (<=0 means no expiry).
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &entry{value: value, expiresAt: expiry(ttl)}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Incr increments the integer value at key, initializing to 1 when absent.
func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	if e, ok := m.get(key); ok {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	var expiresAt time.Time
	if e, ok := m.entries[key]; ok {
		expiresAt = e.expiresAt
	}
	m.entries[key] = &entry{value: strconv.FormatInt(n, 10), expiresAt: expiresAt}
	return n, nil
}

// DeletePattern removes all keys matching a glob pattern (path.Match syntax).
func (m *Memory) DeletePattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if ok, err := path.Match(pattern, k); err != nil {
			return err
		} else if ok {
			delete(m.entries, k)
		}
	}
	return nil
}

// GetTokenBucket returns a copy of the bucket stored at key, or ErrNotFound.
func (m *Memory) GetTokenBucket(_ context.Context, key string) (*TokenBucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(key)
	if !ok || e.bucket == nil {
		return nil, ErrNotFound
	}
	b := *e.bucket
	return &b, nil
}

// SetTokenBucket stores a copy of bucket under key with the given TTL.
func (m *Memory) SetTokenBucket(_ context.Context, key string, bucket *TokenBucket, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := *bucket
	m.entries[key] = &entry{bucket: &b, expiresAt: expiry(ttl)}
	return nil
}

// Close stops the janitor goroutine.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}
