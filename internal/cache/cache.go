package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a keyed result store with per-entry expiry.
type Cache interface {
	Get(key string) (any, bool)
	Put(key string, value any, ttl time.Duration)
	Invalidate()
}

// Memory is an in-process Cache backed by go-cache.
type Memory struct {
	store *gocache.Cache
	ttl   time.Duration
}

// NewMemory returns a cache whose entries expire after ttl by default.
func NewMemory(ttl time.Duration) *Memory {
	cleanup := ttl * 2
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &Memory{
		store: gocache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

func (m *Memory) Get(key string) (any, bool) {
	return m.store.Get(key)
}

// Put stores value under key. A non-positive ttl uses the cache default.
func (m *Memory) Put(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.store.Set(key, value, ttl)
}

// Invalidate drops every entry.
func (m *Memory) Invalidate() {
	m.store.Flush()
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	return m.store.ItemCount()
}

// Disabled never stores anything.
type Disabled struct{}

func (Disabled) Get(string) (any, bool)         { return nil, false }
func (Disabled) Put(string, any, time.Duration) {}
func (Disabled) Invalidate()                    {}

// Key hashes the name of an operation and its identifying arguments.
func Key(name string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, arg := range args {
		parts = append(parts, fmt.Sprintf("%v", arg))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
