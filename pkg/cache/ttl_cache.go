// Package cache — generic in-memory TTL cache.
//
// Rol → yetki çözümü gibi "sık okunan, nadiren değişen" sorgu sonuçlarını
// kısa süreliğine bellekte tutmak için kullanılır. Her entry bir son
// kullanma anı taşır; süresi geçen entry Get'te görünmez, map'ten fiziksel
// silme arka plandaki cleanup goroutine'ine bırakılır.
//
// sync.RWMutex ile korunur — Get'ler paralel koşar, Set yazma kilidi alır.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache, generic TTL cache.
//
//	c := cache.New[string, []string](30*time.Second, 5*time.Minute)
//	c.Set("student", codes)
//	codes, ok := c.Get("student")
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration

	stopCleanup chan struct{}
}

// New, cache'i oluşturur ve cleanup goroutine'ini başlatır.
//
// ttl: entry yaşam süresi. cleanupInterval: süresi dolan entry'lerin
// map'ten silinme sıklığı — Get zaten stale entry döndürmez, cleanup
// sadece map'in büyümesini sınırlar. cleanupInterval > ttl önerilir.
func New[K comparable, V any](ttl, cleanupInterval time.Duration) *TTLCache[K, V] {
	c := &TTLCache[K, V]{
		entries:     make(map[K]entry[V]),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.evictExpired()
			case <-c.stopCleanup:
				return
			}
		}
	}()

	return c
}

// Get, (value, true) döner — key yoksa veya süresi dolmuşsa (zero, false).
// Süresi dolan entry burada SİLİNMEZ: Get RLock ile hızlı kalır,
// silme cleanup'ın işidir.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set, değeri TTL ile yazar. Var olan key'in süresi baştan başlar.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Len, map'teki entry sayısını döner (süresi dolmuşlar dahil).
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Close, cleanup goroutine'ini durdurur. Cache artık kullanılmayacaksa
// çağrılmalıdır (goroutine leak önleme).
func (c *TTLCache[K, V]) Close() {
	close(c.stopCleanup)
}

func (c *TTLCache[K, V]) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
