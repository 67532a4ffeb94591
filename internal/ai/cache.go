package ai

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// ResponseCache はAI応答のTTL付きインメモリキャッシュ。
// 同一の質問とデータサマリーの組に対するAPI呼び出しを抑制する。
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	stopCh  chan struct{}
	stopped sync.Once
}

type cacheEntry struct {
	answer    string
	expiresAt time.Time
}

// NewResponseCache はResponseCacheを生成し、期限切れエントリの
// クリーンアップgoroutineを開始する。
func NewResponseCache(ttl time.Duration) *ResponseCache {
	c := &ResponseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// CacheKey はプロジェクト・質問・データサマリーからキャッシュキーを導出する。
func CacheKey(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get はキャッシュから応答を取得する。期限切れまたは未登録の場合はfalseを返す。
func (c *ResponseCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.answer, true
}

// Set は応答をキャッシュに登録する。
func (c *ResponseCache) Set(key, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		answer:    answer,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Len は登録されているエントリ数を返す。
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop はクリーンアップgoroutineを停止する。複数回呼んでも安全。
func (c *ResponseCache) Stop() {
	c.stopped.Do(func() {
		close(c.stopCh)
	})
}

func (c *ResponseCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup(time.Now())
		case <-c.stopCh:
			return
		}
	}
}

func (c *ResponseCache) cleanup(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
