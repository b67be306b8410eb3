// Package cache 提供进程级向量缓存：按商品 ID 缓存在线编码出的向量，
// 并发未命中同一 key 时合并为一次计算。
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// MemoryCache 是内存实现的向量缓存，带 TTL 与容量上限。
//
// 特点：
//   - singleflight 合并并发未命中：同一 key 的 compute 至多执行一次
//   - 后台协程定期清理过期条目
//   - 超出容量时按访问时间淘汰最久未用的条目
type MemoryCache struct {
	mu              sync.RWMutex
	entries         map[string]*cacheEntry
	maxSize         int
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	cleanupTicker   *time.Ticker
	stopCleanup     chan struct{}
	stopOnce        sync.Once

	group singleflight.Group
}

type cacheEntry struct {
	vector     []float32
	expireTime time.Time
	accessTime time.Time
}

// NewMemoryCache 创建内存向量缓存。
// maxSize <= 0 表示不限容量；ttl <= 0 表示条目永不过期。
func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries:         make(map[string]*cacheEntry),
		maxSize:         maxSize,
		defaultTTL:      ttl,
		cleanupInterval: 1 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	// 启动清理协程
	c.cleanupTicker = time.NewTicker(c.cleanupInterval)
	go c.cleanup()

	return c
}

// GetOrCompute 实现 core.EmbeddingCache 接口。
func (c *MemoryCache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]float32, error)) ([]float32, error) {
	if vec, ok := c.get(key); ok {
		return vec, nil
	}

	// singleflight：并发未命中同一 key 时只有首个调用执行 compute，
	// 其余调用阻塞等待并共享同一份结果/错误。
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// double-check：排队期间可能已被首个调用回填
		if vec, ok := c.get(key); ok {
			return vec, nil
		}
		vec, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.set(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Len 实现 core.EmbeddingCache 接口。
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close 停止清理协程并清空缓存。
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() {
		c.cleanupTicker.Stop()
		close(c.stopCleanup)
	})
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expireTime.IsZero() && time.Now().After(e.expireTime) {
		delete(c.entries, key)
		return nil, false
	}
	e.accessTime = time.Now()
	return e.vector, true
}

func (c *MemoryCache) set(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	e := &cacheEntry{vector: vec, accessTime: time.Now()}
	if c.defaultTTL > 0 {
		e.expireTime = time.Now().Add(c.defaultTTL)
	}
	c.entries[key] = e
}

// evictOldest 淘汰访问时间最早的条目。调用方必须持有写锁。
func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.accessTime.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.accessTime
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *MemoryCache) cleanup() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.cleanExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCache) cleanExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if !e.expireTime.IsZero() && now.After(e.expireTime) {
			delete(c.entries, k)
		}
	}
}
