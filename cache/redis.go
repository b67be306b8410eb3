package cache

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/simkit/core"
)

// RedisCache 是 Redis 实现的向量缓存，多实例部署时共享编码结果。
// 旁路缓存（cache-aside）：未命中时本进程计算并回填。
//
// 注意：singleflight 只合并本进程内的并发未命中；
// 跨进程的重复计算由 Redis 回填的时间窗自然收敛，不做分布式锁。
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	group singleflight.Group
}

// NewRedisCache 创建 Redis 向量缓存并校验连通性。
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client, prefix: "simkit:emb:", ttl: ttl}, nil
}

// GetOrCompute 实现 core.EmbeddingCache 接口。
func (c *RedisCache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]float32, error)) ([]float32, error) {
	full := c.prefix + key

	if data, err := c.client.Get(ctx, full).Bytes(); err == nil {
		if vec, ok := decodeVector(data); ok {
			return vec, nil
		}
		// 编码损坏的条目当作未命中，重算覆盖
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if data, err := c.client.Get(ctx, full).Bytes(); err == nil {
			if vec, ok := decodeVector(data); ok {
				return vec, nil
			}
		}
		vec, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		// 回填失败只影响下次命中率，不影响本次结果
		c.client.Set(ctx, full, encodeVector(vec), c.ttl)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Len 实现 core.EmbeddingCache 接口。Redis 后端不维护精确条目数，返回 -1。
func (c *RedisCache) Len() int { return -1 }

// Close 关闭 Redis 连接。
func (c *RedisCache) Close() error { return c.client.Close() }

// encodeVector 把向量编码为小端 float32 字节串（4 字节/维）。
func encodeVector(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// decodeVector 解码小端 float32 字节串；长度不是 4 的倍数视为损坏。
func decodeVector(data []byte) ([]float32, bool) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, true
}

var _ core.EmbeddingCache = (*RedisCache)(nil)
var _ core.EmbeddingCache = (*MemoryCache)(nil)
