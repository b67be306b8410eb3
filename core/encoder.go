package core

import "context"

// Encoder 是向量编码服务的领域接口。
//
// 编码服务把图片/文本映射到与离线建库相同的共享向量空间，
// 返回的向量必须已经 L2 归一化（引擎在查询期不再做归一化）。
//
// 错误约定（均为 DomainError）：
//   - ENCODE_FAILED：取图失败 / 图片解码失败
//   - UNAVAILABLE：模型服务不可用
//   - TIMEOUT：调用超时
//
// 实现：
//   - encoder.HTTPEncoder 实现此接口（REST 编码服务）
//   - 测试中使用本地 stub 实现
type Encoder interface {
	// EncodeImage 对图片定位符（URL/路径）编码
	EncodeImage(ctx context.Context, locator string) ([]float32, error)

	// EncodeText 对文本查询编码
	EncodeText(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingCache 是进程级向量缓存的领域接口，key 为商品 ID。
//
// 并发约定：同一 key 的并发未命中必须合并为一次计算
// （at-most-once-compute-per-key），不允许裸共享 map。
//
// 实现：
//   - cache.MemoryCache（singleflight 合并 + TTL）
//   - cache.RedisCache（跨进程共享，Redis 旁路缓存）
type EmbeddingCache interface {
	// GetOrCompute 返回缓存向量；未命中时调用 compute 并回填。
	// 并发未命中同一 key 时只执行一次 compute，其余调用共享结果。
	GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]float32, error)) ([]float32, error)

	// Len 返回当前缓存条目数（用于 Stats）
	Len() int
}
