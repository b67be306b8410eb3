// Package personalize 基于用户近期交互的种子商品做个性化聚合召回：
// 对每个种子并发取相似候选，按目录商品取最大分合并，统一排序截断。
package personalize

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/simkit/core"
	"github.com/rushteam/simkit/engine"
)

// 种子数上限：交互历史只取最近的这些条。
const maxSeeds = 10

// Aggregator 把多个种子商品的相似召回合并成一份个性化列表。
type Aggregator struct {
	engine  *engine.Engine
	catalog core.Catalog
	logger  *slog.Logger

	seedTimeout time.Duration // 单个种子召回的限时
}

// Option 是 Aggregator 的配置选项。
type Option func(*Aggregator)

// WithSeedTimeout 设置单种子召回限时，默认 5s。
func WithSeedTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.seedTimeout = d
		}
	}
}

// WithLogger 设置日志器。
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// New 创建聚合器。catalog 用于无种子时的基线召回。
func New(eng *engine.Engine, catalog core.Catalog, opts ...Option) *Aggregator {
	a := &Aggregator{
		engine:      eng,
		catalog:     catalog,
		seedTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// seedResult 是单个种子的召回结果，携带种子序号保证合并顺序确定。
type seedResult struct {
	order  int
	method core.Method
	items  []*core.ScoredCandidate
}

// Retrieve 返回个性化推荐列表。
// 种子为空走基线召回（method=baseline）；种子全部失败或全部无候选时
// 返回空列表（method=empty），不报错。单个种子失败只跳过该种子。
func (a *Aggregator) Retrieve(ctx context.Context, seedIDs []string, limit int, opts core.QueryOptions) (*core.RecommendResult, error) {
	if limit <= 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "limit must be positive")
	}
	if len(seedIDs) == 0 {
		return a.baseline(ctx, limit)
	}
	if len(seedIDs) > maxSeeds {
		seedIDs = seedIDs[:maxSeeds]
	}

	// 跨种子召回要跨类目、不卡相似度阈值，合并后再统一裁剪
	seedOpts := opts
	seedOpts.SameCategoryOnly = false
	seedOpts.MinSimilarity = 0

	var (
		mu      sync.Mutex
		results []seedResult
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, seed := range seedIDs {
		i, seed := i, seed
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, a.seedTimeout)
			defer cancel()

			res, err := a.engine.GetSimilar(sctx, seed, limit, seedOpts)
			if err != nil {
				a.logger.Warn("personalize: seed skipped",
					"seed_id", seed, "stage", "fanout", "err", err)
				return nil
			}
			mu.Lock()
			results = append(results, seedResult{order: i, method: res.Method, items: res.Items})
			mu.Unlock()
			return nil
		})
	}
	// 种子失败都已吞掉，这里只会是 ctx 取消
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := a.merge(seedIDs, results, limit)
	if len(merged.Items) == 0 {
		merged.Method = core.MethodEmpty
	}
	return merged, nil
}

// merge 按目录商品取最大分合并（同一商品被多个种子召回时保留最高分），
// 排除种子自身，按分数降序、同分按 ID 稳定排序。
func (a *Aggregator) merge(seedIDs []string, results []seedResult, limit int) *core.RecommendResult {
	sort.Slice(results, func(i, j int) bool { return results[i].order < results[j].order })

	seeds := make(map[string]struct{}, len(seedIDs))
	for _, id := range seedIDs {
		seeds[id] = struct{}{}
	}

	best := make(map[string]*core.ScoredCandidate)
	method := core.MethodEmpty
	for _, r := range results {
		if method == core.MethodEmpty && len(r.items) > 0 {
			method = r.method
		}
		for _, c := range r.items {
			if _, isSeed := seeds[c.Item.ID]; isSeed {
				continue
			}
			if prev, ok := best[c.Item.ID]; !ok || c.Score > prev.Score {
				best[c.Item.ID] = c
			}
		}
	}

	out := make([]*core.ScoredCandidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Item.ID < out[j].Item.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return &core.RecommendResult{Items: out, Method: method}
}

// baseline 无交互历史时的兜底召回：目录序取前 limit 个，
// 合成分数单调递减，只表达展示顺序。
func (a *Aggregator) baseline(ctx context.Context, limit int) (*core.RecommendResult, error) {
	items, err := a.catalog.ListActive(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]*core.ScoredCandidate, len(items))
	for i, it := range items {
		score := 1.0 / float64(i+1)
		out[i] = &core.ScoredCandidate{Item: it, BaseScore: score, Score: score}
	}
	return &core.RecommendResult{Items: out, Method: core.MethodBaseline}, nil
}
