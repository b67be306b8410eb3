// Package engine 实现混合相似推荐引擎：
// 解析查询向量 → 精确检索 → 身份对账 → 业务规则打分 →（清空时一次放宽重试）→
// 排序 →（仍为空时同类目按时间兜底）→ 响应。
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rushteam/simkit/core"
	"github.com/rushteam/simkit/index"
	"github.com/rushteam/simkit/reconcile"
	"github.com/rushteam/simkit/rules"
	"github.com/rushteam/simkit/store"
)

// 兜底结果的名义分数：不代表相似度，只表示"同类目的新品"。
const fallbackScore = 0.5

// 批量推荐默认用更严的相似度门槛，压低批量场景的噪声结果。
const batchMinSimilarity = 0.65

// Engine 是推荐请求的编排器。
// 向量库与索引启动时构建、之后只读；目录与编码服务是外部协作方，
// 每次调用独立限时，单个慢调用不会拖垮其它请求。
type Engine struct {
	store      *store.VectorStore
	index      *index.FlatIP
	catalog    core.Catalog
	encoder    core.Encoder
	cache      core.EmbeddingCache
	scorer     *rules.Scorer
	reconciler *reconcile.Reconciler
	logger     *slog.Logger

	candidateK        int           // 每次检索的候选行数（与 limit 解耦）
	catalogTimeout    time.Duration // 目录调用限时
	encodeTimeout     time.Duration // 编码调用限时
	preFilterCategory bool          // 类目预过滤优化（不改变最终结果集）

	// 对账观测计数（进程累计）
	reconcileRequested atomic.Int64
	reconcileResolved  atomic.Int64
}

// Option 是 Engine 的配置选项。
type Option func(*Engine)

// WithStore 挂载预建向量库；索引在其上构建。不挂载时引擎以在线编码模式运行。
func WithStore(s *store.VectorStore) Option {
	return func(e *Engine) {
		e.store = s
		e.index = index.NewFlatIP(s)
	}
}

// WithCache 挂载向量缓存（在线编码结果按商品 ID 复用）。
func WithCache(c core.EmbeddingCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithLogger 设置日志器。
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithScorer 替换默认规则打分器（挂接 CEL 过滤器等场景）。
func WithScorer(s *rules.Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithCandidateK 设置检索候选行数，默认 50。
func WithCandidateK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.candidateK = k
		}
	}
}

// WithCatalogTimeout 设置目录调用限时，默认 3s。
func WithCatalogTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.catalogTimeout = d
		}
	}
}

// WithEncodeTimeout 设置编码调用限时，默认 10s。
func WithEncodeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.encodeTimeout = d
		}
	}
}

// WithCategoryPreFilter 启用类目预过滤优化：SameCategoryOnly 时先按类目
// 收窄对账池，减少模糊匹配扫描量。语义上与先对账后过滤等价
// （放宽重试会重新取全量池），只是性能优化。
func WithCategoryPreFilter(enabled bool) Option {
	return func(e *Engine) { e.preFilterCategory = enabled }
}

// New 创建推荐引擎。catalog 必填；encoder 可为 nil（纯索引模式，
// 库外商品无法在线补向量）。
func New(catalog core.Catalog, encoder core.Encoder, opts ...Option) *Engine {
	e := &Engine{
		catalog:        catalog,
		encoder:        encoder,
		candidateK:     50,
		catalogTimeout: 3 * time.Second,
		encodeTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.scorer == nil {
		e.scorer = rules.NewScorer(e.logger)
	}
	if e.store != nil {
		e.reconciler = reconcile.New(e.store, e.logger)
	}
	return e
}

// GetSimilar 返回与目标商品最相似的商品。
// 仅当目标在目录中完全不存在时返回 NOT_FOUND；
// 业务质量意义上的空结果走放宽重试与兜底，不是错误。
func (e *Engine) GetSimilar(ctx context.Context, targetID string, limit int, opts core.QueryOptions) (*core.RecommendResult, error) {
	if limit <= 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "limit must be positive")
	}

	target, err := e.getTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	queryVec := e.resolveQueryVector(ctx, target)

	res, err := e.run(ctx, target, queryVec, limit, opts)
	if err != nil {
		return nil, err
	}
	res.Target = target
	return res, nil
}

// SearchByVector 以外部给定的查询向量走同一条链路（跳过查询侧身份解析）。
// 向量必须已归一化且维度与索引一致。
func (e *Engine) SearchByVector(ctx context.Context, query []float32, limit int, opts core.QueryOptions) (*core.RecommendResult, error) {
	if limit <= 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "limit must be positive")
	}
	if len(query) == 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "empty query vector")
	}
	if e.index != nil && len(query) != e.store.Dim() {
		return nil, core.NewDomainError(core.ModuleIndex, core.ErrorCodeDimensionMismatch, "query dimension mismatch")
	}

	// 无目标商品：软规则因 target 字段为空而全部旁路，只剩阈值与排序
	return e.run(ctx, &core.CatalogItem{}, query, limit, opts)
}

// SearchByImage 对图片定位符检索：优先复用库内向量，否则在线编码。
func (e *Engine) SearchByImage(ctx context.Context, imageLocator string, limit int, opts core.QueryOptions) (*core.RecommendResult, error) {
	if limit <= 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "limit must be positive")
	}

	var query []float32
	if e.store != nil {
		if row, err := e.store.RowForLocator(imageLocator); err == nil {
			query = e.store.VectorAt(row)
		}
	}
	if query == nil {
		if e.encoder == nil {
			return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable, "no encoder configured")
		}
		vec, err := e.encodeImage(ctx, imageLocator)
		if err != nil {
			return nil, err
		}
		query = vec
	}

	return e.run(ctx, &core.CatalogItem{}, query, limit, opts)
}

// SearchByText 对文本查询检索（"白色连衣裙"等）：编码后走向量链路。
func (e *Engine) SearchByText(ctx context.Context, query string, limit int, opts core.QueryOptions) (*core.RecommendResult, error) {
	if limit <= 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "limit must be positive")
	}
	if e.encoder == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable, "no encoder configured")
	}

	ectx := ctx
	if e.encodeTimeout > 0 {
		var cancel context.CancelFunc
		ectx, cancel = context.WithTimeout(ctx, e.encodeTimeout)
		defer cancel()
	}
	vec, err := e.encoder.EncodeText(ectx, query)
	if err != nil {
		return nil, err
	}

	return e.run(ctx, &core.CatalogItem{}, vec, limit, opts)
}

// BatchSimilar 为多个商品各取一份相似推荐（首页"猜你喜欢"等场景）。
// 目标数上限 10，单个失败跳过不影响其余；相似度门槛默认收紧到 0.65。
func (e *Engine) BatchSimilar(ctx context.Context, targetIDs []string, limit int, opts core.QueryOptions) (map[string]*core.RecommendResult, error) {
	if len(targetIDs) == 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "empty target ids")
	}
	if len(targetIDs) > 10 {
		targetIDs = targetIDs[:10]
	}
	// 调用方未显式定制阈值时套用批量默认，显式给定的阈值照常尊重
	if opts.MinSimilarity == 0 || opts.MinSimilarity == core.DefaultOptions().MinSimilarity {
		opts.MinSimilarity = batchMinSimilarity
	}

	out := make(map[string]*core.RecommendResult, len(targetIDs))
	for _, id := range targetIDs {
		res, err := e.GetSimilar(ctx, id, limit, opts)
		if err != nil {
			e.logger.Warn("engine: batch target skipped",
				"item_id", id, "stage", "batch", "err", err)
			continue
		}
		out[id] = res
	}
	return out, nil
}

// run 是各入口共用的链路：检索 → 对账 → 打分 →（放宽重试）→ 兜底。
func (e *Engine) run(ctx context.Context, target *core.CatalogItem, queryVec []float32, limit int, opts core.QueryOptions) (*core.RecommendResult, error) {
	var (
		candidates []*core.ScoredCandidate
		method     core.Method
		pool       *reconcile.Pool
	)

	switch {
	case queryVec != nil && e.index != nil:
		var err error
		candidates, pool, err = e.searchIndex(ctx, target, queryVec, opts)
		if err != nil {
			return nil, err
		}
		method = core.MethodIndex
	case queryVec != nil && e.encoder != nil:
		candidates = e.searchOnTheFly(ctx, target, queryVec, opts)
		method = core.MethodOnTheFly
	default:
		// 查询向量不可得：直接走兜底
		e.logger.Warn("engine: no query vector, falling back",
			"target_id", target.ID, "stage", "resolve")
	}

	ranked := e.scorer.Apply(ctx, target, candidates, opts)

	// 过滤清空候选时放宽约束重试一次（价格容差 1.0，关闭类目硬过滤）。
	// 预过滤收窄过对账池的话，先对全量在售池重新对账再决定重试还是兜底：
	// 收窄可能把候选直接清零，此时严格候选为空不代表放宽后也为空。
	if len(ranked) == 0 {
		retry := candidates
		if pool != nil && e.preFilterCategory && opts.SameCategoryOnly {
			retry = e.reReconcileFullPool(ctx, target, queryVec)
		}
		if len(retry) > 0 {
			ranked = e.scorer.Apply(ctx, target, retry, opts.Relaxed())
			if len(ranked) > 0 {
				method = core.MethodRelaxed
				e.logger.Info("engine: constraints relaxed",
					"target_id", target.ID, "results", len(ranked), "stage", "relax")
			}
		}
	}

	// 仍为空：同类目按上架时间兜底，名义分数 0.5
	if len(ranked) == 0 {
		ranked = e.fallbackItems(ctx, target, limit)
		method = core.MethodFallback
		e.logger.Info("engine: fallback results",
			"target_id", target.ID, "results", len(ranked), "stage", "fallback")
	}

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return &core.RecommendResult{Items: ranked, Method: method}, nil
}

// searchIndex 精确检索 + 身份对账，返回排除 target 自身后的候选。
func (e *Engine) searchIndex(ctx context.Context, target *core.CatalogItem, queryVec []float32, opts core.QueryOptions) ([]*core.ScoredCandidate, *reconcile.Pool, error) {
	results, err := e.index.Search(queryVec, e.candidateK)
	if err != nil {
		return nil, nil, err
	}

	var filter *core.Category
	if e.preFilterCategory && opts.SameCategoryOnly && !target.Category.Empty() {
		filter = &target.Category
	}
	items, err := e.listActive(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	pool := reconcile.NewPool(items)

	candidates, stats := e.reconciler.Resolve(results, pool)
	e.reconcileRequested.Add(int64(stats.Requested))
	e.reconcileResolved.Add(int64(stats.Resolved))
	e.logger.Debug("engine: reconcile done",
		"requested", stats.Requested, "resolved", stats.Resolved,
		"ratio", stats.Ratio(), "by_id", stats.ByID,
		"by_locator", stats.ByLocator, "by_normalized", stats.ByNormalized)

	return excludeTarget(candidates, target.ID), pool, nil
}

// reReconcileFullPool 放宽重试前用全量在售池重新检索对账。
func (e *Engine) reReconcileFullPool(ctx context.Context, target *core.CatalogItem, queryVec []float32) []*core.ScoredCandidate {
	results, err := e.index.Search(queryVec, e.candidateK)
	if err != nil {
		return nil
	}
	items, err := e.listActive(ctx, nil)
	if err != nil {
		return nil
	}
	candidates, stats := e.reconciler.Resolve(results, reconcile.NewPool(items))
	e.reconcileRequested.Add(int64(stats.Requested))
	e.reconcileResolved.Add(int64(stats.Resolved))
	return excludeTarget(candidates, target.ID)
}

// searchOnTheFly 无预建索引时的暴力检索：逐个在线编码候选商品并算内积。
// 编码结果经缓存复用；单个商品编码失败只丢弃该候选。
func (e *Engine) searchOnTheFly(ctx context.Context, target *core.CatalogItem, queryVec []float32, opts core.QueryOptions) []*core.ScoredCandidate {
	var filter *core.Category
	if opts.SameCategoryOnly && !target.Category.Empty() {
		filter = &target.Category
	}
	items, err := e.listActive(ctx, filter)
	if err != nil {
		e.logger.Warn("engine: on-the-fly list failed", "stage", "on-the-fly", "err", err)
		return nil
	}

	out := make([]*core.ScoredCandidate, 0, len(items))
	for _, it := range items {
		if it.ID == target.ID {
			continue
		}
		vec, err := e.itemVector(ctx, it)
		if err != nil {
			e.logger.Debug("engine: candidate skipped, encode failed",
				"item_id", it.ID, "stage", "on-the-fly", "err", err)
			continue
		}
		if len(vec) != len(queryVec) {
			continue
		}
		out = append(out, core.NewCandidate(it, dot32(queryVec, vec)))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].BaseScore > out[j].BaseScore })
	if len(out) > e.candidateK {
		out = out[:e.candidateK]
	}
	return out
}

// fallbackItems 同类目商品按上架时间降序，名义分数 0.5。
// target 类目为空时退化为全目录新品。
func (e *Engine) fallbackItems(ctx context.Context, target *core.CatalogItem, limit int) []*core.ScoredCandidate {
	var filter *core.Category
	if !target.Category.Empty() {
		filter = &target.Category
	}
	items, err := e.listActive(ctx, filter)
	if err != nil {
		e.logger.Warn("engine: fallback list failed", "stage", "fallback", "err", err)
		return nil
	}

	kept := make([]*core.CatalogItem, 0, len(items))
	for _, it := range items {
		if it.ID != target.ID {
			kept = append(kept, it)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].CreatedAt.After(kept[j].CreatedAt)
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}

	out := make([]*core.ScoredCandidate, len(kept))
	for i, it := range kept {
		out[i] = &core.ScoredCandidate{Item: it, BaseScore: fallbackScore, Score: fallbackScore}
	}
	return out
}

// resolveQueryVector 解析目标商品的查询向量：
// 库内 ID 命中 → 库内定位符命中 → 在线编码（经缓存）。
// 全部失败返回 nil，由调用链路走兜底。
func (e *Engine) resolveQueryVector(ctx context.Context, target *core.CatalogItem) []float32 {
	if e.store != nil {
		if row, err := e.store.RowForID(target.ID); err == nil {
			return e.store.VectorAt(row)
		}
		if img := target.FirstImage(); img != "" {
			if row, err := e.store.RowForLocator(img); err == nil {
				return e.store.VectorAt(row)
			}
		}
	}

	// 目标不在向量库：在线补编码（库外新品场景）
	vec, err := e.itemVector(ctx, target)
	if err != nil {
		e.logger.Warn("engine: target vector unavailable",
			"target_id", target.ID, "stage", "resolve", "err", err)
		return nil
	}
	return vec
}

// itemVector 取商品首图的向量，编码结果按商品 ID 走缓存。
func (e *Engine) itemVector(ctx context.Context, item *core.CatalogItem) ([]float32, error) {
	if e.encoder == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable, "no encoder configured")
	}
	img := item.FirstImage()
	if img == "" {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeEncodeFailed, "item has no image: "+item.ID)
	}
	if e.cache == nil {
		return e.encodeImage(ctx, img)
	}
	return e.cache.GetOrCompute(ctx, item.ID, func(ctx context.Context) ([]float32, error) {
		return e.encodeImage(ctx, img)
	})
}

func (e *Engine) encodeImage(ctx context.Context, img string) ([]float32, error) {
	if e.encodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.encodeTimeout)
		defer cancel()
	}
	return e.encoder.EncodeImage(ctx, img)
}

// getTarget 查目标商品；目录完全没有该商品时返回 NOT_FOUND。
func (e *Engine) getTarget(ctx context.Context, id string) (*core.CatalogItem, error) {
	if e.catalogTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.catalogTimeout)
		defer cancel()
	}
	return e.catalog.GetByID(ctx, id)
}

func (e *Engine) listActive(ctx context.Context, filter *core.Category) ([]*core.CatalogItem, error) {
	if e.catalogTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.catalogTimeout)
		defer cancel()
	}
	return e.catalog.ListActive(ctx, filter)
}

func excludeTarget(candidates []*core.ScoredCandidate, targetID string) []*core.ScoredCandidate {
	if targetID == "" {
		return candidates
	}
	out := candidates[:0:0]
	for _, c := range candidates {
		if c.Item.ID != targetID {
			out = append(out, c)
		}
	}
	return out
}

func dot32(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
