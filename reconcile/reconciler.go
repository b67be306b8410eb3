// Package reconcile 负责把向量库的检索行对账回在线商品目录。
//
// 向量库离线构建，目录在线演进，两者对同一商品的身份认知会漂移：
// 商品 ID 通常稳定，图片定位符会因重新上传/换托管而变化。
// 对账按固定顺序尝试多种身份策略，全部失败的行直接丢弃（不替补）。
package reconcile

import (
	"log/slog"

	"github.com/rushteam/simkit/core"
	"github.com/rushteam/simkit/index"
	"github.com/rushteam/simkit/pkg/locator"
	"github.com/rushteam/simkit/store"
)

// Reconciler 把 (行号, 分数) 结果映射为 (商品, 分数) 候选。
type Reconciler struct {
	store  *store.VectorStore
	logger *slog.Logger
}

// New 创建对账器。logger 为 nil 时使用 slog.Default()。
func New(s *store.VectorStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: s, logger: logger}
}

// Pool 是一次请求内的在线商品查找表，从目录快照构建。
// 同一请求内复用，避免对目录的重复往返。
type Pool struct {
	byID    map[string]*core.CatalogItem
	byImage map[string]*core.CatalogItem
	images  []string // 保持快照顺序，模糊匹配按序扫描保证确定性
}

// NewPool 从目录快照构建查找表。首图为空的商品只参与 ID 匹配。
func NewPool(items []*core.CatalogItem) *Pool {
	p := &Pool{
		byID:    make(map[string]*core.CatalogItem, len(items)),
		byImage: make(map[string]*core.CatalogItem, len(items)),
	}
	for _, it := range items {
		if it == nil || it.ID == "" {
			continue
		}
		if _, ok := p.byID[it.ID]; !ok {
			p.byID[it.ID] = it
		}
		if img := it.FirstImage(); img != "" {
			if _, ok := p.byImage[img]; !ok {
				p.byImage[img] = it
				p.images = append(p.images, img)
			}
		}
	}
	return p
}

// Len 返回查找表覆盖的商品数。
func (p *Pool) Len() int { return len(p.byID) }

// ItemByID 按 ID 直接取商品（供引擎排除 target 自身等场景使用）。
func (p *Pool) ItemByID(id string) (*core.CatalogItem, bool) {
	it, ok := p.byID[id]
	return it, ok
}

// Stats 是一次对账的可观测计数：请求行数、各策略命中数、丢弃数。
type Stats struct {
	Requested    int // 输入行数
	Resolved     int // 成功对账行数
	ByID         int // 策略 1：商品 ID 精确命中
	ByLocator    int // 策略 2：定位符精确命中
	ByNormalized int // 策略 3：归一化/包含启发式命中
	Dropped      int // 无法对账被丢弃的行
}

// Ratio 返回 resolved/requested，空输入返回 0。
func (s Stats) Ratio() float64 {
	if s.Requested == 0 {
		return 0
	}
	return float64(s.Resolved) / float64(s.Requested)
}

// Resolve 对检索结果逐行对账，返回候选列表与统计。
// 顺序与输入一致；无法对账的行被丢弃并记录日志，绝不中断整个请求。
func (r *Reconciler) Resolve(results []index.Result, pool *Pool) ([]*core.ScoredCandidate, Stats) {
	stats := Stats{Requested: len(results)}
	out := make([]*core.ScoredCandidate, 0, len(results))

	for _, res := range results {
		if res.Row < 0 || res.Row >= r.store.Len() {
			stats.Dropped++
			continue
		}

		item := r.resolveRow(res.Row, pool, &stats)
		if item == nil {
			stats.Dropped++
			r.logger.Debug("reconcile: row dropped, no live item",
				"row", res.Row,
				"indexed_id", r.store.IDAt(res.Row),
				"indexed_name", r.store.NameAt(res.Row),
				"stage", "reconcile")
			continue
		}
		stats.Resolved++
		out = append(out, core.NewCandidate(item, res.Score))
	}

	return out, stats
}

// resolveRow 按策略顺序对账单行，first success wins。
func (r *Reconciler) resolveRow(row int, pool *Pool, stats *Stats) *core.CatalogItem {
	// 策略 1：商品 ID 精确匹配（最可靠）
	if id := r.store.IDAt(row); id != "" {
		if item, ok := pool.byID[id]; ok {
			stats.ByID++
			return item
		}
	}

	loc := r.store.LocatorAt(row)
	if loc == "" {
		return nil
	}

	// 策略 2：定位符原文精确匹配
	if item, ok := pool.byImage[loc]; ok {
		stats.ByLocator++
		return item
	}

	// 策略 3：归一化定位符 / 双向包含。启发式可能误判，逐条记录以便审计。
	for _, img := range pool.images {
		if locator.Match(loc, img) {
			stats.ByNormalized++
			r.logger.Info("reconcile: fuzzy locator match",
				"indexed_locator", loc,
				"catalog_locator", img,
				"item_id", pool.byImage[img].ID)
			return pool.byImage[img]
		}
	}

	return nil
}
