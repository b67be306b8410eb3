// Package rules 实现业务规则重排：类目硬过滤 + 价格/性别/用途/品牌软加减分。
package rules

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/rushteam/simkit/core"
)

// 中性档位：性别/用途的"万能"取值，与其它取值软兼容。
const (
	GenderNeutral = "Unisex"
	UsageDefault  = "Casual"
)

// 软加减分幅度。来自线上调参结果，顺序与幅度不可随意改动：
// 每一步加减分后立即夹到 [0,1]，与最后统一夹取不可交换。
const (
	priceBoost         = 0.10
	pricePenalty       = 0.05
	genderBoost        = 0.08
	genderNeutralBoost = 0.05
	genderPenalty      = 0.10
	usageBoost         = 0.08
	usageCasualBoost   = 0.03
	usagePenalty       = 0.08
)

// Scorer 对候选集应用业务规则：硬过滤 → 软打分 → 阈值 → 稳定排序。
// 除内置规则外可挂接自定义 Filter（CEL 表达式等），作为额外硬过滤。
type Scorer struct {
	Filters []Filter // 附加硬过滤器，任一命中即剔除候选

	logger *slog.Logger
}

// NewScorer 创建规则打分器。logger 为 nil 时使用 slog.Default()。
func NewScorer(logger *slog.Logger, filters ...Filter) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{Filters: filters, logger: logger}
}

// Apply 按 opts 对候选集做规则重排，返回新的有序候选列表（不修改输入）。
//
// 步骤：
//  1. 类目硬过滤（SameCategoryOnly）：target 非空的类目字段逐一比对，
//     target 字段为空则不构成约束（非对称：候选更具体不扣分）；
//     之后执行附加 Filter。
//  2. 软加减分，固定顺序 价格 → 性别 → 用途 → 品牌，每步立即夹到 [0,1]。
//  3. 丢弃调整分数低于 MinSimilarity 的候选。
//  4. 按调整分数降序稳定排序。
func (s *Scorer) Apply(ctx context.Context, target *core.CatalogItem, candidates []*core.ScoredCandidate, opts core.QueryOptions) []*core.ScoredCandidate {
	out := make([]*core.ScoredCandidate, 0, len(candidates))

	for _, cand := range candidates {
		if cand == nil || cand.Item == nil {
			continue
		}

		// Step 1: 硬过滤
		if opts.SameCategoryOnly && !core.CategoryConstraint(target.Category, cand.Item.Category) {
			continue
		}
		if s.vetoed(ctx, target, cand) {
			continue
		}

		// Step 2: 软打分（逐步夹取）
		scored := &core.ScoredCandidate{Item: cand.Item, BaseScore: cand.BaseScore, Score: cand.BaseScore}
		scored.Score = s.adjustPrice(scored.Score, target, cand.Item, opts)
		scored.Score = s.adjustGender(scored.Score, target, cand.Item, opts)
		scored.Score = s.adjustUsage(scored.Score, target, cand.Item, opts)
		scored.Score = s.adjustBrand(scored.Score, target, cand.Item, opts)

		// Step 3: 阈值
		if scored.Score < opts.MinSimilarity {
			s.logger.Debug("rules: candidate below threshold",
				"item_id", cand.Item.ID, "score", scored.Score,
				"min_similarity", opts.MinSimilarity, "stage", "threshold")
			continue
		}

		out = append(out, scored)
	}

	// Step 4: 稳定降序
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// vetoed 执行附加硬过滤器；过滤器出错时放行候选（规则失败不引发请求失败）。
func (s *Scorer) vetoed(ctx context.Context, target *core.CatalogItem, cand *core.ScoredCandidate) bool {
	for _, f := range s.Filters {
		drop, err := f.ShouldFilter(ctx, target, cand)
		if err != nil {
			s.logger.Warn("rules: filter error, candidate kept",
				"filter", f.Name(), "item_id", cand.Item.ID, "err", err)
			continue
		}
		if drop {
			s.logger.Debug("rules: candidate vetoed",
				"filter", f.Name(), "item_id", cand.Item.ID, "stage", "filter")
			return true
		}
	}
	return false
}

// adjustPrice 价格软约束：落在 ±tolerance 区间内 +0.10，区间外 −0.05。
// target 价格缺失（<= 0）时不做任何调整。
func (s *Scorer) adjustPrice(score float64, target, item *core.CatalogItem, opts core.QueryOptions) float64 {
	if target.Price <= 0 || item.Price <= 0 {
		return score
	}
	lo := target.Price * (1 - opts.PriceTolerance)
	hi := target.Price * (1 + opts.PriceTolerance)
	if item.Price >= lo && item.Price <= hi {
		return clamp01(score + priceBoost)
	}
	return clamp01(score - pricePenalty)
}

// adjustGender 性别软约束：完全一致 +0.08，任一侧为中性 +0.05，否则 −0.10。
func (s *Scorer) adjustGender(score float64, target, item *core.CatalogItem, opts core.QueryOptions) float64 {
	if !opts.FilterGender || target.Gender == "" {
		return score
	}
	switch {
	case item.Gender == target.Gender:
		return clamp01(score + genderBoost)
	case item.Gender == GenderNeutral || target.Gender == GenderNeutral:
		return clamp01(score + genderNeutralBoost)
	default:
		return clamp01(score - genderPenalty)
	}
}

// adjustUsage 用途软约束：完全一致 +0.08，任一侧为休闲档 +0.03，否则 −0.08。
func (s *Scorer) adjustUsage(score float64, target, item *core.CatalogItem, opts core.QueryOptions) float64 {
	if !opts.FilterUsage || target.Usage == "" {
		return score
	}
	switch {
	case item.Usage == target.Usage:
		return clamp01(score + usageBoost)
	case item.Usage == UsageDefault || target.Usage == UsageDefault:
		return clamp01(score + usageCasualBoost)
	default:
		return clamp01(score - usagePenalty)
	}
}

// adjustBrand 品牌加分：大小写不敏感相等时 +BrandBoost。
func (s *Scorer) adjustBrand(score float64, target, item *core.CatalogItem, opts core.QueryOptions) float64 {
	if opts.BrandBoost <= 0 || target.Brand == "" || item.Brand == "" {
		return score
	}
	if strings.EqualFold(item.Brand, target.Brand) {
		return clamp01(score + opts.BrandBoost)
	}
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
