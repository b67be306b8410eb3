package rules

import (
	"context"

	"github.com/rushteam/simkit/core"
)

// Filter 是附加硬过滤器的抽象接口，用于判断一个候选是否应该被剔除。
// 返回 true 表示剔除，false 表示保留。
//
// 过滤器出错时 Scorer 保留候选并记录日志：业务规则的失败
// 不应导致整个推荐请求失败。
type Filter interface {
	// Name 返回过滤器名称（用于日志/观测）
	Name() string

	// ShouldFilter 判断候选是否应该被剔除
	ShouldFilter(ctx context.Context, target *core.CatalogItem, cand *core.ScoredCandidate) (bool, error)
}

// FilterFunc 把函数适配为 Filter。
type FilterFunc struct {
	FilterName string
	Fn         func(ctx context.Context, target *core.CatalogItem, cand *core.ScoredCandidate) (bool, error)
}

func (f *FilterFunc) Name() string { return f.FilterName }

func (f *FilterFunc) ShouldFilter(ctx context.Context, target *core.CatalogItem, cand *core.ScoredCandidate) (bool, error) {
	return f.Fn(ctx, target, cand)
}
