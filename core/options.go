package core

// QueryOptions 是单次推荐请求的业务规则参数。
// 零值不可直接使用，应从 DefaultOptions() 出发按需覆盖。
type QueryOptions struct {
	// PriceTolerance 价格容差（比例）：候选价格落在
	// [target*(1-t), target*(1+t)] 内加分，否则小幅减分。>= 0。
	PriceTolerance float64 `yaml:"price_tolerance" json:"price_tolerance"`

	// FilterGender 是否启用性别软约束
	FilterGender bool `yaml:"filter_gender" json:"filter_gender"`

	// FilterUsage 是否启用用途软约束
	FilterUsage bool `yaml:"filter_usage" json:"filter_usage"`

	// SameCategoryOnly 是否启用类目硬过滤（target 非空字段逐一比对）
	SameCategoryOnly bool `yaml:"same_category_only" json:"same_category_only"`

	// BrandBoost 同品牌加分幅度；<= 0 时不启用品牌加分
	BrandBoost float64 `yaml:"brand_boost" json:"brand_boost"`

	// MinSimilarity 调整分数阈值：低于该值的候选被丢弃
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity"`
}

// DefaultOptions 返回默认业务规则参数（线上商品详情页的默认档位）。
func DefaultOptions() QueryOptions {
	return QueryOptions{
		PriceTolerance:   0.5,
		FilterGender:     true,
		FilterUsage:      true,
		SameCategoryOnly: true,
		BrandBoost:       0.05,
		MinSimilarity:    0.6,
	}
}

// Relaxed 返回一份放宽后的参数：价格容差放宽到 1.0，关闭类目硬过滤。
// 用于首轮过滤清空候选后的一次性重试，其余参数保持不变。
func (o QueryOptions) Relaxed() QueryOptions {
	relaxed := o
	relaxed.PriceTolerance = 1.0
	relaxed.SameCategoryOnly = false
	return relaxed
}

// Method 标识一次响应的结果来源/质量档位。
type Method string

const (
	MethodIndex    Method = "exact-index" // 预建索引精确检索
	MethodOnTheFly Method = "on-the-fly"  // 无索引时的在线编码暴力检索
	MethodRelaxed  Method = "relaxed"     // 放宽约束后的一次重试结果
	MethodFallback Method = "fallback"    // 同类目按时间兜底
	MethodBaseline Method = "baseline"    // 无种子时的非个性化基线
	MethodEmpty    Method = "empty"       // 所有种子均无结果（非错误）
)

// RecommendResult 是引擎各入口的统一响应结构。
type RecommendResult struct {
	Items  []*ScoredCandidate `json:"items"`
	Method Method             `json:"method"`
	Target *CatalogItem       `json:"target,omitempty"`
}
