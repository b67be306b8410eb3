package core

import "time"

// Category 是商品的三级类目（master / sub / articleType）。
// 三个字段均可为空：空字段不构成类目约束（见 rules 包的硬过滤规则）。
type Category struct {
	Master  string `json:"master_category,omitempty"`
	Sub     string `json:"sub_category,omitempty"`
	Article string `json:"article_type,omitempty"`
}

// Empty 判断类目是否完全为空。
func (c Category) Empty() bool {
	return c.Master == "" && c.Sub == "" && c.Article == ""
}

// CatalogItem 是商品目录中的一条商品快照。
// 由目录服务（Catalog 接口）提供，引擎只读不写；类目/价格等松散字段
// 在目录适配层归一化一次，引擎内部不再做 ad-hoc 解析。
type CatalogItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	Price     float64   `json:"price"`
	Brand     string    `json:"brand"`
	Gender    string    `json:"gender"`
	Usage     string    `json:"usage"`
	Images    []string  `json:"images"`
	CreatedAt time.Time `json:"created_at"`
}

// FirstImage 返回商品的首张图片定位符；没有图片时返回空串。
// 离线建库与在线查询均以首图为准（与建库流程保持一致）。
func (it *CatalogItem) FirstImage() string {
	if it == nil || len(it.Images) == 0 {
		return ""
	}
	return it.Images[0]
}

// ScoredCandidate 是推荐链路中的候选承载结构：商品 + 原始相似度 + 调整后分数。
// BaseScore 为向量内积（[-1,1]）；Score 为业务规则调整后的分数，始终落在 [0,1]。
// 请求级瞬态对象，不跨请求复用。
type ScoredCandidate struct {
	Item      *CatalogItem `json:"item"`
	BaseScore float64      `json:"base_similarity"`
	Score     float64      `json:"score"`
}

// NewCandidate 以原始相似度初始化候选，调整分数起始等于原始分数。
func NewCandidate(item *CatalogItem, sim float64) *ScoredCandidate {
	return &ScoredCandidate{Item: item, BaseScore: sim, Score: sim}
}
