package core

import "context"

// Catalog 是商品目录的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（catalog）实现
//   - 遵循依赖倒置原则：领域层定义接口，基础设施层实现接口
//   - 目录返回的是最终一致的快照，与向量库之间不保证事务一致
//
// 实现：
//   - catalog.MemoryCatalog 实现此接口（测试/开发/原型）
//   - catalog.FeastCatalog 实现此接口（Feast 在线特征库）
//   - 其他目录后端（MongoDB、MySQL、商品中台 RPC 等）也可以实现此接口
type Catalog interface {
	// GetByID 按商品 ID 查询；不存在时返回 NOT_FOUND
	GetByID(ctx context.Context, id string) (*CatalogItem, error)

	// ListActive 列出全部在售商品；filter 非 nil 时按类目收窄（仅作为优化，
	// 语义上等价于取全量后再过滤）
	ListActive(ctx context.Context, filter *Category) ([]*CatalogItem, error)
}

// CategoryConstraint 判断 item 是否满足 target 类目约束。
// 非对称规则：target 的空字段不构成约束；candidate 比 target 更具体不扣分。
// 目录实现与规则层共用这一份判定，保证预过滤与后过滤结果一致。
func CategoryConstraint(target, item Category) bool {
	if target.Master != "" && item.Master != target.Master {
		return false
	}
	if target.Sub != "" && item.Sub != target.Sub {
		return false
	}
	if target.Article != "" && item.Article != target.Article {
		return false
	}
	return true
}
