// Package catalog 提供商品目录（core.Catalog）的基础设施实现。
package catalog

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"

	"github.com/rushteam/simkit/core"
)

// MemoryCatalog 是内存实现的商品目录，用于测试/开发/原型。
// ListActive 按写入顺序返回，保证结果确定性（基线推荐依赖这一点）。
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[string]*core.CatalogItem
	order []string
}

// NewMemoryCatalog 创建空目录。
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{items: make(map[string]*core.CatalogItem)}
}

// Put 写入或覆盖商品；新商品追加到顺序尾部。
func (c *MemoryCatalog) Put(items ...*core.CatalogItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range items {
		if it == nil || it.ID == "" {
			continue
		}
		if _, ok := c.items[it.ID]; !ok {
			c.order = append(c.order, it.ID)
		}
		c.items[it.ID] = it
	}
}

// GetByID 实现 core.Catalog 接口。
func (c *MemoryCatalog) GetByID(ctx context.Context, id string) (*core.CatalogItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if it, ok := c.items[id]; ok {
		return it, nil
	}
	return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeNotFound, "item not found: "+id)
}

// ListActive 实现 core.Catalog 接口。
func (c *MemoryCatalog) ListActive(ctx context.Context, filter *core.Category) ([]*core.CatalogItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*core.CatalogItem, 0, len(c.order))
	for _, id := range c.order {
		it := c.items[id]
		if filter != nil && !core.CategoryConstraint(*filter, it.Category) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// LoadItems 从 JSON 文件载入商品（测试夹具/演示数据）。
// 文件格式为 CatalogItem 数组。
func LoadItems(path string) ([]*core.CatalogItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	var items []*core.CatalogItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	return items, nil
}

var _ core.Catalog = (*MemoryCatalog)(nil)
