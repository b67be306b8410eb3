package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/simkit/core"
)

// TestMemoryCatalog_PutAndGet 测试写入、覆盖与查询
func TestMemoryCatalog_PutAndGet(t *testing.T) {
	c := NewMemoryCatalog()
	c.Put(
		&core.CatalogItem{ID: "1", Name: "A"},
		&core.CatalogItem{ID: "2", Name: "B"},
	)
	c.Put(&core.CatalogItem{ID: "1", Name: "A2"}) // 覆盖

	ctx := context.Background()
	it, err := c.GetByID(ctx, "1")
	if err != nil || it.Name != "A2" {
		t.Errorf("GetByID(1) = (%+v, %v)，期望覆盖后的 A2", it, err)
	}
	if _, err := c.GetByID(ctx, "9"); !core.IsNotFound(err) {
		t.Errorf("未知 ID 期望 NOT_FOUND，实际 %v", err)
	}
}

// TestMemoryCatalog_ListOrder 测试 ListActive 按写入顺序返回（覆盖不变序）
func TestMemoryCatalog_ListOrder(t *testing.T) {
	c := NewMemoryCatalog()
	c.Put(
		&core.CatalogItem{ID: "b"},
		&core.CatalogItem{ID: "a"},
		&core.CatalogItem{ID: "c"},
	)
	c.Put(&core.CatalogItem{ID: "a", Name: "updated"})

	items, err := c.ListActive(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListActive 失败: %v", err)
	}
	wantIDs := []string{"b", "a", "c"}
	if len(items) != 3 {
		t.Fatalf("期望 3 条，实际 %d", len(items))
	}
	for i, it := range items {
		if it.ID != wantIDs[i] {
			t.Errorf("第 %d 条 = %s，期望 %s", i, it.ID, wantIDs[i])
		}
	}
}

// TestMemoryCatalog_ListFilter 测试类目收窄与非对称约束
func TestMemoryCatalog_ListFilter(t *testing.T) {
	c := NewMemoryCatalog()
	c.Put(
		&core.CatalogItem{ID: "1", Category: core.Category{Master: "Apparel", Sub: "Topwear"}},
		&core.CatalogItem{ID: "2", Category: core.Category{Master: "Apparel", Sub: "Bottomwear"}},
		&core.CatalogItem{ID: "3", Category: core.Category{Master: "Footwear"}},
	)

	items, err := c.ListActive(context.Background(), &core.Category{Master: "Apparel"})
	if err != nil {
		t.Fatalf("ListActive 失败: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("主类目收窄后期望 2 条，实际 %d", len(items))
	}

	items, _ = c.ListActive(context.Background(), &core.Category{Master: "Apparel", Sub: "Topwear"})
	if len(items) != 1 || items[0].ID != "1" {
		t.Errorf("次级类目收窄后期望仅 1，实际 %+v", items)
	}
}

// TestLoadItems 测试 JSON 清单载入
func TestLoadItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	data := `[
	  {"id":"1","name":"白 T 恤","category":{"master_category":"Apparel"},"price":99,"images":["/upload/v1/1.jpg"]},
	  {"id":"2","name":"牛仔裤","price":299}
	]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	items, err := LoadItems(path)
	if err != nil {
		t.Fatalf("载入失败: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("期望 2 条，实际 %d", len(items))
	}
	if items[0].Category.Master != "Apparel" || items[0].FirstImage() != "/upload/v1/1.jpg" {
		t.Errorf("首条解析 = %+v", items[0])
	}

	if _, err := LoadItems(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("缺失文件期望错误")
	}
}
