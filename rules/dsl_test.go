package rules

import (
	"context"
	"testing"

	"github.com/rushteam/simkit/core"
)

// TestCELFilter 测试 CEL 表达式过滤器的判定
func TestCELFilter(t *testing.T) {
	target := &core.CatalogItem{ID: "t", Price: 100, Brand: "Acme"}

	tests := []struct {
		name string
		expr string
		item *core.CatalogItem
		sim  float64
		drop bool
	}{
		{
			name: "价格超目标三倍剔除",
			expr: `item.price > target.price * 3.0`,
			item: &core.CatalogItem{ID: "a", Price: 350},
			sim:  0.9,
			drop: true,
		},
		{
			name: "价格未超三倍保留",
			expr: `item.price > target.price * 3.0`,
			item: &core.CatalogItem{ID: "b", Price: 250},
			sim:  0.9,
			drop: false,
		},
		{
			name: "无品牌低分剔除",
			expr: `item.brand == "" && item.base_similarity < 0.7`,
			item: &core.CatalogItem{ID: "c"},
			sim:  0.5,
			drop: true,
		},
		{
			name: "类目字段可访问",
			expr: `item.master_category == "Footwear"`,
			item: &core.CatalogItem{ID: "d", Category: core.Category{Master: "Footwear"}},
			sim:  0.9,
			drop: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewCELFilter(tt.expr)
			if err != nil {
				t.Fatalf("编译表达式失败: %v", err)
			}
			got, err := f.ShouldFilter(context.Background(), target, core.NewCandidate(tt.item, tt.sim))
			if err != nil {
				t.Fatalf("执行表达式失败: %v", err)
			}
			if got != tt.drop {
				t.Errorf("ShouldFilter = %v，期望 %v", got, tt.drop)
			}
		})
	}
}

// TestCELFilter_CompileError 测试非法表达式在创建期报错
func TestCELFilter_CompileError(t *testing.T) {
	if _, err := NewCELFilter(`item.price >`); err == nil {
		t.Error("非法表达式期望编译错误")
	}
}

// TestCELFilter_NonBoolean 测试非布尔结果返回错误（候选会被保留）
func TestCELFilter_NonBoolean(t *testing.T) {
	f, err := NewCELFilter(`item.price`)
	if err != nil {
		t.Fatalf("编译表达式失败: %v", err)
	}
	cand := core.NewCandidate(&core.CatalogItem{ID: "a", Price: 10}, 0.9)
	if _, err := f.ShouldFilter(context.Background(), nil, cand); err == nil {
		t.Error("非布尔结果期望返回错误")
	}
}
