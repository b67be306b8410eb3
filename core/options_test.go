package core

import "testing"

// TestDefaultOptions 测试查询参数默认值
func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.PriceTolerance != 0.5 {
		t.Errorf("PriceTolerance = %v，期望 0.5", opts.PriceTolerance)
	}
	if !opts.FilterGender || !opts.FilterUsage || !opts.SameCategoryOnly {
		t.Errorf("软硬过滤开关默认应全开，实际 %+v", opts)
	}
	if opts.BrandBoost != 0.05 {
		t.Errorf("BrandBoost = %v，期望 0.05", opts.BrandBoost)
	}
	if opts.MinSimilarity != 0.6 {
		t.Errorf("MinSimilarity = %v，期望 0.6", opts.MinSimilarity)
	}
}

// TestRelaxed 测试放宽重试的参数：容差放大到 1.0、关闭类目硬过滤，其余不动
func TestRelaxed(t *testing.T) {
	opts := DefaultOptions()
	relaxed := opts.Relaxed()

	if relaxed.PriceTolerance != 1.0 {
		t.Errorf("放宽后 PriceTolerance = %v，期望 1.0", relaxed.PriceTolerance)
	}
	if relaxed.SameCategoryOnly {
		t.Error("放宽后应关闭类目硬过滤")
	}
	if relaxed.MinSimilarity != opts.MinSimilarity {
		t.Error("放宽不应改动 MinSimilarity")
	}
	if relaxed.FilterGender != opts.FilterGender || relaxed.FilterUsage != opts.FilterUsage {
		t.Error("放宽不应改动性别/用途开关")
	}
	// 原参数不被修改
	if !opts.SameCategoryOnly || opts.PriceTolerance != 0.5 {
		t.Error("Relaxed 不应修改原参数")
	}
}

// TestCategoryConstraint 测试类目约束的非对称语义
func TestCategoryConstraint(t *testing.T) {
	tests := []struct {
		name   string
		target Category
		item   Category
		want   bool
	}{
		{"双空", Category{}, Category{}, true},
		{"target 空不约束", Category{}, Category{Master: "Apparel"}, true},
		{"逐级一致", Category{Master: "A", Sub: "B", Article: "C"}, Category{Master: "A", Sub: "B", Article: "C"}, true},
		{"target 仅主类目", Category{Master: "A"}, Category{Master: "A", Sub: "B"}, true},
		{"候选缺次级类目", Category{Master: "A", Sub: "B"}, Category{Master: "A"}, false},
		{"款式不同", Category{Master: "A", Sub: "B", Article: "C"}, Category{Master: "A", Sub: "B", Article: "D"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryConstraint(tt.target, tt.item); got != tt.want {
				t.Errorf("CategoryConstraint = %v，期望 %v", got, tt.want)
			}
		})
	}
}

// TestFirstImage 测试首图提取
func TestFirstImage(t *testing.T) {
	if (&CatalogItem{}).FirstImage() != "" {
		t.Error("无图商品 FirstImage 应为空串")
	}
	it := &CatalogItem{Images: []string{"a.jpg", "b.jpg"}}
	if it.FirstImage() != "a.jpg" {
		t.Errorf("FirstImage = %s，期望 a.jpg", it.FirstImage())
	}
}
