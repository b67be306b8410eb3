package rules

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rushteam/simkit/core"
)

func apparel(id string, price float64, brand, gender, usage string) *core.CatalogItem {
	return &core.CatalogItem{
		ID:       id,
		Category: core.Category{Master: "Apparel", Sub: "Topwear", Article: "Tshirts"},
		Price:    price,
		Brand:    brand,
		Gender:   gender,
		Usage:    usage,
	}
}

// TestApply_FullBoost 测试全部软规则命中时的打分链
func TestApply_FullBoost(t *testing.T) {
	target := apparel("t", 90, "Acme", "Men", "Sports")
	cand := core.NewCandidate(apparel("c", 100, "acme", "Men", "Sports"), 0.70)

	s := NewScorer(nil)
	out := s.Apply(context.Background(), target, []*core.ScoredCandidate{cand}, core.DefaultOptions())

	if len(out) != 1 {
		t.Fatalf("期望 1 条结果，实际 %d", len(out))
	}
	// 0.70 +0.10（价格 100 在 90±50% 内）+0.08（性别一致）+0.08（用途一致）
	// +0.05（品牌大小写不敏感一致）= 1.01，夹到 1.0
	want := 1.0
	if math.Abs(out[0].Score-want) > 1e-9 {
		t.Errorf("调整分数 = %v，期望 %v", out[0].Score, want)
	}
	if out[0].BaseScore != 0.70 {
		t.Errorf("BaseScore 应保留原始相似度 0.70，实际 %v", out[0].BaseScore)
	}
}

// TestApply_PartialBoost 测试部分规则命中时的精确分数（无夹取）
func TestApply_PartialBoost(t *testing.T) {
	// target 用途为空，用途规则旁路
	target := apparel("t", 90, "Acme", "Men", "")
	cand := core.NewCandidate(apparel("c", 100, "Acme", "Men", "Casual"), 0.70)

	s := NewScorer(nil)
	out := s.Apply(context.Background(), target, []*core.ScoredCandidate{cand}, core.DefaultOptions())

	if len(out) != 1 {
		t.Fatalf("期望 1 条结果，实际 %d", len(out))
	}
	// 0.70 +0.10（价格）+0.08（性别）+0.05（品牌）= 0.93
	if math.Abs(out[0].Score-0.93) > 1e-9 {
		t.Errorf("调整分数 = %v，期望 0.93", out[0].Score)
	}
}

// TestApply_StepwiseClamp 测试逐步夹取：每步加减分后立即夹到 [0,1]，
// 与最后统一夹取结果不同
func TestApply_StepwiseClamp(t *testing.T) {
	target := apparel("t", 90, "", "Men", "Sports")
	// 价格区间外 −0.05、性别不合 −0.10 之后已经夹到 0，
	// 用途一致 +0.08 应从 0 起加而不是从负值起加
	cand := core.NewCandidate(apparel("c", 500, "", "Women", "Sports"), 0.10)

	opts := core.DefaultOptions()
	opts.MinSimilarity = 0

	s := NewScorer(nil)
	out := s.Apply(context.Background(), target, []*core.ScoredCandidate{cand}, opts)

	if len(out) != 1 {
		t.Fatalf("期望 1 条结果，实际 %d", len(out))
	}
	// 0.10 −0.05 = 0.05；0.05 −0.10 → 夹到 0；0 +0.08 = 0.08
	if math.Abs(out[0].Score-0.08) > 1e-9 {
		t.Errorf("逐步夹取后分数 = %v，期望 0.08", out[0].Score)
	}
}

// TestApply_CategoryAsymmetric 测试类目过滤的非对称语义：
// target 为空的类目字段不构成约束，候选为空/不同则被剔除
func TestApply_CategoryAsymmetric(t *testing.T) {
	opts := core.DefaultOptions()
	opts.MinSimilarity = 0

	tests := []struct {
		name   string
		target core.Category
		item   core.Category
		kept   bool
	}{
		{
			name:   "完全一致",
			target: core.Category{Master: "Apparel", Sub: "Topwear", Article: "Tshirts"},
			item:   core.Category{Master: "Apparel", Sub: "Topwear", Article: "Tshirts"},
			kept:   true,
		},
		{
			name:   "target 次级类目为空不约束",
			target: core.Category{Master: "Apparel"},
			item:   core.Category{Master: "Apparel", Sub: "Topwear", Article: "Tshirts"},
			kept:   true,
		},
		{
			name:   "候选次级类目为空被剔除",
			target: core.Category{Master: "Apparel", Sub: "Topwear"},
			item:   core.Category{Master: "Apparel"},
			kept:   false,
		},
		{
			name:   "主类目不同被剔除",
			target: core.Category{Master: "Apparel"},
			item:   core.Category{Master: "Footwear"},
			kept:   false,
		},
		{
			name:   "target 全空不约束",
			target: core.Category{},
			item:   core.Category{Master: "Footwear"},
			kept:   true,
		},
	}

	s := NewScorer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &core.CatalogItem{ID: "t", Category: tt.target}
			cand := core.NewCandidate(&core.CatalogItem{ID: "c", Category: tt.item}, 0.9)
			out := s.Apply(context.Background(), target, []*core.ScoredCandidate{cand}, opts)
			if got := len(out) == 1; got != tt.kept {
				t.Errorf("保留 = %v，期望 %v", got, tt.kept)
			}
		})
	}
}

// TestApply_Threshold 测试调整分数低于 MinSimilarity 的候选被丢弃
func TestApply_Threshold(t *testing.T) {
	target := apparel("t", 0, "", "", "")
	candidates := []*core.ScoredCandidate{
		core.NewCandidate(apparel("high", 0, "", "", ""), 0.85),
		core.NewCandidate(apparel("low", 0, "", "", ""), 0.30),
	}

	s := NewScorer(nil)
	out := s.Apply(context.Background(), target, candidates, core.DefaultOptions())

	if len(out) != 1 || out[0].Item.ID != "high" {
		t.Fatalf("期望仅保留 high，实际 %+v", out)
	}
}

// TestApply_StableOrder 测试同分候选保持输入顺序
func TestApply_StableOrder(t *testing.T) {
	target := apparel("t", 0, "", "", "")
	candidates := []*core.ScoredCandidate{
		core.NewCandidate(apparel("a", 0, "", "", ""), 0.8),
		core.NewCandidate(apparel("b", 0, "", "", ""), 0.8),
		core.NewCandidate(apparel("c", 0, "", "", ""), 0.9),
	}

	s := NewScorer(nil)
	out := s.Apply(context.Background(), target, candidates, core.DefaultOptions())

	wantIDs := []string{"c", "a", "b"}
	if len(out) != 3 {
		t.Fatalf("期望 3 条结果，实际 %d", len(out))
	}
	for i, c := range out {
		if c.Item.ID != wantIDs[i] {
			t.Errorf("第 %d 条 = %s，期望 %s", i, c.Item.ID, wantIDs[i])
		}
	}
}

// TestApply_InputNotMutated 测试 Apply 不修改输入候选
func TestApply_InputNotMutated(t *testing.T) {
	target := apparel("t", 90, "Acme", "Men", "Casual")
	cand := core.NewCandidate(apparel("c", 90, "Acme", "Men", "Casual"), 0.70)

	s := NewScorer(nil)
	s.Apply(context.Background(), target, []*core.ScoredCandidate{cand}, core.DefaultOptions())

	if cand.Score != 0.70 {
		t.Errorf("输入候选被修改：Score = %v，期望 0.70", cand.Score)
	}
}

// TestApply_FilterVetoAndError 测试附加过滤器：命中剔除、出错放行
func TestApply_FilterVetoAndError(t *testing.T) {
	target := apparel("t", 0, "", "", "")
	veto := &FilterFunc{
		FilterName: "veto-b",
		Fn: func(_ context.Context, _ *core.CatalogItem, cand *core.ScoredCandidate) (bool, error) {
			return cand.Item.ID == "b", nil
		},
	}
	broken := &FilterFunc{
		FilterName: "broken",
		Fn: func(_ context.Context, _ *core.CatalogItem, _ *core.ScoredCandidate) (bool, error) {
			return false, errors.New("boom")
		},
	}

	candidates := []*core.ScoredCandidate{
		core.NewCandidate(apparel("a", 0, "", "", ""), 0.9),
		core.NewCandidate(apparel("b", 0, "", "", ""), 0.9),
	}

	s := NewScorer(nil, veto, broken)
	out := s.Apply(context.Background(), target, candidates, core.DefaultOptions())

	if len(out) != 1 || out[0].Item.ID != "a" {
		t.Fatalf("期望 veto 剔除 b、broken 放行 a，实际 %+v", out)
	}
}
