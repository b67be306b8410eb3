package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rushteam/simkit/core"
	"github.com/rushteam/simkit/store"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadFromYAML 测试 YAML 配置解析（含时长与默认参数）
func TestLoadFromYAML(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
snapshot: /data/emb.json
encoder:
  endpoint: http://enc:8501
  dim: 512
  timeout: 10s
cache:
  kind: memory
  max_size: 500
  ttl: 1h
engine:
  candidate_k: 80
  catalog_timeout: 3s
defaults:
  price_tolerance: 0.4
  filter_gender: true
  filter_usage: false
  same_category_only: true
  brand_boost: 0.05
  min_similarity: 0.65
rules:
  - 'item.price > target.price * 3.0'
`)

	cfg, err := LoadFromYAML(path)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if cfg.Snapshot != "/data/emb.json" || cfg.Encoder.Dim != 512 {
		t.Errorf("基础字段解析 = %+v", cfg)
	}
	if cfg.Encoder.Timeout.Std() != 10*time.Second || cfg.Cache.TTL.Std() != time.Hour {
		t.Errorf("时长解析 = %v / %v", cfg.Encoder.Timeout.Std(), cfg.Cache.TTL.Std())
	}
	if cfg.Engine.CandidateK != 80 {
		t.Errorf("candidate_k = %d，期望 80", cfg.Engine.CandidateK)
	}

	opts := cfg.Options()
	if opts.PriceTolerance != 0.4 || opts.FilterUsage || opts.MinSimilarity != 0.65 {
		t.Errorf("默认参数 = %+v", opts)
	}
	if len(cfg.Rules) != 1 {
		t.Errorf("规则数 = %d，期望 1", len(cfg.Rules))
	}
}

// TestOptions_Fallback 测试未配置 defaults 时回落到内置默认
func TestOptions_Fallback(t *testing.T) {
	var cfg Config
	if opts := cfg.Options(); opts != core.DefaultOptions() {
		t.Errorf("未配置 defaults 应返回内置默认，实际 %+v", opts)
	}
}

// TestDuration_Invalid 测试非法时长在解析期报错
func TestDuration_Invalid(t *testing.T) {
	path := writeTemp(t, "bad.yaml", "encoder:\n  timeout: fast\n")
	if _, err := LoadFromYAML(path); err == nil {
		t.Error("非法时长期望解析错误")
	}
}

// TestBuild 测试从配置装配出可用的引擎与聚合器
func TestBuild(t *testing.T) {
	dir := t.TempDir()

	vs, err := store.Build(
		[][]float32{{1, 0}, {0.9, 0.1}},
		[]string{"1001", "1002"},
		[]string{"/upload/v1/1001.jpg", "/upload/v1/1002.jpg"},
		[]string{"A", "B"},
	)
	if err != nil {
		t.Fatal(err)
	}
	snapPath := filepath.Join(dir, "emb.json")
	if err := store.SaveSnapshot(snapPath, vs); err != nil {
		t.Fatal(err)
	}

	itemsPath := filepath.Join(dir, "items.json")
	items := `[
	  {"id":"1001","name":"A","category":{"master_category":"Apparel"},"price":100,"images":["/upload/v1/1001.jpg"]},
	  {"id":"1002","name":"B","category":{"master_category":"Apparel"},"price":110,"images":["/upload/v1/1002.jpg"]}
	]`
	if err := os.WriteFile(itemsPath, []byte(items), 0o644); err != nil {
		t.Fatal(err)
	}

	cfgPath := writeTemp(t, "config.yaml", `
snapshot: `+snapPath+`
catalog:
  fixture: `+itemsPath+`
cache:
  kind: memory
  max_size: 10
  ttl: 1h
defaults:
  price_tolerance: 0.5
  same_category_only: true
  min_similarity: 0.5
`)

	cfg, err := LoadFromYAML(cfgPath)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	svc, err := cfg.Build(nil)
	if err != nil {
		t.Fatalf("装配失败: %v", err)
	}

	res, err := svc.Engine.GetSimilar(context.Background(), "1001", 5, svc.Defaults)
	if err != nil {
		t.Fatalf("GetSimilar 失败: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Item.ID != "1002" {
		t.Errorf("结果 = %+v，期望 [1002]", res.Items)
	}

	if svc.Aggregator == nil {
		t.Error("聚合器未装配")
	}
	if s := svc.Engine.Stats(); s.Mode != "exact-index" || s.TotalIndexed != 2 {
		t.Errorf("Stats = %+v", s)
	}
}

// TestBuild_Errors 测试装配期错误：未知缓存类型、非法规则
func TestBuild_Errors(t *testing.T) {
	var cfg Config
	cfg.Cache.Kind = "memcached"
	if _, err := cfg.Build(nil); err == nil {
		t.Error("未知缓存类型期望装配错误")
	}

	var cfg2 Config
	cfg2.Rules = []string{"item.price >"}
	if _, err := cfg2.Build(nil); err == nil {
		t.Error("非法 CEL 规则期望装配错误")
	}
}
