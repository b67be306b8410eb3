// Package simkit 是一个视觉相似推荐引擎工具包（Similarity Kit)。
//
// 设计要点：
// - Exact-first: 归一化向量 + 内积全量扫描，候选规模内精确检索优先于近似索引
// - Reconcile-first: 索引行与商品目录通过身份对账（ID → 定位符 → 归一化模糊）衔接，
//   容忍两侧数据漂移
// - Degrade-first: 过滤清空不报错，放宽重试 → 同类目兜底逐级降级，响应携带 method 标签
package simkit

import (
	"github.com/rushteam/simkit/core"
	"github.com/rushteam/simkit/engine"
	"github.com/rushteam/simkit/personalize"
)

// 轻量 facade：便于用户直接 import "simkit" 使用核心抽象。
type Engine = engine.Engine
type Aggregator = personalize.Aggregator
type CatalogItem = core.CatalogItem
type QueryOptions = core.QueryOptions
type RecommendResult = core.RecommendResult
type Method = core.Method

const (
	MethodIndex    = core.MethodIndex
	MethodOnTheFly = core.MethodOnTheFly
	MethodRelaxed  = core.MethodRelaxed
	MethodFallback = core.MethodFallback
	MethodBaseline = core.MethodBaseline
	MethodEmpty    = core.MethodEmpty
)
