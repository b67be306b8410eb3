// Package index 提供向量库上的精确近邻检索。
package index

import (
	"fmt"
	"sort"

	"github.com/rushteam/simkit/core"
	"github.com/rushteam/simkit/store"
)

// FlatIP 是内积度量的精确（暴力）检索索引。
//
// 库内向量与查询向量都已 L2 归一化，内积即余弦相似度。
// 不做任何近似：每次检索遍历全库，结果完全可复现。
// 构建后只读，并发检索无需加锁。
type FlatIP struct {
	store *store.VectorStore
}

// NewFlatIP 在已构建的向量库上创建检索索引。
func NewFlatIP(s *store.VectorStore) *FlatIP {
	return &FlatIP{store: s}
}

// Result 是单条检索结果：行号 + 内积分数。
type Result struct {
	Row   int
	Score float64
}

// Search 返回与 query 内积最大的 k 行，按分数降序排列。
//
//   - k <= 0 返回 INVALID_INPUT
//   - len(query) != D 返回 DIMENSION_MISMATCH
//   - k 超过库内行数时静默收窄
//   - 同分时按原始行号升序（稳定），保证结果可复现
func (idx *FlatIP) Search(query []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, core.NewDomainError(core.ModuleIndex, core.ErrorCodeInvalidInput,
			fmt.Sprintf("topk must be positive, got %d", k))
	}
	dim := idx.store.Dim()
	if len(query) != dim {
		return nil, core.NewDomainError(core.ModuleIndex, core.ErrorCodeDimensionMismatch,
			fmt.Sprintf("query dim %d, index dim %d", len(query), dim))
	}

	n := idx.store.Len()
	if k > n {
		k = n
	}
	if n == 0 {
		return []Result{}, nil
	}

	results := make([]Result, n)
	for row := 0; row < n; row++ {
		results[row] = Result{Row: row, Score: dot(query, idx.store.VectorAt(row))}
	}

	// 稳定排序：分数相同的行保持原始行序
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results[:k], nil
}

// Total 返回索引覆盖的向量行数。
func (idx *FlatIP) Total() int { return idx.store.Len() }

// dot 以 float64 累加计算内积，降低长向量下的舍入误差。
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
