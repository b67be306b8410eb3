package store

import (
	"fmt"
	"math"

	"github.com/rushteam/simkit/core"
	"github.com/rushteam/simkit/pkg/locator"
)

// VectorStore 是内存实现的向量库：嵌入矩阵 + 三条平行身份数组
// （商品 ID / 图片定位符 / 商品名），行号是三者的隐式关联键。
//
// 特点：
//   - 启动时一次性构建，之后只读；并发读取无需加锁
//   - 向量在写入时统一做 L2 归一化，查询期不再归一化
//   - 维度 D 由首个向量确定，整库固定
//
// 重建是离线操作（外部重新导出快照后整库替换），不支持增量写入。
type VectorStore struct {
	dim      int
	vectors  [][]float32
	ids      []string
	locators []string
	names    []string

	idToRow      map[string]int
	locatorToRow map[string]int
	normToRow    map[string]int // 归一化定位符 -> 行号
}

// Build 从平行数组构建向量库。
// 四个数组长度必须一致，否则返回 SHAPE_MISMATCH（载入期致命错误，不做截断）。
func Build(vectors [][]float32, ids, locators, names []string) (*VectorStore, error) {
	n := len(vectors)
	if len(ids) != n || len(locators) != n || len(names) != n {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeShapeMismatch,
			fmt.Sprintf("parallel array length mismatch: vectors=%d ids=%d locators=%d names=%d",
				n, len(ids), len(locators), len(names)))
	}

	s := &VectorStore{
		vectors:      make([][]float32, n),
		ids:          ids,
		locators:     locators,
		names:        names,
		idToRow:      make(map[string]int, n),
		locatorToRow: make(map[string]int, n),
		normToRow:    make(map[string]int, n),
	}

	for row, vec := range vectors {
		if s.dim == 0 {
			s.dim = len(vec)
		}
		if len(vec) != s.dim || len(vec) == 0 {
			return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeShapeMismatch,
				fmt.Sprintf("vector dimension mismatch at row %d: got %d, want %d", row, len(vec), s.dim))
		}
		s.vectors[row] = normalize(vec)
	}

	// 行号映射：同一身份重复出现时保留首行（与建库脚本的去重顺序一致）
	for row := n - 1; row >= 0; row-- {
		if id := ids[row]; id != "" {
			s.idToRow[id] = row
		}
		if loc := locators[row]; loc != "" {
			s.locatorToRow[loc] = row
			if norm := locator.Normalize(loc); norm != "" {
				s.normToRow[norm] = row
			}
		}
	}

	return s, nil
}

// Len 返回库内向量行数。
func (s *VectorStore) Len() int { return len(s.vectors) }

// Dim 返回向量维度；空库返回 0。
func (s *VectorStore) Dim() int { return s.dim }

// RowForID 按商品 ID 查行号。
func (s *VectorStore) RowForID(id string) (int, error) {
	if row, ok := s.idToRow[id]; ok {
		return row, nil
	}
	return -1, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, "id not in vector store: "+id)
}

// RowForLocator 按图片定位符查行号：先精确匹配，再按归一化定位符匹配。
func (s *VectorStore) RowForLocator(loc string) (int, error) {
	if row, ok := s.locatorToRow[loc]; ok {
		return row, nil
	}
	if norm := locator.Normalize(loc); norm != "" {
		if row, ok := s.normToRow[norm]; ok {
			return row, nil
		}
	}
	return -1, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, "locator not in vector store: "+loc)
}

// VectorAt 返回第 row 行向量的只读视图。调用方不得修改返回的切片。
func (s *VectorStore) VectorAt(row int) []float32 {
	return s.vectors[row]
}

// IDAt 返回第 row 行的商品 ID；越界返回空串。
func (s *VectorStore) IDAt(row int) string {
	if row < 0 || row >= len(s.ids) {
		return ""
	}
	return s.ids[row]
}

// LocatorAt 返回第 row 行的图片定位符；越界返回空串。
func (s *VectorStore) LocatorAt(row int) string {
	if row < 0 || row >= len(s.locators) {
		return ""
	}
	return s.locators[row]
}

// NameAt 返回第 row 行的商品名；越界返回空串。
func (s *VectorStore) NameAt(row int) string {
	if row < 0 || row >= len(s.names) {
		return ""
	}
	return s.names[row]
}

// normalize 对向量做 L2 归一化；零向量原样返回（无法归一化）。
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
