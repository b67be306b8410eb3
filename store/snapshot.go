package store

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/rushteam/simkit/core"
)

// Snapshot 是向量库的持久化格式：嵌入矩阵 + 三条平行身份数组。
// 由离线建库流程导出，服务启动时载入。
type Snapshot struct {
	Dim      int         `json:"dim"`
	Vectors  [][]float32 `json:"vecs"`
	IDs      []string    `json:"ids"`
	Locators []string    `json:"urls"`
	Names    []string    `json:"names"`
}

// LoadSnapshot 从文件载入快照并构建向量库。
// 矩阵行数与任一身份数组长度不一致时返回 SHAPE_MISMATCH：
// 载入期致命错误，绝不静默截断。
func LoadSnapshot(path string) (*VectorStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	n := len(snap.Vectors)
	if len(snap.IDs) != n || len(snap.Locators) != n || len(snap.Names) != n {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeShapeMismatch,
			fmt.Sprintf("snapshot corrupt: vecs=%d ids=%d urls=%d names=%d",
				n, len(snap.IDs), len(snap.Locators), len(snap.Names)))
	}
	if snap.Dim > 0 {
		for row, vec := range snap.Vectors {
			if len(vec) != snap.Dim {
				return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeShapeMismatch,
					fmt.Sprintf("snapshot row %d: dim %d, header says %d", row, len(vec), snap.Dim))
			}
		}
	}

	return Build(snap.Vectors, snap.IDs, snap.Locators, snap.Names)
}

// SaveSnapshot 把向量库写出为快照文件（测试与离线工具使用）。
func SaveSnapshot(path string, s *VectorStore) error {
	snap := Snapshot{
		Dim:      s.Dim(),
		Vectors:  s.vectors,
		IDs:      s.ids,
		Locators: s.locators,
		Names:    s.names,
	}
	data, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
