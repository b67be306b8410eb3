package engine

// Stats 是引擎的运行时快照，用于健康检查与观测接口。
type Stats struct {
	Mode               string  `json:"mode"` // exact-index / on-the-fly
	TotalIndexed       int     `json:"total_indexed"`
	Dim                int     `json:"dim"`
	CachedEmbeddings   int     `json:"cached_embeddings"` // 缓存不支持计数时为 -1
	ReconcileRequested int64   `json:"reconcile_requested"`
	ReconcileResolved  int64   `json:"reconcile_resolved"`
	ReconcileRatio     float64 `json:"reconcile_ratio"`
}

// Stats 返回当前运行状态快照。
func (e *Engine) Stats() Stats {
	s := Stats{
		Mode:               "on-the-fly",
		CachedEmbeddings:   -1,
		ReconcileRequested: e.reconcileRequested.Load(),
		ReconcileResolved:  e.reconcileResolved.Load(),
	}
	if e.store != nil {
		s.Mode = "exact-index"
		s.TotalIndexed = e.store.Len()
		s.Dim = e.store.Dim()
	}
	if e.cache != nil {
		s.CachedEmbeddings = e.cache.Len()
	}
	if s.ReconcileRequested > 0 {
		s.ReconcileRatio = float64(s.ReconcileResolved) / float64(s.ReconcileRequested)
	}
	return s
}
