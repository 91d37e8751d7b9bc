package domain

// PipelineStats — агрегаты по executions для дашборда.
type PipelineStats struct {
	// Total — общее количество executions.
	Total int `json:"total"`

	// Pending / Running / Completed / Failed — количество по статусам.
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`

	// SuccessRate — доля успешных среди завершённых (0..1).
	SuccessRate float64 `json:"success_rate"`

	// AvgDurationMs — средняя продолжительность завершённых executions.
	AvgDurationMs float64 `json:"avg_duration_ms"`
}
