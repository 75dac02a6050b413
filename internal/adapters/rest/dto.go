package rest

// IngestionRequestDTO - тело POST-запроса на запуск сбора. Нужен либо preset, либо criteria.
type IngestionRequestDTO struct {
	Preset   string       `json:"preset"`
	Criteria *CriteriaDTO `json:"criteria"`
}

type CriteriaDTO struct {
	MinPrice       float64   `json:"minPrice"`
	MaxPrice       float64   `json:"maxPrice"`
	RentOrSale     string    `json:"rentOrSale"`
	Municipalities []string  `json:"municipalities"`
	Structures     []float64 `json:"structures"`
	Furnished      []string  `json:"furnished"`
}

// SweepStartedDTO - ответ 202 с идентификатором запущенного прохода
type SweepStartedDTO struct {
	RunID string `json:"run_id"`
}
