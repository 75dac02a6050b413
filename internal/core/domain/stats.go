package domain

// SourceStats - счетчики одного источника за запуск сбора
type SourceStats struct {
	Pages      int
	Candidates int
	Persisted  int
	Failed     bool
}

// IngestionStats - итог запуска сбора
type IngestionStats struct {
	Rounds    int
	Persisted int
	Sources   map[SourceName]*SourceStats
}

func NewIngestionStats() *IngestionStats {
	return &IngestionStats{Sources: make(map[SourceName]*SourceStats)}
}

// ForSource возвращает счетчики источника, создавая их при первом обращении
func (s *IngestionStats) ForSource(name SourceName) *SourceStats {
	st, ok := s.Sources[name]
	if !ok {
		st = &SourceStats{}
		s.Sources[name] = st
	}
	return st
}

// LivenessStats - итог прохода проверки актуальности
type LivenessStats struct {
	Checked int
	Skipped int
	Deleted int
	Touched int
	Unknown int
	Failed  int
}
