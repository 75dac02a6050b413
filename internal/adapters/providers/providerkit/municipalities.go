package providerkit

import (
	"fmt"

	"listing-aggregator-service/internal/core/domain"
)

// MunicipalityTable сопоставляет ключ района (MunicipalityKey) с кодом источника
type MunicipalityTable[T any] map[string]T

// NewMunicipalityTable строит таблицу из читаемых названий
func NewMunicipalityTable[T any](byName map[string]T) MunicipalityTable[T] {
	table := make(MunicipalityTable[T], len(byName))
	for name, code := range byName {
		table[MunicipalityKey(name)] = code
	}
	return table
}

// Resolve переводит районы из критериев в коды источника.
// Неизвестные районы пропускаются. Если не распознан ни один - ошибка конфигурации.
func (t MunicipalityTable[T]) Resolve(source domain.SourceName, municipalities []string) ([]T, error) {
	codes := make([]T, 0, len(municipalities))
	seen := make(map[string]struct{}, len(municipalities))
	for _, m := range municipalities {
		key := MunicipalityKey(m)
		if _, dup := seen[key]; dup {
			continue
		}
		code, ok := t[key]
		if !ok {
			continue
		}
		seen[key] = struct{}{}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: none of municipalities %v is supported by %s", domain.ErrConfiguration, municipalities, source)
	}
	return codes, nil
}
