package configs

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"listing-aggregator-service/internal/core/domain"

	"gopkg.in/yaml.v2"
)

// searchPresetsFile - формат файла с именованными наборами критериев
type searchPresetsFile struct {
	Presets []searchPresetYAML `yaml:"presets"`
}

type searchPresetYAML struct {
	Name           string    `yaml:"name"`
	RentOrSale     string    `yaml:"rent_or_sale"`
	MinPrice       float64   `yaml:"min_price"`
	MaxPrice       float64   `yaml:"max_price"`
	Municipalities []string  `yaml:"municipalities"`
	Structures     []float64 `yaml:"structures"`
	Furnished      []string  `yaml:"furnished"`
}

// SearchPresets - именованные критерии, на которые ссылаются команды планировщика
type SearchPresets map[string]domain.SearchCriteria

// LoadSearchPresets читает файл наборов. Пустой путь - пустой набор.
func LoadSearchPresets(path string) (SearchPresets, error) {
	if path == "" {
		return SearchPresets{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read search presets file %s: %w", path, err)
	}
	return ParseSearchPresets(data)
}

// ParseSearchPresets разбирает YAML и проверяет каждый набор
func ParseSearchPresets(data []byte) (SearchPresets, error) {
	var file searchPresetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse search presets: %w", err)
	}

	presets := make(SearchPresets, len(file.Presets))
	for i, p := range file.Presets {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: search preset #%d has no name", domain.ErrConfiguration, i+1)
		}
		if _, dup := presets[name]; dup {
			return nil, fmt.Errorf("%w: search preset %q is defined twice", domain.ErrConfiguration, name)
		}

		criteria := domain.SearchCriteria{
			MinPrice:       p.MinPrice,
			MaxPrice:       p.MaxPrice,
			RentOrSale:     domain.RentOrSale(strings.ToLower(strings.TrimSpace(p.RentOrSale))),
			Municipalities: p.Municipalities,
			Structures:     p.Structures,
			Page:           1,
		}
		for _, f := range p.Furnished {
			furnished := domain.ParseFurnished(f)
			if furnished == domain.FurnishedUnknown {
				return nil, fmt.Errorf("%w: search preset %q: unknown furnished value %q", domain.ErrConfiguration, name, f)
			}
			criteria.Furnished = append(criteria.Furnished, furnished)
		}
		if err := criteria.Validate(); err != nil {
			return nil, fmt.Errorf("search preset %q: %w", name, err)
		}
		presets[name] = criteria
	}
	return presets, nil
}

// Preset возвращает независимую копию критериев набора
func (p SearchPresets) Preset(name string) (domain.SearchCriteria, bool) {
	criteria, ok := p[name]
	if !ok {
		return domain.SearchCriteria{}, false
	}
	copied := criteria.NextPage()
	copied.Page = criteria.Page
	return copied, true
}

// Names возвращает имена наборов по алфавиту
func (p SearchPresets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
