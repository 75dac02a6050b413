package domain

import (
	"fmt"
	"strings"
	"time"
)

// SourceName - закрытый набор источников объявлений
type SourceName string

const (
	SourceCityExpert SourceName = "cityexpert"
	SourceFourZida   SourceName = "4zida"
	SourceHaloOglasi SourceName = "halooglasi"
	SourceNekretnine SourceName = "nekretnine"
)

// KnownSources возвращает все поддерживаемые источники в стабильном порядке
func KnownSources() []SourceName {
	return []SourceName{SourceCityExpert, SourceFourZida, SourceHaloOglasi, SourceNekretnine}
}

// ParseSourceName проверяет имя источника. Неизвестное имя - ошибка конфигурации.
func ParseSourceName(raw string) (SourceName, error) {
	name := SourceName(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range KnownSources() {
		if name == known {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: unknown source %q", ErrConfiguration, raw)
}

type RentOrSale string

const (
	Rent RentOrSale = "rent"
	Sale RentOrSale = "sale"
)

type Furnished string

const (
	FurnishedFull    Furnished = "furnished"
	FurnishedSemi    Furnished = "semi-furnished"
	FurnishedEmpty   Furnished = "empty"
	FurnishedUnknown Furnished = "unknown"
)

// ParseFurnished приводит значение к перечислению, нераспознанное - unknown
func ParseFurnished(raw string) Furnished {
	switch Furnished(strings.ToLower(strings.TrimSpace(raw))) {
	case FurnishedFull:
		return FurnishedFull
	case FurnishedSemi:
		return FurnishedSemi
	case FurnishedEmpty:
		return FurnishedEmpty
	default:
		return FurnishedUnknown
	}
}

// GeoPoint - координаты объекта
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// Listing - каноническое объявление, в которое нормализуются данные всех источников
type Listing struct {
	ID         string
	SourceID   string
	SourceName SourceName

	Price     float64  // EUR
	Size      *float64 // m²
	Structure *float64 // количество комнат, шаг 0.5

	Address      *string
	Place        *string
	Municipality string
	Floor        *string // словарь источника

	Furnished    Furnished
	HeatingTypes []string
	Location     *GeoPoint

	CoverPhotoURL  *string
	AdvertiserName *string
	AdvertiserType *string

	RentOrSale RentOrSale
	URL        string

	PostedAt      *time.Time
	LastCheckedAt time.Time
	CreatedAt     time.Time
}

// ListingID строит идентификатор объявления. Это единственный ключ дедупликации.
func ListingID(source SourceName, sourceID string) string {
	return fmt.Sprintf("%s_%s", source, sourceID)
}

// IsComplete - фильтр на входе в хранилище: без адреса, фото, этажа и района объявление не сохраняется
func (l *Listing) IsComplete() bool {
	if l == nil {
		return false
	}
	return present(l.Address) &&
		present(l.CoverPhotoURL) &&
		present(l.Floor) &&
		strings.TrimSpace(l.Municipality) != ""
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// StringPtr возвращает nil для пустой строки
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Float64Ptr возвращает nil для неположительного значения
func Float64Ptr(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}
