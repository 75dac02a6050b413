package domain

import (
	"fmt"
	"strings"
)

// SearchCriteria - параметры одного запуска сбора. Значение не меняется во время запуска,
// для следующей страницы создается копия через NextPage.
type SearchCriteria struct {
	MinPrice       float64
	MaxPrice       float64
	RentOrSale     RentOrSale
	Municipalities []string
	Structures     []float64   // пусто - без фильтра
	Furnished      []Furnished // пусто - без фильтра
	Page           int         // начинается с 1
}

// Validate проверяет критерии до построения запросов
func (c SearchCriteria) Validate() error {
	if c.RentOrSale != Rent && c.RentOrSale != Sale {
		return fmt.Errorf("%w: rentOrSale must be %q or %q, got %q", ErrInvalidCriteria, Rent, Sale, c.RentOrSale)
	}
	if len(c.Municipalities) == 0 {
		return fmt.Errorf("%w: at least one municipality is required", ErrInvalidCriteria)
	}
	for _, m := range c.Municipalities {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("%w: municipality must not be blank", ErrInvalidCriteria)
		}
	}
	if c.MinPrice < 0 || c.MaxPrice < 0 {
		return fmt.Errorf("%w: price range must not be negative", ErrInvalidCriteria)
	}
	if c.MaxPrice > 0 && c.MinPrice > c.MaxPrice {
		return fmt.Errorf("%w: minPrice %.0f is greater than maxPrice %.0f", ErrInvalidCriteria, c.MinPrice, c.MaxPrice)
	}
	if c.Page < 1 {
		return fmt.Errorf("%w: page must start at 1, got %d", ErrInvalidCriteria, c.Page)
	}
	return nil
}

// NextPage возвращает независимую копию критериев со следующей страницей
func (c SearchCriteria) NextPage() SearchCriteria {
	next := c
	next.Municipalities = append([]string(nil), c.Municipalities...)
	next.Structures = append([]float64(nil), c.Structures...)
	next.Furnished = append([]Furnished(nil), c.Furnished...)
	next.Page = c.Page + 1
	return next
}

// WithDefaults подставляет первую страницу, если она не задана
func (c SearchCriteria) WithDefaults() SearchCriteria {
	if c.Page == 0 {
		c.Page = 1
	}
	return c
}
