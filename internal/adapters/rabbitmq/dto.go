package rabbitmq

import (
	"time"

	"listing-aggregator-service/internal/core/domain"
)

// LocationDTO - координаты в событиях
type LocationDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ListingDTO - объявление в исходящих событиях
type ListingDTO struct {
	ID             string       `json:"id"`
	SourceID       string       `json:"sourceId"`
	SourceName     string       `json:"sourceName"`
	Price          float64      `json:"price"`
	Size           *float64     `json:"size"`
	Structure      *float64     `json:"structure"`
	Address        *string      `json:"address"`
	Place          *string      `json:"place"`
	Municipality   string       `json:"municipality"`
	Floor          *string      `json:"floor"`
	Furnished      string       `json:"furnished"`
	HeatingTypes   []string     `json:"heatingTypes"`
	Location       *LocationDTO `json:"location"`
	CoverPhotoURL  *string      `json:"coverPhotoUrl"`
	AdvertiserName *string      `json:"advertiserName"`
	AdvertiserType *string      `json:"advertiserType"`
	RentOrSale     string       `json:"rentOrSale"`
	URL            string       `json:"url"`
	PostedAt       *time.Time   `json:"postedAt"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// ListingsCreatedEventDTO - пачка новых объявлений одной страницы одного источника
type ListingsCreatedEventDTO struct {
	MessageID  string       `json:"messageId"`
	OccurredAt time.Time    `json:"occurredAt"`
	RunID      string       `json:"runId,omitempty"`
	Listings   []ListingDTO `json:"listings"`
}

// ListingDeletedEventDTO - объявление снято с источника и удалено из хранилища
type ListingDeletedEventDTO struct {
	MessageID    string    `json:"messageId"`
	OccurredAt   time.Time `json:"occurredAt"`
	RunID        string    `json:"runId,omitempty"`
	ID           string    `json:"id"`
	SourceID     string    `json:"sourceId"`
	SourceName   string    `json:"sourceName"`
	URL          string    `json:"url"`
	Municipality string    `json:"municipality"`
	RentOrSale   string    `json:"rentOrSale"`
	Reason       string    `json:"reason"`
}

// SweepCommandDTO - входящая команда планировщика
type SweepCommandDTO struct {
	Type     string       `json:"type"` // "ingestion" или "liveness"
	Preset   string       `json:"preset,omitempty"`
	Criteria *CriteriaDTO `json:"criteria,omitempty"`
}

// CriteriaDTO - критерии поиска в команде
type CriteriaDTO struct {
	MinPrice       float64   `json:"minPrice"`
	MaxPrice       float64   `json:"maxPrice"`
	RentOrSale     string    `json:"rentOrSale"`
	Municipalities []string  `json:"municipalities"`
	Structures     []float64 `json:"structures"`
	Furnished      []string  `json:"furnished"`
}

func toListingDTO(l domain.Listing) ListingDTO {
	dto := ListingDTO{
		ID:             l.ID,
		SourceID:       l.SourceID,
		SourceName:     string(l.SourceName),
		Price:          l.Price,
		Size:           l.Size,
		Structure:      l.Structure,
		Address:        l.Address,
		Place:          l.Place,
		Municipality:   l.Municipality,
		Floor:          l.Floor,
		Furnished:      string(l.Furnished),
		HeatingTypes:   l.HeatingTypes,
		CoverPhotoURL:  l.CoverPhotoURL,
		AdvertiserName: l.AdvertiserName,
		AdvertiserType: l.AdvertiserType,
		RentOrSale:     string(l.RentOrSale),
		URL:            l.URL,
		PostedAt:       l.PostedAt,
		CreatedAt:      l.CreatedAt,
	}
	if dto.HeatingTypes == nil {
		dto.HeatingTypes = []string{}
	}
	if dto.Furnished == "" {
		dto.Furnished = string(domain.FurnishedUnknown)
	}
	if l.Location != nil {
		dto.Location = &LocationDTO{Lat: l.Location.Latitude, Lng: l.Location.Longitude}
	}
	return dto
}

func toCriteria(dto CriteriaDTO) domain.SearchCriteria {
	criteria := domain.SearchCriteria{
		MinPrice:       dto.MinPrice,
		MaxPrice:       dto.MaxPrice,
		RentOrSale:     domain.RentOrSale(dto.RentOrSale),
		Municipalities: dto.Municipalities,
		Structures:     dto.Structures,
		Page:           1,
	}
	for _, f := range dto.Furnished {
		criteria.Furnished = append(criteria.Furnished, domain.ParseFurnished(f))
	}
	return criteria
}
