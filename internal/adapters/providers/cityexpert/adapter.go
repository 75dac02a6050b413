package cityexpert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"listing-aggregator-service/internal/adapters/providers/providerkit"
	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
)

const (
	defaultBaseURL  = "https://cityexpert.rs"
	defaultImageURL = "https://img.cityexpert.rs/sites/default/files/styles/1920x/public/image"
	defaultPageSize = 60
	belgradeCityID  = 1
)

var municipalities = providerkit.NewMunicipalityTable(map[string]string{
	"Čukarica":     "Čukarica",
	"Novi Beograd": "Novi Beograd",
	"Palilula":     "Palilula",
	"Rakovica":     "Rakovica",
	"Savski venac": "Savski venac",
	"Stari grad":   "Stari grad",
	"Voždovac":     "Voždovac",
	"Vračar":       "Vračar",
	"Zemun":        "Zemun",
	"Zvezdara":     "Zvezdara",
	"Surčin":       "Surčin",
	"Grocka":       "Grocka",
	"Mladenovac":   "Mladenovac",
	"Obrenovac":    "Obrenovac",
})

var furnishingCodes = map[domain.Furnished]int{
	domain.FurnishedFull:  1,
	domain.FurnishedSemi:  2,
	domain.FurnishedEmpty: 3,
}

var heatingCodes = map[int]string{
	1: "district",
	2: "electric",
	3: "storage-heater",
	4: "gas",
	5: "underfloor",
	6: "tile-stove",
	7: "heat-pump",
	8: "air-conditioning",
}

// Config - адреса API и сайта
type Config struct {
	BaseURL  string
	ImageURL string
	PageSize int
}

// CityExpertAdapter работает с JSON API поиска cityexpert.rs
type CityExpertAdapter struct {
	fetcher  port.FetcherPort
	baseURL  string
	imageURL string
	pageSize int
}

// NewCityExpertAdapter - конструктор
func NewCityExpertAdapter(cfg Config, fetcher port.FetcherPort) *CityExpertAdapter {
	a := &CityExpertAdapter{
		fetcher:  fetcher,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		imageURL: strings.TrimSuffix(cfg.ImageURL, "/"),
		pageSize: cfg.PageSize,
	}
	if a.baseURL == "" {
		a.baseURL = defaultBaseURL
	}
	if a.imageURL == "" {
		a.imageURL = defaultImageURL
	}
	if a.pageSize <= 0 {
		a.pageSize = defaultPageSize
	}
	return a
}

func (a *CityExpertAdapter) Source() domain.SourceName { return domain.SourceCityExpert }

func (a *CityExpertAdapter) DetailMode() domain.DetailMode { return domain.DetailNone }

func (a *CityExpertAdapter) BuildRequest(criteria domain.SearchCriteria) (domain.RequestSpec, error) {
	criteria = criteria.WithDefaults()
	if err := criteria.Validate(); err != nil {
		return domain.RequestSpec{}, err
	}

	polygons, err := municipalities.Resolve(a.Source(), criteria.Municipalities)
	if err != nil {
		return domain.RequestSpec{}, err
	}

	body := searchRequest{
		PtID:           []int{},
		CityID:         belgradeCityID,
		RentOrSale:     rentOrSaleCode(criteria.RentOrSale),
		CurrentPage:    criteria.Page,
		ResultsPerPage: a.pageSize,
		Structure:      []string{},
		Furnishing:     []int{},
		Polygons:       polygons,
		SearchSource:   "regular",
		Sort:           "datedsc",
	}
	if criteria.MinPrice > 0 {
		body.MinPrice = &criteria.MinPrice
	}
	if criteria.MaxPrice > 0 {
		body.MaxPrice = &criteria.MaxPrice
	}
	for _, s := range criteria.Structures {
		body.Structure = append(body.Structure, strconv.FormatFloat(s, 'f', 1, 64))
	}
	for _, f := range criteria.Furnished {
		if code, ok := furnishingCodes[f]; ok {
			body.Furnishing = append(body.Furnishing, code)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return domain.RequestSpec{}, fmt.Errorf("cityexpert: failed to marshal search request: %w", err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")

	return domain.RequestSpec{
		Method:  http.MethodPost,
		URL:     a.baseURL + "/api/Search/",
		Headers: headers,
		Body:    payload,
	}, nil
}

func (a *CityExpertAdapter) ExtractCandidates(raw *domain.RawResponse) ([]domain.Candidate, bool, error) {
	if raw.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("%w: cityexpert search returned status %d", domain.ErrSourceShape, raw.StatusCode)
	}

	var resp searchResponse
	if err := json.Unmarshal(raw.Body, &resp); err != nil {
		return nil, false, fmt.Errorf("%w: cityexpert search response: %v", domain.ErrSourceShape, err)
	}
	if resp.Info == nil {
		return nil, false, fmt.Errorf("%w: cityexpert search response has no info block", domain.ErrSourceShape)
	}

	candidates := make([]domain.Candidate, 0, len(resp.Result))
	for _, p := range resp.Result {
		if p.UniqueID == "" {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			SourceID: p.UniqueID,
			URL:      a.listingURL(p),
			Price:    p.Price,
			Payload:  p,
		})
	}
	return candidates, resp.Info.HasNextPage, nil
}

func (a *CityExpertAdapter) Normalize(candidate domain.Candidate, criteria domain.SearchCriteria) (*domain.Listing, error) {
	p, ok := candidate.Payload.(property)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected cityexpert payload %T", domain.ErrSourceShape, candidate.Payload)
	}

	listing := &domain.Listing{
		ID:            domain.ListingID(a.Source(), candidate.SourceID),
		SourceID:      candidate.SourceID,
		SourceName:    a.Source(),
		Price:         candidate.Price,
		Size:          domain.Float64Ptr(p.Size),
		Address:       domain.StringPtr(p.Street),
		Municipality:  providerkit.CanonicalPlace(p.Municipality),
		Floor:         domain.StringPtr(p.Floor),
		Furnished:     furnishedFromCodes(p.Furnishing),
		HeatingTypes:  heatingFromCodes(p.Heating),
		Location:      parseLocation(p.Location),
		CoverPhotoURL: a.coverPhotoURL(p.CoverPhoto),
		RentOrSale:    criteria.RentOrSale,
		URL:           candidate.URL,
	}

	if structure, ok := providerkit.ParseNumber(p.Structure); ok {
		listing.Structure = domain.Float64Ptr(structure)
	}
	if len(p.Polygons) > 0 {
		listing.Place = domain.StringPtr(providerkit.CanonicalPlace(p.Polygons[0]))
	}
	switch p.RentOrSale {
	case "r":
		listing.RentOrSale = domain.Rent
	case "s":
		listing.RentOrSale = domain.Sale
	}
	if posted, err := time.Parse(time.RFC3339, p.FirstPublished); err == nil {
		listing.PostedAt = &posted
	}

	return listing, nil
}

// BuildDetailRequest - страница объявления на сайте, используется только для проверки актуальности
func (a *CityExpertAdapter) BuildDetailRequest(sourceID, url string) (domain.RequestSpec, error) {
	if url == "" {
		return domain.RequestSpec{}, fmt.Errorf("%w: cityexpert listing %s has no url", domain.ErrConfiguration, sourceID)
	}
	return domain.RequestSpec{Method: http.MethodGet, URL: url}, nil
}

// EnrichFromDetail - выдача cityexpert уже содержит все поля
func (a *CityExpertAdapter) EnrichFromDetail(raw *domain.RawResponse, listing *domain.Listing) error {
	return nil
}

func (a *CityExpertAdapter) IsInactive(ctx context.Context, sourceID, url string) domain.Liveness {
	req, err := a.BuildDetailRequest(sourceID, url)
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Cannot build liveness request", err, port.Fields{"source_id": sourceID})
		return domain.LivenessUnknown
	}
	return providerkit.Probe(ctx, a.fetcher, a.Source(), req, nil)
}

func (a *CityExpertAdapter) listingURL(p property) string {
	segment := "izdavanje-nekretnina"
	if p.RentOrSale == "s" {
		segment = "prodaja-nekretnina"
	}
	return fmt.Sprintf("%s/%s/beograd/%s", a.baseURL, segment, p.UniqueID)
}

func (a *CityExpertAdapter) coverPhotoURL(name string) *string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return &name
	}
	return domain.StringPtr(a.imageURL + "/" + strings.TrimPrefix(name, "/"))
}

func rentOrSaleCode(r domain.RentOrSale) string {
	if r == domain.Sale {
		return "s"
	}
	return "r"
}

func furnishedFromCodes(codes []int) domain.Furnished {
	if len(codes) == 0 {
		return domain.FurnishedUnknown
	}
	for furnished, code := range furnishingCodes {
		if code == codes[0] {
			return furnished
		}
	}
	return domain.FurnishedUnknown
}

func heatingFromCodes(codes []int) []string {
	heating := make([]string, 0, len(codes))
	for _, code := range codes {
		if name, ok := heatingCodes[code]; ok {
			heating = append(heating, name)
		}
	}
	return heating
}

func parseLocation(raw string) *domain.GeoPoint {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return nil
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLng != nil {
		return nil
	}
	return &domain.GeoPoint{Latitude: lat, Longitude: lng}
}

var _ port.ProviderPort = (*CityExpertAdapter)(nil)

