package fourzida

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"listing-aggregator-service/internal/adapters/providers/providerkit"
	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
)

const (
	defaultBaseURL  = "https://api.4zida.rs"
	defaultSiteURL  = "https://www.4zida.rs"
	defaultPageSize = 20
)

var placeIDs = providerkit.NewMunicipalityTable(map[string]int{
	"Čukarica":     6,
	"Novi Beograd": 5,
	"Palilula":     7,
	"Rakovica":     8,
	"Savski venac": 9,
	"Stari grad":   3,
	"Voždovac":     4,
	"Vračar":       2,
	"Zemun":        10,
	"Zvezdara":     11,
	"Surčin":       12,
})

var furnishedTypes = map[domain.Furnished]string{
	domain.FurnishedFull:  "furnished",
	domain.FurnishedSemi:  "semi_furnished",
	domain.FurnishedEmpty: "empty",
}

var heatingTypes = map[string]string{
	"central":          "district",
	"district":         "district",
	"electricity":      "electric",
	"storage_heater":   "storage-heater",
	"gas":              "gas",
	"underfloor":       "underfloor",
	"tile_stove":       "tile-stove",
	"heat_pump":        "heat-pump",
	"air_conditioning": "air-conditioning",
}

// предпочтительные размеры обложки
var imageVariants = []string{"1200x900_fill_0_webp", "760x570_fill_0_webp", "380x0_fill_0_webp"}

type Config struct {
	BaseURL  string
	SiteURL  string
	PageSize int
}

// FourZidaAdapter работает с JSON API 4zida.rs
type FourZidaAdapter struct {
	fetcher  port.FetcherPort
	baseURL  string
	siteURL  string
	pageSize int
}

func NewFourZidaAdapter(cfg Config, fetcher port.FetcherPort) *FourZidaAdapter {
	a := &FourZidaAdapter{
		fetcher:  fetcher,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		siteURL:  strings.TrimSuffix(cfg.SiteURL, "/"),
		pageSize: cfg.PageSize,
	}
	if a.baseURL == "" {
		a.baseURL = defaultBaseURL
	}
	if a.siteURL == "" {
		a.siteURL = defaultSiteURL
	}
	if a.pageSize <= 0 {
		a.pageSize = defaultPageSize
	}
	return a
}

func (a *FourZidaAdapter) Source() domain.SourceName { return domain.SourceFourZida }

func (a *FourZidaAdapter) DetailMode() domain.DetailMode { return domain.DetailNone }

func (a *FourZidaAdapter) BuildRequest(criteria domain.SearchCriteria) (domain.RequestSpec, error) {
	criteria = criteria.WithDefaults()
	if err := criteria.Validate(); err != nil {
		return domain.RequestSpec{}, err
	}

	places, err := placeIDs.Resolve(a.Source(), criteria.Municipalities)
	if err != nil {
		return domain.RequestSpec{}, err
	}

	query := url.Values{}
	query.Set("for", string(criteria.RentOrSale))
	query.Set("page", strconv.Itoa(criteria.Page))
	query.Set("perPage", strconv.Itoa(a.pageSize))
	query.Set("sort", "createdAtDesc")
	if criteria.MinPrice > 0 {
		query.Set("priceFrom", strconv.FormatFloat(criteria.MinPrice, 'f', -1, 64))
	}
	if criteria.MaxPrice > 0 {
		query.Set("priceTo", strconv.FormatFloat(criteria.MaxPrice, 'f', -1, 64))
	}
	for _, id := range places {
		query.Add("placeIds[]", strconv.Itoa(id))
	}
	for _, s := range criteria.Structures {
		if name := structureName(s); name != "" {
			query.Add("structures[]", name)
		}
	}
	for _, f := range criteria.Furnished {
		if t, ok := furnishedTypes[f]; ok {
			query.Add("furnishedTypes[]", t)
		}
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json")

	return domain.RequestSpec{
		Method:  http.MethodGet,
		URL:     a.baseURL + "/v6/search/apartments?" + query.Encode(),
		Headers: headers,
	}, nil
}

// ExtractCandidates: следующая страница есть, пока page*pageSize < total
func (a *FourZidaAdapter) ExtractCandidates(raw *domain.RawResponse) ([]domain.Candidate, bool, error) {
	if raw.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("%w: 4zida search returned status %d", domain.ErrSourceShape, raw.StatusCode)
	}

	var resp searchResponse
	if err := json.Unmarshal(raw.Body, &resp); err != nil {
		return nil, false, fmt.Errorf("%w: 4zida search response: %v", domain.ErrSourceShape, err)
	}
	if resp.Total == nil {
		return nil, false, fmt.Errorf("%w: 4zida search response has no total", domain.ErrSourceShape)
	}

	candidates := make([]domain.Candidate, 0, len(resp.Ads))
	for _, item := range resp.Ads {
		if item.ID == "" {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			SourceID: item.ID,
			URL:      a.siteURL + "/" + strings.TrimPrefix(item.URLPath, "/"),
			Price:    item.Price,
			Payload:  item,
		})
	}

	page := pageFromURL(raw.RequestURL)
	return candidates, page*a.pageSize < *resp.Total, nil
}

func (a *FourZidaAdapter) Normalize(candidate domain.Candidate, criteria domain.SearchCriteria) (*domain.Listing, error) {
	item, ok := candidate.Payload.(ad)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected 4zida payload %T", domain.ErrSourceShape, candidate.Payload)
	}

	listing := &domain.Listing{
		ID:            domain.ListingID(a.Source(), candidate.SourceID),
		SourceID:      candidate.SourceID,
		SourceName:    a.Source(),
		Price:         candidate.Price,
		Size:          domain.Float64Ptr(item.M2),
		Structure:     domain.Float64Ptr(item.RoomCount),
		Address:       domain.StringPtr(item.Address),
		Floor:         floorLabel(item.Floor),
		Furnished:     furnishedFromType(item.Furnished),
		HeatingTypes:  []string{},
		CoverPhotoURL: coverImage(item),
		RentOrSale:    criteria.RentOrSale,
		URL:           candidate.URL,
	}

	switch n := len(item.PlaceNames); {
	case n >= 3:
		listing.Place = domain.StringPtr(providerkit.CanonicalPlace(item.PlaceNames[0]))
		listing.Municipality = providerkit.CanonicalPlace(item.PlaceNames[n-2])
	case n > 0:
		listing.Municipality = providerkit.CanonicalPlace(item.PlaceNames[0])
	}

	if heating, ok := heatingTypes[item.HeatingType]; ok {
		listing.HeatingTypes = append(listing.HeatingTypes, heating)
	}
	if item.Lat != nil && item.Lng != nil {
		listing.Location = &domain.GeoPoint{Latitude: *item.Lat, Longitude: *item.Lng}
	}
	if created, err := time.Parse(time.RFC3339, item.CreatedAt); err == nil {
		listing.PostedAt = &created
	}

	return listing, nil
}

// BuildDetailRequest - карточка объявления в API, достаточно id
func (a *FourZidaAdapter) BuildDetailRequest(sourceID, _ string) (domain.RequestSpec, error) {
	if sourceID == "" {
		return domain.RequestSpec{}, fmt.Errorf("%w: 4zida listing id is empty", domain.ErrConfiguration)
	}
	return domain.RequestSpec{
		Method: http.MethodGet,
		URL:    a.baseURL + "/v5/eds/" + url.PathEscape(sourceID),
	}, nil
}

func (a *FourZidaAdapter) EnrichFromDetail(raw *domain.RawResponse, listing *domain.Listing) error {
	return nil
}

func (a *FourZidaAdapter) IsInactive(ctx context.Context, sourceID, listingURL string) domain.Liveness {
	req, err := a.BuildDetailRequest(sourceID, listingURL)
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Cannot build liveness request", err, port.Fields{"source_id": sourceID})
		return domain.LivenessUnknown
	}
	return providerkit.Probe(ctx, a.fetcher, a.Source(), req, nil)
}

func pageFromURL(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 1
	}
	page, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func structureName(rooms float64) string {
	switch {
	case rooms <= 0.5:
		return "garsonjera"
	case rooms <= 1:
		return "jednosoban"
	case rooms <= 1.5:
		return "jednoiposoban"
	case rooms <= 2:
		return "dvosoban"
	case rooms <= 2.5:
		return "dvoiposoban"
	case rooms <= 3:
		return "trosoban"
	case rooms <= 3.5:
		return "troiposoban"
	case rooms <= 4:
		return "cetvorosoban"
	default:
		return "cetvoroiposoban_i_vise"
	}
}

// floorLabel переводит номер этажа в словарь источника: подвал и партер обозначаются буквами
func floorLabel(floor *int) *string {
	if floor == nil {
		return nil
	}
	switch {
	case *floor < 0:
		return domain.StringPtr("SU")
	case *floor == 0:
		return domain.StringPtr("PR")
	default:
		return domain.StringPtr(strconv.Itoa(*floor))
	}
}

func furnishedFromType(raw string) domain.Furnished {
	for furnished, t := range furnishedTypes {
		if t == raw {
			return furnished
		}
	}
	return domain.FurnishedUnknown
}

func coverImage(item ad) *string {
	if item.Image == nil || len(item.Image.Search) == 0 {
		return nil
	}
	for _, variant := range imageVariants {
		if u, ok := item.Image.Search[variant]; ok {
			return domain.StringPtr(u)
		}
	}
	keys := make([]string, 0, len(item.Image.Search))
	for k := range item.Image.Search {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return domain.StringPtr(item.Image.Search[keys[0]])
}

var _ port.ProviderPort = (*FourZidaAdapter)(nil)
