package halooglasi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"listing-aggregator-service/internal/adapters/providers/providerkit"
	"listing-aggregator-service/internal/adapters/providers/scriptstate"
	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
)

const (
	defaultBaseURL  = "https://www.halooglasi.com"
	defaultImageURL = "https://img.halooglasi.com"

	stateEnvironment  = "QuidditaEnvironment"
	markerListData    = "QuidditaEnvironment.serverListData"
	markerClassified  = "QuidditaEnvironment.CurrentClassified"
	markerContactData = "QuidditaEnvironment.CurrentContactData"

	statePaused  = 102
	stateExpired = 103
)

var locationIDs = providerkit.NewMunicipalityTable(map[string]string{
	"Čukarica":     "40769",
	"Novi Beograd": "40574",
	"Palilula":     "40784",
	"Rakovica":     "40788",
	"Savski venac": "40789",
	"Stari grad":   "40790",
	"Voždovac":     "40761",
	"Vračar":       "40381",
	"Zemun":        "40783",
	"Zvezdara":     "40791",
	"Surčin":       "40787",
})

var heatingNames = map[string]string{
	"cg":             "district",
	"eg":             "electric",
	"ta":             "storage-heater",
	"gas":            "gas",
	"podno":          "underfloor",
	"kaljeva peć":    "tile-stove",
	"toplotne pumpe": "heat-pump",
}

var furnishedNames = map[string]domain.Furnished{
	"namešten":     domain.FurnishedFull,
	"polunamešten": domain.FurnishedSemi,
	"nenamešten":   domain.FurnishedEmpty,
}

var advertiserTypes = map[string]string{
	"vlasnik":    "owner",
	"agencija":   "agency",
	"investitor": "investor",
}

type Config struct {
	BaseURL  string
	ImageURL string
}

// HaloOglasiAdapter разбирает HTML-страницы со встроенным состоянием QuidditaEnvironment
type HaloOglasiAdapter struct {
	fetcher  port.FetcherPort
	baseURL  string
	imageURL string
}

func NewHaloOglasiAdapter(cfg Config, fetcher port.FetcherPort) *HaloOglasiAdapter {
	a := &HaloOglasiAdapter{
		fetcher:  fetcher,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		imageURL: strings.TrimSuffix(cfg.ImageURL, "/"),
	}
	if a.baseURL == "" {
		a.baseURL = defaultBaseURL
	}
	if a.imageURL == "" {
		a.imageURL = defaultImageURL
	}
	return a
}

func (a *HaloOglasiAdapter) Source() domain.SourceName { return domain.SourceHaloOglasi }

// DetailMode - в выдаче нет рекламодателя, отопления и координат
func (a *HaloOglasiAdapter) DetailMode() domain.DetailMode { return domain.DetailEnrich }

func (a *HaloOglasiAdapter) BuildRequest(criteria domain.SearchCriteria) (domain.RequestSpec, error) {
	criteria = criteria.WithDefaults()
	if err := criteria.Validate(); err != nil {
		return domain.RequestSpec{}, err
	}

	locations, err := locationIDs.Resolve(a.Source(), criteria.Municipalities)
	if err != nil {
		return domain.RequestSpec{}, err
	}

	section := "izdavanje-stanova"
	if criteria.RentOrSale == domain.Sale {
		section = "prodaja-stanova"
	}

	query := url.Values{}
	query.Set("grad_id_l-lokacija_id_l-mikrolokacija_id_l", strings.Join(locations, ","))
	query.Set("cena_d_unit", "4")
	query.Set("page", strconv.Itoa(criteria.Page))
	if criteria.MinPrice > 0 {
		query.Set("cena_d_from", strconv.FormatFloat(criteria.MinPrice, 'f', -1, 64))
	}
	if criteria.MaxPrice > 0 {
		query.Set("cena_d_to", strconv.FormatFloat(criteria.MaxPrice, 'f', -1, 64))
	}
	if len(criteria.Structures) > 0 {
		structures := append([]float64(nil), criteria.Structures...)
		sort.Float64s(structures)
		query.Set("broj_soba_order_i_from", strconv.Itoa(roomsOrder(structures[0])))
		query.Set("broj_soba_order_i_to", strconv.Itoa(roomsOrder(structures[len(structures)-1])))
	}

	return domain.RequestSpec{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/nekretnine/%s/beograd?%s", a.baseURL, section, query.Encode()),
	}, nil
}

// ExtractCandidates: нет состояния на странице - нет результатов
func (a *HaloOglasiAdapter) ExtractCandidates(raw *domain.RawResponse) ([]domain.Candidate, bool, error) {
	if raw.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("%w: halooglasi search returned status %d", domain.ErrSourceShape, raw.StatusCode)
	}

	var state serverListData
	if err := scriptstate.Decode(raw.Body, markerListData, &state); err != nil {
		if errors.Is(err, scriptstate.ErrMarkerNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	candidates := make([]domain.Candidate, 0, len(state.Ads))
	for _, item := range state.Ads {
		if item.ID == "" {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			SourceID: item.ID,
			URL:      a.baseURL + "/" + strings.TrimPrefix(item.RelativeURL, "/"),
			Price:    item.OtherFields.Price,
			Payload:  item,
		})
	}

	page := pageFromURL(raw.RequestURL)
	return candidates, len(state.Ads)*page < state.TotalCount, nil
}

func (a *HaloOglasiAdapter) Normalize(candidate domain.Candidate, criteria domain.SearchCriteria) (*domain.Listing, error) {
	item, ok := candidate.Payload.(listAd)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected halooglasi payload %T", domain.ErrSourceShape, candidate.Payload)
	}
	fields := item.OtherFields

	listing := &domain.Listing{
		ID:           domain.ListingID(a.Source(), candidate.SourceID),
		SourceID:     candidate.SourceID,
		SourceName:   a.Source(),
		Price:        candidate.Price,
		Size:         domain.Float64Ptr(fields.Size),
		Address:      domain.StringPtr(fields.Street),
		Place:        domain.StringPtr(providerkit.CanonicalPlace(fields.Microlocation)),
		Municipality: providerkit.CanonicalPlace(fields.Municipality),
		Floor:        domain.StringPtr(fields.Floor),
		Furnished:    furnishedFromName(fields.Furnished),
		HeatingTypes: heatingFromName(fields.Heating),
		RentOrSale:   criteria.RentOrSale,
		URL:          candidate.URL,
	}
	if rooms, ok := providerkit.ParseNumber(fields.Rooms); ok {
		listing.Structure = domain.Float64Ptr(rooms)
	}
	if len(item.ImageURLs) > 0 {
		listing.CoverPhotoURL = a.absoluteImage(item.ImageURLs[0])
	}
	if posted, err := time.Parse(time.RFC3339, item.ValidFrom); err == nil {
		listing.PostedAt = &posted
	}

	return listing, nil
}

func (a *HaloOglasiAdapter) BuildDetailRequest(sourceID, listingURL string) (domain.RequestSpec, error) {
	if listingURL == "" {
		return domain.RequestSpec{}, fmt.Errorf("%w: halooglasi listing %s has no url", domain.ErrConfiguration, sourceID)
	}
	return domain.RequestSpec{Method: http.MethodGet, URL: listingURL}, nil
}

// EnrichFromDetail дополняет рекламодателя, отопление, точный этаж и координаты
func (a *HaloOglasiAdapter) EnrichFromDetail(raw *domain.RawResponse, listing *domain.Listing) error {
	if raw.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: halooglasi detail page returned status %d", domain.ErrSourceShape, raw.StatusCode)
	}

	var classified currentClassified
	if err := scriptstate.Decode(raw.Body, markerClassified, &classified); err != nil {
		return fmt.Errorf("halooglasi detail %s: %w", listing.SourceID, err)
	}
	fields := classified.OtherFields

	if floor := preciseFloor(fields.Floor, fields.FloorTotal); floor != nil {
		listing.Floor = floor
	}
	if heating := heatingFromName(fields.Heating); len(heating) > 0 {
		listing.HeatingTypes = heating
	}
	if furnished := furnishedFromName(fields.Furnished); furnished != domain.FurnishedUnknown {
		listing.Furnished = furnished
	}
	if t, ok := advertiserTypes[strings.ToLower(strings.TrimSpace(fields.AdvertiserType))]; ok {
		listing.AdvertiserType = &t
	}
	if listing.Address == nil {
		listing.Address = domain.StringPtr(fields.Street)
	}
	if listing.Municipality == "" {
		listing.Municipality = providerkit.CanonicalPlace(fields.Municipality)
	}
	if listing.CoverPhotoURL == nil && len(classified.ImageURLs) > 0 {
		listing.CoverPhotoURL = a.absoluteImage(classified.ImageURLs[0])
	}
	if location := parseGeoLocation(classified.GeoLocationRPT); location != nil {
		listing.Location = location
	}

	var contact currentContactData
	if err := scriptstate.Decode(raw.Body, markerContactData, &contact); err == nil {
		listing.AdvertiserName = domain.StringPtr(contact.Advertiser.DisplayName)
	}

	return nil
}

func (a *HaloOglasiAdapter) IsInactive(ctx context.Context, sourceID, listingURL string) domain.Liveness {
	req, err := a.BuildDetailRequest(sourceID, listingURL)
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Cannot build liveness request", err, port.Fields{"source_id": sourceID})
		return domain.LivenessUnknown
	}
	return providerkit.Probe(ctx, a.fetcher, a.Source(), req, inspectClassified)
}

// inspectClassified проверяет состояние объявления на его странице
func inspectClassified(raw *domain.RawResponse) domain.Liveness {
	if !bytes.Contains(raw.Body, []byte(stateEnvironment)) {
		return domain.LivenessUnknown
	}

	var classified currentClassified
	err := scriptstate.Decode(raw.Body, markerClassified, &classified)
	switch {
	case errors.Is(err, scriptstate.ErrMarkerNotFound), errors.Is(err, scriptstate.ErrNullLiteral):
		return domain.LivenessInactive
	case err != nil:
		return domain.LivenessUnknown
	case classified.StateID == statePaused, classified.StateID == stateExpired:
		return domain.LivenessInactive
	default:
		return domain.LivenessActive
	}
}

func (a *HaloOglasiAdapter) absoluteImage(path string) *string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return &path
	}
	return domain.StringPtr(a.imageURL + "/" + strings.TrimPrefix(path, "/"))
}

// roomsOrder - порядковый номер структуры на сайте: 0.5 -> 1, 1.0 -> 2, ... 4.5+ -> 9
func roomsOrder(rooms float64) int {
	order := int(math.Round(rooms * 2))
	switch {
	case order < 1:
		return 1
	case order > 9:
		return 9
	default:
		return order
	}
}

func preciseFloor(floor, total string) *string {
	floor = strings.TrimSpace(floor)
	total = strings.TrimSpace(total)
	if floor == "" {
		return nil
	}
	if total == "" {
		return &floor
	}
	return domain.StringPtr(floor + "/" + total)
}

func furnishedFromName(name string) domain.Furnished {
	if f, ok := furnishedNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f
	}
	return domain.FurnishedUnknown
}

func heatingFromName(name string) []string {
	heating := []string{}
	for _, part := range strings.Split(name, ",") {
		if h, ok := heatingNames[strings.ToLower(strings.TrimSpace(part))]; ok {
			heating = append(heating, h)
		}
	}
	return heating
}

func parseGeoLocation(raw string) *domain.GeoPoint {
	lat, lng, found := strings.Cut(raw, ",")
	if !found {
		return nil
	}
	latitude, errLat := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	longitude, errLng := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if errLat != nil || errLng != nil {
		return nil
	}
	return &domain.GeoPoint{Latitude: latitude, Longitude: longitude}
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

var _ port.ProviderPort = (*HaloOglasiAdapter)(nil)
