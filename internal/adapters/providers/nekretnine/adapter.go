package nekretnine

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"listing-aggregator-service/internal/adapters/providers/providerkit"
	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultBaseURL  = "https://www.nekretnine.rs"
	defaultPageSize = 20
)

var districtSlugs = providerkit.NewMunicipalityTable(map[string]string{
	"Čukarica":     "cukarica",
	"Novi Beograd": "novi-beograd",
	"Palilula":     "palilula",
	"Rakovica":     "rakovica",
	"Savski venac": "savski-venac",
	"Stari grad":   "stari-grad",
	"Voždovac":     "vozdovac",
	"Vračar":       "vracar",
	"Zemun":        "zemun",
	"Zvezdara":     "zvezdara",
})

var heatingNames = map[string]string{
	"centralno":      "district",
	"etažno":         "central-private",
	"struja":         "electric",
	"ta peć":         "storage-heater",
	"gas":            "gas",
	"podno":          "underfloor",
	"toplotna pumpa": "heat-pump",
}

var furnishedNames = map[string]domain.Furnished{
	"namešten":     domain.FurnishedFull,
	"polunamešten": domain.FurnishedSemi,
	"nenamešten":   domain.FurnishedEmpty,
}

type Config struct {
	BaseURL  string
	PageSize int
}

// summary - то, что есть в выдаче кроме id, url и цены
type summary struct {
	Title string
}

// NekretnineAdapter разбирает HTML-выдачу nekretnine.rs. В выдаче только id, url и цена,
// остальные поля берутся со страницы объявления.
type NekretnineAdapter struct {
	fetcher  port.FetcherPort
	baseURL  string
	pageSize int
}

func NewNekretnineAdapter(cfg Config, fetcher port.FetcherPort) *NekretnineAdapter {
	a := &NekretnineAdapter{
		fetcher:  fetcher,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		pageSize: cfg.PageSize,
	}
	if a.baseURL == "" {
		a.baseURL = defaultBaseURL
	}
	if a.pageSize <= 0 {
		a.pageSize = defaultPageSize
	}
	return a
}

func (a *NekretnineAdapter) Source() domain.SourceName { return domain.SourceNekretnine }

func (a *NekretnineAdapter) DetailMode() domain.DetailMode { return domain.DetailRequired }

// BuildRequest строит путь выдачи. Смещение в пути считается от нуля.
func (a *NekretnineAdapter) BuildRequest(criteria domain.SearchCriteria) (domain.RequestSpec, error) {
	criteria = criteria.WithDefaults()
	if err := criteria.Validate(); err != nil {
		return domain.RequestSpec{}, err
	}

	slugs, err := districtSlugs.Resolve(a.Source(), criteria.Municipalities)
	if err != nil {
		return domain.RequestSpec{}, err
	}

	kind := "izdavanje"
	if criteria.RentOrSale == domain.Sale {
		kind = "prodaja"
	}

	var path strings.Builder
	fmt.Fprintf(&path, "/stambeni-objekti/stanovi/izdavanje-prodaja/%s/grad/beograd/deo-grada/%s", kind, strings.Join(slugs, "_"))
	if criteria.MinPrice > 0 || criteria.MaxPrice > 0 {
		fmt.Fprintf(&path, "/cena/%s_%s", priceBound(criteria.MinPrice), priceBound(criteria.MaxPrice))
	}
	offset := (criteria.Page - 1) * a.pageSize
	fmt.Fprintf(&path, "/lista/po-stranici/%d/od/%d/", a.pageSize, offset)

	return domain.RequestSpec{Method: http.MethodGet, URL: a.baseURL + path.String()}, nil
}

// ExtractCandidates: выдача не сообщает о следующей странице, поэтому всегда true.
// Сбор останавливается на пустой странице.
func (a *NekretnineAdapter) ExtractCandidates(raw *domain.RawResponse) ([]domain.Candidate, bool, error) {
	if raw.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("%w: nekretnine search returned status %d", domain.ErrSourceShape, raw.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		return nil, false, fmt.Errorf("%w: nekretnine search page: %v", domain.ErrSourceShape, err)
	}

	var candidates []domain.Candidate
	doc.Find("div.offer").Each(func(i int, s *goquery.Selection) {
		link := s.Find(".offer-title a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		id := idFromPath(href)
		if id == "" {
			return
		}
		candidates = append(candidates, domain.Candidate{
			SourceID: id,
			URL:      a.absolute(href),
			Price:    providerkit.ParsePrice(s.Find(".offer-price").First().Text()),
			Payload:  summary{Title: strings.TrimSpace(link.Text())},
		})
	})

	return candidates, true, nil
}

// Normalize заполняет только идентичность и цену
func (a *NekretnineAdapter) Normalize(candidate domain.Candidate, criteria domain.SearchCriteria) (*domain.Listing, error) {
	if candidate.URL == "" {
		return nil, fmt.Errorf("%w: nekretnine candidate %s has no url", domain.ErrSourceShape, candidate.SourceID)
	}
	return &domain.Listing{
		ID:           domain.ListingID(a.Source(), candidate.SourceID),
		SourceID:     candidate.SourceID,
		SourceName:   a.Source(),
		Price:        candidate.Price,
		Furnished:    domain.FurnishedUnknown,
		HeatingTypes: []string{},
		RentOrSale:   criteria.RentOrSale,
		URL:          candidate.URL,
	}, nil
}

func (a *NekretnineAdapter) BuildDetailRequest(sourceID, listingURL string) (domain.RequestSpec, error) {
	if listingURL == "" {
		return domain.RequestSpec{}, fmt.Errorf("%w: nekretnine listing %s has no url", domain.ErrConfiguration, sourceID)
	}
	return domain.RequestSpec{Method: http.MethodGet, URL: listingURL}, nil
}

func (a *NekretnineAdapter) EnrichFromDetail(raw *domain.RawResponse, listing *domain.Listing) error {
	if raw.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: nekretnine detail page returned status %d", domain.ErrSourceShape, raw.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		return fmt.Errorf("%w: nekretnine detail page: %v", domain.ErrSourceShape, err)
	}
	if doc.Find("h1.detail-title").Length() == 0 {
		return fmt.Errorf("%w: nekretnine detail page for %s has no title", domain.ErrSourceShape, listing.SourceID)
	}

	var locations []string
	doc.Find(".property__location li").Each(func(i int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			locations = append(locations, text)
		}
	})
	// Srbija > Beograd > район > микрорайон
	if len(locations) >= 3 {
		listing.Municipality = providerkit.CanonicalPlace(locations[2])
	}
	if len(locations) >= 4 {
		listing.Place = domain.StringPtr(providerkit.CanonicalPlace(locations[3]))
	}

	listing.Address = domain.StringPtr(doc.Find(".stickyBox__Location").First().Text())
	if image, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		listing.CoverPhotoURL = domain.StringPtr(image)
	}
	listing.AdvertiserName = domain.StringPtr(doc.Find(".property__contact-side .contact-name").First().Text())
	listing.AdvertiserType = domain.StringPtr(strings.ToLower(doc.Find(".property__contact-side .contact-type").First().Text()))

	doc.Find(".property__amenities li, .property__main-details li").Each(func(i int, s *goquery.Selection) {
		key, value, found := strings.Cut(s.Text(), ":")
		if !found {
			return
		}
		applyAmenity(listing, strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value))
	})

	if mapNode := doc.Find("#map").First(); mapNode.Length() > 0 {
		lat, errLat := strconv.ParseFloat(mapNode.AttrOr("data-lat", ""), 64)
		lng, errLng := strconv.ParseFloat(mapNode.AttrOr("data-lng", ""), 64)
		if errLat == nil && errLng == nil {
			listing.Location = &domain.GeoPoint{Latitude: lat, Longitude: lng}
		}
	}

	return nil
}

func (a *NekretnineAdapter) IsInactive(ctx context.Context, sourceID, listingURL string) domain.Liveness {
	req, err := a.BuildDetailRequest(sourceID, listingURL)
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Cannot build liveness request", err, port.Fields{"source_id": sourceID})
		return domain.LivenessUnknown
	}
	return providerkit.Probe(ctx, a.fetcher, a.Source(), req, nil)
}

func applyAmenity(listing *domain.Listing, key, value string) {
	switch key {
	case "spratnost", "sprat":
		listing.Floor = domain.StringPtr(value)
	case "grejanje":
		for _, part := range strings.Split(value, ",") {
			if h, ok := heatingNames[strings.ToLower(strings.TrimSpace(part))]; ok {
				listing.HeatingTypes = append(listing.HeatingTypes, h)
			}
		}
	case "opremljenost", "namešten":
		if f, ok := furnishedNames[strings.ToLower(value)]; ok {
			listing.Furnished = f
		}
	case "površina", "kvadratura":
		if size, ok := providerkit.ParseNumber(value); ok {
			listing.Size = domain.Float64Ptr(size)
		}
	case "broj soba", "sobnost":
		if rooms, ok := providerkit.ParseNumber(value); ok {
			listing.Structure = domain.Float64Ptr(rooms)
		}
	}
}

func (a *NekretnineAdapter) absolute(href string) string {
	u, err := url.Parse(href)
	if err == nil && u.IsAbs() {
		return href
	}
	return a.baseURL + "/" + strings.TrimPrefix(href, "/")
}

// idFromPath - последний непустой сегмент пути: /stambeni-objekti/stanovi/naslov/NkI8xg0t4fz/
func idFromPath(href string) string {
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	segments := strings.Split(strings.Trim(href, "/"), "/")
	return segments[len(segments)-1]
}

func priceBound(v float64) string {
	if v <= 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}

var _ port.ProviderPort = (*NekretnineAdapter)(nil)
