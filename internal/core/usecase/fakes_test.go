package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
)

// fakeProvider отдает заранее заданные страницы. URL запроса: fake://<source>/page/<n>
type fakeProvider struct {
	name       domain.SourceName
	mode       domain.DetailMode
	pages      map[int][]domain.Candidate
	alwaysNext bool
	panicPage  int
	liveness   map[string]domain.Liveness
	enrich     func(*domain.Listing) error

	mu         sync.Mutex
	normalized []string
	probed     []string
}

func (p *fakeProvider) Source() domain.SourceName     { return p.name }
func (p *fakeProvider) DetailMode() domain.DetailMode { return p.mode }

func (p *fakeProvider) BuildRequest(c domain.SearchCriteria) (domain.RequestSpec, error) {
	return domain.RequestSpec{URL: fmt.Sprintf("fake://%s/page/%d", p.name, c.Page)}, nil
}

func (p *fakeProvider) ExtractCandidates(raw *domain.RawResponse) ([]domain.Candidate, bool, error) {
	page, _ := strconv.Atoi(raw.RequestURL[strings.LastIndex(raw.RequestURL, "/")+1:])
	if p.panicPage == page {
		panic("unexpected markup")
	}
	_, hasMore := p.pages[page+1]
	return p.pages[page], p.alwaysNext || hasMore, nil
}

func (p *fakeProvider) Normalize(c domain.Candidate, crit domain.SearchCriteria) (*domain.Listing, error) {
	p.mu.Lock()
	p.normalized = append(p.normalized, c.SourceID)
	p.mu.Unlock()

	l := &domain.Listing{
		ID:         domain.ListingID(p.name, c.SourceID),
		SourceID:   c.SourceID,
		SourceName: p.name,
		Price:      c.Price,
		URL:        "https://" + string(p.name) + "/" + c.SourceID,
		RentOrSale: crit.RentOrSale,
	}
	if c.Payload != "sparse" {
		fillRequired(l)
	}
	return l, nil
}

func (p *fakeProvider) BuildDetailRequest(sourceID, url string) (domain.RequestSpec, error) {
	return domain.RequestSpec{URL: fmt.Sprintf("fake://%s/detail/%s", p.name, sourceID)}, nil
}

func (p *fakeProvider) EnrichFromDetail(raw *domain.RawResponse, l *domain.Listing) error {
	if p.enrich == nil {
		return nil
	}
	return p.enrich(l)
}

func (p *fakeProvider) IsInactive(ctx context.Context, sourceID, url string) domain.Liveness {
	p.mu.Lock()
	p.probed = append(p.probed, sourceID)
	p.mu.Unlock()
	return p.liveness[sourceID]
}

func fillRequired(l *domain.Listing) {
	l.Address = domain.StringPtr("Kralja Milana 1")
	l.CoverPhotoURL = domain.StringPtr("https://img/1.jpg")
	l.Floor = domain.StringPtr("2")
	l.Municipality = "Vračar"
}

func candidates(ids ...string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Candidate{SourceID: id, Price: 500})
	}
	return out
}

type fakeRegistry struct {
	providers []port.ProviderPort
}

func (r *fakeRegistry) Providers() []port.ProviderPort { return r.providers }

func (r *fakeRegistry) Provider(name domain.SourceName) (port.ProviderPort, error) {
	for _, p := range r.providers {
		if p.Source() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrConfiguration, name)
}

// fakeFetcher отвечает 200 на все, кроме URL с префиксами из failures
type fakeFetcher struct {
	mu       sync.Mutex
	failures map[string]error
	delays   map[string]time.Duration
	requests []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, req domain.RequestSpec) (*domain.RawResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req.URL)
	f.mu.Unlock()

	for prefix, d := range f.delays {
		if strings.HasPrefix(req.URL, prefix) {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", domain.ErrTransientNetwork, ctx.Err())
			}
		}
	}
	for prefix, err := range f.failures {
		if strings.HasPrefix(req.URL, prefix) {
			return nil, err
		}
	}
	return &domain.RawResponse{StatusCode: 200, RequestURL: req.URL, FinalURL: req.URL}, nil
}

func (f *fakeFetcher) requested(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, u := range f.requests {
		if strings.HasPrefix(u, prefix) {
			out = append(out, u)
		}
	}
	return out
}

type fakeStore struct {
	mu          sync.Mutex
	listings    map[string]domain.Listing
	bulkErr     error
	bulkCalls   int
	pagesListed []int
}

func newFakeStore(existing ...domain.Listing) *fakeStore {
	s := &fakeStore{listings: make(map[string]domain.Listing)}
	for _, l := range existing {
		s.listings[l.ID] = l
	}
	return s
}

func (s *fakeStore) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *fakeStore) BulkInsert(ctx context.Context, listings []domain.Listing) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulkCalls++
	if s.bulkErr != nil {
		return 0, s.bulkErr
	}
	inserted := 0
	for _, l := range listings {
		if _, ok := s.listings[l.ID]; ok {
			continue
		}
		s.listings[l.ID] = l
		inserted++
	}
	return inserted, nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listings, id)
	return nil
}

func (s *fakeStore) TouchLastChecked(ctx context.Context, id string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return errors.New("not found")
	}
	l.LastCheckedAt = checkedAt
	s.listings[id] = l
	return nil
}

func (s *fakeStore) ListIDsPage(ctx context.Context, page, pageSize int) ([]string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pagesListed = append(s.pagesListed, page)

	ids := make([]string, 0, len(s.listings))
	for id := range s.listings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := (page - 1) * pageSize
	if start >= len(ids) {
		return []string{}, len(ids), nil
	}
	end := min(start+pageSize, len(ids))
	return ids[start:end], len(ids), nil
}

func (s *fakeStore) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.listings))
	for id := range s.listings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type fakeEvents struct {
	mu      sync.Mutex
	created []string
	deleted []string
}

func (e *fakeEvents) PublishCreated(ctx context.Context, listings []domain.Listing) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, l := range listings {
		e.created = append(e.created, l.ID)
	}
	return nil
}

func (e *fakeEvents) PublishDeleted(ctx context.Context, l domain.Listing) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = append(e.deleted, l.ID)
	return nil
}

func rentCriteria() domain.SearchCriteria {
	return domain.SearchCriteria{RentOrSale: domain.Rent, Municipalities: []string{"Vračar"}, MaxPrice: 1000}
}
