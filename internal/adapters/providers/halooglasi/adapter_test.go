package halooglasi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"listing-aggregator-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	resp *domain.RawResponse
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, req domain.RequestSpec) (*domain.RawResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp := *f.resp
	resp.RequestURL = req.URL
	return &resp, nil
}

const searchHTML = `<html><body><script>
QuidditaEnvironment.serverListData = {"Ads":[
 {"Id":"5425645389291","Title":"Stan {2.0} \"Vračar\"","RelativeUrl":"/nekretnine/izdavanje-stanova/vracar/5425645389291",
  "ImageURLs":["/slike/oglasi/Thumbs/240101/l/1.jpg"],"ValidFrom":"2024-01-01T09:00:00Z",
  "OtherFields":{"cena_d":450,"kvadratura_d":56,"broj_soba_s":"2.0","sprat_s":"3","lokacija_s":"Opština Vračar",
   "mikrolokacija_s":"Crveni krst","ulica_t":"Kralja Milana"}},
 {"Id":"5425645389292","RelativeUrl":"/nekretnine/izdavanje-stanova/zvezdara/5425645389292","OtherFields":{"cena_d":0}}
],"TotalCount":41};
QuidditaEnvironment.otherState = {};
</script></body></html>`

const detailHTML = `<html><script>
QuidditaEnvironment.CurrentClassified = {"Id":"5425645389291","StateId":101,"GeoLocationRPT":"44.8012,20.4751",
 "OtherFields":{"sprat_s":"3","sprat_od_s":"5","grejanje_s":"CG","namestenost_s":"Namešten","oglasivac_nekretnine_s":"Agencija"}};
QuidditaEnvironment.CurrentContactData = {"Advertiser":{"DisplayName":"Nekretnine Plus"}};
</script></html>`

func criteria() domain.SearchCriteria {
	return domain.SearchCriteria{
		MaxPrice:       500,
		RentOrSale:     domain.Rent,
		Municipalities: []string{"Vračar", "Novi Beograd"},
		Structures:     []float64{2.5, 1},
		Page:           1,
	}
}

func TestBuildRequest(t *testing.T) {
	a := NewHaloOglasiAdapter(Config{}, &fakeFetcher{})

	spec, err := a.BuildRequest(criteria())
	require.NoError(t, err)

	u, err := url.Parse(spec.URL)
	require.NoError(t, err)
	assert.Equal(t, "/nekretnine/izdavanje-stanova/beograd", u.Path)
	q := u.Query()
	assert.Equal(t, "40381,40574", q.Get("grad_id_l-lokacija_id_l-mikrolokacija_id_l"))
	assert.Equal(t, "500", q.Get("cena_d_to"))
	assert.Equal(t, "2", q.Get("broj_soba_order_i_from"))
	assert.Equal(t, "5", q.Get("broj_soba_order_i_to"))
	assert.Equal(t, "1", q.Get("page"))
}

func TestExtractCandidates(t *testing.T) {
	a := NewHaloOglasiAdapter(Config{}, &fakeFetcher{})

	raw := &domain.RawResponse{StatusCode: http.StatusOK, RequestURL: "https://www.halooglasi.com/x?page=1", Body: []byte(searchHTML)}
	candidates, hasNext, err := a.ExtractCandidates(raw)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.True(t, hasNext, "2*1 < 41")
	assert.Equal(t, "https://www.halooglasi.com/nekretnine/izdavanje-stanova/vracar/5425645389291", candidates[0].URL)
	assert.Equal(t, 450.0, candidates[0].Price)

	raw.RequestURL = "https://www.halooglasi.com/x?page=21"
	_, hasNext, err = a.ExtractCandidates(raw)
	require.NoError(t, err)
	assert.False(t, hasNext, "2*21 >= 41")
}

func TestExtractCandidatesWithoutStateIsEmpty(t *testing.T) {
	a := NewHaloOglasiAdapter(Config{}, &fakeFetcher{})

	candidates, hasNext, err := a.ExtractCandidates(&domain.RawResponse{StatusCode: http.StatusOK, Body: []byte("<html>captcha</html>")})
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.False(t, hasNext)
}

func TestNormalizeAndEnrich(t *testing.T) {
	a := NewHaloOglasiAdapter(Config{}, &fakeFetcher{})
	raw := &domain.RawResponse{StatusCode: http.StatusOK, Body: []byte(searchHTML)}
	candidates, _, err := a.ExtractCandidates(raw)
	require.NoError(t, err)

	listing, err := a.Normalize(candidates[0], criteria())
	require.NoError(t, err)
	assert.Equal(t, "halooglasi_5425645389291", listing.ID)
	assert.Equal(t, "Vračar", listing.Municipality)
	assert.Equal(t, "Crveni Krst", *listing.Place)
	assert.Equal(t, "https://img.halooglasi.com/slike/oglasi/Thumbs/240101/l/1.jpg", *listing.CoverPhotoURL)
	assert.Equal(t, domain.FurnishedUnknown, listing.Furnished)
	assert.True(t, listing.IsComplete())

	spec, err := a.BuildDetailRequest(listing.SourceID, listing.URL)
	require.NoError(t, err)
	assert.Equal(t, listing.URL, spec.URL)

	require.NoError(t, a.EnrichFromDetail(&domain.RawResponse{StatusCode: http.StatusOK, Body: []byte(detailHTML)}, listing))
	assert.Equal(t, "3/5", *listing.Floor)
	assert.Equal(t, []string{"district"}, listing.HeatingTypes)
	assert.Equal(t, domain.FurnishedFull, listing.Furnished)
	assert.Equal(t, "agency", *listing.AdvertiserType)
	assert.Equal(t, "Nekretnine Plus", *listing.AdvertiserName)
	require.NotNil(t, listing.Location)
	assert.InDelta(t, 20.4751, listing.Location.Longitude, 1e-9)
}

func TestEnrichFailsWithoutClassified(t *testing.T) {
	a := NewHaloOglasiAdapter(Config{}, &fakeFetcher{})
	listing := &domain.Listing{SourceID: "1"}

	err := a.EnrichFromDetail(&domain.RawResponse{StatusCode: http.StatusOK, Body: []byte("<html></html>")}, listing)
	assert.Error(t, err)

	_, err = a.BuildDetailRequest("1", "")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestIsInactive(t *testing.T) {
	const adURL = "https://www.halooglasi.com/nekretnine/izdavanje-stanova/vracar/5425645389291"

	cases := map[string]struct {
		resp *domain.RawResponse
		err  error
		want domain.Liveness
	}{
		"active": {
			resp: &domain.RawResponse{StatusCode: http.StatusOK, Body: []byte(detailHTML)},
			want: domain.LivenessActive,
		},
		"not found": {
			resp: &domain.RawResponse{StatusCode: http.StatusNotFound},
			want: domain.LivenessInactive,
		},
		"state without classified": {
			resp: &domain.RawResponse{StatusCode: http.StatusOK, Body: []byte(`<script>QuidditaEnvironment.Settings = {};</script>`)},
			want: domain.LivenessInactive,
		},
		"classified is null": {
			resp: &domain.RawResponse{StatusCode: http.StatusOK, Body: []byte(`<script>QuidditaEnvironment.CurrentClassified = null;</script>`)},
			want: domain.LivenessInactive,
		},
		"expired": {
			resp: &domain.RawResponse{StatusCode: http.StatusOK, Body: []byte(`<script>QuidditaEnvironment.CurrentClassified = {"StateId":103};</script>`)},
			want: domain.LivenessInactive,
		},
		"paused": {
			resp: &domain.RawResponse{StatusCode: http.StatusOK, Body: []byte(`<script>QuidditaEnvironment.CurrentClassified = {"StateId":102};</script>`)},
			want: domain.LivenessInactive,
		},
		"no state at all": {
			resp: &domain.RawResponse{StatusCode: http.StatusOK, Body: []byte(`<html>maintenance</html>`)},
			want: domain.LivenessUnknown,
		},
		"connection reset": {
			err:  domain.ErrTransientNetwork,
			want: domain.LivenessUnknown,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			a := NewHaloOglasiAdapter(Config{}, &fakeFetcher{resp: tc.resp, err: tc.err})
			assert.Equal(t, tc.want, a.IsInactive(context.Background(), "5425645389291", adURL))
		})
	}
}
