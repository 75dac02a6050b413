package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntryPoints struct {
	mu        sync.Mutex
	ingestion []domain.SearchCriteria
	liveness  int
	traceIDs  []string
}

func (f *fakeEntryPoints) RunIngestionSweep(ctx context.Context, criteria domain.SearchCriteria) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingestion = append(f.ingestion, criteria)
	f.traceIDs = append(f.traceIDs, contextkeys.TraceIDFromContext(ctx))
	return "run-1"
}

func (f *fakeEntryPoints) RunLivenessSweep(ctx context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveness++
	return "run-2"
}

type fakePresets map[string]domain.SearchCriteria

func (f fakePresets) Preset(name string) (domain.SearchCriteria, bool) {
	c, ok := f[name]
	return c, ok
}

func (f fakePresets) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	return names
}

type nopLogger struct{}

func (nopLogger) Info(string, port.Fields)                 {}
func (nopLogger) Warn(string, port.Fields)                 {}
func (nopLogger) Error(string, error, port.Fields)         {}
func (nopLogger) Debug(string, port.Fields)                {}
func (l nopLogger) WithFields(port.Fields) port.LoggerPort { return l }

func newTestServer(t *testing.T, presets fakePresets) (*httptest.Server, *fakeEntryPoints) {
	t.Helper()
	entry := &fakeEntryPoints{}
	srv := httptest.NewServer(NewRouter(NewSweepHandlers(entry, presets), nopLogger{}))
	t.Cleanup(srv.Close)
	return srv, entry
}

func post(t *testing.T, url, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, fakePresets{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
}

func TestRunIngestionWithCriteria(t *testing.T) {
	srv, entry := newTestServer(t, fakePresets{})

	body := `{"criteria":{"rentOrSale":"rent","municipalities":["Vračar","Zvezdara"],"minPrice":200,"maxPrice":700}}`
	resp := post(t, srv.URL+"/api/v1/sweeps/ingestion", body, map[string]string{"X-Trace-ID": "trace-9"})

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var started SweepStartedDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	assert.Equal(t, "run-1", started.RunID)

	require.Len(t, entry.ingestion, 1)
	assert.Equal(t, []string{"Vračar", "Zvezdara"}, entry.ingestion[0].Municipalities)
	assert.Equal(t, 1, entry.ingestion[0].Page)
	assert.Equal(t, "trace-9", entry.traceIDs[0])
}

func TestRunIngestionWithPreset(t *testing.T) {
	preset := domain.SearchCriteria{RentOrSale: domain.Sale, Municipalities: []string{"Zemun"}, Page: 1}
	srv, entry := newTestServer(t, fakePresets{"zemun": preset})

	resp := post(t, srv.URL+"/api/v1/sweeps/ingestion", `{"preset":"zemun"}`, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, entry.ingestion, 1)
	assert.Equal(t, preset, entry.ingestion[0])

	resp = post(t, srv.URL+"/api/v1/sweeps/ingestion", `{"preset":"missing"}`, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunIngestionRejectsBadRequests(t *testing.T) {
	srv, entry := newTestServer(t, fakePresets{"zemun": {RentOrSale: domain.Sale, Municipalities: []string{"Zemun"}, Page: 1}})

	bodies := []string{
		``,
		`{"criteria":`,
		`{}`,
		`{"preset":"zemun","criteria":{"rentOrSale":"rent","municipalities":["Vračar"]}}`,
		`{"criteria":{"rentOrSale":"lease","municipalities":["Vračar"]}}`,
		`{"criteria":{"rentOrSale":"rent","municipalities":[]}}`,
		`{"criteria":{"rentOrSale":"rent","municipalities":["Vračar"],"minPrice":900,"maxPrice":100}}`,
	}
	for _, body := range bodies {
		resp := post(t, srv.URL+"/api/v1/sweeps/ingestion", body, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
	assert.Empty(t, entry.ingestion)
}

func TestRunLiveness(t *testing.T) {
	srv, entry := newTestServer(t, fakePresets{})

	resp := post(t, srv.URL+"/api/v1/sweeps/liveness", ``, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started SweepStartedDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	assert.Equal(t, "run-2", started.RunID)
	assert.Equal(t, 1, entry.liveness)
}

func TestListPresets(t *testing.T) {
	srv, _ := newTestServer(t, fakePresets{"zemun": {}})

	resp, err := http.Get(srv.URL + "/api/v1/presets")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"zemun"}, out["presets"])
}
