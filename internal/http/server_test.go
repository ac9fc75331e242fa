package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"bmeutil/internal/core"
	applog "bmeutil/internal/log"
	"bmeutil/internal/metrics"
	"bmeutil/internal/middleware/ratelimit"
)

type fakeAPI struct {
	ready      bool
	equipment  map[string]core.Equipment
	device     *core.DeviceResponse
	summary    []core.MonthSummary
	err        error
	reloadErr  error
	reloads    int
	lastID     string
	lastFilter string
}

func (f *fakeAPI) InitialEquipmentMap(ctx context.Context) (map[string]core.Equipment, error) {
	return f.equipment, f.err
}

func (f *fakeAPI) BuildDeviceResponse(ctx context.Context, aeTitle string) (*core.DeviceResponse, error) {
	f.lastID = aeTitle
	if f.err != nil {
		return nil, f.err
	}
	return f.device, nil
}

func (f *fakeAPI) MonthlySummary(ctx context.Context, aeTitle, serviceFilter string) ([]core.MonthSummary, error) {
	f.lastID, f.lastFilter = aeTitle, serviceFilter
	return f.summary, f.err
}

func (f *fakeAPI) Reload(ctx context.Context) error {
	f.reloads++
	return f.reloadErr
}

func (f *fakeAPI) Ready() bool { return f.ready }

func newTestServer(t *testing.T, api *fakeAPI, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithLogger(applog.Discard())}, opts...)
	srv := NewServer(":0", api, opts...)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, method, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestHealthAndReady(t *testing.T) {
	api := &fakeAPI{}
	srv := newTestServer(t, api)

	if rr := serve(srv, http.MethodGet, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	if rr := serve(srv, http.MethodGet, "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before load status=%d", rr.Code)
	}
	api.ready = true
	if rr := serve(srv, http.MethodGet, "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("readyz after load status=%d", rr.Code)
	}
}

func TestInitialData(t *testing.T) {
	install := core.NewDate(2022, 1, 15)
	api := &fakeAPI{equipment: map[string]core.Equipment{
		"AE1": {AETitle: "AE1", CapEx: 120000, MonthlyDep: 2000, DepMonths: 60, OrderNum: "4500", Name: "CT Scanner", InstallDate: &install},
		"AE2": {AETitle: "AE2", CapEx: 5000, MonthlyDep: 250, DepMonths: 20},
	}}
	srv := newTestServer(t, api)

	rr := serve(srv, http.MethodGet, "/api/initial-data")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}

	var body struct {
		BMEMap map[string]map[string]any `json:"bmeMap"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	ae1 := body.BMEMap["AE1"]
	if ae1["bmeName"] != "CT Scanner" || ae1["installDate"] != "2022-01-15" || ae1["monthlyDep"] != 2000.0 {
		t.Errorf("AE1 = %v", ae1)
	}
	if v, ok := body.BMEMap["AE2"]["installDate"]; !ok || v != nil {
		t.Errorf("missing install date must encode as null, got %v", body.BMEMap["AE2"])
	}
}

func TestDeviceData(t *testing.T) {
	api := &fakeAPI{device: &core.DeviceResponse{
		SAPMap:          map[string]float64{"4500-2024-01": 150},
		PACSDataDetails: []core.RowRecord{{AETitle: "AE1", YearMonth: "2024-01", ServiceCode: "X001", OrderQty: 10}},
		AllUniqueDates:  []string{"2024-01-01"},
		TodayStr:        "2024-06-01",
		DeviceInfo:      core.DeviceInfo{OrderNum: "4500"},
	}}
	srv := newTestServer(t, api)

	rr := serve(srv, http.MethodGet, "/api/device-data/AE1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	if api.lastID != "AE1" {
		t.Errorf("service called with %q", api.lastID)
	}
	for _, want := range []string{`"sapMap":{"4500-2024-01":150}`, `"todayStr":"2024-06-01"`, `"serviceCode":"X001"`, `"installDate":null`} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("body missing %s: %s", want, rr.Body)
		}
	}
}

func TestDeviceDataErrors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"unknown device", "/api/device-data/NOPE", core.NotFoundf("AE title %q", "NOPE"), http.StatusNotFound, `not found: AE title "NOPE"`},
		{"validation", "/api/device-data/AE1", core.Invalidf("no procedure or expense history"), http.StatusBadRequest, "validation failed: no procedure or expense history"},
		{"fatal load", "/api/device-data/AE1", &core.LoadError{Source: "equipment", Fatal: true, Err: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable, "reference data unavailable"},
		{"internal", "/api/device-data/AE1", errors.New("pq: secret detail"), http.StatusInternalServerError, "internal server error"},
		{"missing id", "/api/device-data/", nil, http.StatusBadRequest, "validation failed: no AE title provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeAPI{err: tt.err})
			rr := serve(srv, http.MethodGet, tt.target)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d", rr.Code, tt.wantStatus)
			}
			if got := decodeError(t, rr); got != tt.wantMsg {
				t.Errorf("error = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestDeviceSummary(t *testing.T) {
	api := &fakeAPI{summary: []core.MonthSummary{{Date: "2024-01-01", YearMonth: "2024-01", RevenuePL: 1660}}}
	srv := newTestServer(t, api)

	rr := serve(srv, http.MethodGet, "/api/device-summary/AE1?service=%20X002%20")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	if api.lastID != "AE1" || api.lastFilter != "X002" {
		t.Errorf("called with %q/%q", api.lastID, api.lastFilter)
	}

	var body summaryResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.AETitle != "AE1" || body.Service != "X002" || len(body.Months) != 1 || body.Months[0].RevenuePL != 1660 {
		t.Errorf("body = %+v", body)
	}
}

func TestReload(t *testing.T) {
	api := &fakeAPI{}
	srv := newTestServer(t, api)

	if rr := serve(srv, http.MethodGet, "/api/reload"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET reload status=%d", rr.Code)
	}

	rr := serve(srv, http.MethodPost, "/api/reload")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"reloaded"`) {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}

	api.reloadErr = &core.LoadError{Source: "ledger", Fatal: true, Err: context.DeadlineExceeded}
	rr = serve(srv, http.MethodPost, "/api/reload")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("failed reload status=%d", rr.Code)
	}
	if api.reloads != 2 {
		t.Errorf("reloads = %d", api.reloads)
	}
}

func TestReloadRateLimited(t *testing.T) {
	m := metrics.New()
	api := &fakeAPI{}
	srv := newTestServer(t, api, WithMetrics(m), WithReloadLimit(ratelimit.Config{Requests: 1}))

	first := serve(srv, http.MethodPost, "/api/reload")
	second := serve(srv, http.MethodPost, "/api/reload")
	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Fatalf("codes = %d, %d", first.Code, second.Code)
	}
	if api.reloads != 1 {
		t.Errorf("reloads = %d", api.reloads)
	}
	if got := testutil.ToFloat64(m.RateLimited); got != 1 {
		t.Errorf("rate limited counter = %v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	srv := newTestServer(t, &fakeAPI{}, WithMetrics(m))

	serve(srv, http.MethodGet, "/healthz")
	rr := serve(srv, http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `bmeutil_http_requests_total{code="200",method="GET"} 1`) {
		t.Fatalf("status=%d body missing request counter", rr.Code)
	}

	if rr := serve(newTestServer(t, &fakeAPI{}), http.MethodGet, "/metrics"); rr.Code != http.StatusNotFound {
		t.Errorf("metrics must be off without WithMetrics, status=%d", rr.Code)
	}
}

func TestResponsesCarrySecurityHeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t, &fakeAPI{equipment: map[string]core.Equipment{}})
	rr := serve(srv, http.MethodGet, "/api/initial-data")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}
