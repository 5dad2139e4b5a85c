package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vendor-match/internal/config"
	"github.com/sells-group/vendor-match/internal/matching"
	"github.com/sells-group/vendor-match/internal/model"
	"github.com/sells-group/vendor-match/internal/scorer"
	"github.com/sells-group/vendor-match/internal/suggest"
	"github.com/sells-group/vendor-match/internal/vetting"
)

type fakeService struct {
	suggestions *suggest.Suggestions
	score       *suggest.VendorScore
	err         error
	panicOn     string
	gotID       string
}

func (f *fakeService) Suggest(_ context.Context, id string) (*suggest.Suggestions, error) {
	f.gotID = id
	if f.panicOn == id {
		panic("boom")
	}
	return f.suggestions, f.err
}

func (f *fakeService) VendorScore(_ context.Context, id string) (*suggest.VendorScore, error) {
	f.gotID = id
	return f.score, f.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Port:               8080,
		RequestTimeoutSecs: 5,
		CORSOrigins:        []string{"*"},
	}
}

func newTestRouter(t *testing.T, svc Service, pinger Pinger) http.Handler {
	t.Helper()
	vet, err := vetting.NewCalculator(vetting.DefaultConfig())
	require.NoError(t, err)
	return NewRouter(testServerConfig(), NewHandler(svc, vet, pinger))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func sampleSuggestions() *suggest.Suggestions {
	return &suggest.Suggestions{
		Request: suggest.RequestSummary{
			ID:          "req-1",
			ServiceType: "plumbing",
			ZipCode:     "19103",
			Urgency:     model.UrgencyHigh,
		},
		Result: matching.Result{
			Suggestions: []matching.VendorWithMatchScore{{
				ID:   "v1",
				Name: "Pat",
				Tier: scorer.TierExcellent,
				MatchScore: matching.MatchScore{
					TotalScore:  91.5,
					Confidence:  matching.ConfidenceHigh,
					Recommended: true,
					Factors:     []matching.MatchFactor{{Name: matching.FactorPerformance, Weight: 0.35, Score: 92}},
					Warnings:    []matching.MatchWarning{},
				},
			}},
			OtherVendors: []matching.VendorWithMatchScore{},
			Meta:         matching.Meta{TotalEligible: 1, TotalRecommended: 1, AverageScore: 91.5, ScoringVersion: "2.0"},
		},
	}
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, &fakeService{}, fakePinger{})

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHealth_StoreDown(t *testing.T) {
	h := newTestRouter(t, &fakeService{}, fakePinger{err: eris.New("db down")})

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSuggestions_OK(t *testing.T) {
	svc := &fakeService{suggestions: sampleSuggestions()}
	h := newTestRouter(t, svc, nil)

	rec := do(t, h, http.MethodGet, "/requests/req-1/suggestions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", svc.gotID)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeBody(t, rec)
	request := body["request"].(map[string]any)
	assert.Equal(t, "req-1", request["id"])
	assert.Equal(t, "plumbing", request["service_type"])
	assert.Equal(t, "high", request["urgency"])

	suggestions := body["suggestions"].([]any)
	require.Len(t, suggestions, 1)
	first := suggestions[0].(map[string]any)
	assert.Equal(t, "v1", first["id"])
	ms := first["matchScore"].(map[string]any)
	assert.Equal(t, 91.5, ms["totalScore"])
	assert.Equal(t, true, ms["recommended"])

	assert.Equal(t, []any{}, body["otherVendors"])
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(1), meta["totalEligible"])
	assert.Equal(t, "2.0", meta["scoringVersion"])
}

func TestSuggestions_NotFound(t *testing.T) {
	svc := &fakeService{err: eris.Wrapf(suggest.ErrRequestNotFound, "request %s", "nope")}
	h := newTestRouter(t, svc, nil)

	rec := do(t, h, http.MethodGet, "/requests/nope/suggestions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "request not found", decodeBody(t, rec)["error"])
}

func TestSuggestions_StoreError(t *testing.T) {
	svc := &fakeService{err: eris.New("postgres: list reviews: connection reset")}
	h := newTestRouter(t, svc, nil)

	rec := do(t, h, http.MethodGet, "/requests/req-1/suggestions", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeBody(t, rec)["error"])
}

func TestSuggestions_PanicRecovered(t *testing.T) {
	svc := &fakeService{panicOn: "bad"}
	h := newTestRouter(t, svc, nil)

	rec := do(t, h, http.MethodGet, "/requests/bad/suggestions", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestVendorScore_OK(t *testing.T) {
	svc := &fakeService{score: &suggest.VendorScore{
		VendorID:    "v1",
		Performance: scorer.Result{Score: 72.5, Breakdown: scorer.Breakdown{Confidence: 1}},
		Tier:        scorer.TierGood,
		TierLabel:   "Good",
		Vetting:     vetting.Breakdown{TotalScore: 35, Tier: vetting.TierStrong},
	}}
	h := newTestRouter(t, svc, nil)

	rec := do(t, h, http.MethodGet, "/vendors/v1/score", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "v1", body["vendorId"])
	assert.Equal(t, "good", body["tier"])
	assert.Equal(t, 72.5, body["performance"].(map[string]any)["score"])
	assert.Equal(t, "strong", body["vetting"].(map[string]any)["tier"])
}

func TestVendorScore_NotFound(t *testing.T) {
	svc := &fakeService{err: eris.Wrap(suggest.ErrVendorNotFound, "vendor ghost")}
	h := newTestRouter(t, svc, nil)

	rec := do(t, h, http.MethodGet, "/vendors/ghost/score", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "vendor not found", decodeBody(t, rec)["error"])
}

func TestVettingScore(t *testing.T) {
	h := newTestRouter(t, &fakeService{}, nil)

	tests := []struct {
		name  string
		body  string
		code  int
		score float64
	}{
		{"full marks", `{"licensed":true,"insured":true,"years_in_business":8,"admin_adjustment":10}`, http.StatusOK, 45},
		{"licensed only", `{"licensed":true}`, http.StatusOK, 15},
		{"adjustment clamped", `{"insured":true,"admin_adjustment":-50}`, http.StatusOK, 0},
		{"empty object", `{}`, http.StatusOK, 0},
		{"negative years", `{"years_in_business":-2}`, http.StatusBadRequest, 0},
		{"malformed", `{"licensed":`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/vetting/score", tt.body)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code == http.StatusOK {
				assert.Equal(t, tt.score, decodeBody(t, rec)["total_score"])
			}
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestRouter(t, &fakeService{}, nil)

	rec := do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decodeBody(t, rec)["error"])

	rec = do(t, h, http.MethodDelete, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID_Propagated(t *testing.T) {
	h := newTestRouter(t, &fakeService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestCORS_Preflight(t *testing.T) {
	h := newTestRouter(t, &fakeService{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/requests/req-1/suggestions", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimit(1, 2, "/health")(ok)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests/x/suggestions", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimit(0, 0)(ok)

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestNewServer(t *testing.T) {
	srv := NewServer(9090, testServerConfig(), http.NotFoundHandler())
	assert.Equal(t, ":9090", srv.Addr)
	assert.NotZero(t, srv.ReadHeaderTimeout)
}
