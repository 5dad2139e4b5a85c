package suggest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vendor-match/internal/matching"
	"github.com/sells-group/vendor-match/internal/model"
	"github.com/sells-group/vendor-match/internal/scorer"
	"github.com/sells-group/vendor-match/internal/store"
	"github.com/sells-group/vendor-match/internal/vetting"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestService(t *testing.T, st store.Store) *Service {
	t.Helper()
	engine, err := matching.NewEngine(scorer.DefaultConfig(), matching.DefaultConfig())
	require.NoError(t, err)
	vet, err := vetting.NewCalculator(vetting.DefaultConfig())
	require.NoError(t, err)
	return New(st, engine, vet, WithClock(func() time.Time { return testNow }))
}

func ptrFloat(f float64) *float64 { return &f }
func ptrInt(i int) *int           { return &i }

// seedPool stores a plumbing request in 19103 and five vendors. Three are
// eligible: one with a strong track record, one brand new and one outside the
// area.
func seedPool(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	vendors := []model.Vendor{
		{ID: "strong", Name: "Strong", Status: model.VendorStatusActive, ServiceTypes: []string{"plumbing"}, ServiceAreas: []string{"19103"}, Licensed: true, Insured: true},
		{ID: "fresh", Name: "Fresh", Status: model.VendorStatusActive, ServiceTypes: []string{"plumbing"}, ServiceAreas: []string{"prefix:191"}, VettingScore: ptrFloat(40)},
		{ID: "faraway", Name: "Far Away", Status: model.VendorStatusActive, ServiceTypes: []string{"plumbing"}, ServiceAreas: []string{"state:CA"}},
		{ID: "retired", Name: "Retired", Status: model.VendorStatusInactive, ServiceTypes: []string{"plumbing"}, ServiceAreas: []string{"19103"}},
		{ID: "roofer", Name: "Roofer", Status: model.VendorStatusActive, ServiceTypes: []string{"roofing"}, ServiceAreas: []string{"19103"}},
	}
	for i := range vendors {
		require.NoError(t, st.UpsertVendor(ctx, &vendors[i]))
	}

	require.NoError(t, st.CreateServiceRequest(ctx, &model.ServiceRequest{
		ID: "past", ServiceType: "plumbing", ZipCode: "19103", CreatedAt: testNow.AddDate(0, -3, 0),
	}))
	require.NoError(t, st.CreateServiceRequest(ctx, &model.ServiceRequest{
		ID: "req-1", ServiceType: "plumbing", PropertyLocation: "1500 Market St, Philadelphia, PA 19102", ZipCode: "19103", Urgency: model.UrgencyMedium, CreatedAt: testNow,
	}))

	for i := 0; i < 6; i++ {
		at := testNow.AddDate(0, 0, -(i+1)*5)
		m := &model.Match{
			RequestID:           "past",
			VendorID:            "strong",
			Status:              model.MatchStatusCompleted,
			ResponseTimeMinutes: ptrInt(60),
			AcceptedAt:          &at,
			CompletedAt:         &at,
			CreatedAt:           at,
			UpdatedAt:           at,
		}
		require.NoError(t, st.CreateMatch(ctx, m))
		require.NoError(t, st.CreateReview(ctx, &model.Review{MatchID: m.ID, VendorID: "strong", Rating: 5, CreatedAt: at}))
	}
}

func TestSuggest_RanksPool(t *testing.T) {
	st := newTestStore(t)
	seedPool(t, st)
	svc := newTestService(t, st)

	res, err := svc.Suggest(context.Background(), "req-1")
	require.NoError(t, err)

	assert.Equal(t, "req-1", res.Request.ID)
	assert.Equal(t, "19103", res.Request.ZipCode)
	assert.Equal(t, model.UrgencyMedium, res.Request.Urgency)

	assert.Equal(t, 3, res.Meta.TotalEligible)
	assert.Equal(t, 1, res.Meta.TotalRecommended)
	assert.Equal(t, "2.0", res.Meta.ScoringVersion)

	require.Len(t, res.Suggestions, 1)
	top := res.Suggestions[0]
	assert.Equal(t, "strong", top.ID)
	assert.Equal(t, 6, top.ReviewCount)
	require.NotNil(t, top.AvgResponseTimeHours)
	assert.InDelta(t, 1.0, *top.AvgResponseTimeHours, 0.0001)
	assert.True(t, top.MatchScore.Recommended)
	assert.Equal(t, matching.ConfidenceHigh, top.MatchScore.Confidence)

	require.Len(t, res.OtherVendors, 2)
	ids := []string{res.OtherVendors[0].ID, res.OtherVendors[1].ID}
	assert.Equal(t, []string{"fresh", "faraway"}, ids)
	assert.Equal(t, scorer.TierNew, res.OtherVendors[0].Tier)
	assert.InDelta(t, 50.0, res.OtherVendors[0].Performance.Score, 0.0001)
	assert.True(t, res.OtherVendors[1].MatchScore.HasHighWarning())
}

func TestSuggest_Deterministic(t *testing.T) {
	st := newTestStore(t)
	seedPool(t, st)
	svc := newTestService(t, st)

	a, err := svc.Suggest(context.Background(), "req-1")
	require.NoError(t, err)
	b, err := svc.Suggest(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSuggest_EmptyPool(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateServiceRequest(context.Background(), &model.ServiceRequest{
		ID: "req-empty", ServiceType: "electrical", ZipCode: "19103",
	}))
	svc := newTestService(t, st)

	res, err := svc.Suggest(context.Background(), "req-empty")
	require.NoError(t, err)
	assert.NotNil(t, res.Suggestions)
	assert.NotNil(t, res.OtherVendors)
	assert.Empty(t, res.Suggestions)
	assert.Empty(t, res.OtherVendors)
	assert.Equal(t, 0, res.Meta.TotalEligible)
	assert.Zero(t, res.Meta.AverageScore)
}

func TestSuggest_RequestNotFound(t *testing.T) {
	svc := newTestService(t, newTestStore(t))

	_, err := svc.Suggest(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestNotFound))
}

// failingStore fails every history lookup.
type failingStore struct {
	*store.SQLiteStore
}

func (f failingStore) ListJobStats(context.Context, []string) (map[string]model.JobStats, error) {
	return nil, eris.New("sqlite: connection lost")
}

func TestSuggest_StoreErrorSurfaces(t *testing.T) {
	st := newTestStore(t)
	seedPool(t, st)
	svc := newTestService(t, failingStore{st})

	_, err := svc.Suggest(context.Background(), "req-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRequestNotFound))
	assert.Contains(t, err.Error(), "connection lost")
}

func TestVendorScore(t *testing.T) {
	st := newTestStore(t)
	seedPool(t, st)
	svc := newTestService(t, st)

	vs, err := svc.VendorScore(context.Background(), "strong")
	require.NoError(t, err)
	assert.Equal(t, "strong", vs.VendorID)
	assert.Equal(t, 6, vs.ReviewCount)
	assert.Equal(t, 6, vs.Stats.CompletedJobs)
	assert.Equal(t, 0, vs.Stats.PendingJobs)
	assert.Greater(t, vs.Performance.Score, 80.0)
	assert.Equal(t, vs.Tier.Label(), vs.TierLabel)
	assert.InDelta(t, 25.0, vs.Vetting.TotalScore, 0.0001)
	assert.True(t, vs.VettingStale)
}

func TestVendorScore_InactiveVendorStillScored(t *testing.T) {
	st := newTestStore(t)
	seedPool(t, st)
	svc := newTestService(t, st)

	vs, err := svc.VendorScore(context.Background(), "retired")
	require.NoError(t, err)
	assert.Equal(t, "inactive", vs.Status)
	assert.Equal(t, scorer.TierNew, vs.Tier)
	assert.InDelta(t, 50.0, vs.Performance.Score, 0.0001)
}

func TestVendorScore_NotFound(t *testing.T) {
	svc := newTestService(t, newTestStore(t))

	_, err := svc.VendorScore(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVendorNotFound))
}

func TestRecomputeVetting(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertVendor(ctx, &model.Vendor{
		ID: "v1", Name: "V1", Licensed: true, YearsInBusiness: ptrFloat(10), AdminAdjustment: ptrFloat(-3),
	}))
	svc := newTestService(t, st)

	b, err := svc.RecomputeVetting(ctx, "v1", false)
	require.NoError(t, err)
	assert.InDelta(t, 22.0, b.TotalScore, 0.0001)

	v, err := st.GetVendor(ctx, "v1")
	require.NoError(t, err)
	assert.Nil(t, v.VettingScore)

	_, err = svc.RecomputeVetting(ctx, "v1", true)
	require.NoError(t, err)
	v, err = st.GetVendor(ctx, "v1")
	require.NoError(t, err)
	require.NotNil(t, v.VettingScore)
	assert.InDelta(t, 22.0, *v.VettingScore, 0.0001)
}

func TestRecomputeVetting_NotFound(t *testing.T) {
	svc := newTestService(t, newTestStore(t))

	_, err := svc.RecomputeVetting(context.Background(), "ghost", true)
	assert.True(t, errors.Is(err, ErrVendorNotFound))
}
