package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vendor-match/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var vendorRowColumns = []string{
	"id", "name", "company_name", "email", "phone", "status", "service_types", "service_areas",
	"licensed", "insured", "years_in_business", "admin_adjustment", "vetting_score", "created_at",
}

func TestPostgresStore_GetServiceRequest(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, service_type, property_location, zip_code, urgency, created_at FROM service_requests WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "service_type", "property_location", "zip_code", "urgency", "created_at"}).
			AddRow("r1", "plumbing", "Philadelphia, PA", "19103", "High", created))

	r, err := s.GetServiceRequest(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, model.UrgencyHigh, r.Urgency)
	assert.Equal(t, "19103", r.ZipCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetServiceRequest_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM service_requests WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	r, err := s.GetServiceRequest(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetVendor(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	vs := 30.0

	mock.ExpectQuery(`FROM vendors WHERE id = \$1`).
		WithArgs("v1").
		WillReturnRows(pgxmock.NewRows(vendorRowColumns).
			AddRow("v1", "Pat", "Pat's Pipes", "", "", "active", []byte(`["plumbing"]`), []byte(`["prefix:191"]`),
				true, false, nil, nil, &vs, time.Now()))

	v, err := s.GetVendor(context.Background(), "v1")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, model.VendorStatusActive, v.Status)
	assert.Equal(t, []string{"plumbing"}, v.ServiceTypes)
	assert.Equal(t, []string{"prefix:191"}, v.ServiceAreas)
	require.NotNil(t, v.VettingScore)
	assert.InDelta(t, 30.0, *v.VettingScore, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetVendor_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM vendors WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	v, err := s.GetVendor(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListActiveVendorsByService(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`WHERE status = 'active' AND service_types \? \$1 ORDER BY id`).
		WithArgs("plumbing").
		WillReturnRows(pgxmock.NewRows(vendorRowColumns).
			AddRow("a", "A", "", "", "", "active", []byte(`["plumbing"]`), []byte(`[]`), false, false, nil, nil, nil, time.Now()).
			AddRow("b", "B", "", "", "", "active", []byte(`["plumbing","hvac"]`), []byte(`["state:NJ"]`), true, true, nil, nil, nil, time.Now()))

	vendors, err := s.ListActiveVendorsByService(context.Background(), "plumbing")
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	assert.Equal(t, "b", vendors[1].ID)
	assert.Equal(t, []string{"plumbing", "hvac"}, vendors[1].ServiceTypes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertVendor(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO vendors .* ON CONFLICT \(id\) DO UPDATE SET`).
		WithArgs(pgxmock.AnyArg(), "Pat", "", "", "", "pending", []byte(`["plumbing"]`), []byte(`[]`),
			false, false, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	v := &model.Vendor{Name: "Pat", ServiceTypes: []string{"plumbing"}}
	require.NoError(t, s.UpsertVendor(context.Background(), v))
	assert.NotEmpty(t, v.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateVettingScore_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE vendors SET vetting_score = \$1 WHERE id = \$2`).
		WithArgs(25.0, "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateVettingScore(context.Background(), "ghost", 25)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vendor not found: ghost")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListJobStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	last := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM matches WHERE vendor_id = ANY\(\$1\) GROUP BY vendor_id`).
		WithArgs([]string{"v1", "v2"}, []string{"pending", "intro_sent", "accepted", "in_progress"}).
		WillReturnRows(pgxmock.NewRows([]string{"vendor_id", "count", "accepted", "completed", "no_shows", "declines", "pending", "max"}).
			AddRow("v1", 12, 10, 8, 1, 1, 2, &last))

	stats, err := s.ListJobStats(context.Background(), []string{"v1", "v2"})
	require.NoError(t, err)
	require.Contains(t, stats, "v1")
	assert.NotContains(t, stats, "v2")
	assert.Equal(t, 12, stats["v1"].TotalMatches)
	assert.Equal(t, 8, stats["v1"].CompletedJobs)
	assert.Equal(t, 2, stats["v1"].PendingJobs)
	require.NotNil(t, stats["v1"].LastActivity)
	assert.True(t, stats["v1"].LastActivity.Equal(last))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListReviews(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	q := 4

	mock.ExpectQuery(`FROM reviews WHERE vendor_id = ANY\(\$1\)`).
		WithArgs([]string{"v1"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "match_id", "vendor_id", "rating", "quality_rating", "price_rating", "timeline_rating", "treatment_rating", "created_at"}).
			AddRow("rv1", "m1", "v1", 5, &q, nil, nil, nil, time.Now()).
			AddRow("rv2", "m2", "v1", 4, nil, nil, nil, nil, time.Now()))

	reviews, err := s.ListReviews(context.Background(), []string{"v1"})
	require.NoError(t, err)
	require.Len(t, reviews["v1"], 2)
	assert.Equal(t, []int{4}, reviews["v1"][0].SubRatings())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListResponseTimes(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT vendor_id, response_time_minutes FROM matches`).
		WithArgs([]string{"v1"}).
		WillReturnRows(pgxmock.NewRows([]string{"vendor_id", "response_time_minutes"}).
			AddRow("v1", 60).
			AddRow("v1", 180))

	times, err := s.ListResponseTimes(context.Background(), []string{"v1"})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Hour, 3 * time.Hour}, times["v1"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_History_EmptyIDsSkipQuery(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	reviews, err := s.ListReviews(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	stats, err := s.ListJobStats(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, stats)

	times, err := s.ListResponseTimes(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, times)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateMatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO matches`).
		WithArgs(pgxmock.AnyArg(), "r1", "v1", "pending", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), false, false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	m := &model.Match{RequestID: "r1", VendorID: "v1"}
	require.NoError(t, s.CreateMatch(context.Background(), m))
	assert.Equal(t, model.MatchStatusPending, m.Status)
	assert.Equal(t, m.CreatedAt, m.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PingAndMigrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS vendors`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BulkLoad(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_vendors"`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_vendors"}, vendorsTable.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "vendors" .* ON CONFLICT \("id"\) DO UPDATE SET "name" = EXCLUDED."name"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"reviews"}, reviewsTable.Columns).WillReturnResult(1)
	mock.ExpectCommit()

	fx := &Fixture{
		Vendors: []model.Vendor{{ID: "a", Name: "A"}, {Name: "B", ServiceTypes: []string{"hvac"}}},
		Reviews: []model.Review{{VendorID: "a", Rating: 4}},
	}
	stats, err := LoadFixture(context.Background(), s, fx)
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Vendors: 2, Reviews: 1}, stats)
	assert.NotEmpty(t, fx.Vendors[1].ID)
	assert.NotEmpty(t, fx.Reviews[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BulkLoad_CopyErrorRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"matches"}, matchesTable.Columns).WillReturnError(eris.New("disk full"))
	mock.ExpectRollback()

	stats, err := s.BulkLoad(context.Background(), &Fixture{
		Matches: []model.Match{{RequestID: "r1", VendorID: "a"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bulk load matches")
	assert.Equal(t, LoadStats{}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}
