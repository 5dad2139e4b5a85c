package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vendor-match/internal/db"
	"github.com/sells-group/vendor-match/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const vendorColumns = `id, name, company_name, email, phone, status, service_types, service_areas, licensed, insured, years_in_business, admin_adjustment, vetting_score, created_at`

const (
	pgGetRequest = `SELECT id, service_type, property_location, zip_code, urgency, created_at FROM service_requests WHERE id = $1`

	pgGetVendor = `SELECT ` + vendorColumns + ` FROM vendors WHERE id = $1`

	pgListActiveVendors = `SELECT ` + vendorColumns + ` FROM vendors WHERE status = 'active' ORDER BY id`

	pgListVendorsByService = `SELECT ` + vendorColumns + ` FROM vendors WHERE status = 'active' AND service_types ? $1 ORDER BY id`

	pgListReviews = `SELECT id, match_id, vendor_id, rating, quality_rating, price_rating, timeline_rating, treatment_rating, created_at
FROM reviews WHERE vendor_id = ANY($1) ORDER BY vendor_id, created_at DESC`

	pgListJobStats = `SELECT vendor_id,
	COUNT(*),
	SUM(CASE WHEN accepted_at IS NOT NULL OR status IN ('accepted', 'in_progress', 'completed') THEN 1 ELSE 0 END),
	SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
	SUM(CASE WHEN no_show THEN 1 ELSE 0 END),
	SUM(CASE WHEN declined_after_accept THEN 1 ELSE 0 END),
	SUM(CASE WHEN status = ANY($2) THEN 1 ELSE 0 END),
	MAX(updated_at)
FROM matches WHERE vendor_id = ANY($1) GROUP BY vendor_id`

	pgListResponseTimes = `SELECT vendor_id, response_time_minutes FROM matches
WHERE vendor_id = ANY($1) AND status = 'completed' AND response_time_minutes IS NOT NULL ORDER BY vendor_id, created_at`

	pgUpsertVendor = `INSERT INTO vendors (` + vendorColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name, company_name = EXCLUDED.company_name, email = EXCLUDED.email, phone = EXCLUDED.phone,
	status = EXCLUDED.status, service_types = EXCLUDED.service_types, service_areas = EXCLUDED.service_areas,
	licensed = EXCLUDED.licensed, insured = EXCLUDED.insured, years_in_business = EXCLUDED.years_in_business,
	admin_adjustment = EXCLUDED.admin_adjustment, vetting_score = EXCLUDED.vetting_score`

	pgUpdateVettingScore = `UPDATE vendors SET vetting_score = $1 WHERE id = $2`

	pgInsertRequest = `INSERT INTO service_requests (id, service_type, property_location, zip_code, urgency, created_at) VALUES ($1, $2, $3, $4, $5, $6)`

	pgInsertMatch = `INSERT INTO matches (id, request_id, vendor_id, status, response_time_minutes, accepted_at, completed_at, no_show, declined_after_accept, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	pgInsertReview = `INSERT INTO reviews (id, match_id, vendor_id, rating, quality_rating, price_rating, timeline_rating, treatment_rating, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)

// preparedStatements lists queries to prepare on each new connection. The
// suggestion path runs all of them on every request.
var preparedStatements = map[string]string{
	"get_request":          pgGetRequest,
	"get_vendor":           pgGetVendor,
	"list_vendors_service": pgListVendorsByService,
	"list_reviews":         pgListReviews,
	"list_job_stats":       pgListJobStats,
	"list_response_times":  pgListResponseTimes,
	"update_vetting_score": pgUpdateVettingScore,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				// Tables may not exist before the first migrate.
				continue
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for bulk loading.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS vendors (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name              TEXT NOT NULL,
	company_name      TEXT NOT NULL DEFAULT '',
	email             TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'pending',
	service_types     JSONB NOT NULL DEFAULT '[]',
	service_areas     JSONB NOT NULL DEFAULT '[]',
	licensed          BOOLEAN NOT NULL DEFAULT false,
	insured           BOOLEAN NOT NULL DEFAULT false,
	years_in_business DOUBLE PRECISION,
	admin_adjustment  DOUBLE PRECISION,
	vetting_score     DOUBLE PRECISION,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_vendors_status ON vendors(status);
CREATE INDEX IF NOT EXISTS idx_vendors_service_types ON vendors USING GIN (service_types);

CREATE TABLE IF NOT EXISTS service_requests (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	service_type      TEXT NOT NULL,
	property_location TEXT NOT NULL DEFAULT '',
	zip_code          TEXT NOT NULL DEFAULT '',
	urgency           TEXT NOT NULL DEFAULT 'medium',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS matches (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	request_id            TEXT NOT NULL REFERENCES service_requests(id),
	vendor_id             TEXT NOT NULL REFERENCES vendors(id),
	status                TEXT NOT NULL DEFAULT 'pending',
	response_time_minutes INTEGER,
	accepted_at           TIMESTAMPTZ,
	completed_at          TIMESTAMPTZ,
	no_show               BOOLEAN NOT NULL DEFAULT false,
	declined_after_accept BOOLEAN NOT NULL DEFAULT false,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_matches_vendor_id ON matches(vendor_id);
CREATE INDEX IF NOT EXISTS idx_matches_vendor_status ON matches(vendor_id, status);

CREATE TABLE IF NOT EXISTS reviews (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	match_id         TEXT NOT NULL DEFAULT '',
	vendor_id        TEXT NOT NULL REFERENCES vendors(id),
	rating           INTEGER NOT NULL,
	quality_rating   INTEGER,
	price_rating     INTEGER,
	timeline_rating  INTEGER,
	treatment_rating INTEGER,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reviews_vendor_id ON reviews(vendor_id, created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetServiceRequest(ctx context.Context, id string) (*model.ServiceRequest, error) {
	var r model.ServiceRequest
	var urgency string
	err := s.pool.QueryRow(ctx, pgGetRequest, id).
		Scan(&r.ID, &r.ServiceType, &r.PropertyLocation, &r.ZipCode, &urgency, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get service request %s", id)
	}
	r.Urgency = model.ParseUrgency(urgency)
	return &r, nil
}

func (s *PostgresStore) CreateServiceRequest(ctx context.Context, r *model.ServiceRequest) error {
	stampRequest(r)
	_, err := s.pool.Exec(ctx, pgInsertRequest,
		r.ID, r.ServiceType, r.PropertyLocation, r.ZipCode, string(r.Urgency), r.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert service request %s", r.ID)
}

func (s *PostgresStore) GetVendor(ctx context.Context, id string) (*model.Vendor, error) {
	v, err := scanPgVendor(s.pool.QueryRow(ctx, pgGetVendor, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get vendor %s", id)
	}
	return v, nil
}

func (s *PostgresStore) ListActiveVendors(ctx context.Context) ([]model.Vendor, error) {
	return s.listVendors(ctx, pgListActiveVendors)
}

func (s *PostgresStore) ListActiveVendorsByService(ctx context.Context, serviceType string) ([]model.Vendor, error) {
	return s.listVendors(ctx, pgListVendorsByService, serviceType)
}

func (s *PostgresStore) listVendors(ctx context.Context, query string, args ...any) ([]model.Vendor, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vendors")
	}
	defer rows.Close()

	var vendors []model.Vendor
	for rows.Next() {
		v, err := scanPgVendor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan vendor")
		}
		vendors = append(vendors, *v)
	}
	return vendors, eris.Wrap(rows.Err(), "postgres: list vendors iterate")
}

func (s *PostgresStore) UpsertVendor(ctx context.Context, v *model.Vendor) error {
	stampVendor(v)
	types, err := marshalList(v.ServiceTypes)
	if err != nil {
		return eris.Wrap(err, "postgres: service types")
	}
	areas, err := marshalList(v.ServiceAreas)
	if err != nil {
		return eris.Wrap(err, "postgres: service areas")
	}

	_, err = s.pool.Exec(ctx, pgUpsertVendor,
		v.ID, v.Name, v.CompanyName, v.Email, v.Phone, string(v.Status), types, areas,
		v.Licensed, v.Insured, v.YearsInBusiness, v.AdminAdjustment, v.VettingScore, v.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert vendor %s", v.ID)
}

func (s *PostgresStore) UpdateVettingScore(ctx context.Context, vendorID string, score float64) error {
	tag, err := s.pool.Exec(ctx, pgUpdateVettingScore, score, vendorID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update vetting score %s", vendorID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("vendor not found: %s", vendorID)
	}
	return nil
}

func (s *PostgresStore) ListReviews(ctx context.Context, vendorIDs []string) (map[string][]model.Review, error) {
	out := make(map[string][]model.Review)
	if len(vendorIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, pgListReviews, vendorIDs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reviews")
	}
	defer rows.Close()

	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.ID, &r.MatchID, &r.VendorID, &r.Rating,
			&r.QualityRating, &r.PriceRating, &r.TimelineRating, &r.TreatmentRating, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan review")
		}
		out[r.VendorID] = append(out[r.VendorID], r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list reviews iterate")
}

func (s *PostgresStore) ListJobStats(ctx context.Context, vendorIDs []string) (map[string]model.JobStats, error) {
	out := make(map[string]model.JobStats)
	if len(vendorIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, pgListJobStats, vendorIDs, pendingStatuses())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list job stats")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var st model.JobStats
		if err := rows.Scan(&id, &st.TotalMatches, &st.AcceptedJobs, &st.CompletedJobs,
			&st.NoShows, &st.DeclinesAfterAccept, &st.PendingJobs, &st.LastActivity); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job stats")
		}
		out[id] = st
	}
	return out, eris.Wrap(rows.Err(), "postgres: list job stats iterate")
}

func (s *PostgresStore) ListResponseTimes(ctx context.Context, vendorIDs []string) (map[string][]time.Duration, error) {
	out := make(map[string][]time.Duration)
	if len(vendorIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, pgListResponseTimes, vendorIDs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list response times")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var mins int
		if err := rows.Scan(&id, &mins); err != nil {
			return nil, eris.Wrap(err, "postgres: scan response time")
		}
		out[id] = append(out[id], minutes(mins))
	}
	return out, eris.Wrap(rows.Err(), "postgres: list response times iterate")
}

func (s *PostgresStore) CreateMatch(ctx context.Context, m *model.Match) error {
	stampMatch(m)
	_, err := s.pool.Exec(ctx, pgInsertMatch,
		m.ID, m.RequestID, m.VendorID, string(m.Status), m.ResponseTimeMinutes,
		m.AcceptedAt, m.CompletedAt, m.NoShow, m.DeclinedAfterAccept, m.CreatedAt, m.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert match %s", m.ID)
}

func (s *PostgresStore) CreateReview(ctx context.Context, r *model.Review) error {
	stampReview(r)
	_, err := s.pool.Exec(ctx, pgInsertReview,
		r.ID, r.MatchID, r.VendorID, r.Rating,
		r.QualityRating, r.PriceRating, r.TimelineRating, r.TreatmentRating, r.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert review %s", r.ID)
}

func scanPgVendor(row pgx.Row) (*model.Vendor, error) {
	var v model.Vendor
	var status string
	var types, areas []byte
	if err := row.Scan(&v.ID, &v.Name, &v.CompanyName, &v.Email, &v.Phone, &status, &types, &areas,
		&v.Licensed, &v.Insured, &v.YearsInBusiness, &v.AdminAdjustment, &v.VettingScore, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.Status = model.VendorStatus(status)

	var err error
	if v.ServiceTypes, err = unmarshalList(types); err != nil {
		return nil, err
	}
	if v.ServiceAreas, err = unmarshalList(areas); err != nil {
		return nil, err
	}
	return &v, nil
}
