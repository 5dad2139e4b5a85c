package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/vendor-match/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", withTimeFormat(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// withTimeFormat makes the driver write time.Time values in a layout SQLite's
// date functions and MAX() order correctly.
func withTimeFormat(dsn string) string {
	if strings.Contains(dsn, "_time_format=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_time_format=sqlite"
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS vendors (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	company_name      TEXT NOT NULL DEFAULT '',
	email             TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'pending',
	service_types     TEXT NOT NULL DEFAULT '[]',
	service_areas     TEXT NOT NULL DEFAULT '[]',
	licensed          BOOLEAN NOT NULL DEFAULT 0,
	insured           BOOLEAN NOT NULL DEFAULT 0,
	years_in_business REAL,
	admin_adjustment  REAL,
	vetting_score     REAL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS service_requests (
	id                TEXT PRIMARY KEY,
	service_type      TEXT NOT NULL,
	property_location TEXT NOT NULL DEFAULT '',
	zip_code          TEXT NOT NULL DEFAULT '',
	urgency           TEXT NOT NULL DEFAULT 'medium',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS matches (
	id                    TEXT PRIMARY KEY,
	request_id            TEXT NOT NULL REFERENCES service_requests(id),
	vendor_id             TEXT NOT NULL REFERENCES vendors(id),
	status                TEXT NOT NULL DEFAULT 'pending',
	response_time_minutes INTEGER,
	accepted_at           DATETIME,
	completed_at          DATETIME,
	no_show               BOOLEAN NOT NULL DEFAULT 0,
	declined_after_accept BOOLEAN NOT NULL DEFAULT 0,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reviews (
	id               TEXT PRIMARY KEY,
	match_id         TEXT NOT NULL DEFAULT '',
	vendor_id        TEXT NOT NULL REFERENCES vendors(id),
	rating           INTEGER NOT NULL,
	quality_rating   INTEGER,
	price_rating     INTEGER,
	timeline_rating  INTEGER,
	treatment_rating INTEGER,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_vendors_status ON vendors(status);
CREATE INDEX IF NOT EXISTS idx_matches_vendor_id ON matches(vendor_id);
CREATE INDEX IF NOT EXISTS idx_matches_vendor_status ON matches(vendor_id, status);
CREATE INDEX IF NOT EXISTS idx_reviews_vendor_id ON reviews(vendor_id, created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetServiceRequest(ctx context.Context, id string) (*model.ServiceRequest, error) {
	var r model.ServiceRequest
	var urgency string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, service_type, property_location, zip_code, urgency, created_at FROM service_requests WHERE id = ?`, id,
	).Scan(&r.ID, &r.ServiceType, &r.PropertyLocation, &r.ZipCode, &urgency, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get service request %s", id)
	}
	r.Urgency = model.ParseUrgency(urgency)
	return &r, nil
}

func (s *SQLiteStore) CreateServiceRequest(ctx context.Context, r *model.ServiceRequest) error {
	stampRequest(r)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO service_requests (id, service_type, property_location, zip_code, urgency, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ServiceType, r.PropertyLocation, r.ZipCode, string(r.Urgency), r.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert service request %s", r.ID)
}

func (s *SQLiteStore) GetVendor(ctx context.Context, id string) (*model.Vendor, error) {
	v, err := scanSQLiteVendor(s.db.QueryRowContext(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get vendor %s", id)
	}
	return v, nil
}

func (s *SQLiteStore) ListActiveVendors(ctx context.Context) ([]model.Vendor, error) {
	return s.listVendors(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE status = 'active' ORDER BY id`)
}

func (s *SQLiteStore) ListActiveVendorsByService(ctx context.Context, serviceType string) ([]model.Vendor, error) {
	return s.listVendors(ctx, `SELECT `+vendorColumns+` FROM vendors
WHERE status = 'active' AND EXISTS (SELECT 1 FROM json_each(vendors.service_types) WHERE json_each.value = ?)
ORDER BY id`, serviceType)
}

func (s *SQLiteStore) listVendors(ctx context.Context, query string, args ...any) ([]model.Vendor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list vendors")
	}
	defer rows.Close()

	var vendors []model.Vendor
	for rows.Next() {
		v, err := scanSQLiteVendor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vendor")
		}
		vendors = append(vendors, *v)
	}
	return vendors, eris.Wrap(rows.Err(), "sqlite: list vendors iterate")
}

func (s *SQLiteStore) UpsertVendor(ctx context.Context, v *model.Vendor) error {
	stampVendor(v)
	types, err := marshalList(v.ServiceTypes)
	if err != nil {
		return eris.Wrap(err, "sqlite: service types")
	}
	areas, err := marshalList(v.ServiceAreas)
	if err != nil {
		return eris.Wrap(err, "sqlite: service areas")
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO vendors (`+vendorColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	name = excluded.name, company_name = excluded.company_name, email = excluded.email, phone = excluded.phone,
	status = excluded.status, service_types = excluded.service_types, service_areas = excluded.service_areas,
	licensed = excluded.licensed, insured = excluded.insured, years_in_business = excluded.years_in_business,
	admin_adjustment = excluded.admin_adjustment, vetting_score = excluded.vetting_score`,
		v.ID, v.Name, v.CompanyName, v.Email, v.Phone, string(v.Status), string(types), string(areas),
		v.Licensed, v.Insured, v.YearsInBusiness, v.AdminAdjustment, v.VettingScore, v.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert vendor %s", v.ID)
}

func (s *SQLiteStore) UpdateVettingScore(ctx context.Context, vendorID string, score float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE vendors SET vetting_score = ? WHERE id = ?`, score, vendorID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update vetting score %s", vendorID)
	}
	return checkRowsAffected(res, "vendor", vendorID)
}

func (s *SQLiteStore) ListReviews(ctx context.Context, vendorIDs []string) (map[string][]model.Review, error) {
	out := make(map[string][]model.Review)
	if len(vendorIDs) == 0 {
		return out, nil
	}

	in, args := inClause(vendorIDs)
	rows, err := s.db.QueryContext(ctx, `SELECT id, match_id, vendor_id, rating, quality_rating, price_rating, timeline_rating, treatment_rating, created_at
FROM reviews WHERE vendor_id IN `+in+` ORDER BY vendor_id, created_at DESC`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reviews")
	}
	defer rows.Close()

	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.ID, &r.MatchID, &r.VendorID, &r.Rating,
			&r.QualityRating, &r.PriceRating, &r.TimelineRating, &r.TreatmentRating, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review")
		}
		out[r.VendorID] = append(out[r.VendorID], r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list reviews iterate")
}

func (s *SQLiteStore) ListJobStats(ctx context.Context, vendorIDs []string) (map[string]model.JobStats, error) {
	out := make(map[string]model.JobStats)
	if len(vendorIDs) == 0 {
		return out, nil
	}

	pending := pendingStatuses()
	pendingIn, pendingArgs := inClause(pending)
	in, args := inClause(vendorIDs)
	query := `SELECT vendor_id,
	COUNT(*),
	SUM(CASE WHEN accepted_at IS NOT NULL OR status IN ('accepted', 'in_progress', 'completed') THEN 1 ELSE 0 END),
	SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
	SUM(CASE WHEN no_show THEN 1 ELSE 0 END),
	SUM(CASE WHEN declined_after_accept THEN 1 ELSE 0 END),
	SUM(CASE WHEN status IN ` + pendingIn + ` THEN 1 ELSE 0 END),
	MAX(updated_at)
FROM matches WHERE vendor_id IN ` + in + ` GROUP BY vendor_id`

	rows, err := s.db.QueryContext(ctx, query, append(pendingArgs, args...)...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list job stats")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var st model.JobStats
		var last sql.NullString
		if err := rows.Scan(&id, &st.TotalMatches, &st.AcceptedJobs, &st.CompletedJobs,
			&st.NoShows, &st.DeclinesAfterAccept, &st.PendingJobs, &last); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job stats")
		}
		if last.Valid {
			t, err := parseSQLiteTime(last.String)
			if err != nil {
				return nil, eris.Wrapf(err, "sqlite: last activity for vendor %s", id)
			}
			st.LastActivity = &t
		}
		out[id] = st
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list job stats iterate")
}

func (s *SQLiteStore) ListResponseTimes(ctx context.Context, vendorIDs []string) (map[string][]time.Duration, error) {
	out := make(map[string][]time.Duration)
	if len(vendorIDs) == 0 {
		return out, nil
	}

	in, args := inClause(vendorIDs)
	rows, err := s.db.QueryContext(ctx, `SELECT vendor_id, response_time_minutes FROM matches
WHERE vendor_id IN `+in+` AND status = 'completed' AND response_time_minutes IS NOT NULL ORDER BY vendor_id, created_at`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list response times")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var mins int
		if err := rows.Scan(&id, &mins); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan response time")
		}
		out[id] = append(out[id], minutes(mins))
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list response times iterate")
}

func (s *SQLiteStore) CreateMatch(ctx context.Context, m *model.Match) error {
	stampMatch(m)
	_, err := s.db.ExecContext(ctx, `INSERT INTO matches (id, request_id, vendor_id, status, response_time_minutes, accepted_at, completed_at, no_show, declined_after_accept, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.RequestID, m.VendorID, string(m.Status), m.ResponseTimeMinutes,
		utcPtr(m.AcceptedAt), utcPtr(m.CompletedAt), m.NoShow, m.DeclinedAfterAccept, m.CreatedAt.UTC(), m.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert match %s", m.ID)
}

func (s *SQLiteStore) CreateReview(ctx context.Context, r *model.Review) error {
	stampReview(r)
	_, err := s.db.ExecContext(ctx, `INSERT INTO reviews (id, match_id, vendor_id, rating, quality_rating, price_rating, timeline_rating, treatment_rating, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.MatchID, r.VendorID, r.Rating,
		r.QualityRating, r.PriceRating, r.TimelineRating, r.TreatmentRating, r.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert review %s", r.ID)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteVendor(row scannable) (*model.Vendor, error) {
	var v model.Vendor
	var status, types, areas string
	if err := row.Scan(&v.ID, &v.Name, &v.CompanyName, &v.Email, &v.Phone, &status, &types, &areas,
		&v.Licensed, &v.Insured, &v.YearsInBusiness, &v.AdminAdjustment, &v.VettingScore, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.Status = model.VendorStatus(status)

	var err error
	if v.ServiceTypes, err = unmarshalList([]byte(types)); err != nil {
		return nil, err
	}
	if v.ServiceAreas, err = unmarshalList([]byte(areas)); err != nil {
		return nil, err
	}
	return &v, nil
}

// inClause renders "(?, ?, ...)" for values and returns them as arguments.
func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ") + ")", args
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// parseSQLiteTime parses a timestamp read from an expression column, where
// the driver hands back the stored text instead of a time.Time.
func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("sqlite: unrecognized time %q", s)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
