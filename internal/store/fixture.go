package store

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/vendor-match/internal/db"
	"github.com/sells-group/vendor-match/internal/model"
)

// Fixture is a set of rows to load into a store, in dependency order.
type Fixture struct {
	Vendors  []model.Vendor         `yaml:"vendors"`
	Requests []model.ServiceRequest `yaml:"requests"`
	Matches  []model.Match          `yaml:"matches"`
	Reviews  []model.Review         `yaml:"reviews"`
}

// LoadStats counts the rows written by LoadFixture.
type LoadStats struct {
	Vendors  int64 `json:"vendors"`
	Requests int64 `json:"requests"`
	Matches  int64 `json:"matches"`
	Reviews  int64 `json:"reviews"`
}

// ReadFixture parses a YAML fixture file.
func ReadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fixture: read %s", path)
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, eris.Wrapf(err, "fixture: parse %s", path)
	}
	return &fx, nil
}

// bulkLoader is implemented by stores with a faster path than row-by-row
// inserts.
type bulkLoader interface {
	BulkLoad(ctx context.Context, fx *Fixture) (LoadStats, error)
}

// LoadFixture writes every row of fx to st. Vendors and requests are
// upserted; matches and reviews are appended.
func LoadFixture(ctx context.Context, st Store, fx *Fixture) (LoadStats, error) {
	if bl, ok := st.(bulkLoader); ok {
		return bl.BulkLoad(ctx, fx)
	}

	var stats LoadStats
	for i := range fx.Vendors {
		if err := st.UpsertVendor(ctx, &fx.Vendors[i]); err != nil {
			return stats, err
		}
		stats.Vendors++
	}
	for i := range fx.Requests {
		if err := st.CreateServiceRequest(ctx, &fx.Requests[i]); err != nil {
			return stats, err
		}
		stats.Requests++
	}
	for i := range fx.Matches {
		if err := st.CreateMatch(ctx, &fx.Matches[i]); err != nil {
			return stats, err
		}
		stats.Matches++
	}
	for i := range fx.Reviews {
		if err := st.CreateReview(ctx, &fx.Reviews[i]); err != nil {
			return stats, err
		}
		stats.Reviews++
	}
	return stats, nil
}

var (
	vendorsTable = db.Table{
		Name: "vendors",
		Columns: []string{
			"id", "name", "company_name", "email", "phone", "status", "service_types", "service_areas",
			"licensed", "insured", "years_in_business", "admin_adjustment", "vetting_score", "created_at",
		},
		Key:  []string{"id"},
		Keep: []string{"created_at"},
	}
	requestsTable = db.Table{
		Name:    "service_requests",
		Columns: []string{"id", "service_type", "property_location", "zip_code", "urgency", "created_at"},
		Key:     []string{"id"},
	}
	matchesTable = db.Table{
		Name: "matches",
		Columns: []string{
			"id", "request_id", "vendor_id", "status", "response_time_minutes", "accepted_at", "completed_at",
			"no_show", "declined_after_accept", "created_at", "updated_at",
		},
	}
	reviewsTable = db.Table{
		Name: "reviews",
		Columns: []string{
			"id", "match_id", "vendor_id", "rating", "quality_rating", "price_rating", "timeline_rating",
			"treatment_rating", "created_at",
		},
	}
)

// BulkLoad writes the whole fixture in one transaction. Vendors and requests
// are merged on id; matches and reviews are appended with COPY.
func (s *PostgresStore) BulkLoad(ctx context.Context, fx *Fixture) (LoadStats, error) {
	vendorRows, err := vendorLoadRows(fx.Vendors)
	if err != nil {
		return LoadStats{}, err
	}

	requestRows := make([][]any, 0, len(fx.Requests))
	for i := range fx.Requests {
		r := &fx.Requests[i]
		stampRequest(r)
		requestRows = append(requestRows, []any{r.ID, r.ServiceType, r.PropertyLocation, r.ZipCode, string(r.Urgency), r.CreatedAt})
	}

	matchRows := make([][]any, 0, len(fx.Matches))
	for i := range fx.Matches {
		m := &fx.Matches[i]
		stampMatch(m)
		matchRows = append(matchRows, []any{
			m.ID, m.RequestID, m.VendorID, string(m.Status), m.ResponseTimeMinutes, m.AcceptedAt, m.CompletedAt,
			m.NoShow, m.DeclinedAfterAccept, m.CreatedAt, m.UpdatedAt,
		})
	}

	reviewRows := make([][]any, 0, len(fx.Reviews))
	for i := range fx.Reviews {
		r := &fx.Reviews[i]
		stampReview(r)
		reviewRows = append(reviewRows, []any{
			r.ID, r.MatchID, r.VendorID, r.Rating, r.QualityRating, r.PriceRating, r.TimelineRating,
			r.TreatmentRating, r.CreatedAt,
		})
	}

	var stats LoadStats
	steps := []struct {
		table db.Table
		rows  [][]any
		count *int64
	}{
		{vendorsTable, vendorRows, &stats.Vendors},
		{requestsTable, requestRows, &stats.Requests},
		{matchesTable, matchRows, &stats.Matches},
		{reviewsTable, reviewRows, &stats.Reviews},
	}
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, step := range steps {
			n, err := db.Load(ctx, tx, step.table, step.rows)
			if err != nil {
				return eris.Wrapf(err, "postgres: bulk load %s", step.table.Name)
			}
			*step.count = n
		}
		return nil
	})
	if err != nil {
		return LoadStats{}, err
	}

	zap.L().Info("fixture bulk loaded",
		zap.String("component", "store"),
		zap.Int64("vendors", stats.Vendors),
		zap.Int64("requests", stats.Requests),
		zap.Int64("matches", stats.Matches),
		zap.Int64("reviews", stats.Reviews),
	)
	return stats, nil
}

func vendorLoadRows(vendors []model.Vendor) ([][]any, error) {
	rows := make([][]any, 0, len(vendors))
	for i := range vendors {
		v := &vendors[i]
		stampVendor(v)
		types, err := marshalList(v.ServiceTypes)
		if err != nil {
			return nil, err
		}
		areas, err := marshalList(v.ServiceAreas)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{
			v.ID, v.Name, v.CompanyName, v.Email, v.Phone, string(v.Status), string(types), string(areas),
			v.Licensed, v.Insured, v.YearsInBusiness, v.AdminAdjustment, v.VettingScore, v.CreatedAt,
		})
	}
	return rows, nil
}
