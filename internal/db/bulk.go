package db

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Table describes a bulk-load target. Tables with a Key are merged on that
// key; tables without one are appended with COPY.
type Table struct {
	Name    string
	Columns []string
	Key     []string
	// Keep lists columns left untouched when a keyed row already exists.
	Keep []string
}

// WithTx runs fn inside a transaction on pool and commits when fn returns nil.
func WithTx(ctx context.Context, pool Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "db: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "db: commit tx")
}

// Load writes rows into t using tx and returns the number of rows written.
// Keyed tables are COPYed into a staging table that is dropped on commit and
// merged with INSERT ... ON CONFLICT.
func Load(ctx context.Context, tx pgx.Tx, t Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(t.Columns) == 0 {
		return 0, eris.Errorf("db: load %s: no columns", t.Name)
	}

	if len(t.Key) == 0 {
		n, err := tx.CopyFrom(ctx, identifier(t.Name), t.Columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "db: copy into %s", t.Name)
		}
		return n, nil
	}

	stage := stagingTable(t.Name)
	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		stage.Sanitize(), identifier(t.Name).Sanitize())
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: stage %s", t.Name)
	}
	if _, err := tx.CopyFrom(ctx, stage, t.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: copy into staging for %s", t.Name)
	}

	tag, err := tx.Exec(ctx, mergeSQL(t, stage))
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge %s", t.Name)
	}
	return tag.RowsAffected(), nil
}

// mergeSQL builds the INSERT ... SELECT ... ON CONFLICT statement that moves
// staged rows into t.
func mergeSQL(t Table, stage pgx.Identifier) string {
	var set []string
	for _, col := range t.Columns {
		if slices.Contains(t.Key, col) || slices.Contains(t.Keep, col) {
			continue
		}
		q := pgx.Identifier{col}.Sanitize()
		set = append(set, q+" = EXCLUDED."+q)
	}

	action := "DO NOTHING"
	if len(set) > 0 {
		action = "DO UPDATE SET " + strings.Join(set, ", ")
	}

	cols := columnList(t.Columns)
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		identifier(t.Name).Sanitize(), cols, cols, stage.Sanitize(), columnList(t.Key), action)
}

func stagingTable(name string) pgx.Identifier {
	return pgx.Identifier{"_stage_" + strings.ReplaceAll(name, ".", "_")}
}

// identifier splits "schema.table" into a pgx.Identifier.
func identifier(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
