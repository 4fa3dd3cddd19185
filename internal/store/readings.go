package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"kahvi/internal/reading"
)

const latestID = 0

// columns maps wire field names to table columns.
var columns = map[string]string{
	reading.FieldTimestamp:     "timestamp",
	reading.FieldRawValue:      "raw_value",
	reading.FieldNMeasurements: "n_measurements",
	reading.FieldStd:           "std",
	reading.FieldNCups:         "n_cups",
	reading.FieldIsCoffee:      "is_coffee",
	reading.FieldCoffeeComing:  "coffee_coming",
	reading.FieldTrayEmpty:     "tray_empty",
	reading.FieldDatapoints:    "datapoints",
}

func allColumns() []string {
	out := make([]string, 0, len(reading.Fields))
	for _, f := range reading.Fields {
		out = append(out, columns[f])
	}
	return out
}

func readingValues(r reading.Reading) []any {
	return []any{
		r.Timestamp,
		r.RawValue,
		r.NMeasurements,
		r.Std,
		r.NCups,
		r.IsCoffee,
		r.CoffeeComing,
		r.TrayEmpty,
		r.Datapoints,
	}
}

// RangeQuery is a closed interval of unix timestamps.
type RangeQuery struct {
	Start float64
	End   float64
}

// Validate checks that both bounds are finite and Start <= End.
func (q RangeQuery) Validate() error {
	if !finite(q.Start) || !finite(q.End) {
		return fmt.Errorf("%w: bounds must be finite numbers", ErrInvalidRange)
	}
	if q.Start > q.End {
		return fmt.Errorf("%w: start %g is after end %g", ErrInvalidRange, q.Start, q.End)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// simulatedColumn tags readings taken with the dummy driver. It is not part
// of the wire format.
const simulatedColumn = "simulated"

// Insert appends r and makes it the latest reading.
func (s *Store) Insert(ctx context.Context, r reading.Reading) error {
	return s.insert(ctx, r, false)
}

// InsertSimulated is Insert for readings produced by the dummy driver. They
// are tagged so PurgeSimulated can remove them later.
func (s *Store) InsertSimulated(ctx context.Context, r reading.Reading) error {
	return s.insert(ctx, r, true)
}

func (s *Store) insert(ctx context.Context, r reading.Reading, simulated bool) error {
	cols := append(allColumns(), simulatedColumn)
	values := append(readingValues(r), simulated)

	insertSQL, insertArgs, err := builder().Insert("readings").Columns(cols...).Values(values...).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	latestSQL, latestArgs, err := builder().Replace("readings_latest").
		Columns(append([]string{"id"}, cols...)...).
		Values(append([]any{latestID}, values...)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build latest upsert: %w", err)
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, insertSQL, insertArgs...); err != nil {
			return fmt.Errorf("insert reading: %w", err)
		}
		if _, err := tx.ExecContext(ctx, latestSQL, latestArgs...); err != nil {
			return fmt.Errorf("update latest reading: %w", err)
		}
		return nil
	})
}

// CountSimulated returns the number of stored readings tagged as simulated.
func (s *Store) CountSimulated(ctx context.Context) (int64, error) {
	query, args, err := builder().Select("COUNT(*)").From("readings").
		Where(sq.Eq{simulatedColumn: true}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count simulated readings: %w", err)
	}
	return n, nil
}

// PurgeSimulated deletes every simulated reading and returns how many were
// removed. The latest reading falls back to the newest remaining one.
func (s *Store) PurgeSimulated(ctx context.Context) (int64, error) {
	deleteSQL, deleteArgs, err := builder().Delete("readings").
		Where(sq.Eq{simulatedColumn: true}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge: %w", err)
	}
	clearSQL, clearArgs, err := builder().Delete("readings_latest").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build latest purge: %w", err)
	}
	cols := append(allColumns(), simulatedColumn)
	refillSQL, refillArgs, err := builder().Insert("readings_latest").
		Columns(append([]string{"id"}, cols...)...).
		Select(builder().Select(append([]string{strconv.Itoa(latestID)}, cols...)...).
			From("readings").
			OrderBy("id DESC").
			Limit(1)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build latest refill: %w", err)
	}

	var removed int64
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, deleteSQL, deleteArgs...)
		if err != nil {
			return fmt.Errorf("purge simulated readings: %w", err)
		}
		if removed, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("purge simulated readings: %w", err)
		}
		if removed == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, clearSQL, clearArgs...); err != nil {
			return fmt.Errorf("clear latest reading: %w", err)
		}
		if _, err := tx.ExecContext(ctx, refillSQL, refillArgs...); err != nil {
			return fmt.Errorf("refill latest reading: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// QueryRange returns readings with Start <= timestamp <= End in ascending
// order, at most MaxItems of them. When more records match, the earliest ones
// are returned and truncated is true. fields restricts the columns loaded;
// timestamp is always loaded and an empty list loads everything. Validation
// happens before the database is touched.
func (s *Store) QueryRange(ctx context.Context, q RangeQuery, fields []string) (readings []reading.Reading, truncated bool, err error) {
	if err := q.Validate(); err != nil {
		return nil, false, err
	}
	cols, err := projectColumns(fields)
	if err != nil {
		return nil, false, err
	}

	stmt := builder().Select(cols...).
		From("readings").
		Where(sq.And{
			sq.GtOrEq{"timestamp": q.Start},
			sq.LtOrEq{"timestamp": q.End},
		}).
		OrderBy("timestamp ASC", "id ASC")
	// One row past the cap tells a full page from a cut one.
	if s.maxItems > 0 {
		stmt = stmt.Limit(uint64(s.maxItems) + 1)
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build range query: %w", err)
	}

	var out []reading.Reading
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, false, fmt.Errorf("query range: %w", err)
	}
	if s.maxItems > 0 && len(out) > s.maxItems {
		return out[:s.maxItems], true, nil
	}
	return out, false, nil
}

func projectColumns(fields []string) ([]string, error) {
	if len(fields) == 0 {
		return allColumns(), nil
	}
	cols := []string{columns[reading.FieldTimestamp]}
	seen := map[string]bool{reading.FieldTimestamp: true}
	for _, f := range fields {
		col, ok := columns[f]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		cols = append(cols, col)
	}
	return cols, nil
}

// QueryLatest returns the most recently inserted reading.
func (s *Store) QueryLatest(ctx context.Context) (*reading.Reading, error) {
	query, args, err := builder().Select(allColumns()...).
		From("readings_latest").
		Where(sq.Eq{"id": latestID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest query: %w", err)
	}
	var r reading.Reading
	if err := s.db.GetContext(ctx, &r, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest: %w", err)
	}
	return &r, nil
}

// Count returns the number of stored readings.
func (s *Store) Count(ctx context.Context) (int64, error) {
	query, args, err := builder().Select("COUNT(*)").From("readings").ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}
