package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// CalibrationRecord is one persisted calibration version.
type CalibrationRecord struct {
	Timestamp  float64        `json:"timestamp"`
	Parameters map[string]any `json:"parameters"`
}

type calibrationRow struct {
	Timestamp  float64 `db:"timestamp"`
	Parameters string  `db:"parameters"`
}

func (r calibrationRow) decode() (CalibrationRecord, error) {
	params := map[string]any{}
	if err := json.Unmarshal([]byte(r.Parameters), &params); err != nil {
		return CalibrationRecord{}, fmt.Errorf("decode calibration parameters: %w", err)
	}
	return CalibrationRecord{Timestamp: r.Timestamp, Parameters: params}, nil
}

// LatestCalibration returns the parameters in the "latest" slot.
func (s *Store) LatestCalibration(ctx context.Context) (map[string]any, bool, error) {
	rec, ok, err := s.LatestCalibrationRecord(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	return rec.Parameters, true, nil
}

// LatestCalibrationRecord returns the "latest" slot with its timestamp.
func (s *Store) LatestCalibrationRecord(ctx context.Context) (CalibrationRecord, bool, error) {
	query, args, err := builder().Select("timestamp", "parameters").
		From("calibration_latest").
		Where(sq.Eq{"id": latestID}).
		ToSql()
	if err != nil {
		return CalibrationRecord{}, false, fmt.Errorf("build calibration query: %w", err)
	}
	var row calibrationRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CalibrationRecord{}, false, nil
		}
		return CalibrationRecord{}, false, fmt.Errorf("query latest calibration: %w", err)
	}
	rec, err := row.decode()
	if err != nil {
		return CalibrationRecord{}, false, err
	}
	return rec, true, nil
}

// SaveCalibration replaces the "latest" slot and appends a history entry in a
// single transaction.
func (s *Store) SaveCalibration(ctx context.Context, timestamp float64, params map[string]any) error {
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode calibration parameters: %w", err)
	}
	latestSQL, latestArgs, err := builder().Replace("calibration_latest").
		Columns("id", "timestamp", "parameters").
		Values(latestID, timestamp, string(encoded)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build calibration upsert: %w", err)
	}
	historySQL, historyArgs, err := builder().Insert("calibration_history").
		Columns("timestamp", "parameters").
		Values(timestamp, string(encoded)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build calibration history insert: %w", err)
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, latestSQL, latestArgs...); err != nil {
			return fmt.Errorf("write latest calibration: %w", err)
		}
		if _, err := tx.ExecContext(ctx, historySQL, historyArgs...); err != nil {
			return fmt.Errorf("append calibration history: %w", err)
		}
		return nil
	})
}

// CalibrationHistory returns every calibration version, oldest first.
func (s *Store) CalibrationHistory(ctx context.Context) ([]CalibrationRecord, error) {
	query, args, err := builder().Select("timestamp", "parameters").
		From("calibration_history").
		OrderBy("timestamp ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build calibration history query: %w", err)
	}
	var rows []calibrationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query calibration history: %w", err)
	}
	out := make([]CalibrationRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
