package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"kahvi/internal/config"
	"kahvi/internal/logging"
)

// Store is the SQLite-backed time-series and calibration store.
type Store struct {
	db       *sqlx.DB
	path     string
	maxItems int
	logger   *slog.Logger
}

// Open connects to the database named by cfg.Database.Path and applies
// migrations.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("store: nil config")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	logger = logging.NewComponentLogger(logger, "store")

	dbPath := cfg.Database.Path
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := migrate(context.Background(), raw, logger); err != nil {
		_ = raw.Close()
		return nil, err
	}

	// One connection keeps transactions and pragmas on the same handle.
	raw.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := raw.Exec(pragma); execErr != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	return &Store{
		db:       sqlx.NewDb(raw, "sqlite3"),
		path:     dbPath,
		maxItems: cfg.Database.RangeQueryMaxItems,
		logger:   logger,
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// MaxItems returns the range query cap.
func (s *Store) MaxItems() int { return s.maxItems }

func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
