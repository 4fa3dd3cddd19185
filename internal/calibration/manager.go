package calibration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"kahvi/internal/logging"
)

// HistoryStore persists calibration versions.
type HistoryStore interface {
	// LatestCalibration returns the current "latest" parameters, if any.
	LatestCalibration(ctx context.Context) (map[string]any, bool, error)
	// SaveCalibration replaces "latest" and appends a history entry
	// atomically.
	SaveCalibration(ctx context.Context, timestamp float64, params map[string]any) error
}

// SyncState is the manager's reconciliation state.
type SyncState int

const (
	// Uninitialized means no calibration has been reconciled yet.
	Uninitialized SyncState = iota
	// Synced means the cached parameters match the persisted latest version.
	Synced
)

func (s SyncState) String() string {
	switch s {
	case Synced:
		return "synced"
	default:
		return "uninitialized"
	}
}

// Snapshot is an immutable view of the reconciled calibration.
type Snapshot struct {
	Params   Parameters
	Model    Model
	SyncedAt time.Time
}

// Manager reconciles configured calibration against the store and serves the
// latest parameters to the pipeline.
type Manager struct {
	store  HistoryStore
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewManager creates a manager in the Uninitialized state.
func NewManager(store HistoryStore, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logging.NewComponentLogger(logger, "calibration"),
		now:    time.Now,
	}
}

// State reports whether a calibration has been reconciled.
func (m *Manager) State() SyncState {
	if m.current.Load() == nil {
		return Uninitialized
	}
	return Synced
}

// Current returns the last reconciled snapshot.
func (m *Manager) Current() (*Snapshot, bool) {
	snap := m.current.Load()
	return snap, snap != nil
}

// Reconcile compares params with the persisted latest version and writes a new
// version when they differ. It reports whether a new version was written.
// Invalid parameters fail with a *CalibrationError before the store is
// touched. The cached snapshot is replaced only after a successful write.
func (m *Manager) Reconcile(ctx context.Context, params map[string]any) (bool, error) {
	if m == nil || m.store == nil {
		return false, errors.New("calibration manager not configured")
	}
	normalized := Normalize(params)
	model, err := ModelFrom(normalized)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	latest, found, err := m.store.LatestCalibration(ctx)
	if err != nil {
		return false, fmt.Errorf("load latest calibration: %w", err)
	}
	if found && Normalize(latest).Equal(normalized) {
		m.publish(normalized, model)
		m.logger.Debug("calibration unchanged",
			logging.String(logging.FieldEventType, "calibration_unchanged"),
		)
		return false, nil
	}

	now := m.now()
	ts := float64(now.UnixNano()) / 1e9
	if err := m.store.SaveCalibration(ctx, ts, normalized.Clone()); err != nil {
		return false, fmt.Errorf("save calibration: %w", err)
	}
	m.publish(normalized, model)
	m.logger.Info("calibration updated",
		logging.String(logging.FieldEventType, "calibration_changed"),
		logging.Bool("first_version", !found),
		logging.Float64("empty", model.Empty),
		logging.Float64("full", model.Full),
		logging.Float64("max_ncups", model.MaxNCups),
	)
	return true, nil
}

func (m *Manager) publish(params Parameters, model Model) {
	m.current.Store(&Snapshot{Params: params, Model: model, SyncedAt: m.now()})
}
