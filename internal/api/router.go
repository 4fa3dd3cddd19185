package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kahvi/internal/calibration"
	"kahvi/internal/logging"
	"kahvi/internal/reading"
	"kahvi/internal/store"
)

// ReadingStore is the subset of the store the API reads from.
type ReadingStore interface {
	QueryLatest(ctx context.Context) (*reading.Reading, error)
	QueryRange(ctx context.Context, q store.RangeQuery, fields []string) ([]reading.Reading, bool, error)
	CalibrationHistory(ctx context.Context) ([]store.CalibrationRecord, error)
	MaxItems() int
}

// CalibrationSource provides the calibration in effect.
type CalibrationSource interface {
	Current() (*calibration.Snapshot, bool)
}

// Options configures the router.
type Options struct {
	Token   string
	Metrics http.Handler
	Logger  *slog.Logger
}

type handlers struct {
	store       ReadingStore
	calibration CalibrationSource
	logger      *slog.Logger
}

// NewRouter builds the HTTP handler tree.
func NewRouter(st ReadingStore, cal CalibrationSource, opts Options) http.Handler {
	h := &handlers{
		store:       st,
		calibration: cal,
		logger:      logging.NewComponentLogger(opts.Logger, "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(opts.Token))
		r.Get("/api/latest", h.latest)
		r.Get("/api/readings", h.readings)
		r.Get("/api/calibration", h.currentCalibration)
		r.Get("/api/calibration/history", h.calibrationHistory)
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	return r
}

func (h *handlers) latest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.store.QueryLatest(r.Context())
	if err != nil {
		h.internalError(w, "query latest", err)
		return
	}
	if latest == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no readings yet"})
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (h *handlers) readings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q, err := ParseRange(query.Get("start"), query.Get("end"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	fields, err := ParseFields(query.Get("fields"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	readings, truncated, err := h.store.QueryRange(r.Context(), q, fields)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRange) || errors.Is(err, store.ErrUnknownField) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.internalError(w, "query range", err)
		return
	}
	writeJSON(w, http.StatusOK, NewRangeResponse(q, h.store.MaxItems(), fields, readings, truncated))
}

func (h *handlers) currentCalibration(w http.ResponseWriter, _ *http.Request) {
	resp := CalibrationResponse{State: calibration.Uninitialized.String()}
	if h.calibration != nil {
		if snap, ok := h.calibration.Current(); ok {
			resp.State = calibration.Synced.String()
			resp.SyncedAt = float64(snap.SyncedAt.UnixNano()) / 1e9
			resp.Parameters = snap.Params
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) calibrationHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.store.CalibrationHistory(r.Context())
	if err != nil {
		h.internalError(w, "query calibration history", err)
		return
	}
	if history == nil {
		history = []store.CalibrationRecord{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Versions: history})
}

func (h *handlers) internalError(w http.ResponseWriter, op string, err error) {
	logging.ErrorWithContext(h.logger, "api request failed", "api_error",
		logging.String("operation", op),
		logging.String(logging.FieldErrorHint, "check database access"),
		logging.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
