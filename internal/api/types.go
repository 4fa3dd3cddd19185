package api

import (
	"kahvi/internal/reading"
	"kahvi/internal/store"
)

// RangeResponse is the payload of a range query.
type RangeResponse struct {
	Start     float64          `json:"start"`
	End       float64          `json:"end"`
	Limit     int              `json:"limit"`
	Count     int              `json:"count"`
	Truncated bool             `json:"truncated"`
	Readings  []map[string]any `json:"readings"`
}

// CalibrationResponse describes the calibration in effect.
type CalibrationResponse struct {
	State      string         `json:"state"`
	SyncedAt   float64        `json:"syncedAt,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// HistoryResponse lists every calibration version, oldest first.
type HistoryResponse struct {
	Versions []store.CalibrationRecord `json:"versions"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewRangeResponse projects readings for transport. truncated reports that the
// store dropped matches past limit.
func NewRangeResponse(q store.RangeQuery, limit int, fields []string, readings []reading.Reading, truncated bool) RangeResponse {
	out := make([]map[string]any, 0, len(readings))
	for _, r := range readings {
		out = append(out, r.Project(fields))
	}
	return RangeResponse{
		Start:     q.Start,
		End:       q.End,
		Limit:     limit,
		Count:     len(out),
		Truncated: truncated,
		Readings:  out,
	}
}
