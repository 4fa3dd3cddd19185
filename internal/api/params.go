package api

import (
	"fmt"
	"strconv"
	"strings"

	"kahvi/internal/reading"
	"kahvi/internal/store"
)

// ParseRange converts textual bounds into a validated range query. Parse
// failures are reported as store.ErrInvalidRange.
func ParseRange(start, end string) (store.RangeQuery, error) {
	s, err := parseBound("start", start)
	if err != nil {
		return store.RangeQuery{}, err
	}
	e, err := parseBound("end", end)
	if err != nil {
		return store.RangeQuery{}, err
	}
	q := store.RangeQuery{Start: s, End: e}
	if err := q.Validate(); err != nil {
		return store.RangeQuery{}, err
	}
	return q, nil
}

func parseBound(name, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", store.ErrInvalidRange, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", store.ErrInvalidRange, name, raw)
	}
	return v, nil
}

// ParseFields splits a comma-separated projection and rejects unknown names.
func ParseFields(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var fields []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if !reading.IsField(name) {
			return nil, fmt.Errorf("%w: %q", store.ErrUnknownField, name)
		}
		fields = append(fields, name)
	}
	return fields, nil
}
