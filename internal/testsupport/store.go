package testsupport

import (
	"context"
	"testing"

	"kahvi/internal/config"
	"kahvi/internal/logging"
	"kahvi/internal/reading"
	"kahvi/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// Reading builds a plausible reading at timestamp ts.
func Reading(ts float64) reading.Reading {
	return reading.Reading{
		Timestamp:     ts,
		RawValue:      500,
		NMeasurements: 5,
		Std:           0,
		NCups:         2,
		IsCoffee:      true,
	}
}

// InsertReadings stores one reading per timestamp.
func InsertReadings(t testing.TB, st *store.Store, timestamps ...float64) {
	t.Helper()

	for _, ts := range timestamps {
		if err := st.Insert(context.Background(), Reading(ts)); err != nil {
			t.Fatalf("store.Insert(%v): %v", ts, err)
		}
	}
}
