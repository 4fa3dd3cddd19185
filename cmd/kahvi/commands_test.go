package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/require"

	"kahvi/internal/api"
	"kahvi/internal/config"
	"kahvi/internal/reading"
	"kahvi/internal/store"
	"kahvi/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "kahvi", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target})
	require.NoError(t, err)
	requireContains(t, out, "Wrote sample configuration to "+target)

	_, _, err = runCLI(t, []string{"config", "init", "--path", target})
	require.Error(t, err)
	requireContains(t, err.Error(), "already exists")

	_, _, err = runCLI(t, []string{"config", "init", "--path", target, "--overwrite"})
	require.NoError(t, err)

	out, _, err = runCLI(t, []string{"--config", target, "-o", "table", "config", "validate"})
	require.NoError(t, err)
	requireContains(t, out, target)
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"--config", target, "config", "validate"})
	require.NoError(t, err)
	var summary configSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Equal(t, target, summary.Path)
	require.Equal(t, "auto", summary.Driver)
	require.Equal(t, "disabled", summary.MQTT)
}

func TestConfigInitUsesGlobalConfigPath(t *testing.T) {
	target := filepath.Join(t.TempDir(), "kahvi.toml")

	out, _, err := runCLI(t, []string{"--config", target, "config", "init"})
	require.NoError(t, err)
	requireContains(t, out, target)
	_, err = os.Stat(target)
	require.NoError(t, err)
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	testsupport.WriteFile(t, path, "[general]\ndriver = \"dummy\"\n")

	_, _, err := runCLI(t, []string{"--config", path, "config", "validate"})
	require.Error(t, err)
	requireContains(t, err.Error(), "calibration")
}

func TestUnknownOutputFormat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	_, _, err := runCLI(t, []string{"--config", path, "--output", "yaml", "latest"})
	require.Error(t, err)
	requireContains(t, err.Error(), "unknown output format")
}

func TestLatestEmptyStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	_, _, err := runCLI(t, []string{"--config", path, "latest"})
	require.ErrorIs(t, err, errNoReadings)
}

func TestLatestPrintsNewestReading(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.InsertReadings(t, st, 100, 200, 150)

	out, _, err := runCLI(t, []string{"--config", path, "latest"})
	require.NoError(t, err)

	var got reading.Reading
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, 150.0, got.Timestamp)
	require.Equal(t, 2.0, got.NCups)

	out, _, err = runCLI(t, []string{"--config", path, "--output", "table", "latest"})
	require.NoError(t, err)
	requireContains(t, out, "N Cups")
	requireContains(t, out, "2.00")
}

func TestRangeCapsAndOrders(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRangeLimit(3))
	path := writeTestConfig(t, cfg)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.InsertReadings(t, st, 5, 1, 4, 2, 3)

	out, _, err := runCLI(t, []string{"--config", path, "range", "--start", "1", "--end", "5", "--fields", "nCups"})
	require.NoError(t, err)

	var resp api.RangeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, 3, resp.Count)
	require.True(t, resp.Truncated)
	var stamps []float64
	for _, row := range resp.Readings {
		stamps = append(stamps, row[reading.FieldTimestamp].(float64))
		require.Contains(t, row, reading.FieldNCups)
		require.NotContains(t, row, reading.FieldRawValue)
	}
	require.Equal(t, []float64{1, 2, 3}, stamps)

	out, _, err = runCLI(t, []string{"--config", path, "-o", "table", "range", "--start", "1", "--end", "5"})
	require.NoError(t, err)
	requireContains(t, out, "Result capped at 3 items")
}

func TestRangeAtCapHasNoTruncationNote(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRangeLimit(3))
	path := writeTestConfig(t, cfg)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.InsertReadings(t, st, 1, 2, 3)

	out, _, err := runCLI(t, []string{"--config", path, "range", "--start", "1", "--end", "5"})
	require.NoError(t, err)
	var resp api.RangeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, 3, resp.Count)
	require.False(t, resp.Truncated)

	out, _, err = runCLI(t, []string{"--config", path, "-o", "table", "range", "--start", "1", "--end", "5"})
	require.NoError(t, err)
	require.NotContains(t, out, "Result capped")
}

func TestRangeRejectsInvalidInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	_, _, err := runCLI(t, []string{"--config", path, "range", "--start", "10", "--end", "5"})
	require.ErrorIs(t, err, store.ErrInvalidRange)

	_, _, err = runCLI(t, []string{"--config", path, "range", "--start", "1", "--end", "5", "--fields", "weight"})
	require.ErrorIs(t, err, store.ErrUnknownField)

	_, _, err = runCLI(t, []string{"--config", path, "range", "--start", "yesterday"})
	require.Error(t, err)
	requireContains(t, err.Error(), "--start")
}

func TestCalibrationSyncShowHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"--config", path, "calibration", "show"})
	require.NoError(t, err)
	var view calibrationView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Nil(t, view.Stored)
	require.False(t, view.InSync)

	out, _, err = runCLI(t, []string{"--config", path, "calibration", "sync"})
	require.NoError(t, err)
	require.JSONEq(t, `{"changed":true}`, out)

	out, _, err = runCLI(t, []string{"--config", path, "calibration", "sync"})
	require.NoError(t, err)
	require.JSONEq(t, `{"changed":false}`, out)

	out, _, err = runCLI(t, []string{"--config", path, "calibration", "show"})
	require.NoError(t, err)
	view = calibrationView{}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.NotNil(t, view.Stored)
	require.True(t, view.InSync)

	cfg.Calibration[config.KeyFullValue] = 950.0
	writeTestConfig(t, cfg)
	_, _, err = runCLI(t, []string{"--config", path, "calibration", "sync"})
	require.NoError(t, err)

	out, _, err = runCLI(t, []string{"--config", path, "calibration", "history"})
	require.NoError(t, err)
	var history []store.CalibrationRecord
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	require.Len(t, history, 2)
	require.Equal(t, 900.0, history[0].Parameters[config.KeyFullValue])
	require.Equal(t, 950.0, history[1].Parameters[config.KeyFullValue])

	out, _, err = runCLI(t, []string{"--config", path, "-o", "table", "calibration", "history"})
	require.NoError(t, err)
	requireContains(t, out, "Max Cups")
	requireContains(t, out, "950")
}

func TestSampleWithDummyDriver(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"--config", path, "sample"})
	require.NoError(t, err)

	var got reading.Reading
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Positive(t, got.NMeasurements)
	require.GreaterOrEqual(t, got.NCups, 0.0)
	require.LessOrEqual(t, got.NCups, 10.0)

	st := testsupport.MustOpenStore(t, cfg)
	count, err := st.Count(t.Context())
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSampleRefusesWhileDaemonHoldsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)
	require.NoError(t, os.MkdirAll(cfg.Paths.StateDir, 0o755))

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { _ = lock.Unlock() })

	_, _, err = runCLI(t, []string{"--config", path, "sample"})
	require.Error(t, err)
	requireContains(t, err.Error(), "daemon is running")
}

func TestNotifyTestRequiresTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	_, _, err := runCLI(t, []string{"--config", path, "notify", "test"})
	require.Error(t, err)
	requireContains(t, err.Error(), "ntfy_topic")
}

func TestCleanRemovesOnlySimulatedReadings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.InsertReadings(t, st, 10)
	require.NoError(t, st.InsertSimulated(t.Context(), testsupport.Reading(20)))

	out, _, err := runCLI(t, []string{"--config", path, "-o", "table", "clean"})
	require.NoError(t, err)
	requireContains(t, out, "rerun with --yes")
	n, err := st.Count(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	out, _, err = runCLI(t, []string{"--config", path, "clean", "--yes"})
	require.NoError(t, err)
	var result cleanResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.EqualValues(t, 1, result.Simulated)
	require.EqualValues(t, 1, result.Removed)

	n, err = st.Count(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
