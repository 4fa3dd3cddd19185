package daemon_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"kahvi/internal/calibration"
	"kahvi/internal/daemon"
	"kahvi/internal/logging"
	"kahvi/internal/sensor"
	"kahvi/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, sensor.NewDummy(sensor.WithSeed(1)), logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running || status.Calibration != "synced" {
		t.Fatalf("status = %+v", status)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := st.Count(ctx)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no reading stored by the running daemon")
		}
		time.Sleep(20 * time.Millisecond)
	}

	resp, err := http.Get("http://" + d.APIAddress() + "/api/calibration")
	if err != nil {
		t.Fatalf("GET calibration: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["state"] != "synced" {
		t.Fatalf("calibration = %v", body)
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := daemon.New(cfg, testsupport.MustOpenStore(t, cfg), sensor.NewDummy(), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { first.Close() })
	second, err := daemon.New(cfg, testsupport.MustOpenStore(t, cfg), sensor.NewDummy(), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { second.Close() })

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("second Start err = %v, want ErrAlreadyRunning", err)
	}
	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after first stopped: %v", err)
	}
}

func TestDaemonUsesHandedInLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	lock, err := daemon.AcquireLock(cfg)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if _, err := daemon.AcquireLock(cfg); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("second AcquireLock err = %v, want ErrAlreadyRunning", err)
	}

	d, err := daemon.New(cfg, testsupport.MustOpenStore(t, cfg), sensor.NewDummy(), nil, daemon.WithLock(lock))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start with held lock: %v", err)
	}
	d.Stop()

	again, err := daemon.AcquireLock(cfg)
	if err != nil {
		t.Fatalf("lock not released by Stop: %v", err)
	}
	_ = again.Unlock()
}

func TestDummyDriverReadingsAreSimulated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, sensor.NewDummy(sensor.WithSeed(3)), nil, daemon.WithDriverName(daemon.DriverDummy))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := d.Status().Driver; got != daemon.DriverDummy {
		t.Fatalf("status driver = %q", got)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := st.CountSimulated(ctx)
		if err != nil {
			t.Fatalf("CountSimulated: %v", err)
		}
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no simulated reading stored")
		}
		time.Sleep(20 * time.Millisecond)
	}
	d.Stop()

	total, _ := st.Count(ctx)
	simulated, _ := st.CountSimulated(ctx)
	if total != simulated {
		t.Fatalf("%d of %d readings tagged simulated", simulated, total)
	}
}

func TestDaemonRejectsDegenerateCalibration(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCalibration(map[string]any{
		calibration.KeyEmptyDecanterValue: 500.0,
		calibration.KeyFullValue:          500.0,
		calibration.KeyMaxNCups:           10.0,
	}))
	d, err := daemon.New(cfg, testsupport.MustOpenStore(t, cfg), sensor.NewDummy(), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected calibration error")
	}
	if d.Status().Running {
		t.Fatal("daemon running with degenerate calibration")
	}
}

func TestReloadCalibration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, sensor.NewDummy(), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	params := cfg.CalibrationCopy()
	if changed, err := d.ReloadCalibration(ctx, params); err != nil || changed {
		t.Fatalf("reload unchanged = %v, %v", changed, err)
	}
	params[calibration.KeyMaxNCups] = 12.0
	if changed, err := d.ReloadCalibration(ctx, params); err != nil || !changed {
		t.Fatalf("reload changed = %v, %v", changed, err)
	}
	history, err := st.CalibrationHistory(ctx)
	if err != nil || len(history) != 2 {
		t.Fatalf("history = %v, %v", history, err)
	}
}

func TestOpenDriver(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	cfg.General.Driver = daemon.DriverDummy
	d, name, err := daemon.OpenDriver(cfg, nil)
	if err != nil || name != daemon.DriverDummy || d == nil {
		t.Fatalf("dummy = %v, %q, %v", d, name, err)
	}

	cfg.Hardware.GPIODevice = filepath.Join(t.TempDir(), "missing-gpiomem")
	cfg.General.Driver = daemon.DriverHX711
	if _, _, err := daemon.OpenDriver(cfg, nil); err == nil {
		t.Fatal("hx711 without gpio should fail")
	}

	cfg.General.Driver = daemon.DriverAuto
	d, name, err = daemon.OpenDriver(cfg, logging.NewNop())
	if err != nil || name != daemon.DriverDummy {
		t.Fatalf("auto = %v, %q, %v", d, name, err)
	}

	cfg.General.Driver = "spi"
	if _, _, err := daemon.OpenDriver(cfg, nil); err == nil {
		t.Fatal("unknown driver accepted")
	}
}
