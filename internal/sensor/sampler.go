package sensor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"kahvi/internal/logging"
)

// RawSample is one ADC conversion and the time it was taken.
type RawSample struct {
	Value int64
	At    time.Time
}

// Sampler collects raw samples from a single driver over a time window.
type Sampler struct {
	driver Driver
	logger *slog.Logger
	mu     sync.Mutex

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSampler binds a sampler to driver.
func NewSampler(driver Driver, logger *slog.Logger) *Sampler {
	return &Sampler{
		driver: driver,
		logger: logging.NewComponentLogger(logger, "sampler"),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Driver returns the driver the sampler owns.
func (s *Sampler) Driver() Driver { return s.driver }

// Sample polls the driver every poll until window has elapsed. Failed reads
// are skipped. If no read succeeds the last failure is returned as a
// *DriverError. Cancellation is checked between polls, never during a read,
// and returns the samples gathered so far together with ctx.Err().
func (s *Sampler) Sample(ctx context.Context, window, poll time.Duration) ([]RawSample, error) {
	if !s.mu.TryLock() {
		return nil, ErrSamplerBusy
	}
	defer s.mu.Unlock()

	var (
		samples []RawSample
		lastErr error
		fails   int
	)
	start := s.now()
	for {
		if err := ctx.Err(); err != nil {
			return samples, err
		}
		value, err := s.driver.ReadRaw()
		if err != nil {
			lastErr = err
			fails++
		} else {
			samples = append(samples, RawSample{Value: value, At: s.now()})
		}
		if s.now().Sub(start) >= window {
			break
		}
		if err := s.sleep(ctx, poll); err != nil {
			return samples, err
		}
	}

	if fails > 0 {
		s.logger.Debug("driver reads failed during window",
			logging.Int("failed_reads", fails),
			logging.Int("samples", len(samples)),
		)
	}
	if len(samples) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no samples collected")
		}
		return nil, driverErr("sample", lastErr)
	}
	return samples, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
