package sensor

import (
	"math/rand/v2"
	"sync"
	"time"
)

const dummyRange = 1024

// Dummy is a driver that produces a bounded random walk in [0, 1024). It
// stands in for the HX711 on machines without GPIO.
type Dummy struct {
	mu    sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
	value int64
	last  time.Time
}

// DummyOption customises a Dummy driver.
type DummyOption func(*Dummy)

// WithSeed makes the walk reproducible.
func WithSeed(seed uint64) DummyOption {
	return func(d *Dummy) {
		d.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithClock replaces the wall clock used to size each step.
func WithClock(now func() time.Time) DummyOption {
	return func(d *Dummy) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDummy returns a dummy driver starting at zero.
func NewDummy(opts ...DummyOption) *Dummy {
	d := &Dummy{
		rng: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.last = d.now()
	return d
}

// ReadRaw advances the walk by a step proportional to the whole seconds since
// the previous step and returns the new value. Reads within the same second
// return the current value unchanged.
func (d *Dummy) ReadRaw() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	elapsed := int64(now.Sub(d.last) / time.Second)
	if elapsed > 0 {
		step := (d.rng.Int64N(100) - 20) * elapsed
		d.value = ((d.value+step)%dummyRange + dummyRange) % dummyRange
		d.last = now
	}
	return d.value, nil
}

// Cleanup is a no-op.
func (d *Dummy) Cleanup() {}
