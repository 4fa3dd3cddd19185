package sensor

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const hx711Bits = 24

// Pins is the GPIO surface the HX711 driver needs. *gpio.Bank satisfies it.
type Pins interface {
	SetInput(pin int) error
	SetOutput(pin int) error
	Write(pin int, high bool)
	Read(pin int) bool
	Close() error
}

// HX711Config describes the wiring of one HX711 amplifier.
type HX711Config struct {
	DataPin      int
	ClockPin     int
	Gain         int
	ReadyTimeout time.Duration
}

// ErrNotReady is wrapped in the DriverError returned when DOUT never goes low.
var ErrNotReady = errors.New("hx711 not ready")

// HX711 reads a 24-bit load cell amplifier by bit-banging its serial
// interface.
type HX711 struct {
	pins   Pins
	cfg    HX711Config
	pulses int

	mu     sync.Mutex
	closed bool
	once   sync.Once

	now func() time.Time
}

// GainPulses returns the number of extra clock pulses that select channel and
// gain for the next conversion.
func GainPulses(gain int) (int, error) {
	switch gain {
	case 128:
		return 1, nil
	case 64:
		return 3, nil
	case 32:
		return 2, nil
	default:
		return 0, fmt.Errorf("unsupported hx711 gain %d (want 128, 64 or 32)", gain)
	}
}

// NewHX711 configures the pins and performs one throwaway conversion so the
// selected gain applies to the first real read.
func NewHX711(pins Pins, cfg HX711Config) (*HX711, error) {
	pulses, err := GainPulses(cfg.Gain)
	if err != nil {
		return nil, err
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = time.Second
	}
	if err := pins.SetOutput(cfg.ClockPin); err != nil {
		return nil, driverErr("setup clock pin", err)
	}
	if err := pins.SetInput(cfg.DataPin); err != nil {
		return nil, driverErr("setup data pin", err)
	}
	pins.Write(cfg.ClockPin, false)

	h := &HX711{pins: pins, cfg: cfg, pulses: pulses, now: time.Now}
	if _, err := h.ReadRaw(); err != nil {
		h.Cleanup()
		return nil, err
	}
	return h, nil
}

// ReadRaw waits for a conversion and returns it as a signed value.
func (h *HX711) ReadRaw() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, &DriverError{Op: "read", Err: errors.New("driver closed")}
	}
	if err := h.waitReady(); err != nil {
		return 0, err
	}

	var raw uint32
	for range hx711Bits {
		h.pins.Write(h.cfg.ClockPin, true)
		raw <<= 1
		h.pins.Write(h.cfg.ClockPin, false)
		if h.pins.Read(h.cfg.DataPin) {
			raw |= 1
		}
	}
	for range h.pulses {
		h.pins.Write(h.cfg.ClockPin, true)
		h.pins.Write(h.cfg.ClockPin, false)
	}
	return twosComplement(raw, hx711Bits), nil
}

func (h *HX711) waitReady() error {
	deadline := h.now().Add(h.cfg.ReadyTimeout)
	for h.pins.Read(h.cfg.DataPin) {
		if h.now().After(deadline) {
			return &DriverError{Op: "read", Err: fmt.Errorf("%w after %s", ErrNotReady, h.cfg.ReadyTimeout)}
		}
	}
	return nil
}

// Cleanup powers the chip down by holding the clock high and releases the
// GPIO mapping.
func (h *HX711) Cleanup() {
	h.once.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.closed = true
		h.pins.Write(h.cfg.ClockPin, true)
		_ = h.pins.Close()
	})
}

func twosComplement(raw uint32, bits int) int64 {
	v := int64(raw)
	if v >= 1<<(bits-1) {
		v -= 1 << bits
	}
	return v
}
