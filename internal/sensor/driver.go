// Package sensor acquires raw load-cell readings and reduces them to the
// filtered statistics the rest of the pipeline consumes.
//
// A Driver wraps one physical ADC (or the dummy stand-in). The Sampler owns a
// driver for the length of one acquisition window and never lets two windows
// overlap on the same hardware handle.
package sensor

import (
	"errors"
	"fmt"
)

// Driver is the contract every ADC implementation satisfies.
type Driver interface {
	// ReadRaw returns one raw conversion. Hardware failures are reported as
	// *DriverError.
	ReadRaw() (int64, error)
	// Cleanup releases hardware resources. It is idempotent and never fails.
	Cleanup()
}

// ErrDriver matches any DriverError via errors.Is.
var ErrDriver = errors.New("sensor driver failure")

// ErrSamplerBusy is returned when a second acquisition is started while one is
// already running against the same driver.
var ErrSamplerBusy = errors.New("sampler already running")

// DriverError reports a hardware or transport failure.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("sensor %s failed", e.Op)
	}
	return fmt.Sprintf("sensor %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

func (e *DriverError) Is(target error) bool { return target == ErrDriver }

func driverErr(op string, err error) error {
	var de *DriverError
	if errors.As(err, &de) {
		return err
	}
	return &DriverError{Op: op, Err: err}
}
