package calibration

import (
	"errors"
	"fmt"
	"math"
)

// ErrCalibration matches any CalibrationError via errors.Is.
var ErrCalibration = errors.New("invalid calibration")

// CalibrationError reports degenerate or missing calibration parameters.
type CalibrationError struct {
	Key    string
	Reason string
}

func (e *CalibrationError) Error() string {
	if e.Key == "" {
		return "calibration: " + e.Reason
	}
	return fmt.Sprintf("calibration %s: %s", e.Key, e.Reason)
}

func (e *CalibrationError) Is(target error) bool { return target == ErrCalibration }

// Model is the linear raw-value to cups mapping.
type Model struct {
	Empty    float64
	Full     float64
	MaxNCups float64
}

// ModelFrom validates params and builds a Model. It fails with a
// *CalibrationError when a required key is missing or non-numeric, when
// the full and empty references coincide, or when max_ncups is not positive.
func ModelFrom(params Parameters) (Model, error) {
	var m Model
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{KeyEmptyDecanterValue, &m.Empty},
		{KeyFullValue, &m.Full},
		{KeyMaxNCups, &m.MaxNCups},
	} {
		if _, ok := params[f.key]; !ok {
			return Model{}, &CalibrationError{Key: f.key, Reason: "missing"}
		}
		v, ok := params.Float(f.key)
		if !ok {
			return Model{}, &CalibrationError{Key: f.key, Reason: "not numeric"}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Model{}, &CalibrationError{Key: f.key, Reason: "not finite"}
		}
		*f.dst = v
	}
	if m.Full == m.Empty {
		return Model{}, &CalibrationError{
			Key:    KeyFullValue,
			Reason: fmt.Sprintf("equals %s (%g)", KeyEmptyDecanterValue, m.Empty),
		}
	}
	if m.MaxNCups <= 0 {
		return Model{}, &CalibrationError{Key: KeyMaxNCups, Reason: fmt.Sprintf("must be positive, got %g", m.MaxNCups)}
	}
	return m, nil
}

// EstimateCups returns the unclamped cup estimate for raw. The second result
// is false when the estimate is undefined.
func (m Model) EstimateCups(raw float64) (float64, bool) {
	n := (raw - m.Empty) / (m.Full - m.Empty) * m.MaxNCups
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
