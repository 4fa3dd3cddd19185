// Package reading defines the persisted unit of the coffee monitor: one
// filtered, calibrated, and classified sensor window.
package reading

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Field names as they appear on the wire and in range query projections.
const (
	FieldTimestamp     = "timestamp"
	FieldRawValue      = "rawValue"
	FieldNMeasurements = "nMeasurements"
	FieldStd           = "std"
	FieldNCups         = "nCups"
	FieldIsCoffee      = "isCoffee"
	FieldCoffeeComing  = "coffeeComing"
	FieldTrayEmpty     = "trayEmpty"
	FieldDatapoints    = "datapoints"
)

// Fields lists every Reading field in wire order.
var Fields = []string{
	FieldTimestamp,
	FieldRawValue,
	FieldNMeasurements,
	FieldStd,
	FieldNCups,
	FieldIsCoffee,
	FieldCoffeeComing,
	FieldTrayEmpty,
	FieldDatapoints,
}

// Reading is created once per sampling cycle and never modified afterwards.
// NCups is always a number in [0, max_ncups]; an undefined cup estimate is
// represented by TrayEmpty with NCups 0.
type Reading struct {
	Timestamp     float64    `json:"timestamp" db:"timestamp"`
	RawValue      float64    `json:"rawValue" db:"raw_value"`
	NMeasurements int        `json:"nMeasurements" db:"n_measurements"`
	Std           float64    `json:"std" db:"std"`
	NCups         float64    `json:"nCups" db:"n_cups"`
	IsCoffee      bool       `json:"isCoffee" db:"is_coffee"`
	CoffeeComing  bool       `json:"coffeeComing" db:"coffee_coming"`
	TrayEmpty     bool       `json:"trayEmpty" db:"tray_empty"`
	Datapoints    Datapoints `json:"datapoints,omitempty" db:"datapoints"`
}

// Project returns the reading as a mapping restricted to the named fields.
// Timestamp is always included. An empty field list returns every field.
func (r Reading) Project(fields []string) map[string]any {
	all := map[string]any{
		FieldTimestamp:     r.Timestamp,
		FieldRawValue:      r.RawValue,
		FieldNMeasurements: r.NMeasurements,
		FieldStd:           r.Std,
		FieldNCups:         r.NCups,
		FieldIsCoffee:      r.IsCoffee,
		FieldCoffeeComing:  r.CoffeeComing,
		FieldTrayEmpty:     r.TrayEmpty,
	}
	if r.Datapoints != nil {
		all[FieldDatapoints] = []float64(r.Datapoints)
	}
	if len(fields) == 0 {
		return all
	}
	out := map[string]any{FieldTimestamp: r.Timestamp}
	for _, name := range fields {
		if value, ok := all[name]; ok {
			out[name] = value
		}
	}
	return out
}

// IsField reports whether name is a known Reading field.
func IsField(name string) bool {
	for _, field := range Fields {
		if field == name {
			return true
		}
	}
	return false
}

// Datapoints is the filtered sample sequence attached to anomalous readings.
// It is stored as a JSON array; NULL means no datapoints were attached.
type Datapoints []float64

// Value implements driver.Valuer.
func (d Datapoints) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	data, err := json.Marshal([]float64(d))
	if err != nil {
		return nil, fmt.Errorf("encode datapoints: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (d *Datapoints) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan datapoints: unsupported type %T", src)
	}
	var values []float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("decode datapoints: %w", err)
	}
	if values == nil {
		return errors.New("decode datapoints: null array")
	}
	*d = values
	return nil
}
