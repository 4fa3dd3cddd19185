// Package calibration maps filtered raw sensor values to cup counts and keeps
// the versioned calibration parameters in sync with the store.
//
// Parameters are a free-form mapping; three keys are required by the linear
// Model. The Manager owns the single in-memory copy of the latest parameters
// and is the only writer of both that copy and the persisted history.
package calibration
