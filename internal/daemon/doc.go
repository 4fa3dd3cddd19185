// Package daemon coordinates the long-running kahvi process.
//
// It wires configuration, the reading store, calibration reconciliation, the
// sampling monitor, and the HTTP API into a single lifecycle with flock-based
// locking so only one process ever owns the load cell. Driver selection
// happens here, once, at composition time.
package daemon
