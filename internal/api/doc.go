// Package api serves the read-only HTTP interface: the latest reading,
// bounded range queries with field projection, the calibration in effect and
// its history, and Prometheus metrics.
//
// Readings use the same camelCase field names as the persisted records.
// Range queries are capped by the store; Truncated is set only when matches
// past the cap were dropped.
package api
