// Package store persists readings and calibration versions in SQLite.
//
// Every insert appends to the readings table and replaces the singleton row in
// readings_latest inside one transaction. Range queries are bounded by the
// configured cap and return the earliest matches first. Calibration changes
// write calibration_latest and calibration_history together.
package store
