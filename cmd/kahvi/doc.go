// Package main hosts the kahvi CLI entrypoint and command graph.
//
// `kahvi run` is the daemon. The remaining commands read the store directly
// (latest, range, calibration), take a one-off sample, or scaffold and check
// configuration. Output is a table on a terminal and JSON otherwise.
package main
