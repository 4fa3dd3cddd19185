// Package logging builds the slog loggers used by the daemon and CLI.
//
// It offers a compact console handler for interactive use and a JSON handler
// for log shipping, both able to fan out to stdout and a log file under the
// configured log directory. Attribute helpers and the Field* keys keep
// structured output consistent across packages: every subsystem logger carries
// a component, and warnings carry an event type, hint, and impact.
package logging
