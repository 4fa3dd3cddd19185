// Package notifications pushes brew events to ntfy.
//
// A Watcher sits behind the monitor as a reading sink, compares each reading
// with the previous one, and turns state transitions (brew started, fresh pot
// ready, pot empty, tray removed) into notifications. When no ntfy topic is
// configured the notifier is a no-op.
package notifications
