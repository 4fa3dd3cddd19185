package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"kahvi/internal/logging"
	"kahvi/internal/reading"
)

// Transitions lists the events implied by moving from prev to next.
func Transitions(prev, next reading.Reading) []Event {
	var events []Event
	if !prev.CoffeeComing && next.CoffeeComing {
		events = append(events, EventBrewStarted)
	}
	if prev.CoffeeComing && !next.CoffeeComing && next.IsCoffee {
		events = append(events, EventCoffeeReady)
	}
	if prev.IsCoffee && !next.IsCoffee && !next.TrayEmpty && !next.CoffeeComing {
		events = append(events, EventPotEmpty)
	}
	if !prev.TrayEmpty && next.TrayEmpty {
		events = append(events, EventTrayRemoved)
	}
	return events
}

// Watcher turns a reading stream into notifications. The first reading only
// sets the baseline.
type Watcher struct {
	notifier Notifier
	logger   *slog.Logger

	mu   sync.Mutex
	last *reading.Reading
}

// NewWatcher wraps notifier.
func NewWatcher(notifier Notifier, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "notifications"),
	}
}

// Publish compares r with the previous reading and sends any resulting events.
func (w *Watcher) Publish(ctx context.Context, r reading.Reading) error {
	w.mu.Lock()
	prev := w.last
	w.last = &r
	w.mu.Unlock()

	if prev == nil {
		return nil
	}
	var errs []error
	for _, event := range Transitions(*prev, r) {
		if err := w.notifier.Notify(ctx, event, r); err != nil {
			errs = append(errs, err)
			continue
		}
		w.logger.Info("notification sent",
			logging.String(logging.FieldEventType, "notification_sent"),
			logging.String("event", string(event)),
		)
	}
	return errors.Join(errs...)
}
