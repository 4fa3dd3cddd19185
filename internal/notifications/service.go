package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kahvi/internal/config"
	"kahvi/internal/reading"
)

const userAgent = "kahvi/0.1"

// Event identifies a brew state transition.
type Event string

const (
	EventBrewStarted Event = "brew_started"
	EventCoffeeReady Event = "coffee_ready"
	EventPotEmpty    Event = "pot_empty"
	EventTrayRemoved Event = "tray_removed"
	EventTest        Event = "test"
)

// Notifier delivers a single event.
type Notifier interface {
	Notify(ctx context.Context, event Event, r reading.Reading) error
}

// NewNotifier returns an ntfy notifier, or a no-op when no topic is set.
func NewNotifier(cfg *config.Config) Notifier {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopNotifier{}
	}
	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyNotifier{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

func render(event Event, r reading.Reading) (payload, bool) {
	switch event {
	case EventBrewStarted:
		return payload{
			title:   "Coffee brewing",
			message: "A fresh pot is on its way",
			tags:    []string{"coffee", "hourglass_flowing_sand"},
		}, true
	case EventCoffeeReady:
		return payload{
			title:    "Fresh coffee",
			message:  fmt.Sprintf("Fresh pot ready: %.1f cups", r.NCups),
			tags:     []string{"coffee", "tada"},
			priority: "high",
		}, true
	case EventPotEmpty:
		return payload{
			title:   "Coffee gone",
			message: "The pot is empty",
			tags:    []string{"coffee", "warning"},
		}, true
	case EventTrayRemoved:
		return payload{
			title:   "Decanter removed",
			message: "The decanter is off the plate",
			tags:    []string{"coffee"},
		}, true
	case EventTest:
		return payload{
			title:    "kahvi test",
			message:  "Notification system test",
			tags:     []string{"coffee", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

type ntfyNotifier struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyNotifier) Notify(ctx context.Context, event Event, r reading.Reading) error {
	data, ok := render(event, r)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, data)
}

func (n *ntfyNotifier) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Event, reading.Reading) error { return nil }
