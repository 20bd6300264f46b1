package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cointist/internal/config"
)

const userAgent = "cointist/0.1.0"

// Event names a pipeline milestone worth a notice.
type Event string

const (
	EventRunRegistered   Event = "run_registered"
	EventExportCompleted Event = "export_completed"
	EventExportRejected  Event = "export_rejected"
	EventError           Event = "error"
	EventTest            Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]any

// Service publishes pipeline events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunRegistered:
		total := payload.count("total")
		dispatched := payload.count("dispatched")
		msg := message{
			title: "Cointist - Run Started",
			body:  fmt.Sprintf("Run %s dispatched %d of %d items", payload.text("token"), dispatched, total),
			tags:  []string{"cointist", "run", "started"},
		}
		if dispatched < total {
			msg.title = "Cointist - Run Started (with launch failures)"
			msg.priority = "high"
		}
		return msg, true
	case EventExportCompleted:
		body := fmt.Sprintf("Exported %d items to %s", payload.count("count"), payload.text("path"))
		if patched := payload.count("patched"); patched > 0 {
			body = fmt.Sprintf("%s\nPatched slugs: %d", body, patched)
		}
		return message{
			title: "Cointist - Export Complete",
			body:  body,
			tags:  []string{"cointist", "export", "completed"},
		}, true
	case EventExportRejected:
		return message{
			title:    "Cointist - Export Rejected",
			body:     fmt.Sprintf("%d of %d items have no article id", payload.count("missing"), payload.count("total")),
			tags:     []string{"cointist", "export", "rejected"},
			priority: "high",
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if label := payload.text("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if text := payload.text("error"); text != "" {
			builder.WriteString(text)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Cointist - Error",
			body:     builder.String(),
			tags:     []string{"cointist", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Cointist - Test",
			body:     "Notification system test",
			tags:     []string{"cointist", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) count(key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
