package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dubline/internal/config"
)

const userAgent = "dubline/0.1.0"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyRunFinished(ctx context.Context, summary RunSummary) error
	TestNotification(ctx context.Context) error
}

// RunSummary is the outcome of one pipeline invocation.
type RunSummary struct {
	RunID        string
	Stage        string
	Complete     bool
	Canceled     bool
	Chunks       int
	Degraded     int
	Untranslated int
	OutputPath   string
	Err          error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: cfg.Notifications.RequestTimeout()},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunFinished(ctx context.Context, s RunSummary) error {
	return n.send(ctx, runPayload(s))
}

func runPayload(s RunSummary) payload {
	id := shortID(s.RunID)
	switch {
	case s.Canceled:
		return payload{
			title:    "Dubline - Interrupted",
			message:  fmt.Sprintf("Run %s interrupted at %s; rerun to resume", id, s.Stage),
			tags:     []string{"dubline", "interrupted"},
			priority: "low",
		}
	case s.Err != nil:
		return payload{
			title:    "Dubline - Failed",
			message:  fmt.Sprintf("Run %s failed at %s: %s", id, s.Stage, strings.TrimSpace(s.Err.Error())),
			tags:     []string{"dubline", "error", "alert"},
			priority: "high",
		}
	case s.Degraded > 0:
		return payload{
			title: "Dubline - Partial",
			message: fmt.Sprintf("Run %s finished with %d of %d chunks silent\nRerun with --retry-degraded once credentials recover",
				id, s.Degraded, s.Chunks),
			tags:     []string{"dubline", "partial", "warning"},
			priority: "high",
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s complete: %d chunks", id, s.Chunks)
	if s.Untranslated > 0 {
		fmt.Fprintf(&b, " (%d untranslated)", s.Untranslated)
	}
	if s.OutputPath != "" {
		b.WriteString("\nFile: ")
		b.WriteString(s.OutputPath)
	}
	return payload{
		title:   "Dubline - Complete",
		message: b.String(),
		tags:    []string{"dubline", "complete"},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "(unknown)"
	}
	return id
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Dubline - Test",
		message:  "Notification system test",
		tags:     []string{"dubline", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
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

type noopService struct{}

func (noopService) NotifyRunFinished(context.Context, RunSummary) error { return nil }
func (noopService) TestNotification(context.Context) error              { return nil }
