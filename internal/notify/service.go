package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quill/internal/config"
)

const userAgent = "Quill-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyReviewReady(ctx context.Context, sessionID string, flagged int) error
	NotifyValidationCommitted(ctx context.Context, sessionID, clinicianID string) error
	NotifySubmissionSucceeded(ctx context.Context, sessionID, portalRecordID string) error
	NotifySubmissionFailed(ctx context.Context, sessionID string, retries int) error
	NotifySubmissionQueued(ctx context.Context, sessionID string) error
	NotifyQueueDrained(ctx context.Context, delivered, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:   topic,
		client:     client,
		review:     cfg.Notifications.Review,
		submission: cfg.Notifications.Submission,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	review     bool
	submission bool
	errors     bool
}

func (n *ntfyService) NotifyReviewReady(ctx context.Context, sessionID string, flagged int) error {
	if !n.review {
		return nil
	}
	message := fmt.Sprintf("Session %s ready for review", sessionID)
	if flagged > 0 {
		message = fmt.Sprintf("%s (%d flagged fields)", message, flagged)
	}
	data := payload{
		title:   "Quill - Review Ready",
		message: message,
		tags:    []string{"quill", "review", "ready"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyValidationCommitted(ctx context.Context, sessionID, clinicianID string) error {
	if !n.review {
		return nil
	}
	data := payload{
		title:   "Quill - Validated",
		message: fmt.Sprintf("Session %s validated by %s", sessionID, clinicianID),
		tags:    []string{"quill", "validation", "committed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySubmissionSucceeded(ctx context.Context, sessionID, portalRecordID string) error {
	if !n.submission {
		return nil
	}
	message := fmt.Sprintf("Session %s submitted", sessionID)
	if portalRecordID != "" {
		message = fmt.Sprintf("%s\nPortal record: %s", message, portalRecordID)
	}
	data := payload{
		title:    "Quill - Submitted",
		message:  message,
		tags:     []string{"quill", "submission", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySubmissionFailed(ctx context.Context, sessionID string, retries int) error {
	if !n.submission {
		return nil
	}
	data := payload{
		title:    "Quill - Submission Failed",
		message:  fmt.Sprintf("Session %s failed after %d retries\nManual retry required", sessionID, retries),
		tags:     []string{"quill", "submission", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySubmissionQueued(ctx context.Context, sessionID string) error {
	if !n.submission {
		return nil
	}
	data := payload{
		title:   "Quill - Queued Offline",
		message: fmt.Sprintf("Portal unreachable; session %s queued for later delivery", sessionID),
		tags:    []string{"quill", "submission", "queued"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueDrained(ctx context.Context, delivered, failed int, duration time.Duration) error {
	if !n.submission {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title string
	var message string
	if failed == 0 {
		title = "Quill - Queue Drained"
		message = fmt.Sprintf("Offline queue drained: %d delivered in %s", delivered, durationText)
	} else {
		title = "Quill - Queue Drained (with errors)"
		message = fmt.Sprintf("Offline queue drained: %d delivered, %d failed in %s", delivered, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"quill", "queue", "drained"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Quill - Error",
		message:  builder.String(),
		tags:     []string{"quill", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Quill - Test",
		message:  "Notification system test",
		tags:     []string{"quill", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifyReviewReady(context.Context, string, int) error              { return nil }
func (noopService) NotifyValidationCommitted(context.Context, string, string) error   { return nil }
func (noopService) NotifySubmissionSucceeded(context.Context, string, string) error   { return nil }
func (noopService) NotifySubmissionFailed(context.Context, string, int) error         { return nil }
func (noopService) NotifySubmissionQueued(context.Context, string) error              { return nil }
func (noopService) NotifyQueueDrained(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
