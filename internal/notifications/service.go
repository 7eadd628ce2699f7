package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"strata/internal/config"
	"strata/internal/tier"
)

const userAgent = "Strata-Go/0.1.0"

// Service defines the notification surface exposed to the daemon components.
type Service interface {
	NotifyMigrationStarted(ctx context.Context, objectName string, source, target tier.Tier) error
	NotifyMigrationProgress(ctx context.Context, objectName string, percent float64) error
	NotifyMigrationCompleted(ctx context.Context, objectName string, target tier.Tier, monthlySavings float64) error
	NotifyMigrationFailed(ctx context.Context, objectName, reason string, willRetry bool) error
	NotifyPredictionComplete(ctx context.Context, objectName string, predicted tier.Tier, confidence float64) error
	NotifyTrainingComplete(ctx context.Context, modelVersion string, testAccuracy float64) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
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
	progressInterval := time.Duration(cfg.Notifications.ProgressIntervalSeconds) * time.Second

	return &ntfyService{
		endpoint:         topic,
		client:           &http.Client{Timeout: timeout},
		migrations:       cfg.Notifications.Migrations,
		predictions:      cfg.Notifications.Predictions,
		errors:           cfg.Notifications.Errors,
		progressInterval: progressInterval,
		lastProgress:     make(map[string]time.Time),
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint         string
	client           *http.Client
	migrations       bool
	predictions      bool
	errors           bool
	progressInterval time.Duration

	mu           sync.Mutex
	lastProgress map[string]time.Time
}

func (n *ntfyService) NotifyMigrationStarted(ctx context.Context, objectName string, source, target tier.Tier) error {
	if !n.migrations {
		return nil
	}
	objectName = strings.TrimSpace(objectName)
	data := payload{
		title:   "Strata - Migration Started",
		message: fmt.Sprintf("Moving %s from %s to %s", objectName, source, target),
		tags:    []string{"strata", "migration", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMigrationProgress(ctx context.Context, objectName string, percent float64) error {
	if !n.migrations {
		return nil
	}
	if !n.progressDue(objectName, percent) {
		return nil
	}
	data := payload{
		title:   "Strata - Migration Progress",
		message: fmt.Sprintf("%s: %.0f%% transferred", strings.TrimSpace(objectName), percent),
		tags:    []string{"strata", "migration", "progress"},
	}
	return n.send(ctx, data)
}

// progressDue rate-limits progress messages per object. Completion (100%)
// always passes so the final update is never dropped.
func (n *ntfyService) progressDue(objectName string, percent float64) bool {
	if percent >= 100 {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	now := time.Now()
	if last, ok := n.lastProgress[objectName]; ok && now.Sub(last) < n.progressInterval {
		return false
	}
	n.lastProgress[objectName] = now
	return true
}

func (n *ntfyService) NotifyMigrationCompleted(ctx context.Context, objectName string, target tier.Tier, monthlySavings float64) error {
	if !n.migrations {
		return nil
	}
	objectName = strings.TrimSpace(objectName)
	message := fmt.Sprintf("%s now resides in the %s tier", objectName, target)
	if monthlySavings > 0 {
		message = fmt.Sprintf("%s, saving $%.2f/month", message, monthlySavings)
	}
	n.mu.Lock()
	delete(n.lastProgress, objectName)
	n.mu.Unlock()
	data := payload{
		title:    "Strata - Migration Complete",
		message:  message,
		tags:     []string{"strata", "migration", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMigrationFailed(ctx context.Context, objectName, reason string, willRetry bool) error {
	if !n.migrations {
		return nil
	}
	objectName = strings.TrimSpace(objectName)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	var message string
	if willRetry {
		message = fmt.Sprintf("Migration of %s failed (%s), retrying", objectName, reason)
	} else {
		message = fmt.Sprintf("Migration of %s failed permanently: %s", objectName, reason)
	}
	data := payload{
		title:    "Strata - Migration Failed",
		message:  message,
		tags:     []string{"strata", "migration", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPredictionComplete(ctx context.Context, objectName string, predicted tier.Tier, confidence float64) error {
	if !n.predictions {
		return nil
	}
	data := payload{
		title:   "Strata - Prediction",
		message: fmt.Sprintf("%s: predicted %s tier (%.0f%% confidence)", strings.TrimSpace(objectName), predicted, confidence*100),
		tags:    []string{"strata", "prediction", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTrainingComplete(ctx context.Context, modelVersion string, testAccuracy float64) error {
	if !n.predictions {
		return nil
	}
	data := payload{
		title:   "Strata - Model Trained",
		message: fmt.Sprintf("Model %s trained, test accuracy %.1f%%", modelVersion, testAccuracy*100),
		tags:    []string{"strata", "training", "completed"},
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
		title:    "Strata - Error",
		message:  builder.String(),
		tags:     []string{"strata", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Strata - Test",
		message:  "Notification system test",
		tags:     []string{"strata", "test"},
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

func (noopService) NotifyMigrationStarted(context.Context, string, tier.Tier, tier.Tier) error {
	return nil
}

func (noopService) NotifyMigrationProgress(context.Context, string, float64) error { return nil }

func (noopService) NotifyMigrationCompleted(context.Context, string, tier.Tier, float64) error {
	return nil
}

func (noopService) NotifyMigrationFailed(context.Context, string, string, bool) error { return nil }

func (noopService) NotifyPredictionComplete(context.Context, string, tier.Tier, float64) error {
	return nil
}

func (noopService) NotifyTrainingComplete(context.Context, string, float64) error { return nil }

func (noopService) NotifyError(context.Context, error, string) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
