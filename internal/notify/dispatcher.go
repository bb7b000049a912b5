package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"memoriqr-service/internal/util"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	maxAttempts         = 3
	defaultInitialDelay = time.Second
)

// Dispatcher posts notification payloads to the email workflow webhook
type Dispatcher struct {
	url          string
	client       *http.Client
	limiter      *rate.Limiter
	initialDelay time.Duration
	logger       *zap.Logger
}

// NewDispatcher creates a dispatcher sending at most ratePerSec requests per
// second. An empty url disables delivery.
func NewDispatcher(url string, ratePerSec float64) *Dispatcher {
	return &Dispatcher{
		url:          url,
		client:       &http.Client{Timeout: 10 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(ratePerSec), 1),
		initialDelay: defaultInitialDelay,
		logger:       util.Component("notify"),
	}
}

// Send delivers n, retrying on transport errors, 429 and 5xx responses
func (d *Dispatcher) Send(ctx context.Context, n Notification) error {
	kind := string(n.Kind())
	if d.url == "" {
		d.logger.Debug("Webhook not configured, dropping notification", zap.String("type", kind))
		util.NotificationsTotal.WithLabelValues(kind, "skipped").Inc()
		return nil
	}

	payload, err := Payload(n)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := d.initialDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		retry, err := d.post(ctx, body)
		if err == nil {
			util.NotificationsTotal.WithLabelValues(kind, "sent").Inc()
			d.logger.Info("Notification sent", zap.String("type", kind), zap.Int("attempt", attempt+1))
			return nil
		}

		lastErr = err
		if !retry {
			break
		}
		d.logger.Warn("Notification attempt failed", zap.String("type", kind), zap.Int("attempt", attempt+1), zap.Error(err))
	}

	util.NotificationsTotal.WithLabelValues(kind, "failed").Inc()
	return fmt.Errorf("failed to send %s notification: %w", kind, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	err = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500, err
}
