// Package notify delivers purchase_complete events to the purchase-notify
// service (the Telegram bot side). Delivery state lives on the order and
// is independent of payment state: a paid order with a failed
// notification stays paid.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/StarecMudrec/CardswoodWebsite/internal/payanyway"
	"github.com/StarecMudrec/CardswoodWebsite/models"
)

const (
	maxAttempts    = 3
	errorLimit     = 512
	defaultTimeout = 10 * time.Second
)

type Dispatcher struct {
	client *resty.Client
	url    string
	secret string
	logger *zap.SugaredLogger

	// backoff unit, 2^attempt of these between attempts; shrunk in tests
	backoffBase time.Duration
}

func NewDispatcher(url, secret string, timeout time.Duration, logger *zap.SugaredLogger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)

	return &Dispatcher{
		client:      client,
		url:         url,
		secret:      secret,
		logger:      logger,
		backoffBase: time.Second,
	}
}

// Notify posts the purchase event with bounded retries. Statuses:
// skipped when no endpoint is configured, sent on any 2xx, failed after
// the attempts are exhausted.
func (d *Dispatcher) Notify(ctx context.Context, order *models.Order) (models.NotificationStatus, error) {
	if d.url == "" {
		return models.NotificationSkipped, nil
	}

	event := buildEvent(order)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req := d.client.R().SetContext(ctx).SetBody(event)
		if d.secret != "" {
			req.SetHeader("Authorization", "Bearer "+d.secret)
		}

		resp, err := req.Post(d.url)
		if err == nil && resp.StatusCode() < 400 {
			return models.NotificationSent, nil
		}

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt, err)
		} else {
			lastErr = fmt.Errorf("attempt %d: status %d: %s", attempt, resp.StatusCode(), resp.String())
		}
		d.logger.Warnw("purchase notification attempt failed",
			"order", order.OrderNumber, "attempt", attempt, "error", lastErr)

		if attempt == maxAttempts {
			break
		}

		// non-blocking exponential backoff: 2, 4 seconds
		delay := d.backoffBase * (1 << attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return models.NotificationFailed, truncateError(fmt.Errorf("%w, then canceled: %w", lastErr, ctx.Err()))
		}
	}

	return models.NotificationFailed, truncateError(lastErr)
}

func buildEvent(order *models.Order) models.NotificationEvent {
	var userID int64
	if order.UserID != nil {
		userID = *order.UserID
	}

	items := make([]models.NotificationEventItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.NotificationEventItem{
			ID:       item.ID,
			Name:     item.Name,
			Price:    payanyway.FormatAmount(item.Price),
			Quantity: item.Quantity,
		})
	}

	return models.NotificationEvent{
		Event:       "purchase_complete",
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      userID,
		Items:       items,
		TotalAmount: payanyway.FormatAmount(order.Amount),
		Currency:    order.Currency,
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func truncateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > errorLimit {
		msg = msg[:errorLimit]
	}
	return fmt.Errorf("%s", msg)
}
