package db

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/StarecMudrec/CardswoodWebsite/models"
)

// ErrOrderNotFound is returned when no order exists for an order number.
// The payment callback answers FAIL on it so the gateway retries later:
// the callback can race order creation.
var ErrOrderNotFound = errors.New("order not found")

type Database interface {
	CreateOrder(ctx context.Context, userID *int64, amount decimal.Decimal, currency string, items []models.OrderItem) (*models.Order, error)
	GetOrderByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	GetOrdersList(ctx context.Context, userID int64) ([]*models.Order, error)

	// MarkOrderPaid is the idempotency boundary: a single conditional
	// UPDATE from pending to paid. The returned bool is true only for
	// the caller that actually performed the transition.
	MarkOrderPaid(ctx context.Context, orderNumber string, paymentID string) (*models.Order, bool, error)

	UpdateNotificationStatus(ctx context.Context, orderNumber string, status models.NotificationStatus, notificationError string) error

	Close() error
}
