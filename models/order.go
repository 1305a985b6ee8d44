package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

// Возможные значения статусов заказа
const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
	OrderFailed  OrderStatus = "failed"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationSkipped NotificationStatus = "skipped"
	NotificationFailed  NotificationStatus = "failed"
)

// OrderItem is a snapshot of a catalog position at purchase time.
// The catalog may change later, the order keeps what was actually bought.
type OrderItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type Order struct {
	ID                 int64              `json:"id"`
	OrderNumber        string             `json:"order_number"`
	UserID             *int64             `json:"user_id,omitempty"`
	Amount             decimal.Decimal    `json:"amount"`
	Currency           string             `json:"currency"`
	Status             OrderStatus        `json:"status"`
	Items              []OrderItem        `json:"items"`
	PaymentID          string             `json:"payanyway_payment_id,omitempty"`
	NotificationStatus NotificationStatus `json:"notification_status,omitempty"`
	NotificationError  string             `json:"notification_error,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}
