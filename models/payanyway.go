package models

// CallbackRequest holds the fields PayAnyWay sends to the Pay URL.
// Missing optional fields stay as empty strings, they still participate
// in the signature input.
type CallbackRequest struct {
	Command       string
	MerchantID    string
	TransactionID string
	OperationID   string
	Amount        string
	Currency      string
	SubscriberID  string
	TestMode      string
	Signature     string
}

// PayAnyWay Pay URL sentinel responses. The gateway stops redelivery on
// SUCCESS and retries on anything else.
const (
	CallbackResponseSuccess = "SUCCESS"
	CallbackResponseFail    = "FAIL"
)

// NotificationEvent is the webhook body for the purchase-notify service.
type NotificationEvent struct {
	Event       string                  `json:"event"`
	OrderID     int64                   `json:"order_id"`
	OrderNumber string                  `json:"order_number"`
	UserID      int64                   `json:"user_id"`
	Items       []NotificationEventItem `json:"items"`
	TotalAmount string                  `json:"total_amount"`
	Currency    string                  `json:"currency"`
	CompletedAt string                  `json:"completed_at"`
}

type NotificationEventItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}
