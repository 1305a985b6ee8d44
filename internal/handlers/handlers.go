package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/StarecMudrec/CardswoodWebsite/config"
	"github.com/StarecMudrec/CardswoodWebsite/internal/db"
	"github.com/StarecMudrec/CardswoodWebsite/internal/middleware"
	"github.com/StarecMudrec/CardswoodWebsite/internal/payanyway"
	"github.com/StarecMudrec/CardswoodWebsite/models"
)

// RewardGranter applies in-game rewards for a paid order. Best effort,
// failures are logged inside.
type RewardGranter interface {
	Grant(ctx context.Context, order *models.Order)
}

// NotificationDispatcher delivers the purchase_complete event.
type NotificationDispatcher interface {
	Notify(ctx context.Context, order *models.Order) (models.NotificationStatus, error)
}

// PriceEntry is one sellable catalog position.
type PriceEntry struct {
	Name  string
	Price decimal.Decimal
}

type Handler struct {
	Config     *config.Config
	Database   db.Database
	Signer     *payanyway.Signer
	Granter    RewardGranter
	Dispatcher NotificationDispatcher
	Logger     *zap.SugaredLogger

	// catalog id -> name and unit price, snapshotted into the order
	Prices map[string]PriceEntry
}

type createOrderRequest struct {
	Items []struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
}

type createOrderResponse struct {
	OrderNumber string          `json:"order_number"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PaymentURL  string          `json:"payment_url"`
}

// CreateOrder persists a pending purchase intent and returns the signed
// PayAnyWay redirect for it.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.Header.Get(middleware.UserIDHeader), 10, 64)
	if err != nil {
		h.Logger.Errorw("missing authenticated user id", "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Debugw("bad create order body", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "order has no items", http.StatusBadRequest)
		return
	}

	amount := decimal.Zero
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, reqItem := range req.Items {
		entry, ok := h.Prices[reqItem.ID]
		if !ok {
			http.Error(w, "unknown item: "+reqItem.ID, http.StatusBadRequest)
			return
		}
		quantity := reqItem.Quantity
		if quantity < 1 {
			quantity = 1
		}
		items = append(items, models.OrderItem{
			ID:       reqItem.ID,
			Name:     entry.Name,
			Price:    entry.Price,
			Quantity: quantity,
		})
		amount = amount.Add(entry.Price.Mul(decimal.NewFromInt(int64(quantity))))
	}

	order, err := h.Database.CreateOrder(r.Context(), &userID, amount, h.Config.Currency, items)
	if err != nil {
		h.Logger.Errorw("failed to create order", "user", userID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := createOrderResponse{
		OrderNumber: order.OrderNumber,
		Amount:      order.Amount,
		Currency:    order.Currency,
		PaymentURL:  h.Signer.PaymentURL(h.Config.AssistantURL, *order, h.Config.SuccessURL, h.Config.FailURL),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(resp); err != nil {
		h.Logger.Errorw("failed to write create order response", "error", err)
	}
}

// OrdersGet lists the authenticated user's orders.
func (h *Handler) OrdersGet(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.Header.Get(middleware.UserIDHeader), 10, 64)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	orders, err := h.Database.GetOrdersList(r.Context(), userID)
	if err != nil {
		h.Logger.Errorw("failed to list orders", "user", userID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(orders); err != nil {
		h.Logger.Errorw("failed to write orders response", "error", err)
	}
}
