package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StarecMudrec/CardswoodWebsite/config"
	"github.com/StarecMudrec/CardswoodWebsite/internal/db"
	"github.com/StarecMudrec/CardswoodWebsite/internal/handlers"
	"github.com/StarecMudrec/CardswoodWebsite/internal/payanyway"
	"github.com/StarecMudrec/CardswoodWebsite/logging"
	"github.com/StarecMudrec/CardswoodWebsite/models"
)

const (
	testMerchantID = "74025788"
	testIntegrity  = "integrity-code"
)

// fakeDatabase is an in-memory db.Database with the same CAS semantics
// as the SQL one, so races can be simulated without Postgres.
type fakeDatabase struct {
	mu     sync.Mutex
	orders map[string]*models.Order

	notificationStatuses map[string]models.NotificationStatus
	notificationErrors   map[string]string
}

func newFakeDatabase() *fakeDatabase {
	return &fakeDatabase{
		orders:               make(map[string]*models.Order),
		notificationStatuses: make(map[string]models.NotificationStatus),
		notificationErrors:   make(map[string]string),
	}
}

func (f *fakeDatabase) put(order *models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[order.OrderNumber] = order
}

func (f *fakeDatabase) CreateOrder(_ context.Context, userID *int64, amount decimal.Decimal, currency string, items []models.OrderItem) (*models.Order, error) {
	order := &models.Order{
		OrderNumber: fmt.Sprintf("order-%d", len(f.orders)+1),
		UserID:      userID,
		Amount:      amount,
		Currency:    currency,
		Status:      models.OrderPending,
		Items:       items,
	}
	f.put(order)
	return order, nil
}

func (f *fakeDatabase) GetOrderByOrderNumber(_ context.Context, orderNumber string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderNumber]
	if !ok {
		return nil, db.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeDatabase) GetOrdersList(_ context.Context, userID int64) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var orders []*models.Order
	for _, order := range f.orders {
		if order.UserID != nil && *order.UserID == userID {
			copied := *order
			orders = append(orders, &copied)
		}
	}
	return orders, nil
}

func (f *fakeDatabase) MarkOrderPaid(_ context.Context, orderNumber string, paymentID string) (*models.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderNumber]
	if !ok {
		return nil, false, db.ErrOrderNotFound
	}

	if order.Status != models.OrderPending {
		copied := *order
		return &copied, false, nil
	}

	order.Status = models.OrderPaid
	order.PaymentID = paymentID
	copied := *order
	return &copied, true, nil
}

func (f *fakeDatabase) UpdateNotificationStatus(_ context.Context, orderNumber string, status models.NotificationStatus, notificationError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notificationStatuses[orderNumber] = status
	f.notificationErrors[orderNumber] = notificationError
	return nil
}

func (f *fakeDatabase) Close() error { return nil }

type countingGranter struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGranter) Grant(context.Context, *models.Order) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
}

func (g *countingGranter) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type stubDispatcher struct {
	mu     sync.Mutex
	calls  int
	status models.NotificationStatus
	err    error
}

func (d *stubDispatcher) Notify(context.Context, *models.Order) (models.NotificationStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.status, d.err
}

func newTestHandler(database db.Database, granter handlers.RewardGranter, dispatcher handlers.NotificationDispatcher) *handlers.Handler {
	return &handlers.Handler{
		Config:     &config.Config{Currency: "RUB"},
		Database:   database,
		Signer:     payanyway.NewSigner(testMerchantID, testIntegrity, false),
		Granter:    granter,
		Dispatcher: dispatcher,
		Logger:     logging.GetSugaredLogger(),
	}
}

func pendingOrder(number string) *models.Order {
	userID := int64(777)
	return &models.Order{
		OrderNumber: number,
		UserID:      &userID,
		Amount:      decimal.NewFromInt(149),
		Currency:    "RUB",
		Status:      models.OrderPending,
		Items: []models.OrderItem{
			{ID: "pack-standard", Name: "Обычный набор карт", Price: decimal.NewFromInt(149), Quantity: 1},
		},
	}
}

func signedCallbackForm(t *testing.T, order *models.Order, operationID string) url.Values {
	t.Helper()

	signer := payanyway.NewSigner(testMerchantID, testIntegrity, false)
	cb := models.CallbackRequest{
		MerchantID:    testMerchantID,
		TransactionID: order.OrderNumber,
		OperationID:   operationID,
		Amount:        payanyway.FormatAmount(order.Amount),
		Currency:      order.Currency,
		SubscriberID:  "777",
		TestMode:      "0",
	}

	form := url.Values{}
	form.Set("MNT_ID", cb.MerchantID)
	form.Set("MNT_TRANSACTION_ID", cb.TransactionID)
	form.Set("MNT_OPERATION_ID", cb.OperationID)
	form.Set("MNT_AMOUNT", cb.Amount)
	form.Set("MNT_CURRENCY_CODE", cb.Currency)
	form.Set("MNT_SUBSCRIBER_ID", cb.SubscriberID)
	form.Set("MNT_TEST_MODE", cb.TestMode)
	form.Set("MNT_SIGNATURE", signer.SignCallback(cb))
	return form
}

func postCallback(h *handlers.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/payanyway/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.PaymentCallback(rr, req)
	return rr
}

func TestPaymentCallbackValidation(t *testing.T) {
	database := newFakeDatabase()
	granter := &countingGranter{}
	dispatcher := &stubDispatcher{status: models.NotificationSent}
	h := newTestHandler(database, granter, dispatcher)

	t.Run("MissingFields", func(t *testing.T) {
		form := url.Values{}
		form.Set("MNT_AMOUNT", "149.00")
		rr := postCallback(h, form)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, 0, granter.count())
	})

	t.Run("SignatureMismatch", func(t *testing.T) {
		order := pendingOrder("order-sig")
		database.put(order)

		form := signedCallbackForm(t, order, "op-1")
		form.Set("MNT_SIGNATURE", "00000000000000000000000000000000")
		rr := postCallback(h, form)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		stored, err := database.GetOrderByOrderNumber(context.Background(), order.OrderNumber)
		require.NoError(t, err)
		assert.Equal(t, models.OrderPending, stored.Status, "a rejected callback must not change state")
		assert.Equal(t, 0, granter.count())
	})

	t.Run("UnknownOrderAnswersFail", func(t *testing.T) {
		order := pendingOrder("order-ghost")
		form := signedCallbackForm(t, order, "op-1")

		rr := postCallback(h, form)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, models.CallbackResponseFail, rr.Body.String())
		assert.Equal(t, 0, granter.count())
	})
}

func TestPaymentCallbackHappyPath(t *testing.T) {
	database := newFakeDatabase()
	granter := &countingGranter{}
	dispatcher := &stubDispatcher{status: models.NotificationSent}
	h := newTestHandler(database, granter, dispatcher)

	order := pendingOrder("order-1")
	database.put(order)

	rr := postCallback(h, signedCallbackForm(t, order, "op-42"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.CallbackResponseSuccess, rr.Body.String())
	assert.Equal(t, 1, granter.count())
	assert.Equal(t, 1, dispatcher.calls)

	stored, err := database.GetOrderByOrderNumber(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, stored.Status)
	assert.Equal(t, "op-42", stored.PaymentID)
	assert.Equal(t, models.NotificationSent, database.notificationStatuses[order.OrderNumber])
}

func TestPaymentCallbackIdempotent(t *testing.T) {
	database := newFakeDatabase()
	granter := &countingGranter{}
	dispatcher := &stubDispatcher{status: models.NotificationSent}
	h := newTestHandler(database, granter, dispatcher)

	order := pendingOrder("order-1")
	database.put(order)

	form := signedCallbackForm(t, order, "op-42")

	first := postCallback(h, form)
	second := postCallback(h, form)

	assert.Equal(t, models.CallbackResponseSuccess, first.Body.String())
	assert.Equal(t, models.CallbackResponseSuccess, second.Body.String())
	assert.Equal(t, 1, granter.count(), "side effects must run exactly once")
	assert.Equal(t, 1, dispatcher.calls)
}

func TestPaymentCallbackConcurrentDelivery(t *testing.T) {
	database := newFakeDatabase()
	granter := &countingGranter{}
	dispatcher := &stubDispatcher{status: models.NotificationSent}
	h := newTestHandler(database, granter, dispatcher)

	order := pendingOrder("order-1")
	database.put(order)

	form := signedCallbackForm(t, order, "op-42")

	const n = 20
	responses := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := postCallback(h, form)
			responses <- rr.Body.String()
		}()
	}
	wg.Wait()
	close(responses)

	for body := range responses {
		assert.Equal(t, models.CallbackResponseSuccess, body)
	}
	assert.Equal(t, 1, granter.count(), "exactly one delivery may run fulfillment")

	stored, err := database.GetOrderByOrderNumber(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, stored.Status)
}

func TestPaymentCallbackNotificationFailureKeepsPayment(t *testing.T) {
	database := newFakeDatabase()
	granter := &countingGranter{}
	dispatcher := &stubDispatcher{status: models.NotificationFailed, err: errors.New("webhook down")}
	h := newTestHandler(database, granter, dispatcher)

	order := pendingOrder("order-1")
	database.put(order)

	rr := postCallback(h, signedCallbackForm(t, order, "op-42"))

	// payment confirmation does not depend on fulfillment trouble
	assert.Equal(t, models.CallbackResponseSuccess, rr.Body.String())

	stored, err := database.GetOrderByOrderNumber(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, stored.Status)
	assert.Equal(t, models.NotificationFailed, database.notificationStatuses[order.OrderNumber])
	assert.Equal(t, "webhook down", database.notificationErrors[order.OrderNumber])
}

func TestPaymentCallbackViaGet(t *testing.T) {
	database := newFakeDatabase()
	granter := &countingGranter{}
	dispatcher := &stubDispatcher{status: models.NotificationSkipped}
	h := newTestHandler(database, granter, dispatcher)

	order := pendingOrder("order-1")
	database.put(order)

	form := signedCallbackForm(t, order, "op-9")
	req := httptest.NewRequest(http.MethodGet, "/api/payanyway/callback?"+form.Encode(), nil)
	rr := httptest.NewRecorder()
	h.PaymentCallback(rr, req)

	assert.Equal(t, models.CallbackResponseSuccess, rr.Body.String())
	assert.Equal(t, 1, granter.count())
	assert.Equal(t, models.NotificationSkipped, database.notificationStatuses[order.OrderNumber])
}
