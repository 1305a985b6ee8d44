package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/StarecMudrec/CardswoodWebsite/config"
	_ "github.com/StarecMudrec/CardswoodWebsite/internal/db/migrations"
	"github.com/StarecMudrec/CardswoodWebsite/models"
)

// notification_error column width, longer messages get truncated
const notificationErrorLimit = 512

type Manager struct {
	Db *sql.DB
}

func NewManager(cfg *config.Config) (*Manager, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	manager := &Manager{
		Db: db,
	}

	if err = goose.Up(db, "./internal/db/migrations"); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	return manager, nil
}

func (m *Manager) CreateOrder(ctx context.Context, userID *int64, amount decimal.Decimal, currency string, items []models.OrderItem) (*models.Order, error) {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize order items: %w", err)
	}

	order := &models.Order{
		OrderNumber:        uuid.New().String(),
		UserID:             userID,
		Amount:             amount,
		Currency:           currency,
		Status:             models.OrderPending,
		Items:              items,
		NotificationStatus: models.NotificationPending,
	}

	err = m.Db.QueryRowContext(ctx, `
		INSERT INTO orders (order_number, user_id, amount, currency, status, items, notification_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, order.OrderNumber, order.UserID, order.Amount, order.Currency, order.Status, itemsJSON, order.NotificationStatus).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	return order, nil
}

func (m *Manager) GetOrderByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	row := m.Db.QueryRowContext(ctx, `
		SELECT id, order_number, user_id, amount, currency, status, items,
		       COALESCE(payanyway_payment_id, ''),
		       COALESCE(notification_status, 'pending'),
		       COALESCE(notification_error, ''),
		       created_at, updated_at
		FROM orders
		WHERE order_number = $1
	`, orderNumber)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

func (m *Manager) GetOrdersList(ctx context.Context, userID int64) ([]*models.Order, error) {
	rows, err := m.Db.QueryContext(ctx, `
		SELECT id, order_number, user_id, amount, currency, status, items,
		       COALESCE(payanyway_payment_id, ''),
		       COALESCE(notification_status, 'pending'),
		       COALESCE(notification_error, ''),
		       created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	return orders, nil
}

// MarkOrderPaid performs the pending -> paid transition as one conditional
// UPDATE. Concurrent callbacks for the same order race on it and exactly
// one of them observes transitioned = true.
func (m *Manager) MarkOrderPaid(ctx context.Context, orderNumber string, paymentID string) (*models.Order, bool, error) {
	res, err := m.Db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payanyway_payment_id = $3, updated_at = CURRENT_TIMESTAMP
		WHERE order_number = $1 AND status = $4
	`, orderNumber, models.OrderPaid, paymentID, models.OrderPending)
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark order paid: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read update result: %w", err)
	}

	order, err := m.GetOrderByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, false, err
	}

	return order, affected == 1, nil
}

func (m *Manager) UpdateNotificationStatus(ctx context.Context, orderNumber string, status models.NotificationStatus, notificationError string) error {
	if len(notificationError) > notificationErrorLimit {
		notificationError = notificationError[:notificationErrorLimit]
	}

	_, err := m.Db.ExecContext(ctx, `
		UPDATE orders
		SET notification_status = $2, notification_error = $3, updated_at = CURRENT_TIMESTAMP
		WHERE order_number = $1
	`, orderNumber, status, notificationError)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	return nil
}

func (m *Manager) Close() error {
	return m.Db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanOrder(row scannable) (*models.Order, error) {
	var (
		order     models.Order
		itemsJSON []byte
	)

	err := row.Scan(&order.ID, &order.OrderNumber, &order.UserID, &order.Amount,
		&order.Currency, &order.Status, &itemsJSON, &order.PaymentID,
		&order.NotificationStatus, &order.NotificationError,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(itemsJSON) > 0 {
		if err = json.Unmarshal(itemsJSON, &order.Items); err != nil {
			return nil, fmt.Errorf("failed to parse order items: %w", err)
		}
	}

	return &order, nil
}
