package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/linemk/storefront/internal/domain/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrderTx вставляет новый заказ в таблицу orders с использованием транзакции.
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	// GetOrderByGatewayOrderID ищет заказ по id заказа в платёжном шлюзе
	GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	// GetLatestUnpaidOrder возвращает последний неоплаченный заказ пользователя с указанным способом оплаты
	GetLatestUnpaidOrder(ctx context.Context, userID int64, method models.PaymentMethod) (*models.Order, error)
	ListOrders(ctx context.Context) ([]*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
	SetGatewayOrderID(ctx context.Context, id string, gatewayOrderID string) error
	// ConfirmPaymentTx одним UPDATE выставляет payment и статус Confirmed вместе с полями шлюза.
	// Возвращает false, если заказ уже был оплачен (повторный колбэк).
	ConfirmPaymentTx(ctx context.Context, tx *sql.Tx, conf models.PaymentConfirmation) (bool, error)
	// MarkPaymentFailed переводит неоплаченный заказ в Failed; оплаченный не трогает
	MarkPaymentFailed(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
	LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id string) (*models.Order, error)
	DeleteOrderTx(ctx context.Context, tx *sql.Tx, id string) error
}

// orderRepository – конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const orderColumns = `id, user_id, items, address, amount, payment_method, payment, status,
	gateway_order_id, gateway_payment_id, gateway_signature, created_at`

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	var items, address []byte
	var gwOrder, gwPayment, gwSignature sql.NullString
	if err := row.Scan(
		&order.ID, &order.UserID, &items, &address, &order.Amount, &order.PaymentMethod,
		&order.Payment, &order.Status, &gwOrder, &gwPayment, &gwSignature, &order.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	if err := json.Unmarshal(address, &order.Address); err != nil {
		return nil, fmt.Errorf("failed to decode order address: %w", err)
	}
	order.GatewayOrderID = nullToPtr(gwOrder)
	order.GatewayPaymentID = nullToPtr(gwPayment)
	order.GatewaySignature = nullToPtr(gwSignature)
	return order, nil
}

func nullToPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func (r *orderRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}
	address, err := json.Marshal(order.Address)
	if err != nil {
		return fmt.Errorf("failed to encode order address: %w", err)
	}

	query := `INSERT INTO orders (id, user_id, items, address, amount, payment_method, payment, status, gateway_order_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = tx.ExecContext(ctx, query,
		order.ID, order.UserID, items, address, order.Amount, string(order.PaymentMethod),
		order.Payment, string(order.Status), order.GatewayOrderID, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	return r.queryOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
}

func (r *orderRepository) GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return r.queryOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE gateway_order_id = $1", gatewayOrderID)
}

func (r *orderRepository) GetLatestUnpaidOrder(ctx context.Context, userID int64, method models.PaymentMethod) (*models.Order, error) {
	query := "SELECT " + orderColumns + ` FROM orders
		WHERE user_id = $1 AND payment_method = $2 AND payment = FALSE
		ORDER BY created_at DESC LIMIT 1`
	return r.queryOne(ctx, query, userID, string(method))
}

func (r *orderRepository) ListOrders(ctx context.Context) ([]*models.Order, error) {
	return r.queryMany(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	return r.queryMany(ctx, "SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
}

func (r *orderRepository) SetGatewayOrderID(ctx context.Context, id string, gatewayOrderID string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE orders SET gateway_order_id = $1 WHERE id = $2", gatewayOrderID, id)
	if err != nil {
		return fmt.Errorf("failed to set gateway order id: %w", err)
	}
	return expectOneRow(res)
}

func (r *orderRepository) ConfirmPaymentTx(ctx context.Context, tx *sql.Tx, conf models.PaymentConfirmation) (bool, error) {
	query := `UPDATE orders
		SET payment = TRUE,
		    status = $1,
		    gateway_order_id = COALESCE($2, gateway_order_id),
		    gateway_payment_id = COALESCE($3, gateway_payment_id),
		    gateway_signature = COALESCE($4, gateway_signature)
		WHERE id = $5 AND payment = FALSE`
	res, err := tx.ExecContext(ctx, query,
		string(models.StatusConfirmed), conf.GatewayOrderID, conf.GatewayPaymentID, conf.GatewaySignature, conf.OrderID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to confirm payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *orderRepository) MarkPaymentFailed(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2 AND payment = FALSE",
		string(models.StatusFailed), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE orders SET status = $1 WHERE id = $2", string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return expectOneRow(res)
}

func (r *orderRepository) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id string) (*models.Order, error) {
	order, err := scanOrder(tx.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE NOWAIT", id))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqLockNotAvailable {
			return nil, fmt.Errorf("%w: %v", ErrLocked, err)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) DeleteOrderTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
