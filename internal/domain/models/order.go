package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod способ оплаты заказа
type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "COD"
	PaymentStripe   PaymentMethod = "Stripe"
	PaymentRazorpay PaymentMethod = "Razorpay"
)

// OrderStatus – статус заказа, хранится в виде человекочитаемой метки
type OrderStatus string

const (
	StatusPlaced         OrderStatus = "Order Placed"
	StatusConfirmed      OrderStatus = "Payment Confirmed"
	StatusFailed         OrderStatus = "Payment Failed"
	StatusShipped        OrderStatus = "Shipped"
	StatusOutForDelivery OrderStatus = "Out for delivery"
	StatusDelivered      OrderStatus = "Delivered"
	StatusCancelled      OrderStatus = "Cancelled"
	StatusRefundPending  OrderStatus = "Refund Pending"
	StatusRefunded       OrderStatus = "Refunded"
)

var orderStatuses = []OrderStatus{
	StatusPlaced,
	StatusConfirmed,
	StatusFailed,
	StatusShipped,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
	StatusRefundPending,
	StatusRefunded,
}

// ParseOrderStatus проверяет, что метка входит в перечень статусов
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range orderStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// OrderStatuses возвращает все допустимые статусы в порядке жизненного цикла
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// таблица переходов для строгого режима; переход в тот же статус разрешён всегда
var transitions = map[OrderStatus][]OrderStatus{
	StatusPlaced:         {StatusConfirmed, StatusFailed, StatusShipped, StatusCancelled},
	StatusConfirmed:      {StatusShipped, StatusCancelled, StatusRefundPending},
	StatusFailed:         {StatusPlaced, StatusCancelled},
	StatusShipped:        {StatusOutForDelivery, StatusDelivered},
	StatusOutForDelivery: {StatusDelivered},
	StatusDelivered:      {StatusRefundPending},
	StatusCancelled:      {StatusRefundPending},
	StatusRefundPending:  {StatusRefunded},
}

// CanTransition сообщает, допускает ли строгая таблица переход from -> to
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderItem – позиция заказа. Name и Price фиксируются на момент оформления
type OrderItem struct {
	ProductID int64           `json:"_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
}

// Subtotal стоимость позиции
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Address адрес доставки, не меняется после создания заказа
type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Country   string `json:"country"`
	Zipcode   string `json:"zipcode"`
	Phone     string `json:"phone"`
}

// Order представляет одну попытку покупки
type Order struct {
	ID               string          `json:"_id"`
	UserID           int64           `json:"userId"`
	Items            []OrderItem     `json:"items"`
	Address          Address         `json:"address"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod"`
	Payment          bool            `json:"payment"`
	Status           OrderStatus     `json:"status"`
	GatewayOrderID   *string         `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID *string         `json:"gatewayPaymentId,omitempty"`
	GatewaySignature *string         `json:"-"`
	CreatedAt        time.Time       `json:"date"`
}

// OrderTotal считает сумму заказа: позиции плюс доставка
func OrderTotal(items []OrderItem, deliveryCharge decimal.Decimal) decimal.Decimal {
	total := deliveryCharge
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// PaymentConfirmation – набор полей, которые выставляются атомарно при подтверждении оплаты
type PaymentConfirmation struct {
	OrderID          string
	GatewayOrderID   *string
	GatewayPaymentID *string
	GatewaySignature *string
}
