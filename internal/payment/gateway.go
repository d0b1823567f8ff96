// Package payment содержит адаптеры внешних платёжных шлюзов: hosted checkout (Stripe)
// и шлюз с подписью платежа (Razorpay). Шлюзы создаются один раз при старте процесса
// и передаются в сервис заказов явно.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidSignature подпись платежа или вебхука не совпала
	ErrInvalidSignature = errors.New("invalid payment signature")
	// ErrUnavailable шлюз не ответил или вернул ошибку
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrNotConfigured ключи шлюза не заданы в конфигурации
	ErrNotConfigured = errors.New("payment gateway is not configured")
)

// LineItem позиция для hosted checkout, сумма в минимальных единицах валюты
type LineItem struct {
	Currency   string
	Name       string
	UnitAmount int64
	Quantity   int64
}

type CheckoutRequest struct {
	OrderID    string
	UserID     int64
	Items      []LineItem
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutEvent – разобранный и проверенный вебхук hosted checkout
type CheckoutEvent struct {
	Type      string
	SessionID string
	OrderID   string
	Paid      bool
}

// HostedCheckout создаёт сессию оплаты на стороне шлюза и возвращает адрес для редиректа
type HostedCheckout interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signatureHeader string) (*CheckoutEvent, error)
}

// GatewayOrder – заказ на стороне шлюза
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// SignatureGateway создаёт заказ в шлюзе; оплата подтверждается HMAC-подписью
type SignatureGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*GatewayOrder, error)
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) error
}

// MinorUnits переводит сумму в минимальные единицы валюты (центы, пайсы)
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
