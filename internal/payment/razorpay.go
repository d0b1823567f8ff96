package payment

import (
	"context"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
)

// RazorpayGateway – шлюз с предварительным созданием заказа и подписью платежа
type RazorpayGateway struct {
	client *razorpay.Client
	secret string
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	g := &RazorpayGateway{secret: keySecret}
	if keyID != "" && keySecret != "" {
		g.client = razorpay.NewClient(keyID, keySecret)
	}
	return g
}

type createResult struct {
	body map[string]interface{}
	err  error
}

// CreateOrder создаёт заказ в Razorpay. SDK не принимает context, поэтому вызов
// выполняется в отдельной горутине и ограничивается дедлайном ctx.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*GatewayOrder, error) {
	const op = "payment.RazorpayGateway.CreateOrder"
	if g.client == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": strings.ToUpper(currency),
		"receipt":  receipt,
	}

	done := make(chan createResult, 1)
	go func() {
		body, err := g.client.Order.Create(data, nil)
		done <- createResult{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, res.err)
		}
		return parseGatewayOrder(res.body)
	}
}

func (g *RazorpayGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) error {
	return VerifySignature(g.secret, gatewayOrderID, gatewayPaymentID, signature)
}

func parseGatewayOrder(body map[string]interface{}) (*GatewayOrder, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("payment.parseGatewayOrder: %w: response without order id", ErrUnavailable)
	}
	order := &GatewayOrder{ID: id}
	order.Currency, _ = body["currency"].(string)
	order.Receipt, _ = body["receipt"].(string)
	order.Status, _ = body["status"].(string)
	// числа приходят из encoding/json как float64
	if amount, ok := body["amount"].(float64); ok {
		order.Amount = int64(amount)
	}
	return order, nil
}
