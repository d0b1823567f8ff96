package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

const eventCheckoutCompleted = "checkout.session.completed"

// StripeGateway – hosted checkout через Stripe Checkout Sessions
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway создаёт клиента Stripe; без секретного ключа шлюз отвечает ErrNotConfigured
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	g := &StripeGateway{webhookSecret: webhookSecret}
	if secretKey != "" {
		g.api = client.New(secretKey, nil)
	}
	return g
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	const op = "payment.StripeGateway.CreateCheckoutSession"
	if g.api == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, it := range req.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(it.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
				UnitAmount: stripe.Int64(it.UnitAmount),
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems:         lineItems,
	}
	params.Context = ctx
	params.AddMetadata("orderId", req.OrderID)
	params.AddMetadata("userId", strconv.FormatInt(req.UserID, 10))

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ParseWebhook проверяет заголовок Stripe-Signature и разбирает событие завершения сессии
func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*CheckoutEvent, error) {
	const op = "payment.StripeGateway.ParseWebhook"
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidSignature, err)
	}

	out := &CheckoutEvent{Type: string(event.Type)}
	if out.Type != eventCheckoutCompleted {
		return out, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%s: decode session: %w", op, err)
	}
	out.SessionID = sess.ID
	out.OrderID = sess.Metadata["orderId"]
	if out.OrderID == "" {
		out.OrderID = sess.ClientReferenceID
	}
	out.Paid = sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	return out, nil
}
