package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/lib/api"
	"github.com/linemk/storefront/internal/service"
)

// OrderItemRequest позиция корзины; цена и название берутся из каталога на сервере
type OrderItemRequest struct {
	ProductID int64  `json:"_id" validate:"required"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type AddressRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	Street    string `json:"street" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state"`
	Country   string `json:"country" validate:"required"`
	Zipcode   string `json:"zipcode" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
}

// PlaceOrderRequest общий запрос для COD, hosted checkout и заказа в шлюзе
type PlaceOrderRequest struct {
	Items   []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Amount  *decimal.Decimal   `json:"amount"`
	Address AddressRequest     `json:"address"`
}

func (r PlaceOrderRequest) toInput() service.PlaceOrderInput {
	items := make([]service.ItemInput, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, service.ItemInput{ProductID: it.ProductID, Size: it.Size, Quantity: it.Quantity})
	}
	a := r.Address
	return service.PlaceOrderInput{
		Items:  items,
		Amount: r.Amount,
		Address: models.Address{
			FirstName: a.FirstName,
			LastName:  a.LastName,
			Email:     a.Email,
			Street:    a.Street,
			City:      a.City,
			State:     a.State,
			Country:   a.Country,
			Zipcode:   a.Zipcode,
			Phone:     a.Phone,
		},
	}
}

// flexBool принимает true/false и строки "true"/"false", как их присылает страница редиректа
type flexBool struct {
	Set   bool
	Value bool
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(strings.ToLower(string(data)), `"`) {
	case "true":
		b.Set, b.Value = true, true
	case "false":
		b.Set, b.Value = true, false
	case "null":
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

type VerifyStripeRequest struct {
	Success flexBool `json:"success"`
	OrderID string   `json:"orderId" validate:"required"`
}

type VerifyRazorpayRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id" validate:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature        string `json:"razorpay_signature" validate:"required"`
	OrderID          string `json:"orderId"`
}

type OrderStatusRequest struct {
	OrderID string `json:"orderId" validate:"required"`
	Status  string `json:"status" validate:"required"`
}

type OrderIDRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

// PlaceOrderHandler – POST /api/order/place, оплата при получении
func PlaceOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PlaceOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userIDFromRequest(w, r, logger)
		if !ok {
			return
		}
		var req PlaceOrderRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		order, err := orderService.PlaceOrder(r.Context(), userID, req.toInput())
		if err != nil {
			writeError(w, logger, "failed to place order", err)
			return
		}
		writeOK(w, logger, "Order Placed", map[string]interface{}{"order": order})
	}
}

// StripeCheckoutHandler – POST /api/order/stripe. Адрес возврата берётся из конфигурации,
// без неё из заголовка Origin.
func StripeCheckoutHandler(log *slog.Logger, orderService service.OrderService, frontendURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.StripeCheckoutHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userIDFromRequest(w, r, logger)
		if !ok {
			return
		}
		var req PlaceOrderRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		origin := frontendURL
		if origin == "" {
			origin = r.Header.Get("Origin")
		}
		if origin == "" {
			api.Fail(w, http.StatusBadRequest, "origin is required")
			return
		}

		order, sessionURL, err := orderService.BeginHostedCheckout(r.Context(), userID, req.toInput(), origin)
		if err != nil {
			writeError(w, logger, "failed to begin checkout", err)
			return
		}
		writeOK(w, logger, "", map[string]interface{}{"session_url": sessionURL, "orderId": order.ID})
	}
}

// VerifyStripeHandler – POST /api/order/verifyStripe. Отказ в оплате отвечает 402.
func VerifyStripeHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.VerifyStripeHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userIDFromRequest(w, r, logger)
		if !ok {
			return
		}
		var req VerifyStripeRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}
		if !req.Success.Set {
			api.Fail(w, http.StatusBadRequest, "invalid fields: success")
			return
		}

		res, err := orderService.ConfirmHostedCheckout(r.Context(), userID, req.OrderID, req.Success.Value)
		if err != nil {
			writeError(w, logger, "failed to verify checkout", err)
			return
		}
		writeConfirmResult(w, logger, res)
	}
}

// StripeWebhookHandler – POST /api/order/stripe/webhook, подписанное событие от Stripe
func StripeWebhookHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.StripeWebhookHandler"
		logger := log.With(slog.String("op", op))

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			logger.Error("failed to read webhook body", slog.Any("error", err))
			api.Fail(w, http.StatusBadRequest, "invalid request")
			return
		}

		res, err := orderService.HandleHostedCheckoutWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			writeError(w, logger, "webhook rejected", err)
			return
		}
		writeOK(w, logger, "", map[string]interface{}{"result": string(res)})
	}
}

// RazorpayOrderHandler – POST /api/order/razorpay, возвращает заказ шлюза для клиентского SDK
func RazorpayOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RazorpayOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userIDFromRequest(w, r, logger)
		if !ok {
			return
		}
		var req PlaceOrderRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		order, gwOrder, err := orderService.BeginGatewayOrder(r.Context(), userID, req.toInput())
		if err != nil {
			writeError(w, logger, "failed to create gateway order", err)
			return
		}
		writeOK(w, logger, "", map[string]interface{}{"order": gwOrder, "orderId": order.ID})
	}
}

// VerifyRazorpayHandler – POST /api/order/verifyRazorpay
func VerifyRazorpayHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.VerifyRazorpayHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userIDFromRequest(w, r, logger)
		if !ok {
			return
		}
		var req VerifyRazorpayRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		res, err := orderService.ConfirmGatewayPayment(r.Context(), userID, service.GatewayConfirmation{
			GatewayOrderID:   req.GatewayOrderID,
			GatewayPaymentID: req.GatewayPaymentID,
			Signature:        req.Signature,
			OrderID:          req.OrderID,
		})
		if err != nil {
			writeError(w, logger, "failed to verify payment", err)
			return
		}
		writeConfirmResult(w, logger, res)
	}
}

func writeConfirmResult(w http.ResponseWriter, logger *slog.Logger, res service.ConfirmResult) {
	switch res {
	case service.ConfirmDeclined:
		if err := api.JSON(w, http.StatusPaymentRequired, api.Error("Payment Failed")); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
		}
	case service.ConfirmAlready:
		writeOK(w, logger, "Payment Already Verified", map[string]interface{}{"result": string(res)})
	default:
		writeOK(w, logger, "Payment Successful", map[string]interface{}{"result": string(res)})
	}
}

// UserOrdersHandler – POST /api/order/userorders
func UserOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UserOrdersHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userIDFromRequest(w, r, logger)
		if !ok {
			return
		}

		orders, err := orderService.UserOrders(r.Context(), userID)
		if err != nil {
			writeError(w, logger, "failed to get orders", err)
			return
		}
		writeOK(w, logger, "", map[string]interface{}{"orders": orders})
	}
}

// AllOrdersHandler – POST /api/order/list, только администратор
func AllOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AllOrdersHandler"
		logger := log.With(slog.String("op", op))

		orders, err := orderService.AllOrders(r.Context())
		if err != nil {
			writeError(w, logger, "failed to list orders", err)
			return
		}
		writeOK(w, logger, "", map[string]interface{}{"orders": orders})
	}
}

// UpdateStatusHandler – POST /api/order/status
func UpdateStatusHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateStatusHandler"
		logger := log.With(slog.String("op", op))

		var req OrderStatusRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		if err := orderService.SetStatus(r.Context(), req.OrderID, req.Status); err != nil {
			writeError(w, logger, "failed to update status", err)
			return
		}
		writeOK(w, logger, "Status Updated", nil)
	}
}

// DeleteOrderHandler – POST /api/order/delete
func DeleteOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteOrderHandler"
		logger := log.With(slog.String("op", op))

		var req OrderIDRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		if err := orderService.DeleteOrder(r.Context(), req.OrderID); err != nil {
			writeError(w, logger, "failed to delete order", err)
			return
		}
		writeOK(w, logger, "Order deleted", nil)
	}
}

