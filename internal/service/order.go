package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/payment"
	"github.com/linemk/storefront/internal/storage"
)

// ItemInput позиция корзины, пришедшая с витрины. Цена и название берутся из каталога.
type ItemInput struct {
	ProductID int64
	Size      string
	Quantity  int
}

// PlaceOrderInput данные оформления заказа
type PlaceOrderInput struct {
	Items   []ItemInput
	Address models.Address
	// Amount: сумма, которую видел покупатель; если задана, должна совпасть с расчётной
	Amount *decimal.Decimal
}

// GatewayConfirmation подписанное подтверждение платежа от шлюза
type GatewayConfirmation struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	// OrderID необязателен; без него заказ ищется по GatewayOrderID
	OrderID string
}

// ConfirmResult итог подтверждения оплаты
type ConfirmResult string

const (
	ConfirmApplied  ConfirmResult = "confirmed"
	ConfirmAlready  ConfirmResult = "already_confirmed"
	ConfirmDeclined ConfirmResult = "declined"
	ConfirmIgnored  ConfirmResult = "ignored"
)

// OrderPolicy настройки жизненного цикла заказа
type OrderPolicy struct {
	Currency          string
	DeliveryCharge    decimal.Decimal
	GatewayTimeout    time.Duration
	StrictTransitions bool
	DeleteGrace       time.Duration
}

type OrderService interface {
	PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (*models.Order, error)
	BeginHostedCheckout(ctx context.Context, userID int64, in PlaceOrderInput, origin string) (*models.Order, string, error)
	ConfirmHostedCheckout(ctx context.Context, userID int64, orderID string, success bool) (ConfirmResult, error)
	HandleHostedCheckoutWebhook(ctx context.Context, payload []byte, signatureHeader string) (ConfirmResult, error)
	BeginGatewayOrder(ctx context.Context, userID int64, in PlaceOrderInput) (*models.Order, *payment.GatewayOrder, error)
	ConfirmGatewayPayment(ctx context.Context, userID int64, in GatewayConfirmation) (ConfirmResult, error)
	UserOrders(ctx context.Context, userID int64) ([]*models.Order, error)
	AllOrders(ctx context.Context) ([]*models.Order, error)
	SetStatus(ctx context.Context, orderID string, status string) error
	DeleteOrder(ctx context.Context, orderID string) error
}

type orderService struct {
	log         *slog.Logger
	db          *sql.DB
	orderRepo   storage.OrderStorage
	userRepo    storage.UserStorage
	productRepo storage.ProductStorage
	hosted      payment.HostedCheckout
	gateway     payment.SignatureGateway
	policy      OrderPolicy
	now         func() time.Time
}

type OrderServiceOption func(*orderService)

// WithClock подменяет источник времени (для проверок правил удаления)
func WithClock(now func() time.Time) OrderServiceOption {
	return func(s *orderService) { s.now = now }
}

func NewOrderService(
	log *slog.Logger,
	db *sql.DB,
	orderRepo storage.OrderStorage,
	userRepo storage.UserStorage,
	productRepo storage.ProductStorage,
	hosted payment.HostedCheckout,
	gateway payment.SignatureGateway,
	policy OrderPolicy,
	opts ...OrderServiceOption,
) OrderService {
	if policy.GatewayTimeout <= 0 {
		policy.GatewayTimeout = 10 * time.Second
	}
	if policy.DeleteGrace <= 0 {
		policy.DeleteGrace = 30 * 24 * time.Hour
	}
	if policy.Currency == "" {
		policy.Currency = "usd"
	}
	s := &orderService{
		log:         log,
		db:          db,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		productRepo: productRepo,
		hosted:      hosted,
		gateway:     gateway,
		policy:      policy,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder оформляет заказ с оплатой при получении. Заказ сразу становится обязательством,
// поэтому корзина очищается в той же транзакции.
func (s *orderService) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (*models.Order, error) {
	const op = "service.OrderService.PlaceOrder"
	return s.createOrder(ctx, op, userID, in, models.PaymentCOD, true)
}

// BeginHostedCheckout создаёт заказ и сессию оплаты, возвращает адрес редиректа.
// Статус заказа не меняется; корзина очищается только после подтверждения оплаты.
func (s *orderService) BeginHostedCheckout(ctx context.Context, userID int64, in PlaceOrderInput, origin string) (*models.Order, string, error) {
	const op = "service.OrderService.BeginHostedCheckout"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if s.hosted == nil {
		return nil, "", fmt.Errorf("%s: hosted checkout is not configured: %w", op, ErrGatewayUnavailable)
	}

	order, err := s.createOrder(ctx, op, userID, in, models.PaymentStripe, false)
	if err != nil {
		return nil, "", err
	}

	lineItems := make([]payment.LineItem, 0, len(order.Items)+1)
	for _, it := range order.Items {
		lineItems = append(lineItems, payment.LineItem{
			Currency:   s.policy.Currency,
			Name:       it.Name,
			UnitAmount: payment.MinorUnits(it.Price),
			Quantity:   int64(it.Quantity),
		})
	}
	lineItems = append(lineItems, payment.LineItem{
		Currency:   s.policy.Currency,
		Name:       "Delivery Charges",
		UnitAmount: payment.MinorUnits(s.policy.DeliveryCharge),
		Quantity:   1,
	})

	origin = strings.TrimRight(origin, "/")
	req := payment.CheckoutRequest{
		OrderID:    order.ID,
		UserID:     userID,
		Items:      lineItems,
		SuccessURL: fmt.Sprintf("%s/verify?success=true&orderId=%s", origin, order.ID),
		CancelURL:  fmt.Sprintf("%s/verify?success=false&orderId=%s", origin, order.ID),
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.policy.GatewayTimeout)
	defer cancel()

	session, err := s.hosted.CreateCheckoutSession(gwCtx, req)
	if err != nil {
		logger.Error("failed to create checkout session", slog.String("orderID", order.ID), slog.Any("error", err))
		s.abandon(ctx, logger, order.ID)
		return nil, "", fmt.Errorf("%s: create checkout session: %w", op, ErrGatewayUnavailable)
	}

	logger.Info("checkout session created", slog.String("orderID", order.ID), slog.String("sessionID", session.ID))
	return order, session.URL, nil
}

// ConfirmHostedCheckout обрабатывает результат редиректа со страницы оплаты.
// Флаг success приходит от клиента, поэтому канал считается вспомогательным;
// основной путь это подписанный вебхук (HandleHostedCheckoutWebhook).
func (s *orderService) ConfirmHostedCheckout(ctx context.Context, userID int64, orderID string, success bool) (ConfirmResult, error) {
	const op = "service.OrderService.ConfirmHostedCheckout"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.String("orderID", orderID))

	order, err := s.getOwnedOrder(ctx, op, userID, orderID)
	if err != nil {
		return "", err
	}
	if order.PaymentMethod != models.PaymentStripe {
		return "", fmt.Errorf("%s: order is not a hosted checkout order: %w", op, ErrValidation)
	}
	if order.Payment {
		logger.Info("payment already verified")
		return ConfirmAlready, nil
	}

	if !success {
		if _, err := s.orderRepo.MarkPaymentFailed(ctx, order.ID); err != nil {
			logger.Error("failed to mark payment failed", slog.Any("error", err))
			return "", fmt.Errorf("%s: failed to mark payment failed: %w", op, err)
		}
		logger.Info("payment declined")
		return ConfirmDeclined, nil
	}

	return s.confirm(ctx, op, order, models.PaymentConfirmation{OrderID: order.ID})
}

// HandleHostedCheckoutWebhook подтверждает оплату по событию шлюза с проверенной подписью
func (s *orderService) HandleHostedCheckoutWebhook(ctx context.Context, payload []byte, signatureHeader string) (ConfirmResult, error) {
	const op = "service.OrderService.HandleHostedCheckoutWebhook"
	logger := s.log.With(slog.String("op", op))

	if s.hosted == nil {
		return "", fmt.Errorf("%s: hosted checkout is not configured: %w", op, ErrGatewayUnavailable)
	}

	event, err := s.hosted.ParseWebhook(payload, signatureHeader)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			logger.Warn("webhook signature rejected")
			return "", fmt.Errorf("%s: %w", op, ErrInvalidSignature)
		}
		if errors.Is(err, payment.ErrNotConfigured) {
			return "", fmt.Errorf("%s: webhook secret is not configured: %w", op, ErrGatewayUnavailable)
		}
		logger.Error("failed to parse webhook", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to parse webhook: %w", op, ErrValidation)
	}

	if event.OrderID == "" || !event.Paid {
		logger.Debug("webhook event ignored", slog.String("type", event.Type))
		return ConfirmIgnored, nil
	}

	if err := checkOrderID(op, event.OrderID); err != nil {
		logger.Warn("webhook references malformed order id", slog.String("orderID", event.OrderID))
		return "", err
	}
	order, err := s.orderRepo.GetOrderByID(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return "", fmt.Errorf("%s: order not found: %w", op, ErrNotFound)
		}
		logger.Error("failed to get order", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to get order: %w", op, err)
	}
	if order.Payment {
		return ConfirmAlready, nil
	}

	return s.confirm(ctx, op, order, models.PaymentConfirmation{OrderID: order.ID})
}

// BeginGatewayOrder создаёт заказ и парный заказ в шлюзе, сумма передаётся в минимальных единицах
func (s *orderService) BeginGatewayOrder(ctx context.Context, userID int64, in PlaceOrderInput) (*models.Order, *payment.GatewayOrder, error) {
	const op = "service.OrderService.BeginGatewayOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if s.gateway == nil {
		return nil, nil, fmt.Errorf("%s: payment gateway is not configured: %w", op, ErrGatewayUnavailable)
	}

	order, err := s.createOrder(ctx, op, userID, in, models.PaymentRazorpay, false)
	if err != nil {
		return nil, nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.policy.GatewayTimeout)
	defer cancel()

	gwOrder, err := s.gateway.CreateOrder(gwCtx, payment.MinorUnits(order.Amount), s.policy.Currency, order.ID)
	if err != nil {
		logger.Error("failed to create gateway order", slog.String("orderID", order.ID), slog.Any("error", err))
		s.abandon(ctx, logger, order.ID)
		return nil, nil, fmt.Errorf("%s: create gateway order: %w", op, ErrGatewayUnavailable)
	}

	if err := s.orderRepo.SetGatewayOrderID(ctx, order.ID, gwOrder.ID); err != nil {
		logger.Error("failed to store gateway order id", slog.Any("error", err))
		return nil, nil, fmt.Errorf("%s: failed to store gateway order id: %w", op, err)
	}
	order.GatewayOrderID = &gwOrder.ID

	logger.Info("gateway order created", slog.String("orderID", order.ID), slog.String("gatewayOrderID", gwOrder.ID))
	return order, gwOrder, nil
}

// ConfirmGatewayPayment проверяет подпись платежа и подтверждает заказ.
// Подпись проверяется до любых обращений к хранилищу.
func (s *orderService) ConfirmGatewayPayment(ctx context.Context, userID int64, in GatewayConfirmation) (ConfirmResult, error) {
	const op = "service.OrderService.ConfirmGatewayPayment"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.Signature == "" {
		return "", fmt.Errorf("%s: gateway order id, payment id and signature are required: %w", op, ErrValidation)
	}
	if s.gateway == nil {
		return "", fmt.Errorf("%s: payment gateway is not configured: %w", op, ErrGatewayUnavailable)
	}

	if err := s.gateway.VerifySignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature); err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			logger.Error("gateway secret is not configured")
			return "", fmt.Errorf("%s: %w", op, ErrGatewayUnavailable)
		}
		logger.Warn("payment signature rejected", slog.String("gatewayOrderID", in.GatewayOrderID))
		return "", fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	order, err := s.resolveGatewayOrder(ctx, op, logger, userID, in)
	if err != nil {
		return "", err
	}
	if order.Payment {
		logger.Info("payment already verified", slog.String("orderID", order.ID))
		return ConfirmAlready, nil
	}

	return s.confirm(ctx, op, order, models.PaymentConfirmation{
		OrderID:          order.ID,
		GatewayOrderID:   &in.GatewayOrderID,
		GatewayPaymentID: &in.GatewayPaymentID,
		GatewaySignature: &in.Signature,
	})
}

// resolveGatewayOrder: явный orderId -> заказ с подписанным gateway order id -> последний
// неоплаченный заказ пользователя. Последний вариант оставлен для старых клиентов и неточен
// при параллельных оформлениях.
func (s *orderService) resolveGatewayOrder(ctx context.Context, op string, logger *slog.Logger, userID int64, in GatewayConfirmation) (*models.Order, error) {
	if in.OrderID != "" {
		order, err := s.getOwnedOrder(ctx, op, userID, in.OrderID)
		if err != nil {
			return nil, err
		}
		if !linkedTo(order, in.GatewayOrderID, false) {
			logger.Warn("signed gateway order does not match order", slog.String("orderID", order.ID))
			return nil, fmt.Errorf("%s: gateway order does not match order: %w", op, ErrValidation)
		}
		return order, nil
	}

	order, err := s.orderRepo.GetOrderByGatewayOrderID(ctx, in.GatewayOrderID)
	switch {
	case err == nil:
		if order.UserID != userID {
			return nil, fmt.Errorf("%s: order not found: %w", op, ErrNotFound)
		}
		if !linkedTo(order, in.GatewayOrderID, false) {
			logger.Warn("signed gateway order belongs to a non-gateway order", slog.String("orderID", order.ID))
			return nil, fmt.Errorf("%s: gateway order does not match order: %w", op, ErrValidation)
		}
		return order, nil
	case !errors.Is(err, storage.ErrOrderNotFound):
		logger.Error("failed to get order by gateway id", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}

	logger.Warn("falling back to latest unpaid order lookup", slog.String("gatewayOrderID", in.GatewayOrderID))
	order, err = s.orderRepo.GetLatestUnpaidOrder(ctx, userID, models.PaymentRazorpay)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: order not found: %w", op, ErrNotFound)
		}
		logger.Error("failed to get latest unpaid order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}
	// заказ, уже связанный с другим заказом шлюза, чужой подписью не подтверждается
	if !linkedTo(order, in.GatewayOrderID, true) {
		logger.Warn("latest unpaid order is linked to another gateway order", slog.String("orderID", order.ID))
		return nil, fmt.Errorf("%s: gateway order does not match order: %w", op, ErrValidation)
	}
	return order, nil
}

// linkedTo: подпись шлюза подтверждает только razorpay-заказ с тем же gateway order id.
// allowUnlinked допускает заказ без сохранённого id (шлюз ответил, а id не записался).
func linkedTo(order *models.Order, gatewayOrderID string, allowUnlinked bool) bool {
	if order.PaymentMethod != models.PaymentRazorpay {
		return false
	}
	if order.GatewayOrderID == nil {
		return allowUnlinked
	}
	return *order.GatewayOrderID == gatewayOrderID
}

func (s *orderService) UserOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	const op = "service.OrderService.UserOrders"
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		s.log.Error("failed to get orders", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get orders: %w", op, err)
	}
	return orders, nil
}

func (s *orderService) AllOrders(ctx context.Context) ([]*models.Order, error) {
	const op = "service.OrderService.AllOrders"
	orders, err := s.orderRepo.ListOrders(ctx)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list orders: %w", op, err)
	}
	return orders, nil
}

// SetStatus – административная смена статуса. По умолчанию разрешён любой переход,
// при StrictTransitions действует таблица models.CanTransition.
func (s *orderService) SetStatus(ctx context.Context, orderID string, status string) error {
	const op = "service.OrderService.SetStatus"
	logger := s.log.With(slog.String("op", op), slog.String("orderID", orderID), slog.String("status", status))

	if err := checkOrderID(op, orderID); err != nil {
		return err
	}
	next, err := models.ParseOrderStatus(status)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, ErrValidation)
	}

	if s.policy.StrictTransitions {
		order, err := s.orderRepo.GetOrderByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, storage.ErrOrderNotFound) {
				return fmt.Errorf("%s: order not found: %w", op, ErrNotFound)
			}
			logger.Error("failed to get order", slog.Any("error", err))
			return fmt.Errorf("%s: failed to get order: %w", op, err)
		}
		if !models.CanTransition(order.Status, next) {
			logger.Warn("transition rejected", slog.String("from", string(order.Status)))
			return fmt.Errorf("%s: cannot move order from %q to %q: %w", op, order.Status, next, ErrPolicyViolation)
		}
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, next); err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return fmt.Errorf("%s: order not found: %w", op, ErrNotFound)
		}
		logger.Error("failed to update status", slog.Any("error", err))
		return fmt.Errorf("%s: failed to update status: %w", op, err)
	}

	logger.Info("status updated")
	return nil
}

// DeleteOrder удаляет заказ, если это разрешают правила: сначала проверяется давность
// доставленного заказа, затем то, что оплаченный заказ возвращён или отменён.
func (s *orderService) DeleteOrder(ctx context.Context, orderID string) error {
	const op = "service.OrderService.DeleteOrder"
	logger := s.log.With(slog.String("op", op), slog.String("orderID", orderID))

	if err := checkOrderID(op, orderID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		s.rollback(tx, logger)
		if errors.Is(err, storage.ErrOrderNotFound) {
			return fmt.Errorf("%s: order not found: %w", op, ErrNotFound)
		}
		if errors.Is(err, storage.ErrLocked) {
			logger.Warn("order is locked by another request")
			return fmt.Errorf("%s: order is being modified, please try again: %w", op, ErrBusy)
		}
		logger.Error("failed to lock order", slog.Any("error", err))
		return fmt.Errorf("%s: failed to lock order: %w", op, err)
	}

	if err := s.checkDeletable(order); err != nil {
		s.rollback(tx, logger)
		logger.Warn("deletion rejected", slog.String("reason", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.orderRepo.DeleteOrderTx(ctx, tx, orderID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to delete order", slog.Any("error", err))
		return fmt.Errorf("%s: failed to delete order: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order deleted")
	return nil
}

func (s *orderService) checkDeletable(order *models.Order) error {
	if order.Status == models.StatusDelivered && s.now().Sub(order.CreatedAt) > s.policy.DeleteGrace {
		days := int(s.policy.DeleteGrace.Hours() / 24)
		return fmt.Errorf("cannot delete orders that were delivered more than %d days ago: %w", days, ErrPolicyViolation)
	}
	if order.Payment && order.Status != models.StatusRefunded && order.Status != models.StatusCancelled {
		return fmt.Errorf("paid orders must be refunded or cancelled before deletion: %w", ErrPolicyViolation)
	}
	return nil
}

// createOrder собирает заказ из снимков каталога и сохраняет его; при clearCart корзина
// очищается в той же транзакции
func (s *orderService) createOrder(ctx context.Context, op string, userID int64, in PlaceOrderInput, method models.PaymentMethod, clearCart bool) (*models.Order, error) {
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.String("paymentMethod", string(method)))

	items, err := s.snapshotItems(ctx, op, in.Items)
	if err != nil {
		return nil, err
	}

	amount := models.OrderTotal(items, s.policy.DeliveryCharge)
	if in.Amount != nil && !in.Amount.Equal(amount) {
		logger.Warn("amount mismatch", slog.String("client", in.Amount.String()), slog.String("computed", amount.String()))
		return nil, fmt.Errorf("%s: amount %s does not match order total %s: %w", op, in.Amount.String(), amount.String(), ErrValidation)
	}

	order := &models.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Items:         items,
		Address:       in.Address,
		Amount:        amount,
		PaymentMethod: method,
		Payment:       false,
		Status:        models.StatusPlaced,
		CreatedAt:     s.now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	if err := s.orderRepo.CreateOrderTx(ctx, tx, order); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	if clearCart {
		if err := s.userRepo.ClearCartTx(ctx, tx, userID); err != nil {
			s.rollback(tx, logger)
			logger.Error("failed to clear cart", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to clear cart: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order placed", slog.String("orderID", order.ID), slog.String("amount", amount.String()))
	return order, nil
}

func (s *orderService) snapshotItems(ctx context.Context, op string, in []ItemInput) ([]models.OrderItem, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%s: order has no items: %w", op, ErrValidation)
	}

	ids := make([]int64, 0, len(in))
	for _, it := range in {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%s: quantity must be positive: %w", op, ErrValidation)
		}
		ids = append(ids, it.ProductID)
	}

	products, err := s.productRepo.GetProductsByIDs(ctx, ids)
	if err != nil {
		s.log.Error("failed to load products", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load products: %w", op, err)
	}

	items := make([]models.OrderItem, 0, len(in))
	for _, it := range in {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%s: product %d: %v: %w", op, it.ProductID, storage.ErrProductNotFound, ErrValidation)
		}
		if len(p.Sizes) > 0 && !containsSize(p.Sizes, it.Size) {
			return nil, fmt.Errorf("%s: size %q is not available for %s: %w", op, it.Size, p.Name, ErrValidation)
		}
		items = append(items, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Size:      it.Size,
			Quantity:  it.Quantity,
		})
	}
	return items, nil
}

func containsSize(sizes []string, size string) bool {
	for _, s := range sizes {
		if s == size {
			return true
		}
	}
	return false
}

// confirm атомарно помечает заказ оплаченным и очищает корзину владельца.
// Если UPDATE не затронул строку, заказ уже подтверждён параллельным колбэком
// и корзина повторно не трогается.
func (s *orderService) confirm(ctx context.Context, op string, order *models.Order, conf models.PaymentConfirmation) (ConfirmResult, error) {
	logger := s.log.With(slog.String("op", op), slog.String("orderID", order.ID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	applied, err := s.orderRepo.ConfirmPaymentTx(ctx, tx, conf)
	if err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to confirm payment", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to confirm payment: %w", op, err)
	}
	if !applied {
		s.rollback(tx, logger)
		logger.Info("payment already verified")
		return ConfirmAlready, nil
	}

	if err := s.userRepo.ClearCartTx(ctx, tx, order.UserID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to clear cart", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to clear cart: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("payment verified")
	return ConfirmApplied, nil
}

func (s *orderService) getOwnedOrder(ctx context.Context, op string, userID int64, orderID string) (*models.Order, error) {
	if err := checkOrderID(op, orderID); err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: order not found: %w", op, ErrNotFound)
		}
		s.log.Error("failed to get order", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}
	// чужой заказ для пользователя не существует
	if order.UserID != userID {
		return nil, fmt.Errorf("%s: order not found: %w", op, ErrNotFound)
	}
	return order, nil
}

// abandon помечает заказ неуспешным, если шлюз не смог начать оплату
func (s *orderService) abandon(ctx context.Context, logger *slog.Logger, orderID string) {
	if _, err := s.orderRepo.MarkPaymentFailed(ctx, orderID); err != nil {
		logger.Error("failed to mark order failed", slog.String("orderID", orderID), slog.Any("error", err))
	}
}

func (s *orderService) rollback(tx *sql.Tx, logger *slog.Logger) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}

// checkOrderID: id заказа это uuid, строка другого вида не может указывать на существующий заказ
func checkOrderID(op, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("%s: order id is required: %w", op, ErrValidation)
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return fmt.Errorf("%s: order not found: %w", op, ErrNotFound)
	}
	return nil
}
