package service_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/payment"
	"github.com/linemk/storefront/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeOrderRepo хранит заказы в памяти; транзакции игнорируются,
// их начало и завершение проверяет sqlmock
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	seq    []string

	createErr  error
	confirmErr error
	lookupErr  error
	confirms   int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*models.Order)}
}

func (f *fakeOrderRepo) put(o *models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	f.orders[o.ID] = &cp
	f.seq = append(f.seq, o.ID)
}

func (f *fakeOrderRepo) get(id string) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

func (f *fakeOrderRepo) CreateOrderTx(_ context.Context, _ *sql.Tx, order *models.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.put(order)
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if o := f.get(id); o != nil {
		return o, nil
	}
	return nil, storage.ErrOrderNotFound
}

func (f *fakeOrderRepo) GetOrderByGatewayOrderID(_ context.Context, gatewayOrderID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.GatewayOrderID != nil && *o.GatewayOrderID == gatewayOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, storage.ErrOrderNotFound
}

func (f *fakeOrderRepo) GetLatestUnpaidOrder(_ context.Context, userID int64, method models.PaymentMethod) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.seq) - 1; i >= 0; i-- {
		o := f.orders[f.seq[i]]
		if o != nil && o.UserID == userID && o.PaymentMethod == method && !o.Payment {
			cp := *o
			return &cp, nil
		}
	}
	return nil, storage.ErrOrderNotFound
}

func (f *fakeOrderRepo) ListOrders(_ context.Context) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Order, 0, len(f.orders))
	for _, o := range f.orders {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeOrderRepo) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	all, _ := f.ListOrders(ctx)
	out := make([]*models.Order, 0)
	for _, o := range all {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) SetGatewayOrderID(_ context.Context, id string, gatewayOrderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	v := gatewayOrderID
	o.GatewayOrderID = &v
	return nil
}

func (f *fakeOrderRepo) ConfirmPaymentTx(_ context.Context, _ *sql.Tx, conf models.PaymentConfirmation) (bool, error) {
	if f.confirmErr != nil {
		return false, f.confirmErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[conf.OrderID]
	if !ok || o.Payment {
		return false, nil
	}
	f.confirms++
	o.Payment = true
	o.Status = models.StatusConfirmed
	if conf.GatewayOrderID != nil {
		o.GatewayOrderID = conf.GatewayOrderID
	}
	if conf.GatewayPaymentID != nil {
		o.GatewayPaymentID = conf.GatewayPaymentID
	}
	if conf.GatewaySignature != nil {
		o.GatewaySignature = conf.GatewaySignature
	}
	return true, nil
}

func (f *fakeOrderRepo) MarkPaymentFailed(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.Payment {
		return false, nil
	}
	o.Status = models.StatusFailed
	return true, nil
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, id string, status models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (f *fakeOrderRepo) LockOrderByIDTx(ctx context.Context, _ *sql.Tx, id string) (*models.Order, error) {
	return f.GetOrderByID(ctx, id)
}

func (f *fakeOrderRepo) DeleteOrderTx(_ context.Context, _ *sql.Tx, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return storage.ErrOrderNotFound
	}
	delete(f.orders, id)
	return nil
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*models.User
	nextID int64

	getErr   error
	clears   map[int64]int
	clearErr error
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[int64]*models.User), clears: make(map[int64]int), nextID: 1}
	for _, u := range users {
		f.users[u.ID] = u
		if u.ID >= f.nextID {
			f.nextID = u.ID + 1
		}
	}
	return f
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return nil, storage.ErrUserExists
		}
	}
	user.ID = f.nextID
	f.nextID++
	user.CartData = models.CartData{}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) LockUserByIDTx(ctx context.Context, _ *sql.Tx, id int64) (*models.User, error) {
	return f.GetUserByID(ctx, id)
}

func (f *fakeUserRepo) UpdateCartTx(_ context.Context, _ *sql.Tx, id int64, cart models.CartData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.CartData = cart
	return nil
}

func (f *fakeUserRepo) ClearCartTx(_ context.Context, _ *sql.Tx, id int64) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears[id]++
	if u, ok := f.users[id]; ok {
		u.CartData = models.CartData{}
	}
	return nil
}

func (f *fakeUserRepo) cart(id int64) models.CartData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].CartData
}

type fakeProductRepo struct {
	products map[int64]*models.Product
	listErr  error
	lists    int
	created  []*models.Product
}

func newFakeProductRepo(products ...*models.Product) *fakeProductRepo {
	f := &fakeProductRepo{products: make(map[int64]*models.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProductRepo) ListProducts(_ context.Context) ([]*models.Product, error) {
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeProductRepo) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]*models.Product, error) {
	out := make(map[int64]*models.Product)
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeProductRepo) CreateProduct(_ context.Context, product *models.Product) (*models.Product, error) {
	product.ID = int64(len(f.products) + len(f.created) + 100)
	f.created = append(f.created, product)
	return product, nil
}

type fakeHosted struct {
	req        payment.CheckoutRequest
	sessionErr error
	event      *payment.CheckoutEvent
	parseErr   error
}

func (f *fakeHosted) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	f.req = req
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &payment.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (f *fakeHosted) ParseWebhook(_ []byte, _ string) (*payment.CheckoutEvent, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

// fakeGateway использует настоящую HMAC-проверку
type fakeGateway struct {
	secret     string
	amount     int64
	currency   string
	receipt    string
	createErr  error
	createWait time.Duration
	verifies   int
}

func (f *fakeGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*payment.GatewayOrder, error) {
	if f.createWait > 0 {
		select {
		case <-time.After(f.createWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.amount, f.currency, f.receipt = amountMinor, currency, receipt
	return &payment.GatewayOrder{ID: "order_" + receipt[:8], Amount: amountMinor, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (f *fakeGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) error {
	f.verifies++
	return payment.VerifySignature(f.secret, gatewayOrderID, gatewayPaymentID, signature)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
