package storage_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/storage"
)

var userCols = []string{"id", "name", "email", "pass_hash", "cart_data", "created_at"}

var orderCols = []string{
	"id", "user_id", "items", "address", "amount", "payment_method", "payment", "status",
	"gateway_order_id", "gateway_payment_id", "gateway_signature", "created_at",
}

const (
	testOrderID  = "4b1f7c1e-0000-4000-8000-000000000001"
	itemsJSON    = `[{"_id":1,"name":"Shirt","price":20,"size":"M","quantity":1},{"_id":2,"name":"Socks","price":5,"size":"L","quantity":3}]`
	addressJSON  = `{"firstName":"Ann","lastName":"Lee","street":"1 Main","city":"Pune","state":"MH","country":"IN","zipcode":"411001","phone":"123"}`
	selectUserID = "SELECT id, name, email, pass_hash, cart_data, created_at FROM users WHERE id = $1"
)

func orderRow(rows *sqlmock.Rows, payment bool, status models.OrderStatus, gatewayOrderID interface{}) *sqlmock.Rows {
	return rows.AddRow(testOrderID, int64(7), []byte(itemsJSON), []byte(addressJSON), "45.00",
		"Razorpay", payment, string(status), gatewayOrderID, nil, nil, time.Now())
}

func TestGetUserByID_Success(t *testing.T) {
	// Создаем sqlmock для эмуляции базы данных.
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	userID := int64(1)

	rows := sqlmock.NewRows(userCols).
		AddRow(userID, "Test", "test@example.com", []byte("hashed-password"), []byte(`{"1":{"M":2}}`), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(selectUserID)).WithArgs(userID).WillReturnRows(rows)

	user, err := repo.GetUserByID(context.Background(), userID)
	require.NoError(t, err, "Expected no error when user is found")
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, []byte("hashed-password"), user.PassHash)
	assert.Equal(t, models.CartData{"1": {"M": 2}}, user.CartData)

	// Проверяем, что все ожидания sqlmock выполнены.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectUserID)).WithArgs(int64(2)).WillReturnRows(sqlmock.NewRows(userCols))

	user, err := repo.GetUserByID(context.Background(), 2)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.Nil(t, user, "User should be nil when not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectUserID)).WithArgs(int64(3)).WillReturnError(errors.New("db error"))

	user, err := repo.GetUserByID(context.Background(), 3)
	assert.Error(t, err, "Expected error when query fails")
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("Ann", "ann@example.com", []byte("hash")).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err = repo.CreateUser(context.Background(), &models.User{Name: "Ann", Email: "ann@example.com", PassHash: []byte("hash")})
	assert.ErrorIs(t, err, storage.ErrUserExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("Ann", "ann@example.com", []byte("hash")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), time.Now()))

	user, err := repo.CreateUser(context.Background(), &models.User{Name: "Ann", Email: "ann@example.com", PassHash: []byte("hash")})
	require.NoError(t, err)
	assert.Equal(t, int64(11), user.ID)
	assert.NotNil(t, user.CartData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockUserByIDTx_Locked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	mock.ExpectQuery("FOR UPDATE NOWAIT").WithArgs(int64(1)).WillReturnError(&pq.Error{Code: "55P03"})

	_, err = repo.LockUserByIDTx(context.Background(), tx, 1)
	assert.ErrorIs(t, err, storage.ErrLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCartTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET cart_data = $1 WHERE id = $2")).
		WithArgs([]byte(`{"5":{"XL":1}}`), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET cart_data = $1 WHERE id = $2")).
		WithArgs([]byte(`{}`), int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.UpdateCartTx(context.Background(), tx, 1, models.CartData{"5": {"XL": 1}}))
	assert.ErrorIs(t, repo.UpdateCartTx(context.Background(), tx, 99, nil), storage.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClearCartTx_MissingUserIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET cart_data = '{}'::jsonb WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.ClearCartTx(context.Background(), tx, 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	created := time.Now()
	order := &models.Order{
		ID:            testOrderID,
		UserID:        7,
		Items:         []models.OrderItem{{ProductID: 1, Name: "Shirt", Price: decimal.NewFromInt(20), Size: "M", Quantity: 1}},
		Amount:        decimal.NewFromInt(30),
		PaymentMethod: models.PaymentCOD,
		Status:        models.StatusPlaced,
		CreatedAt:     created,
	}

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(testOrderID, int64(7), sqlmock.AnyArg(), sqlmock.AnyArg(), "30", "COD", false, "Order Placed", nil, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.CreateOrderTx(context.Background(), tx, order))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	mock.ExpectQuery("FROM orders WHERE id = \\$1").
		WithArgs(testOrderID).
		WillReturnRows(orderRow(sqlmock.NewRows(orderCols), false, models.StatusPlaced, "order_abc"))

	order, err := repo.GetOrderByID(context.Background(), testOrderID)
	require.NoError(t, err)
	assert.Equal(t, testOrderID, order.ID)
	assert.Equal(t, int64(7), order.UserID)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Socks", order.Items[1].Name)
	assert.True(t, decimal.NewFromInt(5).Equal(order.Items[1].Price))
	assert.Equal(t, "Pune", order.Address.City)
	assert.True(t, decimal.NewFromInt(45).Equal(order.Amount))
	assert.Equal(t, models.PaymentRazorpay, order.PaymentMethod)
	require.NotNil(t, order.GatewayOrderID)
	assert.Equal(t, "order_abc", *order.GatewayOrderID)
	assert.Nil(t, order.GatewayPaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	mock.ExpectQuery("FROM orders WHERE id = \\$1").WithArgs("missing").WillReturnRows(sqlmock.NewRows(orderCols))

	_, err = repo.GetOrderByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestUnpaidOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	mock.ExpectQuery("payment = FALSE\\s+ORDER BY created_at DESC LIMIT 1").
		WithArgs(int64(7), "Razorpay").
		WillReturnRows(orderRow(sqlmock.NewRows(orderCols), false, models.StatusPlaced, nil))

	order, err := repo.GetLatestUnpaidOrder(context.Background(), 7, models.PaymentRazorpay)
	require.NoError(t, err)
	assert.Nil(t, order.GatewayOrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrdersByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	rows := sqlmock.NewRows(orderCols)
	orderRow(rows, true, models.StatusDelivered, nil)
	mock.ExpectQuery("FROM orders WHERE user_id = \\$1 ORDER BY created_at DESC").WithArgs(int64(7)).WillReturnRows(rows)

	orders, err := repo.GetOrdersByUserID(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.StatusDelivered, orders[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOrders_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	mock.ExpectQuery("FROM orders ORDER BY created_at DESC").WillReturnRows(sqlmock.NewRows(orderCols))

	orders, err := repo.ListOrders(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPaymentTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	gwOrder, gwPayment, sig := "order_abc", "pay_xyz", "sig"
	conf := models.PaymentConfirmation{OrderID: testOrderID, GatewayOrderID: &gwOrder, GatewayPaymentID: &gwPayment, GatewaySignature: &sig}

	// первый вызов обновляет строку, второй не находит неоплаченный заказ
	mock.ExpectExec("WHERE id = \\$5 AND payment = FALSE").
		WithArgs("Payment Confirmed", "order_abc", "pay_xyz", "sig", testOrderID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("WHERE id = \\$5 AND payment = FALSE").
		WithArgs("Payment Confirmed", "order_abc", "pay_xyz", "sig", testOrderID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.ConfirmPaymentTx(context.Background(), tx, conf)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.ConfirmPaymentTx(context.Background(), tx, conf)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaymentFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1 WHERE id = $2 AND payment = FALSE")).
		WithArgs("Payment Failed", testOrderID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := repo.MarkPaymentFailed(context.Background(), testOrderID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1 WHERE id = $2")).
		WithArgs("Shipped", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateStatus(context.Background(), "missing", models.StatusShipped)
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetGatewayOrderID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET gateway_order_id = $1 WHERE id = $2")).
		WithArgs("order_abc", testOrderID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.SetGatewayOrderID(context.Background(), testOrderID, "order_abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockAndDeleteOrderTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	mock.ExpectQuery("FROM orders WHERE id = \\$1 FOR UPDATE NOWAIT").
		WithArgs(testOrderID).
		WillReturnRows(orderRow(sqlmock.NewRows(orderCols), false, models.StatusCancelled, nil))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = $1")).
		WithArgs(testOrderID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	order, err := repo.LockOrderByIDTx(context.Background(), tx, testOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, order.Status)
	assert.NoError(t, repo.DeleteOrderTx(context.Background(), tx, testOrderID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductsByIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "description", "price", "category", "sizes", "bestseller", "created_at"}).
		AddRow(int64(1), "Shirt", "cotton", "20.00", "Men", []byte(`["S","M"]`), true, time.Now())
	mock.ExpectQuery("FROM products WHERE id = ANY\\(\\$1\\)").WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)

	found, err := repo.GetProductsByIDs(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Shirt", found[1].Name)
	assert.Equal(t, []string{"S", "M"}, found[1].Sizes)
	assert.True(t, decimal.NewFromInt(20).Equal(found[1].Price))
	assert.NoError(t, mock.ExpectationsWereMet())
}
