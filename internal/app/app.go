package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/linemk/storefront/internal/config"
	"github.com/linemk/storefront/internal/lib/cache"
	"github.com/linemk/storefront/internal/payment"
	"github.com/linemk/storefront/internal/service"
	"github.com/linemk/storefront/internal/storage"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
	Cache  cache.Cache
}

// Services – собранный слой бизнес-логики, общий для HTTP-сервера и shopctl
type Services struct {
	Auth    service.AuthServiceInterface
	Users   service.UserService
	Cart    service.CartService
	Product service.ProductService
	Orders  service.OrderService
}

// NewApp создаёт новый экземпляр App
func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN(""))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	// без адреса redis каталог читается напрямую из БД
	var c cache.Cache = cache.NewNoopCache()
	if cfg.Redis.Address != "" {
		c = cache.NewRedisCache(cfg.Redis.Address, "storefront")
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := cache.Ping(ctx, c); err != nil {
			log.Warn("redis is unavailable, catalog cache disabled", slog.Any("error", err))
			c = cache.NewNoopCache()
		}
	}

	app := &App{
		Config: cfg,
		Logger: log,
		DB:     db,
		Cache:  c,
	}

	return app, nil
}

// Services собирает репозитории, платёжные шлюзы и сервисы по конфигурации
func (a *App) Services() (*Services, error) {
	cfg := a.Config

	deliveryCharge, err := decimal.NewFromString(cfg.Payments.DeliveryCharge)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid delivery charge %q", cfg.Payments.DeliveryCharge)
	}

	userRepo := storage.NewUserRepository(a.DB)
	orderRepo := storage.NewOrderRepository(a.DB)
	productRepo := storage.NewProductRepository(a.DB)

	if cfg.Payments.StripeSecretKey == "" {
		a.Logger.Warn("stripe is not configured, hosted checkout will fail")
	}
	if cfg.Payments.RazorpayKeyID == "" || cfg.Payments.RazorpayKeySecret == "" {
		a.Logger.Warn("razorpay is not configured, gateway payments will fail")
	}
	stripeGW := payment.NewStripeGateway(cfg.Payments.StripeSecretKey, cfg.Payments.StripeWebhookKey)
	razorpayGW := payment.NewRazorpayGateway(cfg.Payments.RazorpayKeyID, cfg.Payments.RazorpayKeySecret)

	admin := service.AdminCredentials{
		Email:        cfg.Admin.Email,
		PasswordHash: cfg.Admin.PasswordHash,
		TokenTTL:     time.Duration(cfg.JWT.AdminTokenTTL) * time.Minute,
	}

	return &Services{
		Auth:    service.NewAuthService(a.Logger, userRepo, cfg.JWT.Secret, time.Duration(cfg.JWT.TokenTTL)*time.Minute, admin),
		Users:   service.NewUserService(a.Logger, userRepo),
		Cart:    service.NewCartService(a.Logger, a.DB, userRepo),
		Product: service.NewProductService(a.Logger, productRepo, a.Cache, cfg.Redis.CatalogTTL),
		Orders: service.NewOrderService(a.Logger, a.DB, orderRepo, userRepo, productRepo, stripeGW, razorpayGW,
			service.OrderPolicy{
				Currency:          cfg.Payments.Currency,
				DeliveryCharge:    deliveryCharge,
				GatewayTimeout:    cfg.Payments.GatewayTimeout,
				StrictTransitions: cfg.Orders.StrictTransitions,
				DeleteGrace:       time.Duration(cfg.Orders.DeleteGraceDays) * 24 * time.Hour,
			}),
	}, nil
}

// Close освобождает соединения
func (a *App) Close() {
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("failed to close database", slog.Any("error", err))
	}
}
