package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/lib/cache"
	"github.com/linemk/storefront/internal/storage"
)

// ProductService отдаёт каталог; список кэшируется в redis
type ProductService interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	AddProduct(ctx context.Context, product *models.Product) (*models.Product, error)
}

type productService struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
	cache       cache.Cache
	ttl         time.Duration
}

func NewProductService(log *slog.Logger, productRepo storage.ProductStorage, c cache.Cache, ttl time.Duration) ProductService {
	if c == nil {
		c = cache.NewNoopCache()
	}
	return &productService{log: log, productRepo: productRepo, cache: c, ttl: ttl}
}

func (s *productService) listKey() string {
	return s.cache.GenerateKey("products", "list")
}

func (s *productService) ListProducts(ctx context.Context) ([]*models.Product, error) {
	const op = "service.ProductService.ListProducts"
	logger := s.log.With(slog.String("op", op))

	// ошибки кэша не должны ломать выдачу каталога
	if cached, err := s.cache.Get(ctx, s.listKey()); err != nil {
		logger.Warn("cache read failed", slog.Any("error", err))
	} else if cached != "" {
		var products []*models.Product
		if err := json.Unmarshal([]byte(cached), &products); err == nil {
			return products, nil
		}
		logger.Warn("cache entry is corrupted, reloading")
	}

	products, err := s.productRepo.ListProducts(ctx)
	if err != nil {
		logger.Error("failed to list products", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list products: %w", op, err)
	}

	if raw, err := json.Marshal(products); err == nil {
		if err := s.cache.Set(ctx, s.listKey(), raw, s.ttl); err != nil {
			logger.Warn("cache write failed", slog.Any("error", err))
		}
	}
	return products, nil
}

func (s *productService) AddProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	const op = "service.ProductService.AddProduct"
	logger := s.log.With(slog.String("op", op))

	if strings.TrimSpace(product.Name) == "" {
		return nil, fmt.Errorf("%s: name is required: %w", op, ErrValidation)
	}
	if product.Price.IsNegative() {
		return nil, fmt.Errorf("%s: price must not be negative: %w", op, ErrValidation)
	}

	created, err := s.productRepo.CreateProduct(ctx, product)
	if err != nil {
		logger.Error("failed to create product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create product: %w", op, err)
	}

	if err := s.cache.Delete(ctx, s.listKey()); err != nil {
		logger.Warn("cache invalidation failed", slog.Any("error", err))
	}
	logger.Info("product created", slog.Int64("productID", created.ID))
	return created, nil
}
