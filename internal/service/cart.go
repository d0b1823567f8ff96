package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/storage"
)

type CartService interface {
	AddToCart(ctx context.Context, userID int64, itemID, size string) (models.CartData, error)
	UpdateCart(ctx context.Context, userID int64, itemID, size string, quantity int) (models.CartData, error)
	GetCart(ctx context.Context, userID int64) (models.CartData, error)
}

type cartService struct {
	log      *slog.Logger
	db       *sql.DB
	userRepo storage.UserStorage
}

func NewCartService(log *slog.Logger, db *sql.DB, userRepo storage.UserStorage) CartService {
	return &cartService{log: log, db: db, userRepo: userRepo}
}

// AddToCart увеличивает количество товара выбранного размера на единицу
func (s *cartService) AddToCart(ctx context.Context, userID int64, itemID, size string) (models.CartData, error) {
	const op = "service.CartService.AddToCart"
	if strings.TrimSpace(itemID) == "" || strings.TrimSpace(size) == "" {
		return nil, fmt.Errorf("%s: item and size are required: %w", op, ErrValidation)
	}
	return s.mutate(ctx, op, userID, func(cart models.CartData) {
		if cart[itemID] == nil {
			cart[itemID] = make(map[string]int)
		}
		cart[itemID][size]++
	})
}

// UpdateCart выставляет количество; ноль удаляет размер, пустой товар убирается из корзины
func (s *cartService) UpdateCart(ctx context.Context, userID int64, itemID, size string, quantity int) (models.CartData, error) {
	const op = "service.CartService.UpdateCart"
	if strings.TrimSpace(itemID) == "" || strings.TrimSpace(size) == "" {
		return nil, fmt.Errorf("%s: item and size are required: %w", op, ErrValidation)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%s: quantity must not be negative: %w", op, ErrValidation)
	}
	return s.mutate(ctx, op, userID, func(cart models.CartData) {
		if quantity == 0 {
			delete(cart[itemID], size)
			if len(cart[itemID]) == 0 {
				delete(cart, itemID)
			}
			return
		}
		if cart[itemID] == nil {
			cart[itemID] = make(map[string]int)
		}
		cart[itemID][size] = quantity
	})
}

func (s *cartService) GetCart(ctx context.Context, userID int64) (models.CartData, error) {
	const op = "service.CartService.GetCart"
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: user not found: %w", op, ErrNotFound)
		}
		s.log.Error("failed to get user", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}
	return user.CartData, nil
}

// mutate блокирует строку пользователя, применяет изменение к корзине и сохраняет её
func (s *cartService) mutate(ctx context.Context, op string, userID int64, apply func(models.CartData)) (models.CartData, error) {
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	user, err := s.userRepo.LockUserByIDTx(ctx, tx, userID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: user not found: %w", op, ErrNotFound)
		}
		if errors.Is(err, storage.ErrLocked) {
			logger.Warn("cart is locked by another request")
			return nil, fmt.Errorf("%s: cart is being updated, please try again: %w", op, ErrBusy)
		}
		logger.Error("failed to lock user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock user: %w", op, err)
	}

	cart := user.CartData
	if cart == nil {
		cart = models.CartData{}
	}
	apply(cart)

	if err := s.userRepo.UpdateCartTx(ctx, tx, userID, cart); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to update cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update cart: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Debug("cart updated")
	return cart, nil
}
