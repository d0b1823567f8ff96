package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/linemk/storefront/internal/domain/models"
	security "github.com/linemk/storefront/internal/jwt-new"
	"github.com/linemk/storefront/internal/storage"
)

const minPasswordLen = 8

// AdminCredentials – учётная запись администратора из конфигурации
type AdminCredentials struct {
	Email        string
	PasswordHash string
	TokenTTL     time.Duration
}

type AuthService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	secret   string
	tokenTTL time.Duration
	admin    AdminCredentials
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, secret string, tokenTTL time.Duration, admin AdminCredentials) *AuthService {
	return &AuthService{
		log:      log,
		userRepo: userRepo,
		secret:   secret,
		tokenTTL: tokenTTL,
		admin:    admin,
	}
}

type AuthServiceInterface interface {
	Register(ctx context.Context, name, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	AdminLogin(ctx context.Context, email, password string) (string, error)
}

// Register создаёт пользователя и сразу выдаёт ему токен.
// Пароль хэшируется через bcrypt, который автоматически добавляет соль.
func (a *AuthService) Register(ctx context.Context, name, email, password string) (string, error) {
	const op = "service.AuthService.Register"
	logger := a.log.With(slog.String("op", op), slog.String("email", email))
	logger.Info("registering user")

	email = strings.TrimSpace(strings.ToLower(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: please enter a valid email: %w", op, ErrValidation)
	}
	if len(password) < minPasswordLen {
		return "", fmt.Errorf("%s: please enter a strong password: %w", op, ErrPolicyViolation)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user, err := a.userRepo.CreateUser(ctx, &models.User{
		Name:     strings.TrimSpace(name),
		Email:    email,
		PassHash: passHash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			logger.Warn("user already exists")
			return "", fmt.Errorf("%s: user already exists: %w", op, ErrPolicyViolation)
		}
		logger.Error("failed to create user", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	token, err := security.NewToken(ctx, user, a.tokenTTL, a.secret)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user registered", slog.Int64("userID", user.ID))
	return token, nil
}

// Login сравнивает введённый пароль с сохранённым хэшем и выдаёт JWT-токен.
func (a *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	const op = "service.AuthService.Login"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("checking user")

	user, err := a.userRepo.GetUserByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user not found")
			return "", fmt.Errorf("%s: invalid credentials: %w", op, ErrUnauthorized)
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return "", fmt.Errorf("%s: invalid credentials: %w", op, ErrUnauthorized)
	}

	token, err := security.NewToken(ctx, user, a.tokenTTL, a.secret)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Int64("userID", user.ID))
	return token, nil
}

// AdminLogin выдаёт токен с ролью admin. Пароль администратора хранится в конфигурации
// только в виде bcrypt-хэша; без настроенной учётной записи вход невозможен.
func (a *AuthService) AdminLogin(ctx context.Context, email, password string) (string, error) {
	const op = "service.AuthService.AdminLogin"
	logger := a.log.With(slog.String("op", op))

	if a.admin.Email == "" || a.admin.PasswordHash == "" {
		logger.Warn("admin credentials are not configured")
		return "", fmt.Errorf("%s: invalid credentials: %w", op, ErrUnauthorized)
	}

	emailOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(email)), []byte(strings.ToLower(a.admin.Email))) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(a.admin.PasswordHash), []byte(password))
	if !emailOK || passErr != nil {
		logger.Warn("invalid admin credentials")
		return "", fmt.Errorf("%s: invalid credentials: %w", op, ErrUnauthorized)
	}

	token, err := security.NewAdminToken(ctx, a.admin.Email, a.admin.TokenTTL, a.secret)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("admin logged in")
	return token, nil
}
