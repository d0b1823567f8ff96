package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linemk/storefront/internal/domain/models"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	// AdminSubject – sub административного токена, не пересекается с числовыми id пользователей
	AdminSubject = "admin"
)

var ErrEmptySecret = errors.New("jwt secret is empty")

// NewToken генерирует JWT-токен для указанного пользователя с заданным временем жизни.
func NewToken(ctx context.Context, user *models.User, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   fmt.Sprintf("%d", user.ID),
		"email": user.Email,
		"role":  RoleUser,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}
	return sign(claims, secret)
}

// NewAdminToken выдаёт токен администратора с ролью admin и ограниченным сроком жизни
func NewAdminToken(ctx context.Context, email string, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   AdminSubject,
		"email": email,
		"role":  RoleAdmin,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}
	return sign(claims, secret)
}

func sign(claims jwt.MapClaims, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
