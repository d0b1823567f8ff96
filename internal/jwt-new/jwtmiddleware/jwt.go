package jwtmiddleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	security "github.com/linemk/storefront/internal/jwt-new"
	"github.com/linemk/storefront/internal/lib/api"
)

type contextKey string

const UserIDKey contextKey = "userID"

var (
	errMissingToken = errors.New("missing token")
	errTokenFormat  = errors.New("invalid token format")
	errInvalidToken = errors.New("invalid token")
)

// NewJWTMiddleware проверяет пользовательский токен и кладёт userID в контекст запроса.
func NewJWTMiddleware(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := parseBearer(r, secret)
			if err != nil {
				api.Fail(w, http.StatusUnauthorized, err.Error())
				return
			}

			role, _ := claims["role"].(string)
			if role != security.RoleUser {
				api.Fail(w, http.StatusUnauthorized, "invalid token claims: user role required")
				return
			}

			// Извлекаем идентификатор пользователя из поля "sub"
			sub, ok := claims["sub"].(string)
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "invalid token claims: sub not found")
				return
			}
			userID, err := strconv.ParseInt(sub, 10, 64)
			if err != nil {
				api.Fail(w, http.StatusUnauthorized, "invalid token claims: invalid user id")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewAdminMiddleware пропускает только токены с ролью admin.
func NewAdminMiddleware(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := parseBearer(r, secret)
			if err != nil {
				api.Fail(w, http.StatusUnauthorized, err.Error())
				return
			}
			role, _ := claims["role"].(string)
			sub, _ := claims["sub"].(string)
			if role != security.RoleAdmin || sub != security.AdminSubject {
				api.Fail(w, http.StatusUnauthorized, "not authorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseBearer извлекает токен из заголовка Authorization (формат: "Bearer <token>") и проверяет подпись и срок
func parseBearer(r *http.Request, secret string) (jwt.MapClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errTokenFormat
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidToken
	}
	return claims, nil
}

// FromContext извлекает userID из контекста.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok
}
