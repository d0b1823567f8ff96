package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/storefront/internal/service"
)

// RegisterRequest запрос регистрации; сила пароля проверяется в сервисе
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthRequest представляет структуру запроса для аутентификации с тегами валидации
type AuthRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterHandler – POST /api/user/register
func RegisterHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RegisterHandler"
		logger := log.With(slog.String("op", op))

		var req RegisterRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		token, err := authService.Register(r.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			writeError(w, logger, "registration failed", err)
			return
		}
		writeOK(w, logger, "", map[string]interface{}{"token": token})
	}
}

// AuthHandler – HTTP-обработчик для входа пользователя, POST /api/user/login
func AuthHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AuthHandler"
		logger := log.With(slog.String("op", op))

		var req AuthRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		token, err := authService.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, logger, "login failed", err)
			return
		}
		writeOK(w, logger, "", map[string]interface{}{"token": token})
	}
}

// AdminAuthHandler выдаёт токен администратора, POST /api/user/admin
func AdminAuthHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminAuthHandler"
		logger := log.With(slog.String("op", op))

		var req AuthRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		token, err := authService.AdminLogin(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, logger, "admin login failed", err)
			return
		}
		writeOK(w, logger, "", map[string]interface{}{"token": token})
	}
}
