package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/linemk/storefront/internal/lib/api"
	"github.com/linemk/storefront/internal/service"
)

var validate = validator.New()

const maxBodyBytes = 1 << 20

// decodeAndValidate разбирает тело запроса и проверяет теги validate.
// При ошибке ответ уже записан, обработчику остаётся выйти.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Error("invalid request: decoding error", slog.Any("error", err))
		api.Fail(w, http.StatusBadRequest, "invalid request")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		logger.Error("invalid request: validation error", slog.Any("error", err))
		api.Fail(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "validation error"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

// statusFor сопоставляет вид ошибки сервиса с HTTP-статусом
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPolicyViolation), errors.Is(err, service.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, service.ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError пишет конверт с ошибкой. Внутренние ошибки логируются целиком,
// клиент получает только общее сообщение.
func writeError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, slog.Any("error", err))
		api.Fail(w, status, "internal server error")
		return
	}
	logger.Warn(msg, slog.Any("error", err))
	api.Fail(w, status, publicMessage(err))
}

// publicMessage убирает из текста ошибки op-префикс и название вида ошибки:
// "service.X.Y: amount mismatch: validation error" -> "amount mismatch"
func publicMessage(err error) string {
	parts := strings.Split(err.Error(), ": ")
	if len(parts) > 0 && strings.HasPrefix(parts[0], "service.") {
		parts = parts[1:]
	}
	if len(parts) > 1 {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return "request failed"
	}
	return strings.Join(parts, ": ")
}

func writeOK(w http.ResponseWriter, logger *slog.Logger, message string, payload map[string]interface{}) {
	if err := api.JSON(w, http.StatusOK, api.OK(message, payload)); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}
