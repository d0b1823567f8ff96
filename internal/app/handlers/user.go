package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/storefront/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront/internal/lib/api"
	"github.com/linemk/storefront/internal/service"
)

// userIDFromRequest извлекает идентификатор пользователя, установленный JWT-middleware
func userIDFromRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (int64, bool) {
	userID, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		logger.Error("userID not found in context")
		api.Fail(w, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	return userID, true
}

// ProfileHandler – POST /api/user/profile
func ProfileHandler(log *slog.Logger, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProfileHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userIDFromRequest(w, r, logger)
		if !ok {
			return
		}

		user, err := userService.Profile(r.Context(), userID)
		if err != nil {
			writeError(w, logger, "failed to get profile", err)
			return
		}
		writeOK(w, logger, "", map[string]interface{}{"user": user})
	}
}
