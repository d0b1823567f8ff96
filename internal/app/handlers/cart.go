package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/storefront/internal/service"
)

type CartAddRequest struct {
	ItemID string `json:"itemId" validate:"required"`
	Size   string `json:"size" validate:"required"`
}

type CartUpdateRequest struct {
	ItemID   string `json:"itemId" validate:"required"`
	Size     string `json:"size" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// CartAddHandler – POST /api/cart/add
func CartAddHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CartAddHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userIDFromRequest(w, r, logger)
		if !ok {
			return
		}
		var req CartAddRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		cart, err := cartService.AddToCart(r.Context(), userID, req.ItemID, req.Size)
		if err != nil {
			writeError(w, logger, "failed to add to cart", err)
			return
		}
		writeOK(w, logger, "Added To Cart", map[string]interface{}{"cartData": cart})
	}
}

// CartUpdateHandler – POST /api/cart/update
func CartUpdateHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CartUpdateHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userIDFromRequest(w, r, logger)
		if !ok {
			return
		}
		var req CartUpdateRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		cart, err := cartService.UpdateCart(r.Context(), userID, req.ItemID, req.Size, req.Quantity)
		if err != nil {
			writeError(w, logger, "failed to update cart", err)
			return
		}
		writeOK(w, logger, "Cart Updated", map[string]interface{}{"cartData": cart})
	}
}

// CartGetHandler – POST /api/cart/get
func CartGetHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CartGetHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userIDFromRequest(w, r, logger)
		if !ok {
			return
		}

		cart, err := cartService.GetCart(r.Context(), userID)
		if err != nil {
			writeError(w, logger, "failed to get cart", err)
			return
		}
		writeOK(w, logger, "", map[string]interface{}{"cartData": cart})
	}
}
