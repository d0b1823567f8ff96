package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/storefront/internal/service"
)

// ProductListHandler – GET /api/product/list, публичный каталог
func ProductListHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProductListHandler"
		logger := log.With(slog.String("op", op))

		products, err := productService.ListProducts(r.Context())
		if err != nil {
			writeError(w, logger, "failed to list products", err)
			return
		}
		writeOK(w, logger, "", map[string]interface{}{"products": products})
	}
}
