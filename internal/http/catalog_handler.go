package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_pos/internal/domain"
)

type CatalogReader interface {
	Search(ctx context.Context, userID, query, category string) ([]domain.Product, error)
	Categories(ctx context.Context, userID string) ([]domain.Category, error)
}

type CatalogHandler struct {
	catalog CatalogReader
	timeout time.Duration
}

func NewCatalogHandler(catalog CatalogReader, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

// GET /api/v1/products?q=&category=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(ctx)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	q := r.URL.Query()
	products, err := h.catalog.Search(ctx, userID, q.Get("q"), q.Get("category"))
	if err != nil {
		handleError(w, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

// GET /api/v1/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(ctx)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	categories, err := h.catalog.Categories(ctx, userID)
	if err != nil {
		handleError(w, err)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	respondJSON(w, http.StatusOK, categories)
}
