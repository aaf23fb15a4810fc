package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/store"
	"github.com/go-chi/chi/v5"
)

// Sessions hands out the caller's tab manager.
type Sessions interface {
	Get(ctx context.Context, userID string) (*cart.Manager, error)
}

type ProductLookup interface {
	Product(ctx context.Context, userID, productID string) (*domain.Product, error)
	BusinessConfig(ctx context.Context, userID string) (*domain.BusinessConfig, error)
}

type TabHandler struct {
	sessions Sessions
	catalog  ProductLookup
	timeout  time.Duration
}

func NewTabHandler(sessions Sessions, catalog ProductLookup, timeout time.Duration) *TabHandler {
	return &TabHandler{
		sessions: sessions,
		catalog:  catalog,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=9999"`
}

type UpdateQuantityRequestDTO struct {
	// zero or less removes the line
	Quantity *int `json:"quantity" validate:"required"`
}

type DiscountRequestDTO struct {
	Type  domain.DiscountType `json:"type" validate:"oneof=flat percentage"`
	Value *float64            `json:"value" validate:"required,gte=0"`
}

type CloseTabResponseDTO struct {
	Tabs        []domain.SaleTab `json:"tabs"`
	ActiveTabID string           `json:"active_tab_id"`
}

// loadSession resolves the caller's manager, writing the error response on failure.
func loadSession(ctx context.Context, w http.ResponseWriter, sessions Sessions) (*cart.Manager, bool) {
	userID := getUserIDFromContext(ctx)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return nil, false
	}
	m, err := sessions.Get(ctx, userID)
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	return m, true
}

// POST /api/v1/tabs
func (h *TabHandler) CreateTab(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}
	respondJSON(w, http.StatusCreated, m.CreateTab())
}

// DELETE /api/v1/tabs/{tab_id}
func (h *TabHandler) CloseTab(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}
	snap, err := m.CloseTab(chi.URLParam(r, "tab_id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, CloseTabResponseDTO{Tabs: snap.Tabs, ActiveTabID: snap.ActiveTabID})
}

// POST /api/v1/tabs/{tab_id}/activate
func (h *TabHandler) ActivateTab(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}
	if err := m.SetActiveTab(chi.URLParam(r, "tab_id")); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m.ActiveTab())
}

// POST /api/v1/tabs/{tab_id}/items
func (h *TabHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	product, err := h.catalog.Product(ctx, m.UserID(), req.ProductID)
	if err != nil {
		handleError(w, err)
		return
	}

	tab, err := m.AddLine(chi.URLParam(r, "tab_id"), *product, req.Quantity)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tab)
}

// PUT /api/v1/tabs/{tab_id}/items/{product_id}
func (h *TabHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	productID := chi.URLParam(r, "product_id")
	current, err := h.catalog.Product(ctx, m.UserID(), productID)
	if err != nil && !errors.Is(err, store.ErrProductNotFound) {
		handleError(w, err)
		return
	}

	tab, err := m.SetLineQuantity(chi.URLParam(r, "tab_id"), productID, *req.Quantity, current)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tab)
}

// DELETE /api/v1/tabs/{tab_id}/items/{product_id}
func (h *TabHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}
	tab, err := m.RemoveLine(chi.URLParam(r, "tab_id"), chi.URLParam(r, "product_id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tab)
}

// PUT /api/v1/tabs/{tab_id}/discount
func (h *TabHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}

	var req DiscountRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	tab, err := m.SetDiscount(chi.URLParam(r, "tab_id"), req.Type, *req.Value)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tab)
}

// POST /api/v1/tabs/{tab_id}/clear
func (h *TabHandler) ClearTab(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}
	tab, err := m.ClearTab(chi.URLParam(r, "tab_id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tab)
}

// GET /api/v1/tabs/{tab_id}/totals
func (h *TabHandler) Totals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}

	business, err := h.catalog.BusinessConfig(ctx, m.UserID())
	if err != nil {
		handleError(w, err)
		return
	}

	totals, err := m.ComputeTotals(chi.URLParam(r, "tab_id"), business.EffectiveTaxRate())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, totals)
}
