package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/domain"
)

// CustomerDrafts keeps the half-typed customer details of a session.
type CustomerDrafts interface {
	SaveCustomerDraft(ctx context.Context, userID string, info domain.CustomerInfo) error
	LoadCustomerDraft(ctx context.Context, userID string) (domain.CustomerInfo, error)
}

type SessionHandler struct {
	sessions Sessions
	drafts   CustomerDrafts
	timeout  time.Duration
}

func NewSessionHandler(sessions Sessions, drafts CustomerDrafts, timeout time.Duration) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		drafts:   drafts,
		timeout:  timeout,
	}
}

type SessionResponseDTO struct {
	Tabs          []domain.SaleTab     `json:"tabs"`
	ActiveTabID   string               `json:"active_tab_id"`
	PaymentMethod domain.PaymentMethod `json:"payment_method,omitempty"`
	PriceType     domain.PriceType     `json:"price_type,omitempty"`
	Ready         bool                 `json:"ready"`
}

type PaymentMethodRequestDTO struct {
	Method domain.PaymentMethod `json:"method" validate:"oneof=cash card upi"`
}

type PriceTypeRequestDTO struct {
	PriceType domain.PriceType `json:"price_type" validate:"oneof=regular wholesaler agent agent1"`
}

type CustomerRequestDTO struct {
	Name  string `json:"name" validate:"max=120"`
	Phone string `json:"phone" validate:"max=20"`
	Email string `json:"email" validate:"omitempty,email"`
}

// GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse(m))
}

// POST /api/v1/session/payment-method
func (h *SessionHandler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}

	var req PaymentMethodRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if err := m.SelectPaymentMethod(req.Method); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse(m))
}

// POST /api/v1/session/price-type
func (h *SessionHandler) SelectPriceType(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}

	var req PriceTypeRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if err := m.SelectPriceType(req.PriceType); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse(m))
}

// GET /api/v1/session/customer
func (h *SessionHandler) GetCustomerDraft(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(ctx)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	info, err := h.drafts.LoadCustomerDraft(ctx, userID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// PUT /api/v1/session/customer
func (h *SessionHandler) SaveCustomerDraft(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(ctx)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CustomerRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	info := domain.CustomerInfo{Name: req.Name, Phone: req.Phone, Email: req.Email}
	if err := h.drafts.SaveCustomerDraft(ctx, userID, info); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func sessionResponse(m *cart.Manager) SessionResponseDTO {
	snap := m.Snapshot()
	method, priceType := m.Selections()
	return SessionResponseDTO{
		Tabs:          snap.Tabs,
		ActiveTabID:   snap.ActiveTabID,
		PaymentMethod: method,
		PriceType:     priceType,
		Ready:         m.Ready(),
	}
}
