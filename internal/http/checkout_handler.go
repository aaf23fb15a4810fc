package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_pos/internal/checkout"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Checkout interface {
	InitiateCheckout(ctx context.Context, sess checkout.Session, tabID string) (*checkout.Confirmation, error)
	CancelCheckout(userID, tabID string)
	Settle(ctx context.Context, sess checkout.Session, req checkout.SettleRequest) (*checkout.Result, error)
}

type CheckoutHandler struct {
	sessions Sessions
	checkout Checkout
	drafts   CustomerDrafts
	logger   *zap.Logger
	timeout  time.Duration
}

func NewCheckoutHandler(sessions Sessions, co Checkout, drafts CustomerDrafts, logger *zap.Logger, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		checkout: co,
		drafts:   drafts,
		logger:   logger,
		timeout:  timeout,
	}
}

type SettleRequestDTO struct {
	SettlementID    string             `json:"settlement_id" validate:"required,uuid"`
	CollectCustomer bool               `json:"collect_customer"`
	Customer        CustomerRequestDTO `json:"customer"`
}

// POST /api/v1/tabs/{tab_id}/checkout
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}

	conf, err := h.checkout.InitiateCheckout(ctx, m, chi.URLParam(r, "tab_id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, conf)
}

// DELETE /api/v1/tabs/{tab_id}/checkout
func (h *CheckoutHandler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	h.checkout.CancelCheckout(userID, chi.URLParam(r, "tab_id"))
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/tabs/{tab_id}/settle
func (h *CheckoutHandler) Settle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := loadSession(ctx, w, h.sessions)
	if !ok {
		return
	}

	var req SettleRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.checkout.Settle(ctx, m, checkout.SettleRequest{
		TabID:           chi.URLParam(r, "tab_id"),
		SettlementID:    req.SettlementID,
		CollectCustomer: req.CollectCustomer,
		Customer: domain.CustomerInfo{
			Name:  req.Customer.Name,
			Phone: req.Customer.Phone,
			Email: req.Customer.Email,
		},
		Cashier: getCashierFromContext(ctx),
	})
	if err != nil {
		h.logger.Warn("settlement failed",
			zap.String("request_id", getRequestID(ctx)),
			zap.String("settlement_id", req.SettlementID),
			zap.Error(err))
		handleError(w, err)
		return
	}

	if err := h.drafts.SaveCustomerDraft(ctx, m.UserID(), domain.CustomerInfo{}); err != nil {
		h.logger.Warn("failed to reset customer draft", zap.Error(err))
	}
	respondJSON(w, http.StatusOK, res)
}
