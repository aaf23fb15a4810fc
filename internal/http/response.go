package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/checkout"
	"github.com/fjod/go_pos/internal/consumer"
	"github.com/fjod/go_pos/internal/ledger"
	"github.com/fjod/go_pos/internal/store"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// decodeBody reads a JSON body into dst and runs its validate tags.
// It writes the error response itself and reports whether the handler may go on.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "request validation failed",
			Code:    "validation_failed",
			Details: err.Error(),
		})
		return false
	}
	return true
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{cart.ErrTabNotFound, http.StatusNotFound, "tab_not_found"},
	{cart.ErrLineNotFound, http.StatusNotFound, "line_not_found"},
	{store.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{store.ErrSaleNotFound, http.StatusNotFound, "sale_not_found"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{cart.ErrInvalidDiscount, http.StatusBadRequest, "invalid_discount"},
	{cart.ErrInvalidPaymentMethod, http.StatusBadRequest, "invalid_payment_method"},
	{cart.ErrInvalidPriceType, http.StatusBadRequest, "invalid_price_type"},
	{checkout.ErrInvalidSettlementID, http.StatusBadRequest, "invalid_settlement_id"},
	{cart.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
	{cart.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{checkout.ErrSettlementInProgress, http.StatusConflict, "settlement_in_progress"},
	{ledger.ErrSettlementConflict, http.StatusConflict, "settlement_conflict"},
	{checkout.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
	{checkout.ErrAccountDisabled, http.StatusForbidden, "account_disabled"},
	{checkout.ErrStockUpdateFailed, http.StatusServiceUnavailable, "stock_update_failed"},
	{checkout.ErrSaveFailed, http.StatusInternalServerError, "save_failed"},
	{consumer.ErrNoSales, http.StatusNotFound, "no_sales"},
}

// handleError converts domain errors to HTTP status codes
func handleError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			respondError(w, m.status, m.code, m.target.Error())
			return
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
		return
	}
	zap.L().Error("unhandled error", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
