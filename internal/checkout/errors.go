package checkout

import "errors"

var (
	ErrEmptyCart            = errors.New("cart is empty, nothing to checkout")
	ErrAccountDisabled      = errors.New("business account is disabled")
	ErrInvalidSettlementID  = errors.New("settlement id must be a uuid")
	ErrStockUpdateFailed    = errors.New("failed to update product quantities")
	ErrSaveFailed           = errors.New("failed to save sale record")
	ErrSettlementInProgress = errors.New("settlement is being processed by another request")
	ErrIllegalTransition    = errors.New("illegal transition of settlement status")
)
