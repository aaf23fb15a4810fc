package cart

import "errors"

var (
	ErrTabNotFound          = errors.New("tab not found")
	ErrLineNotFound         = errors.New("line not found in cart")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrOutOfStock           = errors.New("product is out of stock")
	ErrInsufficientStock    = errors.New("insufficient stock for requested quantity")
	ErrInvalidDiscount      = errors.New("discount must be a non-negative flat or percentage value")
	ErrInvalidPaymentMethod = errors.New("unknown payment method")
	ErrInvalidPriceType     = errors.New("unknown price type")
)
