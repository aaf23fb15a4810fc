package domain

type DiscountType string

const (
	DiscountFlat       DiscountType = "flat"
	DiscountPercentage DiscountType = "percentage"
)

func (d DiscountType) Valid() bool {
	return d == DiscountFlat || d == DiscountPercentage
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
	PaymentUPI  PaymentMethod = "upi"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentUPI:
		return true
	}
	return false
}

type PriceType string

const (
	PriceRegular    PriceType = "regular"
	PriceWholesaler PriceType = "wholesaler"
	PriceAgent      PriceType = "agent"
	PriceAgent1     PriceType = "agent1"
)

func (p PriceType) Valid() bool {
	switch p {
	case PriceRegular, PriceWholesaler, PriceAgent, PriceAgent1:
		return true
	}
	return false
}

type TabStatus string

const (
	TabActive    TabStatus = "active"
	TabCompleted TabStatus = "completed"
)

// CartLine freezes the unit price resolved when the product was added.
type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Code      string  `json:"code,omitempty"`
	Weight    string  `json:"weight,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type SaleTab struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Cart          []CartLine    `json:"cart"`
	DiscountType  DiscountType  `json:"discount_type"`
	DiscountValue float64       `json:"discount_value"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	PriceType     PriceType     `json:"price_type,omitempty"`
	Status        TabStatus     `json:"status"`
}

// Clone returns a deep copy so callers never share the cart slice.
func (t SaleTab) Clone() SaleTab {
	c := t
	if t.Cart != nil {
		c.Cart = make([]CartLine, len(t.Cart))
		copy(c.Cart, t.Cart)
	}
	return c
}

func (t SaleTab) LineFor(productID string) (CartLine, bool) {
	for _, l := range t.Cart {
		if l.ProductID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	Tax            float64 `json:"tax"`
	TaxRate        float64 `json:"tax_rate"`
	DiscountAmount float64 `json:"discount_amount"`
	Total          float64 `json:"total"`
}

// Snapshot is the full tab set of one user as handed to the persistence layer.
type Snapshot struct {
	UserID      string    `json:"user_id"`
	Tabs        []SaleTab `json:"tabs"`
	ActiveTabID string    `json:"active_tab_id"`
}

type CustomerInfo struct {
	Name  string `json:"name" bson:"name"`
	Phone string `json:"phone" bson:"phone"`
	Email string `json:"email,omitempty" bson:"email,omitempty"`
}

func (c CustomerInfo) IsEmpty() bool {
	return c.Name == "" && c.Phone == "" && c.Email == ""
}
