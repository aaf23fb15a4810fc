package domain

type Product struct {
	ID              string  `json:"id" bson:"_id"`
	UserID          string  `json:"-" bson:"user_id"`
	Name            string  `json:"name" bson:"name"`
	Code            string  `json:"code,omitempty" bson:"code,omitempty"`
	CategoryID      string  `json:"category_id,omitempty" bson:"category_id,omitempty"`
	Quantity        *int    `json:"quantity,omitempty" bson:"quantity,omitempty"`
	Price           float64 `json:"price" bson:"price"`
	RegularPrice    float64 `json:"regular_price,omitempty" bson:"regular_price,omitempty"`
	WholesalerPrice float64 `json:"wholesaler_price,omitempty" bson:"wholesaler_price,omitempty"`
	AgentPrice      float64 `json:"agent_price,omitempty" bson:"agent_price,omitempty"`
	Agent1Price     float64 `json:"agent1_price,omitempty" bson:"agent1_price,omitempty"`
	UseSamePrice    bool    `json:"use_same_price" bson:"use_same_price"`
	Weight          string  `json:"weight,omitempty" bson:"weight,omitempty"`
	ImageURL        string  `json:"image_url,omitempty" bson:"image_url,omitempty"`
	Sales           int     `json:"sales" bson:"sales"`
}

// Stock is the quantity on hand; a product without a counter has none.
func (p Product) Stock() int {
	if p.Quantity == nil {
		return 0
	}
	return *p.Quantity
}

type Category struct {
	ID     string `json:"id" bson:"_id"`
	UserID string `json:"-" bson:"user_id"`
	Name   string `json:"name" bson:"name"`
}

const DefaultTaxRate = 10.0

type BusinessConfig struct {
	UserID    string   `json:"user_id" bson:"_id"`
	Name      string   `json:"name" bson:"name"`
	Address   string   `json:"address" bson:"address"`
	Phone     string   `json:"phone" bson:"phone"`
	GSTNumber string   `json:"gst_number,omitempty" bson:"gst_number,omitempty"`
	UPIID     string   `json:"upi_id,omitempty" bson:"upi_id,omitempty"`
	TaxRate   *float64 `json:"tax_rate,omitempty" bson:"tax_rate,omitempty"`
	Active    *bool    `json:"active,omitempty" bson:"active,omitempty"`
}

func (b BusinessConfig) EffectiveTaxRate() float64 {
	if b.TaxRate == nil {
		return DefaultTaxRate
	}
	return *b.TaxRate
}

// IsActive treats a missing flag as active; only an explicit false disables the account.
func (b BusinessConfig) IsActive() bool {
	return b.Active == nil || *b.Active
}
