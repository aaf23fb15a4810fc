package domain

import "time"

const SaleStatusCompleted = "completed"

type SaleItem struct {
	ProductID string  `json:"product_id" bson:"product_id"`
	Name      string  `json:"name" bson:"name"`
	Price     float64 `json:"price" bson:"price"`
	Quantity  int     `json:"quantity" bson:"quantity"`
	Weight    string  `json:"weight,omitempty" bson:"weight,omitempty"`
	Code      string  `json:"code,omitempty" bson:"code,omitempty"`
}

// SaleRecord is written once per settlement and never mutated afterwards.
type SaleRecord struct {
	ID             string        `json:"id" bson:"_id"`
	CreatedAt      time.Time     `json:"created_at" bson:"created_at"`
	Date           string        `json:"date" bson:"date"`
	Customer       CustomerInfo  `json:"customer" bson:"customer"`
	Items          []SaleItem    `json:"items" bson:"items"`
	Subtotal       float64       `json:"subtotal" bson:"subtotal"`
	Tax            float64       `json:"tax" bson:"tax"`
	TaxRate        float64       `json:"tax_rate" bson:"tax_rate"`
	DiscountAmount float64       `json:"discount_amount" bson:"discount_amount"`
	GrandTotal     float64       `json:"grand_total" bson:"grand_total"`
	PaymentMethod  PaymentMethod `json:"payment_method" bson:"payment_method"`
	PriceType      PriceType     `json:"price_type" bson:"price_type"`
	BusinessName   string        `json:"business_name" bson:"business_name"`
	TabName        string        `json:"tab_name" bson:"tab_name"`
	UserID         string        `json:"user_id" bson:"user_id"`
	Status         string        `json:"status" bson:"status"`
}

// SaleDate is the UTC calendar day used by the per-user by-date index.
func SaleDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

const EventSaleCompleted = "sale.completed"

// SaleCompletedEvent is the outbox payload published for every settled sale.
type SaleCompletedEvent struct {
	SaleID         string        `json:"sale_id"`
	UserID         string        `json:"user_id"`
	Date           string        `json:"date"`
	ItemCount      int           `json:"item_count"`
	Subtotal       float64       `json:"subtotal"`
	Tax            float64       `json:"tax"`
	DiscountAmount float64       `json:"discount_amount"`
	GrandTotal     float64       `json:"grand_total"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	CompletedAt    time.Time     `json:"completed_at"`
}

func NewSaleCompletedEvent(s SaleRecord, completedAt time.Time) SaleCompletedEvent {
	count := 0
	for _, it := range s.Items {
		count += it.Quantity
	}
	return SaleCompletedEvent{
		SaleID:         s.ID,
		UserID:         s.UserID,
		Date:           s.Date,
		ItemCount:      count,
		Subtotal:       s.Subtotal,
		Tax:            s.Tax,
		DiscountAmount: s.DiscountAmount,
		GrandTotal:     s.GrandTotal,
		PaymentMethod:  s.PaymentMethod,
		CompletedAt:    completedAt,
	}
}
