package checkout

import (
	"context"
	"fmt"

	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/receipt"
)

// buildSale produces the record as stored: customer identity, item text,
// business name and tab name are encrypted.
func (s *Service) buildSale(userID string, tab domain.SaleTab, business *domain.BusinessConfig, req SettleRequest) (*domain.SaleRecord, error) {
	now := s.now().UTC()
	totals := cart.ComputeTotals(tab, business.EffectiveTaxRate())

	customer := domain.CustomerInfo{}
	if req.CollectCustomer {
		customer = req.Customer
	}

	payment := tab.PaymentMethod
	if payment == "" {
		payment = domain.PaymentCash
	}
	priceType := tab.PriceType
	if priceType == "" {
		priceType = domain.PriceRegular
	}

	sale := &domain.SaleRecord{
		ID:             req.SettlementID,
		CreatedAt:      now,
		Date:           domain.SaleDate(now),
		Items:          make([]domain.SaleItem, 0, len(tab.Cart)),
		Subtotal:       totals.Subtotal,
		Tax:            totals.Tax,
		TaxRate:        totals.TaxRate,
		DiscountAmount: totals.DiscountAmount,
		GrandTotal:     totals.Total,
		PaymentMethod:  payment,
		PriceType:      priceType,
		UserID:         userID,
		Status:         domain.SaleStatusCompleted,
	}

	enc := newSealer(s)
	sale.Customer = domain.CustomerInfo{
		Name:  enc.seal(customer.Name),
		Phone: enc.seal(customer.Phone),
		Email: enc.seal(customer.Email),
	}
	sale.BusinessName = enc.seal(business.Name)
	sale.TabName = enc.seal(tab.Name)
	for _, l := range tab.Cart {
		sale.Items = append(sale.Items, domain.SaleItem{
			ProductID: l.ProductID,
			Name:      enc.seal(l.Name),
			Code:      enc.seal(l.Code),
			Weight:    enc.seal(l.Weight),
			Price:     l.Price,
			Quantity:  l.Quantity,
		})
	}
	if enc.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, enc.err)
	}
	return sale, nil
}

func (s *Service) decryptSale(sale domain.SaleRecord) domain.SaleRecord {
	out := sale
	out.Customer = domain.CustomerInfo{
		Name:  s.cipher.Decrypt(sale.Customer.Name),
		Phone: s.cipher.Decrypt(sale.Customer.Phone),
		Email: s.cipher.Decrypt(sale.Customer.Email),
	}
	out.BusinessName = s.cipher.Decrypt(sale.BusinessName)
	out.TabName = s.cipher.Decrypt(sale.TabName)
	out.Items = make([]domain.SaleItem, len(sale.Items))
	for i, it := range sale.Items {
		it.Name = s.cipher.Decrypt(it.Name)
		it.Code = s.cipher.Decrypt(it.Code)
		it.Weight = s.cipher.Decrypt(it.Weight)
		out.Items[i] = it
	}
	return out
}

func (s *Service) Sale(ctx context.Context, userID, saleID string) (*domain.SaleRecord, error) {
	sale, err := s.sales.GetSale(ctx, userID, saleID)
	if err != nil {
		return nil, err
	}
	plain := s.decryptSale(*sale)
	return &plain, nil
}

// SalesByDate lists a user's sales for a UTC day (YYYY-MM-DD), oldest first.
func (s *Service) SalesByDate(ctx context.Context, userID, date string) ([]domain.SaleRecord, error) {
	sales, err := s.sales.ListSalesByDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SaleRecord, len(sales))
	for i, sale := range sales {
		out[i] = s.decryptSale(sale)
	}
	return out, nil
}

// Receipt re-renders the receipt of a stored sale.
func (s *Service) Receipt(ctx context.Context, userID, saleID, cashier string) (string, error) {
	sale, err := s.Sale(ctx, userID, saleID)
	if err != nil {
		return "", err
	}
	business, err := s.catalog.BusinessConfig(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load business config: %w", err)
	}
	return s.renderer.Render(receipt.Document{Sale: *sale, Business: *business, Cashier: cashier})
}

// sealer keeps the first encryption error so a record is never stored half in plaintext.
type sealer struct {
	s   *Service
	err error
}

func newSealer(s *Service) *sealer {
	return &sealer{s: s}
}

func (e *sealer) seal(plain string) string {
	if e.err != nil {
		return ""
	}
	out, err := e.s.cipher.Encrypt(plain)
	if err != nil {
		e.err = err
		return ""
	}
	return out
}
