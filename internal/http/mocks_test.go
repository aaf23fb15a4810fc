package http

import (
	"context"
	"sync"

	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/checkout"
	"github.com/fjod/go_pos/internal/consumer"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/store"
)

type mockSessions struct {
	mu       sync.RWMutex
	managers map[string]*cart.Manager
}

func newMockSessions() *mockSessions {
	return &mockSessions{managers: make(map[string]*cart.Manager)}
}

func (m *mockSessions) Get(_ context.Context, userID string) (*cart.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mgr, ok := m.managers[userID]
	if !ok {
		mgr = cart.NewManager(userID, domain.Snapshot{}, nil)
		m.managers[userID] = mgr
	}
	return mgr, nil
}

type mockCatalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	business domain.BusinessConfig
}

func (m *mockCatalog) Product(_ context.Context, _, productID string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return &p, nil
}

func (m *mockCatalog) BusinessConfig(context.Context, string) (*domain.BusinessConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b := m.business
	return &b, nil
}

func (m *mockCatalog) Search(_ context.Context, _, query, _ string) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Product
	for _, p := range m.products {
		if query == "" || p.Code == query {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockCatalog) Categories(context.Context, string) ([]domain.Category, error) {
	return nil, nil
}

type mockDrafts struct {
	mu     sync.RWMutex
	drafts map[string]domain.CustomerInfo
	saves  int
}

func newMockDrafts() *mockDrafts {
	return &mockDrafts{drafts: make(map[string]domain.CustomerInfo)}
}

func (m *mockDrafts) SaveCustomerDraft(_ context.Context, userID string, info domain.CustomerInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[userID] = info
	m.saves++
	return nil
}

func (m *mockDrafts) LoadCustomerDraft(_ context.Context, userID string) (domain.CustomerInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drafts[userID], nil
}

type mockCheckout struct {
	mu        sync.RWMutex
	settleErr error
	requests  []checkout.SettleRequest
	cancelled []string
}

func (m *mockCheckout) InitiateCheckout(_ context.Context, sess checkout.Session, tabID string) (*checkout.Confirmation, error) {
	tab, err := sess.Tab(tabID)
	if err != nil {
		return nil, err
	}
	if len(tab.Cart) == 0 {
		return nil, checkout.ErrEmptyCart
	}
	return &checkout.Confirmation{SettlementID: "5f0c6f1e-8a43-4d55-9a57-3c1d7b0f9e21", TabID: tabID, Lines: len(tab.Cart)}, nil
}

func (m *mockCheckout) CancelCheckout(_, tabID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, tabID)
}

func (m *mockCheckout) Settle(_ context.Context, sess checkout.Session, req checkout.SettleRequest) (*checkout.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.settleErr != nil {
		return nil, m.settleErr
	}
	if _, err := sess.MarkSettled(req.TabID); err != nil {
		return nil, err
	}
	return &checkout.Result{
		Sale:        domain.SaleRecord{ID: req.SettlementID, UserID: sess.UserID()},
		ReceiptHTML: "<html>receipt</html>",
	}, nil
}

type mockSales struct {
	mu    sync.RWMutex
	dates []string
}

func (m *mockSales) SalesByDate(_ context.Context, _, date string) ([]domain.SaleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dates = append(m.dates, date)
	return nil, nil
}

func (m *mockSales) Receipt(_ context.Context, _, saleID, cashier string) (string, error) {
	if saleID == "missing" {
		return "", store.ErrSaleNotFound
	}
	return "<html>" + saleID + " by " + cashier + "</html>", nil
}

type mockTotals struct {
	summary *consumer.DailySummary
}

func (m *mockTotals) Summary(_ context.Context, _, date string) (*consumer.DailySummary, error) {
	if m.summary == nil {
		return nil, consumer.ErrNoSales
	}
	s := *m.summary
	s.Date = date
	return &s, nil
}

type mockPrinter struct{}

func (mockPrinter) Print(_ context.Context, html string) ([]byte, error) {
	return []byte("%PDF-" + html), nil
}
