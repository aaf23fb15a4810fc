package checkout

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/ledger"
	"github.com/fjod/go_pos/internal/store"
)

type mockCatalog struct {
	mu          sync.RWMutex
	business    domain.BusinessConfig
	err         error
	invalidated int
}

func (m *mockCatalog) BusinessConfig(_ context.Context, userID string) (*domain.BusinessConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	b := m.business
	b.UserID = userID
	return &b, nil
}

func (m *mockCatalog) Invalidate(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated++
}

// mockInventory applies each decrement at most once per settlement id, like the store does.
type mockInventory struct {
	mu             sync.RWMutex
	stock          map[string]int
	sold           map[string]int
	applied        map[string]bool
	soldApplied    map[string]bool
	failFor        map[string]bool
	deleted        map[string]bool
	decrementCalls int
}

func newMockInventory(stock map[string]int) *mockInventory {
	return &mockInventory{
		stock:       stock,
		sold:        make(map[string]int),
		applied:     make(map[string]bool),
		soldApplied: make(map[string]bool),
		failFor:     make(map[string]bool),
		deleted:     make(map[string]bool),
	}
}

func (m *mockInventory) DecrementStock(_ context.Context, _, productID string, quantity int, settlementID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decrementCalls++
	if m.failFor[productID] {
		return errors.New("product store unavailable")
	}
	if m.deleted[productID] {
		return store.ErrProductNotFound
	}
	key := settlementID + "/" + productID
	if m.applied[key] {
		return nil
	}
	m.applied[key] = true
	m.stock[productID] = max(0, m.stock[productID]-quantity)
	return nil
}

func (m *mockInventory) IncrementSold(_ context.Context, _, productID string, quantity int, settlementID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted[productID] {
		return store.ErrProductNotFound
	}
	key := settlementID + "/" + productID
	if m.soldApplied[key] {
		return nil
	}
	m.soldApplied[key] = true
	m.sold[productID] += quantity
	return nil
}

func (m *mockInventory) Stock(productID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stock[productID]
}

// Delete drops the product from the catalog.
func (m *mockInventory) Delete(productID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted[productID] = true
	delete(m.stock, productID)
}

func (m *mockInventory) SetFail(productID string, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[productID] = fail
}

type mockSales struct {
	mu        sync.RWMutex
	sales     map[string]domain.SaleRecord
	saveErr   error
	saveCalls int
}

func newMockSales() *mockSales {
	return &mockSales{sales: make(map[string]domain.SaleRecord)}
}

func (m *mockSales) SaveSale(_ context.Context, sale *domain.SaleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sales[sale.ID] = *sale
	return nil
}

func (m *mockSales) GetSale(_ context.Context, userID, saleID string) (*domain.SaleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sales[saleID]
	if !ok || s.UserID != userID {
		return nil, store.ErrSaleNotFound
	}
	return &s, nil
}

func (m *mockSales) ListSalesByDate(_ context.Context, userID, date string) ([]domain.SaleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.SaleRecord
	for _, s := range m.sales {
		if s.UserID == userID && s.Date == date {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockSales) SetSaveErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

type mockLedger struct {
	mu          sync.RWMutex
	settlements map[string]*ledger.Settlement
	outbox      [][]byte
	completeErr error
}

func newMockLedger() *mockLedger {
	return &mockLedger{settlements: make(map[string]*ledger.Settlement)}
}

func (m *mockLedger) Begin(_ context.Context, s *ledger.Settlement) (*ledger.Settlement, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.settlements[s.ID]; ok {
		if existing.UserID != s.UserID || existing.TabID != s.TabID {
			return nil, false, ledger.ErrSettlementConflict
		}
		existing.Attempts++
		cp := *existing
		return &cp, false, nil
	}
	created := &ledger.Settlement{ID: s.ID, UserID: s.UserID, TabID: s.TabID, Status: domain.SettlementInitiated, Attempts: 1}
	m.settlements[s.ID] = created
	cp := *created
	return &cp, true, nil
}

func (m *mockLedger) Advance(_ context.Context, id string, from, to domain.SettlementStatus, sale []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[id]
	if !ok || s.Status != from {
		return ledger.ErrStaleStatus
	}
	s.Status = to
	s.LastError = ""
	if sale != nil {
		s.Sale = sale
	}
	return nil
}

func (m *mockLedger) MarkFailed(_ context.Context, id string, from domain.SettlementStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[id]
	if !ok || s.Status != from {
		return ledger.ErrStaleStatus
	}
	s.Status = domain.SettlementFailed
	s.LastError = reason
	return nil
}

func (m *mockLedger) Complete(_ context.Context, id string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completeErr != nil {
		return m.completeErr
	}
	s, ok := m.settlements[id]
	if !ok || s.Status != domain.SettlementRecorded {
		return ledger.ErrStaleStatus
	}
	s.Status = domain.SettlementCompleted
	m.outbox = append(m.outbox, payload)
	return nil
}

func (m *mockLedger) Status(id string) domain.SettlementStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.settlements[id]; ok {
		return s.Status
	}
	return ""
}

func (m *mockLedger) Outbox() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([][]byte(nil), m.outbox...)
}

type mockMirror struct {
	mu        sync.RWMutex
	forgotten []string
	err       error
}

func (m *mockMirror) ForgetNow(_ context.Context, _, tabID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forgotten = append(m.forgotten, tabID)
	return m.err
}

func (m *mockMirror) Forgotten() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.forgotten...)
}
