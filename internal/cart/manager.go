// Package cart holds the in-memory sale tabs of one checkout station.
package cart

import (
	"fmt"
	"sync"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/pricing"
	"github.com/google/uuid"
)

// Mirror is told about every change of the tab set. It is called with the
// manager lock held, so implementations must not call back into the Manager.
type Mirror interface {
	TabsChanged(snapshot domain.Snapshot)
	TabClosed(userID, tabID string)
}

type nopMirror struct{}

func (nopMirror) TabsChanged(domain.Snapshot) {}
func (nopMirror) TabClosed(string, string)    {}

// Manager owns the tabs of one user. At least one tab always exists.
type Manager struct {
	mu        sync.RWMutex
	userID    string
	tabs      []domain.SaleTab
	activeID  string
	payment   domain.PaymentMethod
	priceType domain.PriceType
	mirror    Mirror
	newID     func() string
}

type Option func(*Manager)

func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// NewManager restores tabs from a persisted snapshot. Payment method and price
// type are never restored, so a fresh session starts unselected.
func NewManager(userID string, restored domain.Snapshot, mirror Mirror, opts ...Option) *Manager {
	if mirror == nil {
		mirror = nopMirror{}
	}
	m := &Manager{
		userID: userID,
		mirror: mirror,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, t := range restored.Tabs {
		t = t.Clone()
		if t.Status == "" {
			t.Status = domain.TabActive
		}
		if !t.DiscountType.Valid() {
			t.DiscountType = domain.DiscountFlat
		}
		m.tabs = append(m.tabs, t)
	}
	if len(m.tabs) == 0 {
		m.tabs = []domain.SaleTab{m.blankTab(tabName(0))}
	}

	m.activeID = m.tabs[0].ID
	if m.indexOf(restored.ActiveTabID) >= 0 {
		m.activeID = restored.ActiveTabID
	}
	return m
}

func (m *Manager) UserID() string {
	return m.userID
}

func (m *Manager) Snapshot() domain.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) Tab(tabID string) (domain.SaleTab, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.indexOf(tabID)
	if i < 0 {
		return domain.SaleTab{}, ErrTabNotFound
	}
	return m.tabs[i].Clone(), nil
}

func (m *Manager) ActiveTab() domain.SaleTab {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tabs[m.indexOf(m.activeID)].Clone()
}

func (m *Manager) CreateTab() domain.SaleTab {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.blankTab(tabName(len(m.tabs)))
	m.tabs = append(m.tabs, t)
	m.activeID = t.ID
	m.notify()
	return t.Clone()
}

// CloseTab removes the tab, or clears it when it is the last one.
func (m *Manager) CloseTab(tabID string) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(tabID)
	if i < 0 {
		return domain.Snapshot{}, ErrTabNotFound
	}

	if len(m.tabs) == 1 {
		m.clearLocked(i)
		m.notify()
		return m.snapshotLocked(), nil
	}

	m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
	if m.activeID == tabID {
		m.activeID = m.tabs[0].ID
	}
	m.mirror.TabClosed(m.userID, tabID)
	m.notify()
	return m.snapshotLocked(), nil
}

func (m *Manager) SetActiveTab(tabID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(tabID) < 0 {
		return ErrTabNotFound
	}
	m.activeID = tabID
	m.notify()
	return nil
}

// AddLine merges into an existing line or appends one priced at the tab's tier.
func (m *Manager) AddLine(tabID string, p domain.Product, quantity int) (domain.SaleTab, error) {
	if quantity < 1 {
		return domain.SaleTab{}, ErrInvalidQuantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(tabID)
	if i < 0 {
		return domain.SaleTab{}, ErrTabNotFound
	}
	tab := &m.tabs[i]

	if p.Stock() <= 0 {
		return domain.SaleTab{}, fmt.Errorf("%w: %s", ErrOutOfStock, p.Name)
	}

	existing, found := tab.LineFor(p.ID)
	if existing.Quantity+quantity > p.Stock() {
		return domain.SaleTab{}, fmt.Errorf("%w: %s has %d available", ErrInsufficientStock, p.Name, p.Stock())
	}

	if found {
		for j := range tab.Cart {
			if tab.Cart[j].ProductID == p.ID {
				tab.Cart[j].Quantity += quantity
				break
			}
		}
	} else {
		tab.Cart = append(tab.Cart, domain.CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			Code:      p.Code,
			Weight:    p.Weight,
			ImageURL:  p.ImageURL,
			Price:     pricing.ResolvePrice(p, m.tierFor(*tab)),
			Quantity:  quantity,
		})
	}

	m.notify()
	return tab.Clone(), nil
}

// SetLineQuantity removes the line when qty <= 0. When the current product is
// supplied, the new quantity must not exceed its stock.
func (m *Manager) SetLineQuantity(tabID, productID string, qty int, current *domain.Product) (domain.SaleTab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(tabID)
	if i < 0 {
		return domain.SaleTab{}, ErrTabNotFound
	}
	tab := &m.tabs[i]

	if qty <= 0 {
		tab.Cart = removeLine(tab.Cart, productID)
		m.notify()
		return tab.Clone(), nil
	}

	j := lineIndex(tab.Cart, productID)
	if j < 0 {
		return domain.SaleTab{}, ErrLineNotFound
	}
	if current != nil && qty > current.Stock() {
		return domain.SaleTab{}, fmt.Errorf("%w: %s has %d available", ErrInsufficientStock, current.Name, current.Stock())
	}

	tab.Cart[j].Quantity = qty
	m.notify()
	return tab.Clone(), nil
}

func (m *Manager) RemoveLine(tabID, productID string) (domain.SaleTab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(tabID)
	if i < 0 {
		return domain.SaleTab{}, ErrTabNotFound
	}
	m.tabs[i].Cart = removeLine(m.tabs[i].Cart, productID)
	m.notify()
	return m.tabs[i].Clone(), nil
}

func (m *Manager) SetDiscount(tabID string, discountType domain.DiscountType, value float64) (domain.SaleTab, error) {
	if !discountType.Valid() || value < 0 {
		return domain.SaleTab{}, ErrInvalidDiscount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(tabID)
	if i < 0 {
		return domain.SaleTab{}, ErrTabNotFound
	}
	m.tabs[i].DiscountType = discountType
	m.tabs[i].DiscountValue = value
	m.notify()
	return m.tabs[i].Clone(), nil
}

// ClearTab empties the cart and resets the discount; selections are kept.
func (m *Manager) ClearTab(tabID string) (domain.SaleTab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(tabID)
	if i < 0 {
		return domain.SaleTab{}, ErrTabNotFound
	}
	m.clearLocked(i)
	m.notify()
	return m.tabs[i].Clone(), nil
}

// MarkSettled passes the tab through completed and straight back to an empty active cart.
func (m *Manager) MarkSettled(tabID string) (domain.SaleTab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(tabID)
	if i < 0 {
		return domain.SaleTab{}, ErrTabNotFound
	}
	m.tabs[i].Status = domain.TabCompleted
	m.clearLocked(i)
	m.notify()
	return m.tabs[i].Clone(), nil
}

func (m *Manager) ComputeTotals(tabID string, taxRate float64) (domain.Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOf(tabID)
	if i < 0 {
		return domain.Totals{}, ErrTabNotFound
	}
	return ComputeTotals(m.tabs[i], taxRate), nil
}

// SelectPaymentMethod sets the session choice and stamps it on the active tab.
func (m *Manager) SelectPaymentMethod(method domain.PaymentMethod) error {
	if !method.Valid() {
		return ErrInvalidPaymentMethod
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.payment = method
	m.tabs[m.indexOf(m.activeID)].PaymentMethod = method
	m.notify()
	return nil
}

// SelectPriceType only affects lines added afterwards.
func (m *Manager) SelectPriceType(priceType domain.PriceType) error {
	if !priceType.Valid() {
		return ErrInvalidPriceType
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.priceType = priceType
	m.tabs[m.indexOf(m.activeID)].PriceType = priceType
	m.notify()
	return nil
}

func (m *Manager) Selections() (domain.PaymentMethod, domain.PriceType) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.payment, m.priceType
}

// Ready reports whether both session selections have been made.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.payment != "" && m.priceType != ""
}

func (m *Manager) blankTab(name string) domain.SaleTab {
	return domain.SaleTab{
		ID:            m.newID(),
		Name:          name,
		Cart:          []domain.CartLine{},
		DiscountType:  domain.DiscountFlat,
		PaymentMethod: m.defaultPayment(),
		PriceType:     m.defaultPriceType(),
		Status:        domain.TabActive,
	}
}

func (m *Manager) clearLocked(i int) {
	t := &m.tabs[i]
	t.Cart = []domain.CartLine{}
	t.DiscountType = domain.DiscountFlat
	t.DiscountValue = 0
	t.Status = domain.TabActive
	if t.PaymentMethod == "" {
		t.PaymentMethod = m.defaultPayment()
	}
	if t.PriceType == "" {
		t.PriceType = m.defaultPriceType()
	}
}

func (m *Manager) defaultPayment() domain.PaymentMethod {
	if m.payment != "" {
		return m.payment
	}
	return domain.PaymentCash
}

func (m *Manager) defaultPriceType() domain.PriceType {
	if m.priceType != "" {
		return m.priceType
	}
	return domain.PriceRegular
}

func (m *Manager) tierFor(t domain.SaleTab) domain.PriceType {
	if t.PriceType != "" {
		return t.PriceType
	}
	return m.defaultPriceType()
}

func (m *Manager) indexOf(tabID string) int {
	for i := range m.tabs {
		if m.tabs[i].ID == tabID {
			return i
		}
	}
	return -1
}

func (m *Manager) snapshotLocked() domain.Snapshot {
	tabs := make([]domain.SaleTab, len(m.tabs))
	for i := range m.tabs {
		tabs[i] = m.tabs[i].Clone()
	}
	return domain.Snapshot{UserID: m.userID, Tabs: tabs, ActiveTabID: m.activeID}
}

func (m *Manager) notify() {
	m.mirror.TabsChanged(m.snapshotLocked())
}

func tabName(existing int) string {
	return fmt.Sprintf("Sale %d", existing+1)
}

func lineIndex(lines []domain.CartLine, productID string) int {
	for i := range lines {
		if lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func removeLine(lines []domain.CartLine, productID string) []domain.CartLine {
	out := lines[:0]
	for _, l := range lines {
		if l.ProductID != productID {
			out = append(out, l)
		}
	}
	return out
}
