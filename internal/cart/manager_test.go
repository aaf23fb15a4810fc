package cart

import (
	"fmt"
	"sync"
	"testing"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMirror struct {
	m         sync.RWMutex
	snapshots []domain.Snapshot
	closed    []string
}

func (m *mockMirror) TabsChanged(s domain.Snapshot) {
	m.m.Lock()
	defer m.m.Unlock()
	m.snapshots = append(m.snapshots, s)
}

func (m *mockMirror) TabClosed(_ string, tabID string) {
	m.m.Lock()
	defer m.m.Unlock()
	m.closed = append(m.closed, tabID)
}

func (m *mockMirror) last() domain.Snapshot {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.snapshots[len(m.snapshots)-1]
}

func (m *mockMirror) count() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return len(m.snapshots)
}

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("tab-%d", n)
	})
}

func stock(n int) *int {
	return &n
}

func newTestManager(t *testing.T) (*Manager, *mockMirror) {
	t.Helper()
	mirror := &mockMirror{}
	return NewManager("user-1", domain.Snapshot{}, mirror, sequentialIDs()), mirror
}

func TestNewManager_CreatesDefaultTab(t *testing.T) {
	sut, mirror := newTestManager(t)

	snap := sut.Snapshot()
	require.Len(t, snap.Tabs, 1)
	assert.Equal(t, "Sale 1", snap.Tabs[0].Name)
	assert.Equal(t, "tab-1", snap.ActiveTabID)
	assert.Equal(t, domain.DiscountFlat, snap.Tabs[0].DiscountType)
	assert.Equal(t, domain.TabActive, snap.Tabs[0].Status)
	assert.Empty(t, snap.Tabs[0].Cart)
	assert.False(t, sut.Ready())
	assert.Zero(t, mirror.count())
}

func TestNewManager_RestoresSnapshot(t *testing.T) {
	restored := domain.Snapshot{
		Tabs: []domain.SaleTab{
			{ID: "a", Name: "Sale 1", Cart: []domain.CartLine{{ProductID: "p1", Price: 5, Quantity: 2}}},
			{ID: "b", Name: "Sale 2", DiscountType: domain.DiscountPercentage, DiscountValue: 10},
		},
		ActiveTabID: "b",
	}

	sut := NewManager("user-1", restored, nil)

	snap := sut.Snapshot()
	require.Len(t, snap.Tabs, 2)
	assert.Equal(t, "b", snap.ActiveTabID)
	assert.Equal(t, domain.TabActive, snap.Tabs[0].Status)
	assert.Equal(t, domain.DiscountFlat, snap.Tabs[0].DiscountType)
	payment, priceType := sut.Selections()
	assert.Empty(t, payment)
	assert.Empty(t, priceType)
}

func TestNewManager_UnknownActiveFallsBackToFirst(t *testing.T) {
	restored := domain.Snapshot{
		Tabs:        []domain.SaleTab{{ID: "a", Name: "Sale 1"}},
		ActiveTabID: "missing",
	}

	sut := NewManager("user-1", restored, nil)
	assert.Equal(t, "a", sut.ActiveTab().ID)
}

func TestCreateTab(t *testing.T) {
	sut, mirror := newTestManager(t)

	tab := sut.CreateTab()

	assert.Equal(t, "tab-2", tab.ID)
	assert.Equal(t, "Sale 2", tab.Name)
	assert.Equal(t, domain.PaymentCash, tab.PaymentMethod)
	assert.Equal(t, domain.PriceRegular, tab.PriceType)
	assert.Equal(t, "tab-2", sut.ActiveTab().ID)
	assert.Len(t, mirror.last().Tabs, 2)
}

func TestCreateTab_UsesCurrentSelections(t *testing.T) {
	sut, _ := newTestManager(t)
	require.NoError(t, sut.SelectPaymentMethod(domain.PaymentUPI))
	require.NoError(t, sut.SelectPriceType(domain.PriceWholesaler))

	tab := sut.CreateTab()

	assert.Equal(t, domain.PaymentUPI, tab.PaymentMethod)
	assert.Equal(t, domain.PriceWholesaler, tab.PriceType)
	assert.True(t, sut.Ready())
}

func TestCloseTab_RemovesAndInformsMirror(t *testing.T) {
	sut, mirror := newTestManager(t)
	second := sut.CreateTab()

	snap, err := sut.CloseTab(second.ID)
	require.NoError(t, err)

	assert.Len(t, snap.Tabs, 1)
	assert.Equal(t, "tab-1", snap.ActiveTabID)
	assert.Equal(t, []string{second.ID}, mirror.closed)
}

func TestCloseTab_LastTabIsClearedNotRemoved(t *testing.T) {
	sut, mirror := newTestManager(t)
	tabID := sut.ActiveTab().ID
	_, err := sut.AddLine(tabID, domain.Product{ID: "p1", Name: "Tea", Price: 10, Quantity: stock(100)}, 2)
	require.NoError(t, err)
	_, err = sut.SetDiscount(tabID, domain.DiscountPercentage, 5)
	require.NoError(t, err)

	snap, err := sut.CloseTab(tabID)
	require.NoError(t, err)

	require.Len(t, snap.Tabs, 1)
	assert.Equal(t, tabID, snap.Tabs[0].ID)
	assert.Empty(t, snap.Tabs[0].Cart)
	assert.Equal(t, domain.DiscountFlat, snap.Tabs[0].DiscountType)
	assert.Zero(t, snap.Tabs[0].DiscountValue)
	assert.Empty(t, mirror.closed)
}

func TestCloseTab_Unknown(t *testing.T) {
	sut, _ := newTestManager(t)

	_, err := sut.CloseTab("nope")
	assert.ErrorIs(t, err, ErrTabNotFound)
}

func TestSetActiveTab(t *testing.T) {
	sut, _ := newTestManager(t)
	sut.CreateTab()

	require.NoError(t, sut.SetActiveTab("tab-1"))
	assert.Equal(t, "tab-1", sut.ActiveTab().ID)

	err := sut.SetActiveTab("missing")
	assert.ErrorIs(t, err, ErrTabNotFound)
	assert.Equal(t, "tab-1", sut.ActiveTab().ID)
}

func TestAddLine_MergesSameProduct(t *testing.T) {
	sut, _ := newTestManager(t)
	tabID := sut.ActiveTab().ID
	p := domain.Product{ID: "p1", Name: "Bread", Price: 30, Quantity: stock(100)}

	_, err := sut.AddLine(tabID, p, 2)
	require.NoError(t, err)
	tab, err := sut.AddLine(tabID, p, 3)
	require.NoError(t, err)

	require.Len(t, tab.Cart, 1)
	assert.Equal(t, 5, tab.Cart[0].Quantity)
}

func TestAddLine_KeepsInsertionOrder(t *testing.T) {
	sut, _ := newTestManager(t)
	tabID := sut.ActiveTab().ID

	for _, id := range []string{"c", "a", "b"} {
		_, err := sut.AddLine(tabID, domain.Product{ID: id, Price: 1, Quantity: stock(100)}, 1)
		require.NoError(t, err)
	}

	tab, err := sut.Tab(tabID)
	require.NoError(t, err)
	assert.Equal(t, "c", tab.Cart[0].ProductID)
	assert.Equal(t, "a", tab.Cart[1].ProductID)
	assert.Equal(t, "b", tab.Cart[2].ProductID)
}

func TestAddLine_PriceFrozenAtAddTime(t *testing.T) {
	sut, _ := newTestManager(t)
	require.NoError(t, sut.SelectPriceType(domain.PriceWholesaler))
	tabID := sut.ActiveTab().ID
	p := domain.Product{ID: "p1", Price: 100, WholesalerPrice: 80, Quantity: stock(100)}

	_, err := sut.AddLine(tabID, p, 1)
	require.NoError(t, err)

	require.NoError(t, sut.SelectPriceType(domain.PriceRegular))
	tab, err := sut.AddLine(tabID, p, 1)
	require.NoError(t, err)

	assert.Equal(t, 80.0, tab.Cart[0].Price)
	assert.Equal(t, 2, tab.Cart[0].Quantity)
}

func TestAddLine_InsufficientStockLeavesCartUnchanged(t *testing.T) {
	sut, mirror := newTestManager(t)
	tabID := sut.ActiveTab().ID
	p := domain.Product{ID: "p1", Name: "Milk", Price: 10, Quantity: stock(3)}

	_, err := sut.AddLine(tabID, p, 2)
	require.NoError(t, err)
	notified := mirror.count()

	_, err = sut.AddLine(tabID, p, 2)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	tab, _ := sut.Tab(tabID)
	require.Len(t, tab.Cart, 1)
	assert.Equal(t, 2, tab.Cart[0].Quantity)
	assert.Equal(t, notified, mirror.count())
}

func TestAddLine_OutOfStock(t *testing.T) {
	sut, _ := newTestManager(t)
	tabID := sut.ActiveTab().ID

	_, err := sut.AddLine(tabID, domain.Product{ID: "p1", Quantity: stock(0)}, 1)
	assert.ErrorIs(t, err, ErrOutOfStock)

	tab, _ := sut.Tab(tabID)
	assert.Empty(t, tab.Cart)
}

func TestAddLine_MissingStockCounterIsOutOfStock(t *testing.T) {
	sut, mirror := newTestManager(t)
	tabID := sut.ActiveTab().ID
	notified := mirror.count()

	_, err := sut.AddLine(tabID, domain.Product{ID: "p1", Name: "Milk", Price: 10}, 500)
	assert.ErrorIs(t, err, ErrOutOfStock)

	tab, _ := sut.Tab(tabID)
	assert.Empty(t, tab.Cart)
	assert.Equal(t, notified, mirror.count())
}

func TestAddLine_InvalidQuantity(t *testing.T) {
	sut, _ := newTestManager(t)

	_, err := sut.AddLine(sut.ActiveTab().ID, domain.Product{ID: "p1"}, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSetLineQuantity(t *testing.T) {
	sut, _ := newTestManager(t)
	tabID := sut.ActiveTab().ID
	_, err := sut.AddLine(tabID, domain.Product{ID: "p1", Price: 1, Quantity: stock(100)}, 1)
	require.NoError(t, err)

	tab, err := sut.SetLineQuantity(tabID, "p1", 7, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, tab.Cart[0].Quantity)

	tab, err = sut.SetLineQuantity(tabID, "p1", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, tab.Cart)
}

func TestSetLineQuantity_StockGuard(t *testing.T) {
	sut, _ := newTestManager(t)
	tabID := sut.ActiveTab().ID
	p := domain.Product{ID: "p1", Name: "Curd", Price: 1, Quantity: stock(4)}
	_, err := sut.AddLine(tabID, p, 1)
	require.NoError(t, err)

	_, err = sut.SetLineQuantity(tabID, "p1", 5, &p)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	tab, err := sut.SetLineQuantity(tabID, "p1", 4, &p)
	require.NoError(t, err)
	assert.Equal(t, 4, tab.Cart[0].Quantity)
}

func TestSetLineQuantity_MissingLine(t *testing.T) {
	sut, _ := newTestManager(t)

	_, err := sut.SetLineQuantity(sut.ActiveTab().ID, "p9", 2, nil)
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestRemoveLine(t *testing.T) {
	sut, _ := newTestManager(t)
	tabID := sut.ActiveTab().ID
	_, _ = sut.AddLine(tabID, domain.Product{ID: "p1", Price: 1, Quantity: stock(100)}, 1)
	_, _ = sut.AddLine(tabID, domain.Product{ID: "p2", Price: 1, Quantity: stock(100)}, 1)

	tab, err := sut.RemoveLine(tabID, "p1")
	require.NoError(t, err)
	require.Len(t, tab.Cart, 1)
	assert.Equal(t, "p2", tab.Cart[0].ProductID)

	tab, err = sut.RemoveLine(tabID, "absent")
	require.NoError(t, err)
	assert.Len(t, tab.Cart, 1)
}

func TestSetDiscount_Validation(t *testing.T) {
	sut, _ := newTestManager(t)
	tabID := sut.ActiveTab().ID

	_, err := sut.SetDiscount(tabID, domain.DiscountFlat, -1)
	assert.ErrorIs(t, err, ErrInvalidDiscount)
	_, err = sut.SetDiscount(tabID, domain.DiscountType("bogus"), 1)
	assert.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestClearTab_PreservesSelections(t *testing.T) {
	sut, _ := newTestManager(t)
	require.NoError(t, sut.SelectPaymentMethod(domain.PaymentCard))
	require.NoError(t, sut.SelectPriceType(domain.PriceAgent))
	tabID := sut.ActiveTab().ID
	_, _ = sut.AddLine(tabID, domain.Product{ID: "p1", Price: 1, Quantity: stock(100)}, 1)
	_, _ = sut.SetDiscount(tabID, domain.DiscountFlat, 3)

	tab, err := sut.ClearTab(tabID)
	require.NoError(t, err)

	assert.Empty(t, tab.Cart)
	assert.Zero(t, tab.DiscountValue)
	assert.Equal(t, domain.PaymentCard, tab.PaymentMethod)
	assert.Equal(t, domain.PriceAgent, tab.PriceType)
	assert.Equal(t, domain.TabActive, tab.Status)
}

func TestMarkSettled_ResetsToEmptyActive(t *testing.T) {
	sut, mirror := newTestManager(t)
	tabID := sut.ActiveTab().ID
	_, _ = sut.AddLine(tabID, domain.Product{ID: "p1", Price: 1, Quantity: stock(100)}, 1)

	tab, err := sut.MarkSettled(tabID)
	require.NoError(t, err)

	assert.Empty(t, tab.Cart)
	assert.Equal(t, domain.TabActive, tab.Status)
	assert.Empty(t, mirror.last().Tabs[0].Cart)
}

func TestMutations_NotifyMirror(t *testing.T) {
	sut, mirror := newTestManager(t)
	tabID := sut.ActiveTab().ID

	_, _ = sut.AddLine(tabID, domain.Product{ID: "p1", Price: 1, Quantity: stock(100)}, 1)
	_, _ = sut.SetLineQuantity(tabID, "p1", 3, nil)
	_, _ = sut.SetDiscount(tabID, domain.DiscountFlat, 1)
	_, _ = sut.RemoveLine(tabID, "p1")
	_, _ = sut.ClearTab(tabID)

	assert.Equal(t, 5, mirror.count())
	assert.Equal(t, "user-1", mirror.last().UserID)
}

func TestSelections_Validation(t *testing.T) {
	sut, _ := newTestManager(t)

	assert.ErrorIs(t, sut.SelectPaymentMethod("cheque"), ErrInvalidPaymentMethod)
	assert.ErrorIs(t, sut.SelectPriceType("vip"), ErrInvalidPriceType)
	assert.False(t, sut.Ready())
}

func TestSnapshot_IsACopy(t *testing.T) {
	sut, _ := newTestManager(t)
	tabID := sut.ActiveTab().ID
	_, _ = sut.AddLine(tabID, domain.Product{ID: "p1", Price: 1, Quantity: stock(100)}, 1)

	snap := sut.Snapshot()
	snap.Tabs[0].Cart[0].Quantity = 99

	tab, _ := sut.Tab(tabID)
	assert.Equal(t, 1, tab.Cart[0].Quantity)
}
