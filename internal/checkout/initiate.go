package checkout

import (
	"context"
	"fmt"

	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/domain"
)

// Confirmation is shown while the cashier decides whether to collect customer details.
type Confirmation struct {
	SettlementID string        `json:"settlement_id"`
	TabID        string        `json:"tab_id"`
	Lines        int           `json:"lines"`
	Totals       domain.Totals `json:"totals"`
}

// InitiateCheckout hands out the settlement id for the tab. Asking twice
// before settling returns the same id.
func (s *Service) InitiateCheckout(ctx context.Context, sess Session, tabID string) (*Confirmation, error) {
	tab, err := sess.Tab(tabID)
	if err != nil {
		return nil, err
	}
	if len(tab.Cart) == 0 {
		return nil, ErrEmptyCart
	}

	business, err := s.catalog.BusinessConfig(ctx, sess.UserID())
	if err != nil {
		return nil, fmt.Errorf("failed to load business config: %w", err)
	}
	if !business.IsActive() {
		return nil, ErrAccountDisabled
	}

	key := pendingKey(sess.UserID(), tabID)
	s.mu.Lock()
	id, ok := s.pending[key]
	if !ok {
		id = s.newID()
		s.pending[key] = id
	}
	s.mu.Unlock()

	return &Confirmation{
		SettlementID: id,
		TabID:        tabID,
		Lines:        len(tab.Cart),
		Totals:       cart.ComputeTotals(tab, business.EffectiveTaxRate()),
	}, nil
}

// CancelCheckout closes the confirmation step. Settlements already running are not interrupted.
func (s *Service) CancelCheckout(userID, tabID string) {
	s.mu.Lock()
	delete(s.pending, pendingKey(userID, tabID))
	s.mu.Unlock()
}

// Confirming reports the settlement id awaiting confirmation for the tab, if any.
func (s *Service) Confirming(userID, tabID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pending[pendingKey(userID, tabID)]
	return id, ok
}
