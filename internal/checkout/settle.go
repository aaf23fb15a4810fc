package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/ledger"
	"github.com/fjod/go_pos/internal/receipt"
	"github.com/fjod/go_pos/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type SettleRequest struct {
	TabID           string
	SettlementID    string
	CollectCustomer bool
	Customer        domain.CustomerInfo
	Cashier         string
}

type Result struct {
	Sale        domain.SaleRecord `json:"sale"`
	ReceiptHTML string            `json:"receipt_html"`
	Replayed    bool              `json:"replayed"`
}

func (s *Service) Settle(ctx context.Context, sess Session, req SettleRequest) (*Result, error) {
	if _, err := uuid.Parse(req.SettlementID); err != nil {
		return nil, ErrInvalidSettlementID
	}
	userID := sess.UserID()

	business, err := s.catalog.BusinessConfig(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load business config: %w", err)
	}
	if !business.IsActive() {
		return nil, ErrAccountDisabled
	}

	tab, err := sess.Tab(req.TabID)
	if err != nil {
		return nil, err
	}

	st, created, err := s.ledger.Begin(ctx, &ledger.Settlement{ID: req.SettlementID, UserID: userID, TabID: req.TabID})
	if err != nil {
		return nil, fmt.Errorf("failed to begin settlement: %w", err)
	}
	if !created {
		s.logger.Info("resuming settlement",
			zap.String("settlement_id", st.ID),
			zap.String("status", st.Status.String()),
			zap.Int("attempts", st.Attempts))
	}

	if st.Status == domain.SettlementCompleted {
		sale, err := decodeSale(st.Sale)
		if err != nil {
			return nil, err
		}
		return s.result(*sale, *business, req.Cashier, true), nil
	}

	var sale *domain.SaleRecord
	if len(st.Sale) > 0 {
		if sale, err = decodeSale(st.Sale); err != nil {
			return nil, err
		}
	}

	for !st.Status.IsTerminal() {
		switch st.Status {
		case domain.SettlementInitiated, domain.SettlementFailed:
			if len(tab.Cart) == 0 {
				return nil, ErrEmptyCart
			}
			if sale, err = s.buildSale(userID, tab, business, req); err != nil {
				return nil, err
			}
			err = s.decrementStock(ctx, st, sale)
		case domain.SettlementStockDecremented:
			err = s.record(ctx, st, sale)
		case domain.SettlementRecorded:
			s.complete(ctx, st, sale)
		default:
			err = ErrIllegalTransition
		}
		if err != nil {
			return nil, err
		}
	}

	s.cleanup(ctx, sess, req.TabID)
	return s.result(*sale, *business, req.Cashier, false), nil
}

// decrementStock attempts every line even when one fails. The store applies
// each decrement at most once per settlement id, so a retry is safe.
func (s *Service) decrementStock(ctx context.Context, st *ledger.Settlement, sale *domain.SaleRecord) error {
	if !domain.CanTransitionTo(st.Status, domain.SettlementStockDecremented) {
		return ErrIllegalTransition
	}

	var g errgroup.Group
	for _, item := range sale.Items {
		g.Go(func() error {
			opCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			err := s.inventory.DecrementStock(opCtx, sale.UserID, item.ProductID, item.Quantity, sale.ID)
			if errors.Is(err, store.ErrProductNotFound) {
				s.skipMissingProduct(st.ID, item.ProductID, "stock")
				return nil
			}
			if err != nil {
				return fmt.Errorf("product %s: %w", item.ProductID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("stock decrement failed",
			zap.String("settlement_id", st.ID),
			zap.Error(err))
		if mErr := s.ledger.MarkFailed(ctx, st.ID, st.Status, err.Error()); mErr != nil {
			s.logger.Error("failed to mark settlement failed", zap.String("settlement_id", st.ID), zap.Error(mErr))
		}
		return fmt.Errorf("%w: %v", ErrStockUpdateFailed, err)
	}

	payload, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("failed to marshal sale: %w", err)
	}
	return s.advance(ctx, st, domain.SettlementStockDecremented, payload)
}

// record writes the sale to every index and bumps the sold counters. On failure
// the settlement stays at STOCK_DECREMENTED so a retry does not touch stock again.
func (s *Service) record(ctx context.Context, st *ledger.Settlement, sale *domain.SaleRecord) error {
	if sale == nil {
		return fmt.Errorf("%w: settlement %s has no stored sale", ErrSaveFailed, st.ID)
	}
	if !domain.CanTransitionTo(st.Status, domain.SettlementRecorded) {
		return ErrIllegalTransition
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.sales.SaveSale(opCtx, sale)
	cancel()
	if err != nil {
		s.logger.Error("sale record write failed after stock decrement",
			zap.String("settlement_id", st.ID),
			zap.String("user_id", sale.UserID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	var g errgroup.Group
	for _, item := range sale.Items {
		g.Go(func() error {
			opCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			err := s.inventory.IncrementSold(opCtx, sale.UserID, item.ProductID, item.Quantity, sale.ID)
			if errors.Is(err, store.ErrProductNotFound) {
				s.skipMissingProduct(st.ID, item.ProductID, "sold counter")
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("sold counter update failed", zap.String("settlement_id", st.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	return s.advance(ctx, st, domain.SettlementRecorded, nil)
}

// complete never fails the settlement: a RECORDED settlement is finished
// later by the outbox poller.
func (s *Service) complete(ctx context.Context, st *ledger.Settlement, sale *domain.SaleRecord) {
	defer func() { st.Status = domain.SettlementCompleted }()

	payload, err := json.Marshal(domain.NewSaleCompletedEvent(*sale, s.now()))
	if err != nil {
		s.logger.Error("failed to marshal sale event", zap.String("settlement_id", st.ID), zap.Error(err))
		return
	}
	if err := s.ledger.Complete(ctx, st.ID, payload); err != nil {
		s.logger.Warn("failed to complete settlement, left for recovery",
			zap.String("settlement_id", st.ID),
			zap.Error(err))
	}
}

// skipMissingProduct lets a line whose product was deleted from the catalog
// settle without touching any counter.
func (s *Service) skipMissingProduct(settlementID, productID, counter string) {
	s.logger.Warn("product no longer in catalog, counter left unchanged",
		zap.String("settlement_id", settlementID),
		zap.String("product_id", productID),
		zap.String("counter", counter))
}

func (s *Service) advance(ctx context.Context, st *ledger.Settlement, to domain.SettlementStatus, sale []byte) error {
	if err := s.ledger.Advance(ctx, st.ID, st.Status, to, sale); err != nil {
		if errors.Is(err, ledger.ErrStaleStatus) {
			return ErrSettlementInProgress
		}
		return fmt.Errorf("failed to advance settlement to %s: %w", to, err)
	}
	st.Status = to
	return nil
}

// cleanup resets the tab and removes its remote mirror. Failures are logged only.
func (s *Service) cleanup(ctx context.Context, sess Session, tabID string) {
	userID := sess.UserID()
	s.CancelCheckout(userID, tabID)
	s.catalog.Invalidate(userID)

	if _, err := sess.MarkSettled(tabID); err != nil {
		s.logger.Warn("failed to reset settled tab", zap.String("tab_id", tabID), zap.Error(err))
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.mirror.ForgetNow(opCtx, userID, tabID); err != nil {
		s.logger.Warn("failed to delete remote mirror of settled tab",
			zap.String("user_id", userID),
			zap.String("tab_id", tabID),
			zap.Error(err))
	}
}

func (s *Service) result(sale domain.SaleRecord, business domain.BusinessConfig, cashier string, replayed bool) *Result {
	plain := s.decryptSale(sale)
	html, err := s.renderer.Render(receipt.Document{Sale: plain, Business: business, Cashier: cashier})
	if err != nil {
		s.logger.Error("failed to render receipt", zap.String("sale_id", sale.ID), zap.Error(err))
	}
	return &Result{Sale: plain, ReceiptHTML: html, Replayed: replayed}
}

func decodeSale(raw []byte) (*domain.SaleRecord, error) {
	var sale domain.SaleRecord
	if err := json.Unmarshal(raw, &sale); err != nil {
		return nil, fmt.Errorf("failed to decode stored sale: %w", err)
	}
	return &sale, nil
}
