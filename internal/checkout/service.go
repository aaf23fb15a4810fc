// Package checkout settles a tab into a durable sale record. Each settlement
// is keyed by a client-usable id and advances through a ledger, so a retry
// after a partial failure resumes instead of repeating completed steps.
package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/fieldcrypt"
	"github.com/fjod/go_pos/internal/ledger"
	"github.com/fjod/go_pos/internal/receipt"
	"github.com/fjod/go_pos/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is the per-user tab set being settled.
type Session interface {
	UserID() string
	Tab(tabID string) (domain.SaleTab, error)
	MarkSettled(tabID string) (domain.SaleTab, error)
}

type Catalog interface {
	BusinessConfig(ctx context.Context, userID string) (*domain.BusinessConfig, error)
	Invalidate(userID string)
}

type Inventory interface {
	DecrementStock(ctx context.Context, userID, productID string, quantity int, settlementID string) error
	IncrementSold(ctx context.Context, userID, productID string, quantity int, settlementID string) error
}

type Ledger interface {
	Begin(ctx context.Context, s *ledger.Settlement) (*ledger.Settlement, bool, error)
	Advance(ctx context.Context, id string, from, to domain.SettlementStatus, sale []byte) error
	MarkFailed(ctx context.Context, id string, from domain.SettlementStatus, reason string) error
	Complete(ctx context.Context, id string, payload []byte) error
}

type MirrorCleaner interface {
	ForgetNow(ctx context.Context, userID, tabID string) error
}

type ReceiptRenderer interface {
	Render(doc receipt.Document) (string, error)
}

type Service struct {
	catalog   Catalog
	inventory Inventory
	sales     store.SalesRepository
	ledger    Ledger
	mirror    MirrorCleaner
	renderer  ReceiptRenderer
	cipher    *fieldcrypt.Cipher
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
	newID     func() string

	mu      sync.Mutex
	pending map[string]string
}

type Option func(*Service)

// WithTimeout bounds every remote call made while settling.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

func NewService(
	catalog Catalog,
	inventory Inventory,
	sales store.SalesRepository,
	ledger Ledger,
	mirror MirrorCleaner,
	renderer ReceiptRenderer,
	cipher *fieldcrypt.Cipher,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		catalog:   catalog,
		inventory: inventory,
		sales:     sales,
		ledger:    ledger,
		mirror:    mirror,
		renderer:  renderer,
		cipher:    cipher,
		logger:    logger,
		timeout:   5 * time.Second,
		now:       time.Now,
		newID:     uuid.NewString,
		pending:   make(map[string]string),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func pendingKey(userID, tabID string) string {
	return userID + "/" + tabID
}
