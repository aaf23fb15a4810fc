// Package persistence mirrors in-memory tab state to device storage
// (synchronously) and to a remote per-user record (in the background).
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/fieldcrypt"
	"github.com/fjod/go_pos/internal/persistence/local"
	"github.com/fjod/go_pos/internal/persistence/remote"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// LocalStore is the device storage. Consumers define this interface.
type LocalStore interface {
	Get(ctx context.Context, userID, key string) ([]byte, error)
	PutMany(ctx context.Context, userID string, entries map[string][]byte) error
	Put(ctx context.Context, userID, key string, value []byte) error
}

type RemoteMirror interface {
	Save(ctx context.Context, userID string, tab domain.SaleTab, lastUpdated time.Time) error
	Delete(ctx context.Context, userID, tabID string) error
	Load(ctx context.Context, userID string) ([]domain.SaleTab, error)
}

type Bridge struct {
	local   LocalStore
	remote  RemoteMirror
	cipher  *fieldcrypt.Cipher
	logger  *zap.Logger
	breaker *gobreaker.CircuitBreaker[struct{}]
	queue   chan remoteJob
	retry   RetryPolicy
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Bridge)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(b *Bridge) {
		b.retry = p
	}
}

func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		b.timeout = d
	}
}

func WithQueueSize(n int) Option {
	return func(b *Bridge) {
		b.queue = make(chan remoteJob, n)
	}
}

func NewBridge(localStore LocalStore, mirror RemoteMirror, cipher *fieldcrypt.Cipher, logger *zap.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		local:   localStore,
		remote:  mirror,
		cipher:  cipher,
		logger:  logger,
		queue:   make(chan remoteJob, 256),
		retry:   DefaultRetryPolicy,
		timeout: 2 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "remote-mirror",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return b
}

// TabsChanged writes the whole tab set to device storage, then queues the
// active tab for the remote mirror. Failures are logged and never returned.
func (b *Bridge) TabsChanged(s domain.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	encrypted := make([]domain.SaleTab, len(s.Tabs))
	var active *domain.SaleTab
	for i, t := range s.Tabs {
		encrypted[i] = b.encryptTab(t)
		if t.ID == s.ActiveTabID {
			active = &encrypted[i]
		}
	}

	if err := b.writeLocal(ctx, s.UserID, encrypted, s.ActiveTabID); err != nil {
		b.logger.Error("device storage write failed",
			zap.String("user_id", s.UserID),
			zap.Error(err))
	}

	switch {
	case active == nil:
	case len(active.Cart) == 0:
		// an empty tab has nothing worth resuming elsewhere
		b.enqueue(remoteJob{kind: jobDelete, userID: s.UserID, tabID: active.ID, at: b.now()})
	default:
		b.enqueue(remoteJob{kind: jobSave, userID: s.UserID, tab: *active, at: b.now()})
	}
}

func (b *Bridge) TabClosed(userID, tabID string) {
	b.Forget(userID, tabID)
}

// Forget drops the remote copy of a tab, e.g. after its sale settled.
func (b *Bridge) Forget(userID, tabID string) {
	b.enqueue(remoteJob{kind: jobDelete, userID: userID, tabID: tabID, at: b.now()})
}

// ForgetNow removes the remote copy synchronously. A delete is queued as well,
// so a save of the tab still waiting in the queue cannot bring it back.
func (b *Bridge) ForgetNow(ctx context.Context, userID, tabID string) error {
	defer b.Forget(userID, tabID)

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.remote.Delete(ctx, userID, tabID)
	})
	return err
}

// Load prefers device storage and falls back to the remote mirror. Selections
// are stripped so every session asks for them again.
func (b *Bridge) Load(ctx context.Context, userID string) (domain.Snapshot, error) {
	snap, err := b.loadLocal(ctx, userID)
	if err == nil && len(snap.Tabs) > 0 {
		return snap, nil
	}
	if err != nil && !errors.Is(err, local.ErrNotFound) {
		b.logger.Warn("device storage read failed, trying remote mirror",
			zap.String("user_id", userID),
			zap.Error(err))
	}

	remoteCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	tabs, err := b.remote.Load(remoteCtx, userID)
	if errors.Is(err, remote.ErrMirrorEmpty) {
		return domain.Snapshot{UserID: userID}, nil
	}
	if err != nil {
		b.logger.Warn("remote mirror read failed, starting fresh",
			zap.String("user_id", userID),
			zap.Error(err))
		return domain.Snapshot{UserID: userID}, nil
	}

	out := domain.Snapshot{UserID: userID, Tabs: make([]domain.SaleTab, len(tabs))}
	for i, t := range tabs {
		out.Tabs[i] = b.decryptTab(t)
	}
	out.ActiveTabID = out.Tabs[len(out.Tabs)-1].ID
	return out, nil
}

func (b *Bridge) SaveCustomerDraft(ctx context.Context, userID string, info domain.CustomerInfo) error {
	data, err := json.Marshal(domain.CustomerInfo{
		Name:  b.cipher.MustEncrypt(info.Name),
		Phone: b.cipher.MustEncrypt(info.Phone),
		Email: b.cipher.MustEncrypt(info.Email),
	})
	if err != nil {
		return fmt.Errorf("marshal customer info: %w", err)
	}
	return b.local.Put(ctx, userID, local.KeyCustomerInfo, data)
}

func (b *Bridge) LoadCustomerDraft(ctx context.Context, userID string) (domain.CustomerInfo, error) {
	data, err := b.local.Get(ctx, userID, local.KeyCustomerInfo)
	if errors.Is(err, local.ErrNotFound) {
		return domain.CustomerInfo{}, nil
	}
	if err != nil {
		return domain.CustomerInfo{}, err
	}

	var info domain.CustomerInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return domain.CustomerInfo{}, fmt.Errorf("unmarshal customer info: %w", err)
	}
	return domain.CustomerInfo{
		Name:  b.cipher.Decrypt(info.Name),
		Phone: b.cipher.Decrypt(info.Phone),
		Email: b.cipher.Decrypt(info.Email),
	}, nil
}

func (b *Bridge) writeLocal(ctx context.Context, userID string, tabs []domain.SaleTab, activeID string) error {
	data, err := json.Marshal(tabs)
	if err != nil {
		return fmt.Errorf("marshal tabs: %w", err)
	}
	return b.local.PutMany(ctx, userID, map[string][]byte{
		local.KeyTabs:      data,
		local.KeyActiveTab: []byte(activeID),
	})
}

func (b *Bridge) loadLocal(ctx context.Context, userID string) (domain.Snapshot, error) {
	data, err := b.local.Get(ctx, userID, local.KeyTabs)
	if err != nil {
		return domain.Snapshot{}, err
	}

	var tabs []domain.SaleTab
	if err := json.Unmarshal(data, &tabs); err != nil {
		return domain.Snapshot{}, fmt.Errorf("unmarshal tabs: %w", err)
	}

	snap := domain.Snapshot{UserID: userID, Tabs: make([]domain.SaleTab, len(tabs))}
	for i, t := range tabs {
		snap.Tabs[i] = b.decryptTab(t)
	}

	active, err := b.local.Get(ctx, userID, local.KeyActiveTab)
	if err != nil && !errors.Is(err, local.ErrNotFound) {
		return domain.Snapshot{}, err
	}
	snap.ActiveTabID = string(active)
	return snap, nil
}

func (b *Bridge) encryptTab(t domain.SaleTab) domain.SaleTab {
	out := t.Clone()
	out.PaymentMethod = ""
	out.PriceType = ""
	for i := range out.Cart {
		l := &out.Cart[i]
		l.Name = b.cipher.MustEncrypt(l.Name)
		l.Code = b.cipher.MustEncrypt(l.Code)
		l.Weight = b.cipher.MustEncrypt(l.Weight)
		l.ImageURL = b.cipher.MustEncrypt(l.ImageURL)
	}
	return out
}

func (b *Bridge) decryptTab(t domain.SaleTab) domain.SaleTab {
	out := t.Clone()
	out.PaymentMethod = ""
	out.PriceType = ""
	for i := range out.Cart {
		l := &out.Cart[i]
		l.Name = b.cipher.Decrypt(l.Name)
		l.Code = b.cipher.Decrypt(l.Code)
		l.Weight = b.cipher.Decrypt(l.Weight)
		l.ImageURL = b.cipher.Decrypt(l.ImageURL)
	}
	return out
}
