// Package session keeps one tab manager per signed-in user for the life of the process.
package session

import (
	"context"
	"sync"

	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Loader interface {
	Load(ctx context.Context, userID string) (domain.Snapshot, error)
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*cart.Manager
	loader   Loader
	mirror   cart.Mirror
	logger   *zap.Logger
	sfg      singleflight.Group
}

func NewRegistry(loader Loader, mirror cart.Mirror, logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*cart.Manager),
		loader:   loader,
		mirror:   mirror,
		logger:   logger,
	}
}

// Get returns the user's manager, restoring persisted tabs on first use.
// Concurrent first requests share one load.
func (r *Registry) Get(ctx context.Context, userID string) (*cart.Manager, error) {
	r.mu.RLock()
	m, ok := r.sessions[userID]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	v, err, _ := r.sfg.Do(userID, func() (interface{}, error) {
		r.mu.RLock()
		m, ok := r.sessions[userID]
		r.mu.RUnlock()
		if ok {
			return m, nil
		}

		snap, err := r.loader.Load(ctx, userID)
		if err != nil {
			return nil, err
		}
		m = cart.NewManager(userID, snap, r.mirror)

		r.mu.Lock()
		r.sessions[userID] = m
		r.mu.Unlock()

		r.logger.Info("session started",
			zap.String("user_id", userID),
			zap.Int("tabs", len(m.Snapshot().Tabs)))
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cart.Manager), nil
}

// Drop forgets the in-memory session; persisted tabs stay for the next Get.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	delete(r.sessions, userID)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
