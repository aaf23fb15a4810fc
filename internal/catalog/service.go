// Package catalog serves the product, category and business configuration
// reads of the till, decrypting stored fields and caching product lists.
package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/fieldcrypt"
	"github.com/fjod/go_pos/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// AllCategories disables the category filter.
const AllCategories = "all"

type Service struct {
	repo   store.CatalogRepository
	cache  ProductCache
	cipher *fieldcrypt.Cipher
	logger *zap.Logger
	sfg    singleflight.Group // Prevents cache stampede

	genMu       sync.Mutex
	generations map[string]uint64 // bumped by Invalidate
}

func NewService(repo store.CatalogRepository, cache ProductCache, cipher *fieldcrypt.Cipher, logger *zap.Logger) *Service {
	return &Service{
		repo:        repo,
		cache:       cache,
		cipher:      cipher,
		logger:      logger,
		generations: make(map[string]uint64),
	}
}

func (s *Service) Products(ctx context.Context, userID string) ([]domain.Product, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		products, err := s.cache.Get(ctx, userID)
		if err == nil {
			return products, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("catalog cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		gen := s.generation(userID)
		raw, err := s.repo.ListProducts(ctx, userID)
		if err != nil {
			return nil, err
		}
		products = make([]domain.Product, len(raw))
		for i, p := range raw {
			products[i] = s.decryptProduct(p)
		}

		s.cacheLoaded(ctx, userID, gen, products)
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

// Product always reads the store so stock checks see the current counter.
func (s *Service) Product(ctx context.Context, userID, productID string) (*domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	out := s.decryptProduct(*p)
	return &out, nil
}

func (s *Service) Search(ctx context.Context, userID, query, category string) ([]domain.Product, error) {
	products, err := s.Products(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Filter(products, query, category), nil
}

func (s *Service) Categories(ctx context.Context, userID string) ([]domain.Category, error) {
	cats, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range cats {
		cats[i].Name = s.cipher.Decrypt(cats[i].Name)
	}
	return cats, nil
}

// BusinessConfig falls back to an unnamed business with the default tax rate.
func (s *Service) BusinessConfig(ctx context.Context, userID string) (*domain.BusinessConfig, error) {
	cfg, err := s.repo.GetBusinessConfig(ctx, userID)
	if errors.Is(err, store.ErrBusinessNotFound) {
		return &domain.BusinessConfig{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}

	cfg.Name = s.cipher.Decrypt(cfg.Name)
	cfg.Address = s.cipher.Decrypt(cfg.Address)
	cfg.Phone = s.cipher.Decrypt(cfg.Phone)
	cfg.GSTNumber = s.cipher.Decrypt(cfg.GSTNumber)
	cfg.UPIID = s.cipher.Decrypt(cfg.UPIID)
	return cfg, nil
}

// cacheLoaded caches a loaded list unless an invalidation ran while it was loading.
func (s *Service) cacheLoaded(ctx context.Context, userID string, gen uint64, products []domain.Product) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generations[userID] != gen {
		s.logger.Debug("catalog changed during load, not caching", zap.String("user_id", userID))
		return
	}

	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Set(setCtx, userID, products); err != nil {
		s.logger.Warn("catalog cache set failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) generation(userID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[userID]
}

// Invalidate drops the cached product list after stock changed.
func (s *Service) Invalidate(userID string) {
	s.genMu.Lock()
	s.generations[userID]++
	s.genMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("catalog cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) decryptProduct(p domain.Product) domain.Product {
	p.Name = s.cipher.Decrypt(p.Name)
	p.Code = s.cipher.Decrypt(p.Code)
	p.CategoryID = s.cipher.Decrypt(p.CategoryID)
	p.Weight = s.cipher.Decrypt(p.Weight)
	p.ImageURL = s.cipher.Decrypt(p.ImageURL)
	return p
}

// Filter keeps products in the category whose code equals the query exactly
// or whose name contains it, both case-insensitively.
func Filter(products []domain.Product, query, category string) []domain.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []domain.Product{}
	for _, p := range products {
		if category != "" && category != AllCategories && p.CategoryID != category {
			continue
		}
		if q == "" ||
			(p.Code != "" && strings.ToLower(p.Code) == q) ||
			strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, p)
		}
	}
	return out
}
