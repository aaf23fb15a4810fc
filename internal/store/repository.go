package store

import (
	"context"
	"errors"

	"github.com/fjod/go_pos/internal/domain"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrBusinessNotFound = errors.New("business configuration not found")
	ErrSaleNotFound     = errors.New("sale not found")
)

// CatalogRepository reads the product store and writes only stock and sold counters.
type CatalogRepository interface {
	ListProducts(ctx context.Context, userID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, userID, productID string) (*domain.Product, error)
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)
	GetBusinessConfig(ctx context.Context, userID string) (*domain.BusinessConfig, error)
	DecrementStock(ctx context.Context, userID, productID string, quantity int, settlementID string) error
	IncrementSold(ctx context.Context, userID, productID string, quantity int, settlementID string) error
}

// SalesRepository writes each sale to the global, per-user and per-user-by-date indexes.
type SalesRepository interface {
	SaveSale(ctx context.Context, sale *domain.SaleRecord) error
	GetSale(ctx context.Context, userID, saleID string) (*domain.SaleRecord, error)
	ListSalesByDate(ctx context.Context, userID, date string) ([]domain.SaleRecord, error)
}
