package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_pos/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// appliedWindow bounds the per-product list of settlement ids already applied.
const appliedWindow = 50

type mongoRepository struct {
	products      *mongo.Collection
	categories    *mongo.Collection
	businesses    *mongo.Collection
	sales         *mongo.Collection
	userSales     *mongo.Collection
	userSalesDate *mongo.Collection
}

type MongoRepository interface {
	CatalogRepository
	SalesRepository
	CreateIndexes(ctx context.Context) error
}

func NewMongoRepository(db *mongo.Database) MongoRepository {
	return &mongoRepository{
		products:      db.Collection("products"),
		categories:    db.Collection("categories"),
		businesses:    db.Collection("businesses"),
		sales:         db.Collection("sales"),
		userSales:     db.Collection("user_sales"),
		userSalesDate: db.Collection("user_sales_by_date"),
	}
}

func (m *mongoRepository) ListProducts(ctx context.Context, userID string) ([]domain.Product, error) {
	cur, err := m.products.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := []domain.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

func (m *mongoRepository) GetProduct(ctx context.Context, userID, productID string) (*domain.Product, error) {
	var p domain.Product
	err := m.products.FindOne(ctx, bson.M{"_id": productID, "user_id": userID}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (m *mongoRepository) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	cur, err := m.categories.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := []domain.Category{}
	if err := cur.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	return categories, nil
}

func (m *mongoRepository) GetBusinessConfig(ctx context.Context, userID string) (*domain.BusinessConfig, error) {
	var cfg domain.BusinessConfig
	err := m.businesses.FindOne(ctx, bson.M{"_id": userID}).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("failed to get business config: %w", err)
	}
	return &cfg, nil
}

// DecrementStock applies newStock = max(0, stock - quantity) at most once per
// settlement. A product without a stock counter counts as 0 and ends at 0.
func (m *mongoRepository) DecrementStock(ctx context.Context, userID, productID string, quantity int, settlementID string) error {
	filter := bson.M{
		"_id":                 productID,
		"user_id":             userID,
		"applied_settlements": bson.M{"$ne": settlementID},
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "quantity", Value: bson.D{{Key: "$max", Value: bson.A{0, bson.D{{Key: "$subtract", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$quantity", 0}}},
				quantity,
			}}}}}}},
			{Key: "applied_settlements", Value: appendBounded("$applied_settlements", settlementID)},
			{Key: "updated_at", Value: "$$NOW"},
		}}},
	}

	res, err := m.products.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to decrement stock for %s: %w", productID, err)
	}
	if res.MatchedCount == 0 {
		return m.ensureProductExists(ctx, userID, productID)
	}
	return nil
}

// IncrementSold adds quantity to the lifetime sold counter at most once per settlement.
func (m *mongoRepository) IncrementSold(ctx context.Context, userID, productID string, quantity int, settlementID string) error {
	filter := bson.M{
		"_id":              productID,
		"user_id":          userID,
		"sold_settlements": bson.M{"$ne": settlementID},
	}
	update := bson.M{
		"$inc": bson.M{"sales": quantity},
		"$push": bson.M{"sold_settlements": bson.M{
			"$each":  bson.A{settlementID},
			"$slice": -appliedWindow,
		}},
		"$currentDate": bson.M{"updated_at": true},
	}

	res, err := m.products.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to increment sold counter for %s: %w", productID, err)
	}
	if res.MatchedCount == 0 {
		return m.ensureProductExists(ctx, userID, productID)
	}
	return nil
}

// SaveSale upserts by sale id into all three indexes, so a retry rewrites
// instead of duplicating.
func (m *mongoRepository) SaveSale(ctx context.Context, sale *domain.SaleRecord) error {
	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"_id": sale.ID}

	for _, coll := range []*mongo.Collection{m.sales, m.userSales, m.userSalesDate} {
		if _, err := coll.ReplaceOne(ctx, filter, sale, opts); err != nil {
			return fmt.Errorf("failed to write sale to %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (m *mongoRepository) GetSale(ctx context.Context, userID, saleID string) (*domain.SaleRecord, error) {
	var sale domain.SaleRecord
	err := m.userSales.FindOne(ctx, bson.M{"_id": saleID, "user_id": userID}).Decode(&sale)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return &sale, nil
}

func (m *mongoRepository) ListSalesByDate(ctx context.Context, userID, date string) ([]domain.SaleRecord, error) {
	cur, err := m.userSalesDate.Find(ctx,
		bson.M{"user_id": userID, "date": date},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	sales := []domain.SaleRecord{}
	if err := cur.All(ctx, &sales); err != nil {
		return nil, fmt.Errorf("failed to decode sales: %w", err)
	}
	return sales, nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	if _, err := m.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "name", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}

	if _, err := m.categories.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create category indexes: %w", err)
	}

	if _, err := m.userSales.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("failed to create user sales indexes: %w", err)
	}

	if _, err := m.userSalesDate.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create sales by date indexes: %w", err)
	}

	return nil
}

func (m *mongoRepository) ensureProductExists(ctx context.Context, userID, productID string) error {
	n, err := m.products.CountDocuments(ctx, bson.M{"_id": productID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to check product: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	// already applied for this settlement
	return nil
}

func appendBounded(field, value string) bson.D {
	return bson.D{{Key: "$slice", Value: bson.A{
		bson.D{{Key: "$concatArrays", Value: bson.A{
			bson.D{{Key: "$ifNull", Value: bson.A{field, bson.A{}}}},
			bson.A{value},
		}}},
		-appliedWindow,
	}}}
}
