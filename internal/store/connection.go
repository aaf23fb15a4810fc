package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrInvalidPoolSize = errors.New("mongo min pool size exceeds max pool size")

// MongoSettings tunes the catalog and sales store connection.
type MongoSettings struct {
	URI                    string
	Database               string
	AppName                string
	MaxPoolSize            uint64
	MinPoolSize            uint64
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
}

// clientOptions leaves driver defaults in place for zero values.
func (s MongoSettings) clientOptions() (*options.ClientOptions, error) {
	if s.MaxPoolSize > 0 && s.MinPoolSize > s.MaxPoolSize {
		return nil, fmt.Errorf("%w: min=%d max=%d", ErrInvalidPoolSize, s.MinPoolSize, s.MaxPoolSize)
	}

	opts := options.Client().ApplyURI(s.URI)
	if s.AppName != "" {
		opts.SetAppName(s.AppName)
	}
	if s.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(s.MaxPoolSize)
	}
	if s.MinPoolSize > 0 {
		opts.SetMinPoolSize(s.MinPoolSize)
	}
	if s.ConnectTimeout > 0 {
		opts.SetConnectTimeout(s.ConnectTimeout)
	}
	if s.ServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(s.ServerSelectionTimeout)
	}
	return opts, nil
}

// ConnectMongoDB pings before returning and disconnects again when the ping fails.
func ConnectMongoDB(ctx context.Context, s MongoSettings) (*mongo.Database, error) {
	opts, err := s.clientOptions()
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	return client.Database(s.Database), nil
}
