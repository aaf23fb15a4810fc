package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fjod/go_pos/internal/auth"
	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/checkout"
	"github.com/fjod/go_pos/internal/config"
	"github.com/fjod/go_pos/internal/consumer"
	"github.com/fjod/go_pos/internal/fieldcrypt"
	h "github.com/fjod/go_pos/internal/http"
	"github.com/fjod/go_pos/internal/ledger"
	"github.com/fjod/go_pos/internal/logger"
	"github.com/fjod/go_pos/internal/persistence"
	"github.com/fjod/go_pos/internal/persistence/local"
	"github.com/fjod/go_pos/internal/persistence/remote"
	"github.com/fjod/go_pos/internal/publisher"
	"github.com/fjod/go_pos/internal/receipt"
	"github.com/fjod/go_pos/internal/session"
	"github.com/fjod/go_pos/internal/store"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.IsDevelopment())
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cipher, err := fieldcrypt.New(cfg.Security.EncryptionKey, log)
	if err != nil {
		log.Fatal("failed to init field encryption", zap.Error(err))
	}
	tokens, err := auth.NewTokens(cfg.Security.JWTSecret, 12*time.Hour)
	if err != nil {
		log.Fatal("failed to init token validation", zap.Error(err))
	}

	// Product, business and sales store
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	mongoDB, err := store.ConnectMongoDB(connectCtx, store.MongoSettings{
		URI:                    cfg.Mongo.URI,
		Database:               cfg.Mongo.Database,
		AppName:                "pos",
		MaxPoolSize:            cfg.Mongo.MaxPoolSize,
		MinPoolSize:            cfg.Mongo.MinPoolSize,
		ConnectTimeout:         cfg.Mongo.ConnectTimeout,
		ServerSelectionTimeout: cfg.Mongo.ServerSelectionTimeout,
	})
	cancel()
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Warn("error disconnecting MongoDB", zap.Error(err))
		}
	}()
	repo := store.NewMongoRepository(mongoDB)
	if err := repo.CreateIndexes(ctx); err != nil {
		log.Fatal("failed to create MongoDB indexes", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}

	// Settlement ledger with transactional outbox
	cred := &ledger.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsDirPath,
	}
	ledgerRepo, err := ledger.NewRepository(cred)
	if err != nil {
		log.Fatal("failed to connect to ledger database", zap.Error(err))
	}
	defer ledgerRepo.Close()
	if err := ledgerRepo.RunMigrations(cred); err != nil {
		log.Fatal("failed to run ledger migrations", zap.Error(err))
	}

	// Device storage
	if err := os.MkdirAll(filepath.Dir(cfg.Local.DBPath), 0o755); err != nil {
		log.Fatal("failed to create device storage directory", zap.Error(err))
	}
	deviceStore, err := local.Open(cfg.Local.DBPath)
	if err != nil {
		log.Fatal("failed to open device storage", zap.Error(err))
	}
	defer deviceStore.Close()

	bridge := persistence.NewBridge(deviceStore, remote.NewRedisMirror(redisClient), cipher, log,
		persistence.WithTimeout(cfg.Timeouts.Remote))
	sessions := session.NewRegistry(bridge, bridge, log)

	catalogService := catalog.NewService(repo, catalog.NewRedisCache(redisClient), cipher, log)

	loc, err := time.LoadLocation(cfg.Receipt.Location)
	if err != nil {
		log.Fatal("unknown receipt timezone", zap.String("timezone", cfg.Receipt.Location), zap.Error(err))
	}
	renderer, err := receipt.NewRenderer(cfg.Receipt.Currency, receipt.WithLocation(loc))
	if err != nil {
		log.Fatal("failed to parse receipt template", zap.Error(err))
	}

	checkoutService := checkout.NewService(catalogService, repo, repo, ledgerRepo, bridge, renderer, cipher, log,
		checkout.WithTimeout(cfg.Timeouts.Remote))

	var printer h.ReceiptPrinter
	chromePath := cfg.Receipt.ChromePath
	if chromePath == "" {
		chromePath = receipt.DetectChromePath()
	}
	if chromePath != "" {
		printer = receipt.NewPDFPrinter(chromePath, cfg.Timeouts.Print)
	} else {
		log.Warn("no Chrome found, PDF receipts disabled")
	}

	poller := publisher.NewOutboxPoller(ledgerRepo, log, cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	defer poller.Close()

	dailyTotals := consumer.NewDailyTotals(redisClient)
	saleConsumer := consumer.NewConsumer(dailyTotals, log, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup, cfg.Kafka.Brokers...)
	defer saleConsumer.Close()

	go bridge.Run(ctx)
	go poller.Run(ctx)
	go saleConsumer.Run(ctx)

	router := h.NewRouter(h.Handlers{
		Session:  h.NewSessionHandler(sessions, bridge, cfg.Timeouts.Request),
		Tabs:     h.NewTabHandler(sessions, catalogService, cfg.Timeouts.Request),
		Checkout: h.NewCheckoutHandler(sessions, checkoutService, bridge, log, cfg.Timeouts.Request),
		Catalog:  h.NewCatalogHandler(catalogService, cfg.Timeouts.Request),
		Sales:    h.NewSalesHandler(checkoutService, dailyTotals, printer, cfg.Timeouts.Request),
	}, tokens, cfg.Timeouts.Request)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      otelhttp.NewHandler(http.MaxBytesHandler(router, cfg.HTTP.MaxRequestBodySize), "pos"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Timeouts.Print + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("POS service starting", zap.String("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
