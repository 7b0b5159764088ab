package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"transaction-service/config"
	"transaction-service/consumers"
	"transaction-service/controllers"
	"transaction-service/database"
	"transaction-service/middlewares"
	"transaction-service/rabbitmq"
	"transaction-service/repositories"
	"transaction-service/seeders"
	"transaction-service/services"
	"transaction-service/workers"
)

type stores struct {
	catalog      repositories.CatalogStore
	transactions repositories.TransactionRepository
	payments     repositories.PaymentRepository
	db           *sql.DB
}

func newStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreDriver != "mysql" {
		return &stores{
			catalog:      repositories.NewMemoryCatalog(),
			transactions: repositories.NewMemoryTransactionRepository(),
			payments:     repositories.NewMemoryPaymentRepository(),
		}, nil
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &stores{
		catalog:      repositories.NewMySQLCatalog(db),
		transactions: repositories.NewMySQLTransactionRepository(db),
		payments:     repositories.NewMySQLPaymentRepository(db),
		db:           db,
	}, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	cfg := config.LoadConfig()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Logger initialization failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := newStores(ctx, cfg)
	if err != nil {
		logger.Fatal("store initialization failed", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	if st.db != nil {
		defer st.db.Close()
	}

	if cfg.SeedCatalog {
		if _, err := seeders.Seed(ctx, st.catalog, logger); err != nil {
			logger.Fatal("catalog seeding failed", zap.Error(err))
		}
	}

	pool := workers.NewPool(cfg.WorkerPoolSize, cfg.WorkerQueueCapacity)
	defer pool.Close()

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithPool(pool),
		services.WithDetailConcurrency(cfg.DetailConcurrency),
		services.WithPaymentCheckDelay(cfg.PaymentCheckDelay),
	}

	var rmq *rabbitmq.RabbitMQ
	if cfg.EventsEnabled {
		rmq, err = rabbitmq.NewRabbitMQ(cfg, logger)
		if err != nil {
			logger.Fatal("RabbitMQ initialization failed", zap.Error(err))
		}
		defer rmq.Close()

		if err := rmq.SetupQueues(); err != nil {
			logger.Fatal("failed to setup RabbitMQ queues", zap.Error(err))
		}
		opts = append(opts, services.WithPublisher(rmq))
	}

	transactionService := services.NewTransactionService(st.catalog, st.transactions, st.payments, opts...)
	paymentService := services.NewPaymentService(st.payments)

	if rmq != nil {
		// The consumer gets its own channel so a consume error cannot close the publishing one.
		ch, err := rmq.Conn.Channel()
		if err != nil {
			logger.Fatal("failed to open consumer channel", zap.Error(err))
		}
		defer ch.Close()
		consumer := consumers.NewTransactionConsumer(transactionService, logger)
		if err := consumer.Start(ctx, ch, cfg); err != nil {
			logger.Fatal("failed to start consumer", zap.Error(err))
		}
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.PrometheusMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	controllers.NewTransactionController(transactionService, logger).RegisterRoutes(api)
	controllers.NewPaymentController(paymentService, logger).RegisterRoutes(api)
	api.POST("/dead-letter", controllers.DeadLetterHandler(logger))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("transaction service starting", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}
