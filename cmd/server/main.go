package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memoriqr-service/config"
	"memoriqr-service/internal/api"
	"memoriqr-service/internal/auth"
	"memoriqr-service/internal/broker"
	"memoriqr-service/internal/notify"
	"memoriqr-service/internal/redisclient"
	"memoriqr-service/internal/service"
	"memoriqr-service/internal/store"
	"memoriqr-service/internal/util"
	"memoriqr-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting activation code service")

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	eventPublisher := broker.NewEventPublisher(producer)

	services := api.Services{
		Generator: service.NewCodeGenerator(db, redisClient, eventPublisher, service.GeneratorConfig{
			MaxQuantity:    cfg.Business.MaxBatchQuantity,
			ExpiryYears:    cfg.Business.CodeExpiryYears,
			IdempotencyTTL: cfg.Business.IdempotencyTTL,
		}),
		Ledger:      service.NewBatchLedger(db),
		Redeemer:    service.NewRedemptionRecorder(db, eventPublisher),
		Inventory:   service.NewInventoryCounters(db, redisClient, eventPublisher, cfg.Business.LowStockAlertTTL),
		Partners:    service.NewPartnerService(db, eventPublisher),
		Commissions: service.NewCommissionService(db, eventPublisher),
		Catalog:     service.NewCodeCatalog(db),
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup)
	dispatcher := notify.NewDispatcher(cfg.Notify.WebhookURL, cfg.Notify.RatePerSec)
	notificationWorker := worker.NewNotificationWorker(consumer, db, dispatcher)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Notification worker error", zap.Error(err))
		}
	}()

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	redeemLimit, err := api.RateLimit(cfg.Business.RedeemRate)
	if err != nil {
		logger.Fatal("Failed to configure rate limit", zap.Error(err))
	}

	router := gin.New()
	handler := api.NewHandler(services, auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), redeemLimit,
		map[string]func(context.Context) error{
			"database": db.Ping,
			"redis":    redisClient.Ping,
		})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := notificationWorker.Stop(); err != nil {
		logger.Error("Error stopping notification worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
