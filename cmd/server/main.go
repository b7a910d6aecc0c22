package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tnf-api/config"
	"tnf-api/internal/api"
	"tnf-api/internal/auth"
	"tnf-api/internal/broker"
	"tnf-api/internal/ikas"
	"tnf-api/internal/payment"
	"tnf-api/internal/redisclient"
	"tnf-api/internal/service"
	"tnf-api/internal/store"
	"tnf-api/internal/util"
	"tnf-api/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting tnf-api")

	tp, err := util.InitTracer("tnf-api", cfg.Observ.JaegerEndpoint, cfg.Observ.TraceSampleRatio)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(context.Background()); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	orderProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer orderProducer.Close()
	customerProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCustomer)
	defer customerProducer.Close()
	logger.Info("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(orderProducer, customerProducer)

	// commerce platform: the OAuth token is shared by every instance through redis
	httpClient := ikas.NewHTTPClient(cfg.Ikas.RequestTimeout)
	tokenSource := ikas.NewTokenSource(httpClient, cfg.Ikas.TokenURL, cfg.Ikas.ClientID, cfg.Ikas.ClientSecret,
		redisclient.NewCredentialStore(redisClient))
	commerce := ikas.NewClient(httpClient, cfg.Ikas.GraphQLURL, tokenSource)

	payments := payment.NewClient(httpClient, payment.Config{
		BaseURL:      cfg.Sipay.BaseURL,
		AppID:        cfg.Sipay.AppID,
		AppSecret:    cfg.Sipay.AppSecret,
		MerchantKey:  cfg.Sipay.MerchantKey,
		MerchantID:   cfg.Sipay.MerchantID,
		Currency:     cfg.Sipay.Currency,
		Installments: cfg.Sipay.Installments,
		ReturnURL:    cfg.Sipay.ReturnURL,
		CancelURL:    cfg.Sipay.CancelURL,
	}, nil)

	tokens := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, cfg.Auth.RefreshTokenExpiry)

	variantTypes := redisclient.NewVariantTypeCache(redisClient, cfg.Sync.Interval)
	catalogService := service.NewCatalogService(db, commerce, variantTypes, cfg.Catalog.ListLimit, cfg.Catalog.VariantConcurrency)
	syncService := service.NewSyncService(db, commerce, eventPublisher, cfg.Sync.PageSize, cfg.Sync.PagesPerSecond)
	paymentService := service.NewPaymentService(db, payments, commerce, eventPublisher, service.PaymentConfig{
		Currency:       cfg.Sipay.Currency,
		SalesChannelID: cfg.Ikas.SalesChannelID,
		StorefrontID:   cfg.Ikas.StorefrontID,

		AllowUnsignedCallback: cfg.Sipay.AllowUnsignedCallback,
	})
	identityService := service.NewIdentityService(db, commerce, tokens, cfg.Auth.AdminEmails)
	socialService := service.NewSocialService(db, commerce)
	searchService := service.NewSearchService(db)
	webhookService := service.NewWebhookService(db, commerce, eventPublisher, redisClient)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	scheduler := worker.NewSyncScheduler(syncService, redisClient, cfg.Sync.Interval, cfg.Sync.RunOnStart)
	scheduler.Start(workerCtx)

	customerConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCustomer, cfg.Kafka.ConsumerGroup)
	customerWorker := worker.NewEventWorker(customerConsumer, webhookService, nil)
	go func() {
		if err := customerWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Customer worker error", zap.Error(err))
		}
	}()

	orderConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	orderWorker := worker.NewEventWorker(orderConsumer, nil, paymentService)
	go func() {
		if err := orderWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Order worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Identity: identityService,
		Catalog:  catalogService,
		Social:   socialService,
		Search:   searchService,
		Payments: paymentService,
		Webhooks: webhookService,
		Sync:     scheduler,
	}, tokens, map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
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
	scheduler.Stop()
	if err := customerWorker.Stop(); err != nil {
		logger.Warn("Failed to stop customer worker", zap.Error(err))
	}
	if err := orderWorker.Stop(); err != nil {
		logger.Warn("Failed to stop order worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
