package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awspkg "github.com/cafe360/local-commerce/backend/pkg/aws"
	applogger "github.com/cafe360/local-commerce/backend/services/common/logger"
	"github.com/cafe360/local-commerce/backend/services/common/metrics"
	"github.com/cafe360/local-commerce/backend/services/common/middleware"
	"github.com/cafe360/local-commerce/backend/services/order-service/controllers"
	"github.com/cafe360/local-commerce/backend/services/order-service/database"
	"github.com/cafe360/local-commerce/backend/services/order-service/events"
	"github.com/cafe360/local-commerce/backend/services/order-service/models"
	"github.com/cafe360/local-commerce/backend/services/order-service/push"
	"github.com/cafe360/local-commerce/backend/services/order-service/realtime"
	"github.com/cafe360/local-commerce/backend/services/order-service/repository"
	"github.com/cafe360/local-commerce/backend/services/order-service/routes"
	"github.com/cafe360/local-commerce/backend/services/order-service/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const serviceName = "order-service"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := applogger.NewService(ctx, getEnv("ENV", "development"), serviceName)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Config load failed", zap.Error(err))
	}

	db, err := database.ConnectPostgres(cfg.Database, logger, &models.Order{}, &models.OrderLine{})
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer database.Close(db)

	metricsClient, err := awspkg.NewMetricsClient(ctx)
	if err != nil {
		logger.Warn("CloudWatch metrics client init failed (non-fatal)", zap.Error(err))
	}

	registry := metrics.NewRegistry()
	httpMetrics := metrics.NewServerMetrics(registry, "order_service")

	// Realtime: local hub, optionally fanned across instances through Redis
	hub := realtime.NewHub(logger, registry)
	var broadcaster realtime.Broadcaster = hub
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, broadcasting to local connections only", zap.Error(err))
		} else {
			defer redisClient.Close()
			relay := realtime.NewRedisRelay(redisClient, hub, "", logger)
			broadcaster = relay
			go func() {
				if err := relay.Run(ctx); err != nil {
					logger.Error("Realtime relay stopped", zap.Error(err))
				}
			}()
		}
	}

	var pushSender push.Sender
	if cfg.FirebaseProjectID != "" || cfg.FirebaseCredentialsFile != "" {
		sender, err := push.NewFCMSender(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			logger.Warn("Push notifications disabled", zap.Error(err))
		} else {
			pushSender = sender
		}
	}

	var publishers events.Multi
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OrderEventsTopic, logger)
		defer kafkaPublisher.Close()
		publishers = append(publishers, kafkaPublisher)
	}
	if cfg.OrderSNSTopicArn != "" {
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			logger.Warn("SNS order events disabled", zap.Error(err))
		} else {
			publishers = append(publishers, events.NewSNSPublisher(awspkg.NewSNSClient(awsCfg), cfg.OrderSNSTopicArn))
		}
	}
	var publisher events.Publisher
	if len(publishers) > 0 {
		publisher = publishers
	}

	// Dependency injection
	orderRepo := repository.NewGormOrderRepository(db)
	notifier := services.NewNotifier(services.NotifierConfig{
		Broadcaster: broadcaster,
		Push:        pushSender,
		Tokens:      orderRepo,
		Events:      publisher,
		Timeout:     cfg.FanoutTimeout,
		Registerer:  registry,
		CloudWatch:  metricsClient,
		Logger:      logger,
	})
	orderService := services.NewOrderService(orderRepo, notifier, metricsClient, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(applogger.RequestID())
	r.Use(middleware.SecurityHeaders())
	r.Use(httpMetrics.Middleware())
	r.Use(middleware.MetricsMiddleware(metricsClient, serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	routes.RegisterHealthRoutes(r, controllers.NewHealthController(func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}))
	r.GET("/metrics", gin.WrapH(metrics.Handler(registry)))
	routes.RegisterRealtimeRoutes(r, realtime.NewHandler(hub, cfg.SendBuffer, logger).ServeWS)
	routes.RegisterOrderRoutes(r, controllers.NewOrderController(orderService))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Order service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	fanoutDone := make(chan struct{})
	go func() {
		notifier.Wait()
		close(fanoutDone)
	}()
	select {
	case <-fanoutDone:
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown deadline reached with notifications in flight")
	}
	logger.Info("Order service stopped")
}
