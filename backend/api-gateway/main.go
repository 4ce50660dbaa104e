package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cafe360/local-commerce/backend/api-gateway/routes"
	"github.com/cafe360/local-commerce/backend/api-gateway/utils"
	awspkg "github.com/cafe360/local-commerce/backend/pkg/aws"
	applogger "github.com/cafe360/local-commerce/backend/services/common/logger"
	"github.com/cafe360/local-commerce/backend/services/common/metrics"
	"github.com/cafe360/local-commerce/backend/services/common/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const serviceName = "api-gateway"

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

	table, err := routes.DefaultTable(cfg.Upstreams)
	if err != nil {
		logger.Fatal("Invalid route table", zap.Error(err))
	}
	for _, rule := range table {
		logger.Info("Route registered",
			zap.String("prefix", rule.Prefix),
			zap.String("target", rule.Target),
			zap.Stringer("rewrite", rule.Rewrite.Kind),
			zap.Bool("upgrade", rule.Upgrade),
		)
	}

	metricsClient, err := awspkg.NewMetricsClient(ctx)
	if err != nil {
		logger.Warn("CloudWatch metrics client init failed (non-fatal)", zap.Error(err))
	}

	registry := metrics.NewRegistry()
	httpMetrics := metrics.NewServerMetrics(registry, "api_gateway")
	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimit, cfg.RateBurst, 10*time.Minute)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(applogger.RequestID())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", applogger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", applogger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RateLimitMiddleware(limiter))
	r.Use(httpMetrics.Middleware())
	r.Use(middleware.MetricsMiddleware(metricsClient, serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler(registry)))

	fwd := utils.NewForwarder(cfg.UpstreamTimeout, cfg.DialTimeout, logger, metricsClient)
	routes.RegisterAllRoutes(r, table, fwd, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("API Gateway listening", zap.String("port", cfg.Port))
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
	logger.Info("API Gateway stopped")
}
