package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/example/storefront/api/routes"
	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/inventory"
	"github.com/example/storefront/internal/orders"
	"github.com/example/storefront/internal/products"
	"github.com/example/storefront/internal/promotions"
	"github.com/example/storefront/internal/reports"
	"github.com/example/storefront/internal/reviews"
	"github.com/example/storefront/internal/suggest"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/db"
	"github.com/example/storefront/pkg/logger"
	"github.com/example/storefront/pkg/metrics"
	"github.com/example/storefront/pkg/migrate"
	"github.com/example/storefront/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	conn := dbClient.DB()
	productRepo := products.NewRepository(conn)
	stockRepo := inventory.NewRepository(conn)
	promotionRepo := promotions.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	reviewRepo := reviews.NewRepository(conn)
	reportRepo := reports.NewRepository(conn)

	productService, err := products.NewService(productRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}
	stockService, err := inventory.NewService(stockRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}
	promotionService, err := promotions.NewService(promotionRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create promotion service", err)
		os.Exit(1)
	}
	cartService, err := cart.NewService(cartRepo, productRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}
	orderService, err := orders.NewService(orderRepo, dbClient, stockService, promotionService, cartRepo, productRepo, orders.Config{
		ShippingFee:    cfg.Checkout.ShippingFeeAmount(),
		DefaultCarrier: cfg.Checkout.DefaultCarrier,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}
	lifecycleService, err := orders.NewLifecycleService(orderRepo, dbClient, stockService)
	if err != nil {
		logg.Error(context.Background(), "failed to create order lifecycle service", err)
		os.Exit(1)
	}
	reviewService, err := reviews.NewService(reviewRepo, productRepo, orderRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create review service", err)
		os.Exit(1)
	}
	reportService, err := reports.NewService(reportRepo, stockService)
	if err != nil {
		logg.Error(context.Background(), "failed to create report service", err)
		os.Exit(1)
	}
	suggestClient := suggest.NewClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	suggestService, err := suggest.NewService(suggestClient, productRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create suggestion service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			httpMetrics,
			registry,
			productService,
			cartService,
			orderService,
			lifecycleService,
			promotionService,
			stockService,
			reviewService,
			reportService,
			suggestService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
