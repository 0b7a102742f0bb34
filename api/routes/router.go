package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/storefront/api/controllers"
	"github.com/example/storefront/api/middleware"
	cartsvc "github.com/example/storefront/internal/cart"
	stocksvc "github.com/example/storefront/internal/inventory"
	ordersvc "github.com/example/storefront/internal/orders"
	productsvc "github.com/example/storefront/internal/products"
	promosvc "github.com/example/storefront/internal/promotions"
	reportsvc "github.com/example/storefront/internal/reports"
	reviewsvc "github.com/example/storefront/internal/reviews"
	suggestsvc "github.com/example/storefront/internal/suggest"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/db"
	"github.com/example/storefront/pkg/logger"
	"github.com/example/storefront/pkg/metrics"
	pkgredis "github.com/example/storefront/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	httpMetrics *metrics.HTTPMetrics,
	gatherer prometheus.Gatherer,
	productService productsvc.Service,
	cartService cartsvc.Service,
	orderService ordersvc.Service,
	lifecycleService ordersvc.LifecycleService,
	promotionService promosvc.Service,
	stockService stocksvc.Service,
	reviewService reviewsvc.Service,
	reportService reportsvc.Service,
	suggestService suggestsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	apiPolicy := middleware.NewRateLimitPolicy(
		"api",
		cfg.RateLimit.APIWindow,
		cfg.RateLimit.APIIPLimit,
	)
	suggestPolicy := middleware.NewRateLimitPolicy(
		"suggest",
		cfg.RateLimit.SuggestWindow,
		cfg.RateLimit.SuggestIPLimit,
	)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public storefront surface.
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(productService, logg))
			r.Get("/slug/{slug}", controllers.GetProductBySlug(productService, logg))
			r.Get("/{productId}", controllers.GetProduct(productService, logg))
			r.Get("/{productId}/reviews", controllers.ListProductReviews(reviewService, logg))
			r.Get("/{productId}/reviews/summary", controllers.ProductReviewSummary(reviewService, logg))
		})
		r.Get("/categories", controllers.ListCategories(productService, logg))
		r.With(middleware.RateLimit(apiPolicy, redisClient, logg)).
			Post("/promotions/validate", controllers.ValidatePromotion(promotionService, logg))

		// Customer surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(redisClient, logg))
			r.Use(middleware.RateLimit(apiPolicy, redisClient, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(cartService, logg))
				r.Post("/items", controllers.CartAddItem(cartService, logg))
				r.Put("/items/{itemId}", controllers.CartUpdateItem(cartService, logg))
				r.Delete("/items/{itemId}", controllers.CartRemoveItem(cartService, logg))
				r.Delete("/", controllers.CartClear(cartService, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListMyOrders(orderService, logg))
				r.Post("/", controllers.PlaceOrder(orderService, logg))
				r.Post("/direct", controllers.PlaceDirectOrder(orderService, logg))
				r.Get("/{orderId}", controllers.GetMyOrder(orderService, logg))
				r.Get("/{orderId}/shipment", controllers.GetMyShipment(orderService, logg))
				r.Post("/{orderId}/cancel", controllers.CancelMyOrder(orderService, logg))
			})

			r.Post("/reviews", controllers.CreateReview(reviewService, logg))
			r.With(middleware.RateLimit(suggestPolicy, redisClient, logg)).
				Post("/suggestions", controllers.SuggestProducts(suggestService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.RateLimit(apiPolicy, redisClient, logg))

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateProduct(productService, logg))
			r.Put("/{productId}", controllers.AdminUpdateProduct(productService, logg))
			r.Delete("/{productId}", controllers.AdminDeleteProduct(productService, logg))
		})
		r.Post("/categories", controllers.AdminCreateCategory(productService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(orderService, logg))
			r.Get("/{orderId}", controllers.AdminGetOrder(orderService, logg))
			r.Post("/{orderId}/confirm", controllers.AdminConfirmOrder(lifecycleService, logg))
			r.Post("/{orderId}/ship", controllers.AdminShipOrder(lifecycleService, logg))
			r.Post("/{orderId}/in-transit", controllers.AdminShipmentInTransit(lifecycleService, logg))
			r.Post("/{orderId}/deliver", controllers.AdminDeliverOrder(lifecycleService, logg))
			r.Post("/{orderId}/return", controllers.AdminReturnOrder(lifecycleService, logg))
			r.Post("/{orderId}/cancel", controllers.AdminCancelOrder(orderService, logg))
		})

		r.Route("/promotions", func(r chi.Router) {
			r.Get("/", controllers.AdminListPromotions(promotionService, logg))
			r.Post("/", controllers.AdminCreatePromotion(promotionService, logg))
			r.Get("/{promotionId}", controllers.AdminGetPromotion(promotionService, logg))
			r.Put("/{promotionId}", controllers.AdminUpdatePromotion(promotionService, logg))
			r.Delete("/{promotionId}", controllers.AdminDeletePromotion(promotionService, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/low-stock", controllers.AdminLowStock(stockService, logg))
			r.Get("/{variantId}", controllers.AdminGetStock(stockService, logg))
			r.Put("/{variantId}", controllers.AdminSetStock(stockService, logg))
			r.Post("/{variantId}/restock", controllers.AdminRestock(stockService, logg))
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", controllers.AdminListReviews(reviewService, logg))
			r.Post("/{reviewId}/approval", controllers.AdminSetReviewApproval(reviewService, logg))
			r.Delete("/{reviewId}", controllers.AdminDeleteReview(reviewService, logg))
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/sales", controllers.AdminSalesReport(reportService, logg))
			r.Get("/low-stock", controllers.AdminLowStockReport(reportService, logg))
		})
	})

	return r
}
