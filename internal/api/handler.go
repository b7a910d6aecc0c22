package api

import (
	"context"
	"net/http"
	"time"

	"tnf-api/internal/auth"
	"tnf-api/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	identity IdentityAPI
	catalog  CatalogAPI
	social   SocialAPI
	search   SearchAPI
	payments PaymentAPI
	webhooks WebhookAPI
	sync     SyncTrigger

	tokens *auth.JWTService
	checks map[string]Pinger
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler. checks are pinged by /ready.
func NewHandler(svc Services, tokens *auth.JWTService, checks map[string]Pinger) *Handler {
	return &Handler{
		identity: svc.Identity,
		catalog:  svc.Catalog,
		social:   svc.Social,
		search:   svc.Search,
		payments: svc.Payments,
		webhooks: svc.Webhooks,
		sync:     svc.Sync,
		tokens:   tokens,
		checks:   checks,
		logger:   util.Named("api"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	required := requireAuth(h.tokens)
	optional := optionalAuth(h.tokens)

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.POST("/refresh", h.refresh)
		authGroup.GET("/me", required, h.me)

		v1.GET("/products", optional, h.listProducts)
		v1.GET("/products/:id", optional, h.getProduct)
		v1.GET("/trending", h.trending)
		v1.GET("/brands", h.listBrands)
		v1.GET("/categories", h.listCategories)
		v1.GET("/search", h.searchAll)

		v1.GET("/favorites", required, h.listFavorites)
		v1.POST("/favorites/:productId", required, h.addFavorite)
		v1.DELETE("/favorites/:productId", required, h.removeFavorite)
		v1.GET("/recently-viewed", required, h.recentlyViewed)

		v1.GET("/followed-brands", required, h.followedBrands)
		v1.POST("/brands/:id/follow", required, h.followBrand)
		v1.DELETE("/brands/:id/follow", required, h.unfollowBrand)

		v1.GET("/orders", required, h.listOrders)
		v1.GET("/orders/:id", required, h.getOrder)

		v1.POST("/payments/3d", optional, h.initiatePayment)
		v1.POST("/payments/callback", h.paymentCallback)

		v1.GET("/videos", optional, h.feed)
		v1.POST("/videos", required, h.createVideo)
		v1.GET("/videos/:id", optional, h.getVideo)
		v1.DELETE("/videos/:id", required, h.deleteVideo)
		v1.POST("/videos/:id/like", required, h.likeVideo)
		v1.DELETE("/videos/:id/like", required, h.unlikeVideo)
		v1.GET("/videos/:id/comments", h.listComments)
		v1.POST("/videos/:id/comments", required, h.addComment)
		v1.POST("/videos/:id/report", required, h.reportVideo)
		v1.DELETE("/comments/:id", required, h.deleteComment)

		v1.GET("/users/:id", optional, h.userProfile)
		v1.GET("/users/:id/followers", optional, h.followers)
		v1.GET("/users/:id/followings", optional, h.followings)
		v1.GET("/users/:id/videos", optional, h.userVideos)
		v1.POST("/users/:id/follow", required, h.followUser)
		v1.DELETE("/users/:id/follow", required, h.unfollowUser)

		v1.POST("/webhooks/ikas", h.receiveWebhook)

		admin := v1.Group("/admin", required, requireAdmin())
		admin.POST("/sync/:job", h.runSync)
		admin.GET("/webhooks", h.listWebhooks)
		admin.DELETE("/webhooks", h.deleteWebhooks)
		admin.POST("/orders/:id/refund", h.refundOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency and reports the failing ones.
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failing := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			failing[name] = err.Error()
		}
	}
	if len(failing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"failing": failing,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}
