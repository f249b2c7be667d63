package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/go-sweet-shop/internal/interface/http"
	"github.com/oksasatya/go-sweet-shop/internal/interface/middleware"
)

// SweetModule wires the catalog routes.
// Public: GET /sweets, GET /sweets/search
// Authenticated: POST /sweets/:id/purchase
// Admin: POST /sweets, PUT /sweets/:id, DELETE /sweets/:id,
// POST /sweets/:id/restock, POST /sweets/:id/image
type SweetModule struct {
	Handler       *handlers.SweetHandler
	Verifier      middleware.TokenVerifier
	RDB           *redis.Client
	PurchaseLimit int
}

func NewSweetModule(h *handlers.SweetHandler, v middleware.TokenVerifier, rdb *redis.Client, purchaseLimit int) *SweetModule {
	return &SweetModule{Handler: h, Verifier: v, RDB: rdb, PurchaseLimit: purchaseLimit}
}

func (m *SweetModule) Register(rg *gin.RouterGroup) {
	sweets := rg.Group("/sweets")
	sweets.GET("", m.Handler.List)
	sweets.GET("/search", m.Handler.Search)

	purchaseLimiter := middleware.RateLimit(m.RDB, m.PurchaseLimit, time.Minute, middleware.KeyByPrincipal(), nil)
	sweets.POST("/:id/purchase", middleware.RequireAuthenticated(m.Verifier), purchaseLimiter, m.Handler.Purchase)

	admin := sweets.Group("")
	admin.Use(middleware.RequireAdmin(m.Verifier))
	{
		admin.POST("", m.Handler.Create)
		admin.PUT("/:id", m.Handler.Update)
		admin.DELETE("/:id", m.Handler.Delete)
		admin.POST("/:id/restock", m.Handler.Restock)
		admin.POST("/:id/image", m.Handler.UploadImage)
	}
}
