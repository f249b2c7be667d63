package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/go-sweet-shop/internal/interface/http"
	"github.com/oksasatya/go-sweet-shop/internal/interface/middleware"
)

type AuthModule struct {
	Handler *handlers.AuthHandler
	RDB     *redis.Client
	Limit   int
}

func NewAuthModule(h *handlers.AuthHandler, rdb *redis.Client, limit int) *AuthModule {
	return &AuthModule{Handler: h, RDB: rdb, Limit: limit}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	// Public endpoints with IP-based rate limits
	limiter := middleware.RateLimit(m.RDB, m.Limit, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/auth/register", limiter, m.Handler.Register)
	rg.POST("/auth/login", limiter, m.Handler.Login)
}
