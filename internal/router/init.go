package router

import (
	"github.com/oksasatya/go-sweet-shop/internal/container"
	handlers "github.com/oksasatya/go-sweet-shop/internal/interface/http"
	"github.com/oksasatya/go-sweet-shop/internal/router/modules"
)

// InitModules builds the handlers from c and registers every module.
// Call once during startup, before RegisterAll.
func InitModules(r *Registry, c *container.Container) {
	r.Add(modules.NewSweetModule(handlers.NewSweetHandler(c.Sweets, c.Logger), c.Verifier, c.Redis, c.Config.PurchaseRateLimit))
	r.Add(modules.NewAuthModule(handlers.NewAuthHandler(c.Auth, c.Logger), c.Redis, c.Config.AuthRateLimit))
	if c.Config.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(c.Redis))
	}
	r.Engine.GET("/healthz", modules.Health)
}
