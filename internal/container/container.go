// Package container holds the process-wide components built at startup.
// A Container is constructed once in main and passed to the router; there
// is no package-level state.
package container

import (
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-sweet-shop/config"
	"github.com/oksasatya/go-sweet-shop/internal/application"
	"github.com/oksasatya/go-sweet-shop/internal/interface/middleware"
)

type Container struct {
	Config *config.Config
	Logger *logrus.Logger

	// Redis is nil when no Redis is configured; rate limiting then fails open.
	Redis *redis.Client

	Sweets   *application.SweetService
	Auth     *application.AuthService
	Verifier middleware.TokenVerifier

	closers []func() error
}

// OnClose registers fn to run at shutdown, in reverse registration order.
func (c *Container) OnClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Close releases every registered resource and reports the failures.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && c.Logger != nil {
			c.Logger.WithError(err).Warn("close failed")
		}
	}
	c.closers = nil
}
