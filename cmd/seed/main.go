package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-sweet-shop/config"
	"github.com/oksasatya/go-sweet-shop/internal/application"
	"github.com/oksasatya/go-sweet-shop/internal/infrastructure/elastic"
	pginfra "github.com/oksasatya/go-sweet-shop/internal/infrastructure/postgres"
	"github.com/oksasatya/go-sweet-shop/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, pginfra.PoolConfig{
		DSN:         cfg.PostgresDSN(),
		MaxConns:    2,
		MinConns:    1,
		MaxConnLife: cfg.DBMaxConnLife,
	})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	auth := application.NewAuthService(
		pginfra.NewUserRepository(pool),
		helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.AccessTTL),
		helpers.NewPasswordHasher(cfg.BcryptCost),
		logger,
	)
	admin, created, err := auth.EnsureAdmin(ctx, application.RegisterInput{
		Name:     cfg.SeedAdminName,
		Email:    cfg.SeedAdminEmail,
		Password: cfg.SeedAdminPassword,
	})
	if err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	logger.WithField("user_id", admin.ID).WithField("email", admin.Email).WithField("created", created).Info("admin ensured")

	var opts []application.SweetOption
	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		es, err := elastic.NewClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			log.Fatalf("elasticsearch client: %v", err)
		}
		idx := elastic.NewSweetIndex(es, cfg.ESSweetsIndex)
		if err := idx.EnsureIndex(ctx); err != nil {
			logger.WithError(err).Warn("elasticsearch unavailable; seeded sweets will not be indexed")
		} else {
			opts = append(opts, application.WithSearchIndex(idx, false))
		}
	}

	sweets := application.NewSweetService(pginfra.NewSweetRepository(pool), logger, opts...)
	added, err := sweets.SeedCatalog(ctx, demoPatches())
	if err != nil {
		log.Fatalf("failed to seed sweets: %v", err)
	}
	logger.WithField("added", added).Info("catalog seeded")

	if len(opts) > 0 {
		n, err := sweets.RebuildIndex(ctx)
		if err != nil {
			logger.WithError(err).Warn("search index rebuild failed")
		} else {
			logger.WithField("sweets", n).Info("search index rebuilt")
		}
	}
}
