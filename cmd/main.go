package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/oksasatya/go-sweet-shop/config"
	"github.com/oksasatya/go-sweet-shop/internal/application"
	"github.com/oksasatya/go-sweet-shop/internal/container"
	"github.com/oksasatya/go-sweet-shop/internal/domain/repository"
	"github.com/oksasatya/go-sweet-shop/internal/infrastructure/cache"
	"github.com/oksasatya/go-sweet-shop/internal/infrastructure/elastic"
	"github.com/oksasatya/go-sweet-shop/internal/infrastructure/gcs"
	"github.com/oksasatya/go-sweet-shop/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/go-sweet-shop/internal/infrastructure/postgres"
	"github.com/oksasatya/go-sweet-shop/internal/interface/middleware"
	"github.com/oksasatya/go-sweet-shop/internal/router"
	"github.com/oksasatya/go-sweet-shop/pkg/helpers"
	"github.com/oksasatya/go-sweet-shop/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	c, err := build(ctx, cfg, logger)
	if err != nil {
		c.Close()
		log.Fatalf("startup failed: %v", err)
	}
	defer c.Close()

	indexCtx, stopIndex := context.WithCancel(ctx)
	defer stopIndex()
	if cfg.SearchBackend == config.SearchBackendElasticsearch {
		if n, err := c.Sweets.RebuildIndex(ctx); err != nil {
			logger.WithError(err).Warn("search index rebuild failed; search uses the store until it succeeds")
		} else {
			logger.WithField("sweets", n).Info("search index rebuilt")
		}
		go c.Sweets.KeepIndexFresh(indexCtx, cfg.IndexRebuildInterval)
	}

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	// CORS
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	r.Use(cors.New(corsCfg))
	if cfg.Env == "development" || cfg.HTTPLogEnabled {
		r.Use(gin.Logger())
	}

	reg := router.NewRegistry(r)
	router.InitModules(reg, c)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stopIndex()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}

// build constructs every component. The returned container is never nil, so
// partially opened resources can be closed on error.
func build(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*container.Container, error) {
	c := &container.Container{Config: cfg, Logger: logger}

	sweets, users, err := openStores(ctx, cfg, logger, c)
	if err != nil {
		return c, err
	}

	var opts []application.SweetOption

	if cfg.RedisAddr != "" {
		rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := helpers.PingRedis(ctx, rdb, 3*time.Second); err != nil {
			logger.WithError(err).Warn("redis unavailable; catalog cache and rate limiting disabled")
			_ = rdb.Close()
		} else {
			c.Redis = rdb
			c.OnClose(rdb.Close)
			opts = append(opts, application.WithCatalogCache(cache.NewCatalogCache(rdb, cfg.CatalogCacheTTL)))
		}
	}

	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		es, err := elastic.NewClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			return c, fmt.Errorf("elasticsearch client: %w", err)
		}
		idx := elastic.NewSweetIndex(es, cfg.ESSweetsIndex)
		if err := idx.EnsureIndex(ctx); err != nil {
			logger.WithError(err).Warn("elasticsearch index unavailable; search uses the store")
		} else {
			opts = append(opts, application.WithSearchIndex(idx, cfg.SearchBackend == config.SearchBackendElasticsearch))
		}
	}

	if cfg.RabbitMQURL != "" {
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQStockQueue)
		if err != nil {
			logger.WithError(err).Warn("rabbitmq unavailable; stock events disabled")
		} else {
			c.OnClose(func() error { pub.Close(); return nil })
			opts = append(opts, application.WithEventPublisher(pub))
		}
	}

	if cfg.GCSBucket != "" {
		gcsClient, err := gcs.NewClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			return c, fmt.Errorf("gcs client: %w", err)
		}
		c.OnClose(gcsClient.Close)
		opts = append(opts, application.WithImageStore(gcs.NewImageStore(gcsClient, cfg.GCSBucket)))
	}

	jwtManager := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.AccessTTL)
	auth := application.NewAuthService(users, jwtManager, helpers.NewPasswordHasher(cfg.BcryptCost), logger)

	c.Sweets = application.NewSweetService(sweets, logger, opts...)
	c.Auth = auth
	c.Verifier = auth
	return c, nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *logrus.Logger, c *container.Container) (repository.SweetRepository, repository.UserRepository, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.NewSweetRepository(), memory.NewUserRepository(), nil
	}

	pool, err := pginfra.NewPool(ctx, pginfra.PoolConfig{
		DSN:         cfg.PostgresDSN(),
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		MaxConnLife: cfg.DBMaxConnLife,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	c.OnClose(func() error { pool.Close(); return nil })

	// Run migrations using database/sql with pgx stdlib
	if err := runMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return pginfra.NewSweetRepository(pool), pginfra.NewUserRepository(pool), nil
}

func runMigrations(dsn string, migrationsDir string, logger *logrus.Logger) error {
	// Open sql DB via pgx stdlib
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsDir), "postgres", driver)
	if err != nil {
		return err
	}
	logger.Info("running migrations...")
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to run")
		return nil
	}
	return err
}
