package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"STORE_DRIVER", "SEARCH_BACKEND", "JWT_ACCESS_TTL", "LOW_STOCK_THRESHOLD", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, SearchBackendStore, cfg.SearchBackend)
	assert.Equal(t, 24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 5, cfg.LowStockThreshold)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("SEARCH_BACKEND", "elasticsearch")
	t.Setenv("JWT_ACCESS_TTL", "15m")
	t.Setenv("AUTH_RATE_LIMIT", "3")
	t.Setenv("DEBUG_METRICS_ENABLED", "true")
	t.Setenv("ELASTICSEARCH_ADDRS", " http://a:9200 , ,http://b:9200")
	t.Setenv("INDEX_REBUILD_INTERVAL", "30s")

	cfg := Load()
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, SearchBackendElasticsearch, cfg.SearchBackend)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 3, cfg.AuthRateLimit)
	assert.True(t, cfg.DebugMetricsEnabled)
	assert.Equal(t, []string{"http://a:9200", "http://b:9200"}, cfg.ESAddrs())
	assert.Equal(t, 30*time.Second, cfg.IndexRebuildInterval)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("AUTH_RATE_LIMIT", "lots")
	t.Setenv("JWT_ACCESS_TTL", "forever")
	t.Setenv("HTTP_LOG_ENABLED", "maybe")

	cfg := Load()
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 10, cfg.AuthRateLimit)
	assert.Equal(t, 24*time.Hour, cfg.AccessTTL)
	assert.False(t, cfg.HTTPLogEnabled)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "5432", DBName: "d", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", cfg.PostgresDSN())
	assert.False(t, cfg.MailerConfigured())
}
