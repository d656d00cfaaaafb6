package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router := NewRouter(RouterParams{
		Logger:  discardLogger(),
		Config:  &Config{AppEnv: "development", RateLimitPerMinute: 100},
		Metrics: observability.NewMetrics(),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ledger_http_requests_total")
}

func TestActorMiddleware(t *testing.T) {
	var seen string
	handler := ActorMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/accounting/vouchers", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounting/vouchers", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, seen)

	req := httptest.NewRequest(http.MethodPost, "/accounting/vouchers", nil)
	req.Header.Set(ActorHeader, "  clerk-7 ")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "clerk-7", seen)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			PGDSN:                   "postgres://localhost/ledger",
			RedisAddr:               "127.0.0.1:6379",
			AttachmentMaxBytes:      1 << 20,
			AttachmentSessionTTL:    1,
			AttachmentSweepInterval: 1,
			ReportCacheTTL:          1,
			StatementDefaultPerPage: 15,
			RateLimitPerMinute:      60,
		}
	}
	cfg := valid()
	require.NoError(t, cfg.Validate())

	for name, mutate := range map[string]func(*Config){
		"dsn":       func(c *Config) { c.PGDSN = "" },
		"redis":     func(c *Config) { c.RedisAddr = "" },
		"max bytes": func(c *Config) { c.AttachmentMaxBytes = 0 },
		"ttl":       func(c *Config) { c.AttachmentSessionTTL = 0 },
		"per page":  func(c *Config) { c.StatementDefaultPerPage = 101 },
		"rate":      func(c *Config) { c.RateLimitPerMinute = 0 },
	} {
		cfg := valid()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestInTestMode(t *testing.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "false")
	RefreshTestMode()
	assert.False(t, InTestMode())

	t.Setenv(testModeEnv, "true")
	RefreshTestMode()
	assert.True(t, InTestMode())
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, logLevel(nil))
	assert.Equal(t, slog.LevelDebug, logLevel(&Config{LogLevel: "debug"}))
	assert.Equal(t, slog.LevelWarn, logLevel(&Config{LogLevel: "WARN"}))
	assert.Equal(t, slog.LevelInfo, logLevel(&Config{LogLevel: "loud"}))
	assert.NotNil(t, NewLogger(&Config{LogFormat: "json", LogLevel: "error"}))
}
