package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	req := require.New(t)
	cfg := NewConfig()

	req.Equal(":8080", cfg.Port)
	req.Equal([]string{"http://localhost:8080"}, cfg.AllowedOrigins)
	req.EqualValues(8192, cfg.MaxMessageSize)
	req.Equal(5, cfg.RateLimit.Burst)
	req.Equal(time.Second, cfg.RateLimit.RefillInterval)
	req.Equal(DriverBadger, cfg.StoreDriver)
	req.Equal(5*time.Second, cfg.StoreTimeout)
}

func TestSanitizeConfig_Falls_Back_To_Defaults(t *testing.T) {
	req := require.New(t)
	cfg := sanitizeConfig(Config{
		MaxMessageSize: -1,
		RateLimit:      RateLimitConfig{Burst: 0, RefillInterval: -time.Second},
		StoreDriver:    "  Postgres ",
	})

	def := defaultConfig()
	req.Equal(def.Port, cfg.Port)
	req.Equal(def.MaxMessageSize, cfg.MaxMessageSize)
	req.Equal(def.RateLimit, cfg.RateLimit)
	req.Equal(def.SendBufferSize, cfg.SendBufferSize)
	req.Equal(def.StoreTimeout, cfg.StoreTimeout)
	req.Equal(DriverPostgres, cfg.StoreDriver)
	req.Equal("info", cfg.LogLevel)
}

func TestLoadConfig_From_Environment(t *testing.T) {
	req := require.New(t)
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "250ms")
	t.Setenv("STORE_TIMEOUT", "2s")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	req.NoError(err)
	req.Equal(":9090", cfg.Port)
	req.Equal([]string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	req.Equal(3, cfg.RateLimit.Burst)
	req.Equal(250*time.Millisecond, cfg.RateLimit.RefillInterval)
	req.Equal(2*time.Second, cfg.StoreTimeout)
	req.Equal(DriverBadger, cfg.StoreDriver)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := LoadConfig()
		require.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("postgres without dsn", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("STORE_DRIVER", "postgres")
		t.Setenv("DATABASE_DSN", "")
		_, err := LoadConfig()
		require.ErrorContains(t, err, "DATABASE_DSN")
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("STORE_DRIVER", "sqlite")
		_, err := LoadConfig()
		require.ErrorContains(t, err, "unknown STORE_DRIVER")
	})

	t.Run("postgres with dsn", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("STORE_DRIVER", "postgres")
		t.Setenv("DATABASE_DSN", "postgres://localhost/pairchat")
		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, DriverPostgres, cfg.StoreDriver)
	})
}
