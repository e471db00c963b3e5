package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	App struct {
		Name    string `envconfig:"APP_NAME" default:"ZARgusta"`
		Port    int    `envconfig:"PORT" default:"8080"`
		Version string `envconfig:"APP_VERSION" default:"2.0.0"`
	}

	Store struct {
		Backend    string `envconfig:"STORE_BACKEND" default:"file"`
		DataDir    string `envconfig:"DATA_DIR" default:"./data"`
		SQLitePath string `envconfig:"SQLITE_PATH" default:"./data/fund.db"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"zargusta"`
	}

	Server struct {
		Timeout        time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		AllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}

	Price struct {
		Currency        string        `envconfig:"PRICE_CURRENCY" default:"ZAR"`
		CoinGeckoURL    string        `envconfig:"COINGECKO_URL" default:"https://api.coingecko.com/api/v3"`
		BinanceURL      string        `envconfig:"BINANCE_TICKER_URL" default:"https://api.binance.com/api/v3/ticker/price?symbol=BTCUSDT"`
		FXURL           string        `envconfig:"FX_URL" default:"https://open.er-api.com/v6/latest/USD"`
		DefaultFXRate   float64       `envconfig:"DEFAULT_FX_RATE" default:"16.1"`
		CacheTTL        time.Duration `envconfig:"PRICE_CACHE_TTL" default:"2m"`
		RefreshInterval time.Duration `envconfig:"PRICE_REFRESH_INTERVAL" default:"5m"`
		HTTPTimeout     time.Duration `envconfig:"PRICE_HTTP_TIMEOUT" default:"10s"`
	}

	Admin struct {
		Key        string        `envconfig:"ADMIN_KEY"`
		JWTSecret  string        `envconfig:"ADMIN_JWT_SECRET"`
		SessionTTL time.Duration `envconfig:"ADMIN_SESSION_TTL" default:"12h"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"text"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

// Logger builds the process logger described by the Log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	switch cfg.Store.Backend {
	case BackendFile, BackendPostgres, BackendSQLite:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
	}

	return &cfg, nil
}
