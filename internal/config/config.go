package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"monthbars/internal/reconcile"
)

type Server struct {
	Port              string `json:"port" yaml:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
	MaxBodyBytes      int64  `json:"max_body_bytes" yaml:"max_body_bytes"`
}

// Limits are the per-provider decorators. Zero disables the corresponding one.
type Limits struct {
	MaxRequestsPerMinute int `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	MinRequestIntervalMs int `json:"min_request_interval_ms" yaml:"min_request_interval_ms"`
	Burst                int `json:"burst" yaml:"burst"`
	CacheTTLSeconds      int `json:"cache_ttl_sec" yaml:"cache_ttl_sec"`
	CacheMaxItems        int `json:"cache_max_items" yaml:"cache_max_items"`
}

type Tushare struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Token    string `json:"token" yaml:"token"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Limits   `yaml:",inline"`
}

type Baostock struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	AdjustFlag string `json:"adjust_flag" yaml:"adjust_flag"`
	Limits     `yaml:",inline"`
}

type Akshare struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Adjust  string `json:"adjust" yaml:"adjust"`
	Limits  `yaml:",inline"`
}

type Finnhub struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	APIKey    string   `json:"api_key" yaml:"api_key"`
	Endpoint  string   `json:"endpoint" yaml:"endpoint"`
	Exchanges []string `json:"exchanges" yaml:"exchanges"`
	Limits    `yaml:",inline"`
}

// Bridge is the HTTP sidecar that fronts the Python-only SDKs.
type Bridge struct {
	URL        string `json:"url" yaml:"url"`
	TimeoutSec int    `json:"timeout_sec" yaml:"timeout_sec"`
}

type Fetch struct {
	MonthlyTimeoutSec   int    `json:"monthly_timeout_sec" yaml:"monthly_timeout_sec"`
	PriorTimeoutSec     int    `json:"prior_timeout_sec" yaml:"prior_timeout_sec"`
	AuthorityProvider   string `json:"authority_provider" yaml:"authority_provider"`
	AuthorityTimeoutSec int    `json:"authority_timeout_sec" yaml:"authority_timeout_sec"`
}

func (f Fetch) MonthlyTimeout() time.Duration {
	return time.Duration(f.MonthlyTimeoutSec) * time.Second
}

func (f Fetch) PriorTimeout() time.Duration { return time.Duration(f.PriorTimeoutSec) * time.Second }

func (f Fetch) AuthorityTimeout() time.Duration {
	return time.Duration(f.AuthorityTimeoutSec) * time.Second
}

// DBConfig holds PostgreSQL connection settings. DSN, when set, wins over the parts.
type DBConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Name     string `json:"name" yaml:"name"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
	MinConns int    `json:"min_conns" yaml:"min_conns"`
	MaxConns int    `json:"max_conns" yaml:"max_conns"`
}

type Store struct {
	// Driver is one of memory, sqlite, postgres.
	Driver     string   `json:"driver" yaml:"driver"`
	SQLitePath string   `json:"sqlite_path" yaml:"sqlite_path"`
	Postgres   DBConfig `json:"postgres" yaml:"postgres"`
	// ParquetDir, when set, also receives every saved bar set as parquet files.
	ParquetDir string `json:"parquet_dir" yaml:"parquet_dir"`
}

type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type Config struct {
	Server    Server           `json:"server" yaml:"server"`
	Fetch     Fetch            `json:"fetch" yaml:"fetch"`
	Reconcile reconcile.Policy `json:"reconcile" yaml:"reconcile"`
	Tushare   Tushare          `json:"tushare" yaml:"tushare"`
	Baostock  Baostock         `json:"baostock" yaml:"baostock"`
	Akshare   Akshare          `json:"akshare" yaml:"akshare"`
	Finnhub   Finnhub          `json:"finnhub" yaml:"finnhub"`
	Bridge    Bridge           `json:"bridge" yaml:"bridge"`
	Store     Store            `json:"store" yaml:"store"`
	Log       Log              `json:"log" yaml:"log"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 90, MaxBodyBytes: 1 << 20},
		Fetch: Fetch{
			MonthlyTimeoutSec:   30,
			PriorTimeoutSec:     15,
			AuthorityProvider:   "tushare",
			AuthorityTimeoutSec: 30,
		},
		Reconcile: reconcile.DefaultPolicy(),
		Tushare: Tushare{
			Enabled:  true,
			Endpoint: "https://api.tushare.pro",
			Limits:   Limits{MaxRequestsPerMinute: 120, Burst: 5, CacheTTLSeconds: 300, CacheMaxItems: 2000},
		},
		Baostock: Baostock{
			AdjustFlag: "2",
			Limits:     Limits{MinRequestIntervalMs: 200, CacheTTLSeconds: 300, CacheMaxItems: 2000},
		},
		Akshare: Akshare{
			Adjust: "qfq",
			Limits: Limits{MinRequestIntervalMs: 500, CacheTTLSeconds: 300, CacheMaxItems: 2000},
		},
		Finnhub: Finnhub{
			Endpoint:  "https://finnhub.io/api/v1",
			Exchanges: []string{"US"},
			Limits:    Limits{MaxRequestsPerMinute: 60, Burst: 1, CacheTTLSeconds: 300, CacheMaxItems: 2000},
		},
		Bridge: Bridge{TimeoutSec: 60},
		Store: Store{
			Driver:     "memory",
			SQLitePath: "monthbars.db",
			Postgres:   DBConfig{Port: 5432, SSLMode: "prefer", MinConns: 1, MaxConns: 4},
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads config from path (.yaml/.yml or JSON). If path is empty it looks
// for config.yaml then config.json; a missing file yields defaults.
// Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, p := range []string{"config.yaml", "config.json"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// LoadAndValidate is Load followed by Validate.
func LoadAndValidate(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	setInt("REQUEST_TIMEOUT_SEC", &cfg.Server.RequestTimeoutSec, 1)
	setInt("MONTHLY_TIMEOUT_SEC", &cfg.Fetch.MonthlyTimeoutSec, 1)
	setInt("PRIOR_TIMEOUT_SEC", &cfg.Fetch.PriorTimeoutSec, 1)
	if v := os.Getenv("AUTHORITY_PROVIDER"); v != "" {
		cfg.Fetch.AuthorityProvider = v
	}

	if v := os.Getenv("TUSHARE_TOKEN"); v != "" {
		cfg.Tushare.Token = v
	}
	if v := os.Getenv("TUSHARE_ENDPOINT"); v != "" {
		cfg.Tushare.Endpoint = v
	}
	setBool("TUSHARE_ENABLED", &cfg.Tushare.Enabled)
	setInt("TUSHARE_MAX_RPM", &cfg.Tushare.MaxRequestsPerMinute, 0)

	setBool("BAOSTOCK_ENABLED", &cfg.Baostock.Enabled)
	if v := os.Getenv("BAOSTOCK_ADJUST_FLAG"); v != "" {
		cfg.Baostock.AdjustFlag = v
	}
	setBool("AKSHARE_ENABLED", &cfg.Akshare.Enabled)
	if v := os.Getenv("AKSHARE_ADJUST"); v != "" {
		cfg.Akshare.Adjust = v
	}

	setBool("FINNHUB_ENABLED", &cfg.Finnhub.Enabled)
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Finnhub.APIKey = v
	}
	if v := os.Getenv("FINNHUB_EXCHANGES"); v != "" {
		cfg.Finnhub.Exchanges = splitCSV(v)
	}
	setInt("FINNHUB_MAX_RPM", &cfg.Finnhub.MaxRequestsPerMinute, 0)

	if v := os.Getenv("BRIDGE_URL"); v != "" {
		cfg.Bridge.URL = v
	}

	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("STORE_DSN"); v != "" {
		cfg.Store.Postgres.DSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("PARQUET_DIR"); v != "" {
		cfg.Store.ParquetDir = v
	}
	if v := os.Getenv("PGPASSWORD"); v != "" {
		cfg.Store.Postgres.Password = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func setInt(key string, dst *int, min int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var x int
	if _, err := fmt.Sscanf(v, "%d", &x); err == nil && x >= min {
		*dst = x
	}
}

func setBool(key string, dst *bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n":
		*dst = false
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
