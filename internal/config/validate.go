package config

import (
	"errors"
	"fmt"
)

// Validate checks that required fields are set and values are usable.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Fetch.MonthlyTimeoutSec < 1 {
		return errors.New("fetch.monthly_timeout_sec must be >= 1")
	}
	if c.Fetch.PriorTimeoutSec < 1 {
		return errors.New("fetch.prior_timeout_sec must be >= 1")
	}

	enabled := 0
	if c.Tushare.Enabled {
		enabled++
		if c.Tushare.Token == "" {
			return errors.New("tushare.token is required when tushare is enabled")
		}
	}
	if c.Baostock.Enabled || c.Akshare.Enabled {
		if c.Baostock.Enabled {
			enabled++
		}
		if c.Akshare.Enabled {
			enabled++
		}
		if c.Bridge.URL == "" {
			return errors.New("bridge.url is required when akshare or baostock is enabled")
		}
	}
	if c.Finnhub.Enabled {
		enabled++
		if c.Finnhub.APIKey == "" {
			return errors.New("finnhub.api_key is required when finnhub is enabled")
		}
	}
	if enabled == 0 {
		return errors.New("at least one provider must be enabled")
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			if err := c.Store.Postgres.validate("store.postgres"); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("store.driver %q is not one of memory, sqlite, postgres", c.Store.Driver)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
