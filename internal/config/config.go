package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN      string `yaml:"dsn"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"db"`
	Relay struct {
		URL                   string `yaml:"url"`
		PublishTimeoutSeconds int64  `yaml:"publish_timeout_seconds"`
	} `yaml:"relay"`
	Gateway struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int64  `yaml:"timeout_seconds"`
		Strict         bool   `yaml:"strict"`
	} `yaml:"gateway"`
	Checkout struct {
		InvoiceTTLMinutes     int64 `yaml:"invoice_ttl_minutes"`
		ReceiptTimeoutSeconds int64 `yaml:"receipt_timeout_seconds"`
	} `yaml:"checkout"`
	Watcher struct {
		IntervalSeconds int64 `yaml:"interval_seconds"`
		BackfillMinutes int64 `yaml:"backfill_minutes"`
	} `yaml:"watcher"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Relay.URL == "" {
		return nil, errors.New("relay.url is required")
	}
	if cfg.Gateway.Strict && cfg.Gateway.URL == "" {
		return nil, errors.New("gateway.url is required in strict mode")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Relay.PublishTimeoutSeconds <= 0 {
		cfg.Relay.PublishTimeoutSeconds = 10
	}
	if cfg.Gateway.TimeoutSeconds <= 0 {
		cfg.Gateway.TimeoutSeconds = 10
	}
	if cfg.Checkout.InvoiceTTLMinutes <= 0 {
		cfg.Checkout.InvoiceTTLMinutes = 60
	}
	if cfg.Checkout.ReceiptTimeoutSeconds <= 0 {
		cfg.Checkout.ReceiptTimeoutSeconds = 75
	}
	if cfg.Watcher.IntervalSeconds <= 0 {
		cfg.Watcher.IntervalSeconds = 30
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		cfg.DB.MaxConns = int32(atoi64Or(int64(cfg.DB.MaxConns), v))
	}
	if v := os.Getenv("RELAY_URL"); v != "" {
		cfg.Relay.URL = v
	}
	if v := os.Getenv("RELAY_PUBLISH_TIMEOUT_SECONDS"); v != "" {
		cfg.Relay.PublishTimeoutSeconds = atoi64Or(cfg.Relay.PublishTimeoutSeconds, v)
	}
	if v := os.Getenv("GATEWAY_URL"); v != "" {
		cfg.Gateway.URL = v
	}
	if v := os.Getenv("GATEWAY_TIMEOUT_SECONDS"); v != "" {
		cfg.Gateway.TimeoutSeconds = atoi64Or(cfg.Gateway.TimeoutSeconds, v)
	}
	if v := os.Getenv("GATEWAY_STRICT"); v != "" {
		cfg.Gateway.Strict = v == "1" || v == "true"
	}
	if v := os.Getenv("INVOICE_TTL_MINUTES"); v != "" {
		cfg.Checkout.InvoiceTTLMinutes = atoi64Or(cfg.Checkout.InvoiceTTLMinutes, v)
	}
	if v := os.Getenv("RECEIPT_TIMEOUT_SECONDS"); v != "" {
		cfg.Checkout.ReceiptTimeoutSeconds = atoi64Or(cfg.Checkout.ReceiptTimeoutSeconds, v)
	}
	if v := os.Getenv("WATCHER_INTERVAL_SECONDS"); v != "" {
		cfg.Watcher.IntervalSeconds = atoi64Or(cfg.Watcher.IntervalSeconds, v)
	}
	if v := os.Getenv("WATCHER_BACKFILL_MINUTES"); v != "" {
		cfg.Watcher.BackfillMinutes = atoi64Or(cfg.Watcher.BackfillMinutes, v)
	}
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
