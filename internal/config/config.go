// Package config loads the faucet service configuration from YAML with
// environment overrides for secrets, and watches the file for changes.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr      = ":3000"
	defaultRedisAddr       = "localhost:6379"
	defaultGasStationURL   = "http://localhost:9123"
	defaultRPCURL          = "https://fullnode.testnet.sui.io:443"
	defaultTransferTimeout = 30 * time.Second
)

// LogConfig controls logrus output. Level may be changed at runtime via
// the config watcher; the other fields are read once at startup.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Config is the service configuration. Secrets may be supplied through
// environment variables instead of the file.
type Config struct {
	ListenAddr string `yaml:"listen-addr"`

	DatabaseURL string `yaml:"database-url"`

	RedisAddr     string `yaml:"redis-addr"`
	RedisPassword string `yaml:"redis-password"`
	RedisDB       int    `yaml:"redis-db"`

	GasStationURL   string        `yaml:"gas-station-url"`
	TransferTimeout time.Duration `yaml:"transfer-timeout"`

	RPCURL        string `yaml:"rpc-url"`
	FaucetAddress string `yaml:"faucet-address"`

	AdminToken string `yaml:"admin-token"`

	TrustForwardedFor bool `yaml:"trust-forwarded-for"`

	Log LogConfig `yaml:"log"`
}

// Load reads the YAML file at path, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s failed: %w", path, err)
	}
	cfg := &Config{}
	if err = yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s failed: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err = cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = defaultListenAddr
	}
	if strings.TrimSpace(c.RedisAddr) == "" {
		c.RedisAddr = defaultRedisAddr
	}
	if strings.TrimSpace(c.GasStationURL) == "" {
		c.GasStationURL = defaultGasStationURL
	}
	if c.TransferTimeout <= 0 {
		c.TransferTimeout = defaultTransferTimeout
	}
	if strings.TrimSpace(c.RPCURL) == "" {
		c.RPCURL = defaultRPCURL
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("FAUCET_ADMIN_TOKEN"); v != "" {
		c.AdminToken = v
	}
	if v := os.Getenv("FAUCET_GAS_STATION_URL"); v != "" {
		c.GasStationURL = v
	}
	if v := os.Getenv("FAUCET_WALLET_ADDRESS"); v != "" {
		c.FaucetAddress = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.ListenAddr = ":" + v
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("config: database-url is required (or DATABASE_URL)")
	}
	if strings.TrimSpace(c.AdminToken) == "" {
		return fmt.Errorf("config: admin-token is required (or FAUCET_ADMIN_TOKEN)")
	}
	return nil
}
