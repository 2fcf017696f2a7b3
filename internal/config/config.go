// Package config loads server configuration from flags, environment
// variables (AQUAGUARD_ prefix) and an optional YAML file, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. AQUAGUARD_STORE_DRIVER.
const EnvPrefix = "AQUAGUARD"

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
	DriverDynamoDB = "dynamodb"
)

// Config is the complete server configuration.
type Config struct {
	ListenAddr      string      `mapstructure:"listen_addr"`
	StaticPath      string      `mapstructure:"static_path"`
	TrustedProxy    bool        `mapstructure:"trusted_proxy"`
	LogLevel        string      `mapstructure:"log_level"`
	Store           StoreConfig `mapstructure:"store"`
	Auth            AuthConfig  `mapstructure:"auth"`
	CORS            CORSConfig  `mapstructure:"cors"`
	PledgeRateLimit int         `mapstructure:"pledge_rate_limit"`
	SeedDefaults    bool        `mapstructure:"seed_defaults"`
}

// StoreConfig selects and configures the storage back-end.
type StoreConfig struct {
	Driver             string `mapstructure:"driver"`
	SQLitePath         string `mapstructure:"sqlite_path"`
	MongoURI           string `mapstructure:"mongo_uri"`
	MongoDatabase      string `mapstructure:"mongo_database"`
	DynamoRegion       string `mapstructure:"dynamo_region"`
	DynamoEndpoint     string `mapstructure:"dynamo_endpoint"`
	DynamoTablePrefix  string `mapstructure:"dynamo_table_prefix"`
	DynamoCreateTables bool   `mapstructure:"dynamo_create_tables"`
}

// AuthConfig configures token issuing.
type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	AdminEmails []string      `mapstructure:"admin_emails"`
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

var defaults = map[string]any{
	"listen_addr":                ":8080",
	"static_path":                "",
	"trusted_proxy":              false,
	"log_level":                  "info",
	"store.driver":               DriverSQLite,
	"store.sqlite_path":          "./data/aquaguard.db",
	"store.mongo_uri":            "mongodb://localhost:27017",
	"store.mongo_database":       "aquaguard",
	"store.dynamo_region":        "us-east-1",
	"store.dynamo_endpoint":      "",
	"store.dynamo_table_prefix":  "aquaguard_",
	"store.dynamo_create_tables": false,
	"auth.jwt_secret":            "",
	"auth.token_ttl":             "24h",
	"auth.admin_emails":          []string{},
	"cors.allowed_origins":       []string{"*"},
	"pledge_rate_limit":          20,
	"seed_defaults":              false,
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"listen-addr":  "listen_addr",
	"static-path":  "static_path",
	"log-level":    "log_level",
	"store-driver": "store.driver",
	"sqlite-path":  "store.sqlite_path",
	"mongo-uri":    "store.mongo_uri",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("listen-addr", ":8080", "address the HTTP server listens on")
	fs.String("static-path", "", "directory of the built frontend; empty disables static serving")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("store-driver", DriverSQLite, "storage back-end: sqlite, mongo, dynamodb")
	fs.String("sqlite-path", "./data/aquaguard.db", "SQLite database file")
	fs.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
}

// Load builds the configuration. fs may be nil; only flags that were set
// explicitly override the environment and the config file.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverSQLite, DriverMongo, DriverDynamoDB:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl must be positive, got %s", c.Auth.TokenTTL))
	}
	if c.PledgeRateLimit < 0 {
		errs = append(errs, fmt.Errorf("pledge_rate_limit cannot be negative, got %d", c.PledgeRateLimit))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
