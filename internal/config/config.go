package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Session SessionConfig `mapstructure:"session"`
	Store   StoreConfig   `mapstructure:"store"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type SessionConfig struct {
	Lifetime time.Duration `mapstructure:"lifetime"`
	Secure   bool          `mapstructure:"secure"`
}

type StoreConfig struct {
	OrderPrefix   string `mapstructure:"order_prefix"`
	ViewQueueSize int    `mapstructure:"view_queue_size"`
}

var defaults = map[string]any{
	"server.addr":           ":4000",
	"db.dsn":                "",
	"db.max_open_conns":     25,
	"db.max_idle_conns":     25,
	"db.conn_max_idle_time": 15 * time.Minute,
	"mongo.uri":             "",
	"mongo.database":        "qazbazaar",
	"session.lifetime":      12 * time.Hour,
	"session.secure":        true,
	"store.order_prefix":    "QB",
	"store.view_queue_size": 256,
}

var prefixRX = regexp.MustCompile(`^[A-Z]{2}$`)

// Load reads .env (if present), an optional config.yaml and QAZ_-prefixed
// environment variables, in increasing order of precedence. Flags bound
// through flags take precedence over all of them.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./")
	v.AddConfigPath("/etc/qazbazaar/")

	v.SetEnvPrefix("QAZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		if f := flags.Lookup("addr"); f != nil {
			if err := v.BindPFlag("server.addr", f); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DB.DSN == "" {
		errs = append(errs, errors.New("db.dsn is required (QAZ_DB_DSN)"))
	}
	if c.Mongo.URI == "" {
		errs = append(errs, errors.New("mongo.uri is required (QAZ_MONGO_URI)"))
	}
	if !prefixRX.MatchString(c.Store.OrderPrefix) {
		errs = append(errs, fmt.Errorf("store.order_prefix %q must be two uppercase letters", c.Store.OrderPrefix))
	}
	if c.Store.ViewQueueSize < 1 {
		errs = append(errs, errors.New("store.view_queue_size must be positive"))
	}
	return errors.Join(errs...)
}
