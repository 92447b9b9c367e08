package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Graph     GraphConfig     `yaml:"graph"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Dedupe    DedupeConfig    `yaml:"dedupe"`
	Stores    StoresConfig    `yaml:"stores"`
	PubSub    PubSubConfig    `yaml:"pubsub"`
	API       APIConfig       `yaml:"api"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type AppConfig struct {
	InstanceID      string        `yaml:"instance_id"`
	EnvFile         string        `yaml:"env_file"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type TelegramConfig struct {
	Token         string `yaml:"token"`
	Command       string `yaml:"command"`      // without leading slash
	PollTimeout   int    `yaml:"poll_timeout"` // long-poll seconds
	StrictAddress bool   `yaml:"strict_address"`
	Debug         bool   `yaml:"debug"`
}

type GraphConfig struct {
	Endpoint string        `yaml:"endpoint"`
	PageSize int           `yaml:"page_size"`
	Lookback time.Duration `yaml:"lookback"`
	Timeout  time.Duration `yaml:"timeout"` // 0 -> transport default
}

type JWTConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Alg            string        `yaml:"alg"` // RS256
	PublicKeyPath  string        `yaml:"public_key_path"`
	PrivateKeyPath string        `yaml:"private_key_path"`
	Audience       string        `yaml:"audience"`
	Issuer         string        `yaml:"issuer"`
	Leeway         time.Duration `yaml:"leeway"`
}

type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

type RateBucket struct {
	RefillPerSec int           `yaml:"refill_per_sec"`
	Burst        int           `yaml:"burst"`
	TTL          time.Duration `yaml:"ttl"`
}

type RateLimitConfig struct {
	Enabled   bool       `yaml:"enabled"`
	ByChat    RateBucket `yaml:"by_chat"`
	ByIP      RateBucket `yaml:"by_ip"`
	BySubject RateBucket `yaml:"by_subject"` // authenticated API callers, jwt sub
}

type DedupeConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Prefix string        `yaml:"prefix"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type ClickHouseWriterConfig struct {
	BatchMaxRows     int           `yaml:"batch_max_rows"`
	BatchMaxInterval time.Duration `yaml:"batch_max_interval"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
}

type ClickHouseConfig struct {
	DSN    string                 `yaml:"dsn"`
	Table  string                 `yaml:"table"`
	Writer ClickHouseWriterConfig `yaml:"writer"`
}

type StoresConfig struct {
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type NATSConfig struct {
	URL             string `yaml:"url"`
	BroadcastPrefix string `yaml:"broadcast_prefix"`
}

type PubSubConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
	Headers []string `yaml:"headers"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	GzipLevel    int           `yaml:"gzip_level"`
	CORS         CORSConfig    `yaml:"cors"`
}

type APIConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

type PyroscopeConfig struct {
	Enabled    bool              `yaml:"enabled"`
	AppName    string            `yaml:"app_name"`
	ServerAddr string            `yaml:"server_addr"`
	AuthToken  string            `yaml:"auth_token"`
	Tags       map[string]string `yaml:"tags"`
}

type MetricsConfig struct {
	Pyroscope PyroscopeConfig `yaml:"pyroscope"`
}

// Load reads the yaml file, overlays secrets from .env/environment and applies defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	envFile := cfg.App.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// .env is optional, real environment always wins
	if err = godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed load env file %s, error=%w", envFile, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &c.Telegram.Token,
		"GRAPH_ENDPOINT":     &c.Graph.Endpoint,
		"REDIS_ADDR":         &c.Stores.Redis.Addr,
		"REDIS_PASSWORD":     &c.Stores.Redis.Password,
		"CLICKHOUSE_DSN":     &c.Stores.ClickHouse.DSN,
		"NATS_URL":           &c.PubSub.NATS.URL,
		"PYROSCOPE_TOKEN":    &c.Metrics.Pyroscope.AuthToken,
	}

	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.App.ShutdownTimeout <= 0 {
		c.App.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Telegram.Command == "" {
		c.Telegram.Command = "wallet"
	}
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = 60
	}
	if c.Graph.PageSize == 0 {
		c.Graph.PageSize = 1000
	}
	if c.Graph.Lookback == 0 {
		c.Graph.Lookback = 15 * 24 * time.Hour
	}
	if c.Dedupe.TTL <= 0 {
		c.Dedupe.TTL = 24 * time.Hour
	}
	if c.Dedupe.Prefix == "" {
		c.Dedupe.Prefix = "walletbot:update:"
	}
	if c.Stores.ClickHouse.Table == "" {
		c.Stores.ClickHouse.Table = "wallet_report_requests"
	}
	if c.PubSub.NATS.BroadcastPrefix == "" {
		c.PubSub.NATS.BroadcastPrefix = "walletbot.requests"
	}
	if c.Security.JWT.Leeway <= 0 {
		c.Security.JWT.Leeway = time.Minute
	}
}

func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram token is required (telegram.token or TELEGRAM_BOT_TOKEN)")
	}
	if c.Graph.Endpoint == "" {
		return errors.New("graph endpoint is required (graph.endpoint or GRAPH_ENDPOINT)")
	}
	if c.Graph.PageSize <= 0 || c.Graph.PageSize > 1000 {
		return fmt.Errorf("graph page size must be in (0, 1000], got %d", c.Graph.PageSize)
	}
	if c.Graph.Lookback <= 0 {
		return fmt.Errorf("graph lookback must be positive, got %s", c.Graph.Lookback)
	}
	// the report header counts days
	if c.Graph.Lookback%(24*time.Hour) != 0 {
		return fmt.Errorf("graph lookback must be a whole number of days, got %s", c.Graph.Lookback)
	}
	if c.Graph.Timeout < 0 {
		return fmt.Errorf("graph timeout cannot be negative, got %s", c.Graph.Timeout)
	}
	if c.Security.JWT.Enabled && c.Security.JWT.PublicKeyPath == "" {
		return errors.New("security.jwt.public_key_path is required when jwt is enabled")
	}
	if c.RateLimit.Enabled && c.Stores.Redis.Addr == "" {
		return errors.New("rate limit requires stores.redis.addr")
	}

	return nil
}
