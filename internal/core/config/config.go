package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env       string    `yaml:"env" env:"ENV" env-default:"development"`
	HTTP      HTTP      `yaml:"http"`
	Database  Database  `yaml:"database"`
	Log       Log       `yaml:"log"`
	Messaging Messaging `yaml:"messaging"`
	Outbox    Outbox    `yaml:"outbox"`
	Breaker   Breaker   `yaml:"breaker"`
	Services  Services  `yaml:"services"`
	Ledger    Ledger    `yaml:"ledger"`
	Admin     Admin     `yaml:"admin"`
}

type HTTP struct {
	Port         string        `yaml:"port" env:"PORT" env-default:"3000"`
	BankPort     string        `yaml:"bank_port" env:"BANK_PORT" env-default:"3001"`
	CoinPort     string        `yaml:"coin_port" env:"COIN_PORT" env-default:"3002"`
	PhonePort    string        `yaml:"phone_port" env:"PHONE_PORT" env-default:"3003"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
}

// Database is optional: an empty URL runs the in-memory stores.
type Database struct {
	URL             string        `yaml:"url" env:"DATABASE_URL"`
	MaxConns        int32         `yaml:"max_conns" env:"DATABASE_MAX_CONNS" env-default:"10"`
	MinConns        int32         `yaml:"min_conns" env:"DATABASE_MIN_CONNS" env-default:"0"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"DATABASE_MAX_CONN_LIFETIME" env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	MigrateOnStart  bool          `yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START" env-default:"false"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Messaging selects the fabric. Without brokers the in-memory bus is used,
// which only connects services running in the same process.
type Messaging struct {
	Brokers         []string      `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Partitions      int           `yaml:"partitions" env:"MESSAGING_PARTITIONS" env-default:"4"`
	MaxAttempts     int           `yaml:"max_attempts" env:"MESSAGING_MAX_ATTEMPTS" env-default:"5"`
	InitialInterval time.Duration `yaml:"initial_interval" env:"MESSAGING_INITIAL_INTERVAL" env-default:"100ms"`
	MaxInterval     time.Duration `yaml:"max_interval" env:"MESSAGING_MAX_INTERVAL" env-default:"5s"`
}

type Outbox struct {
	PollInterval time.Duration `yaml:"poll_interval" env:"OUTBOX_POLL_INTERVAL" env-default:"500ms"`
	Lease        time.Duration `yaml:"lease" env:"OUTBOX_LEASE" env-default:"30s"`
	RetryStep    time.Duration `yaml:"retry_step" env:"OUTBOX_RETRY_STEP" env-default:"10s"`
	BatchSize    int           `yaml:"batch_size" env:"OUTBOX_BATCH_SIZE" env-default:"50"`
	MaxAttempts  int           `yaml:"max_attempts" env:"OUTBOX_MAX_ATTEMPTS" env-default:"5"`
}

type Breaker struct {
	MaxRequests      uint32        `yaml:"max_requests" env:"BREAKER_MAX_REQUESTS" env-default:"1"`
	Interval         time.Duration `yaml:"interval" env:"BREAKER_INTERVAL" env-default:"60s"`
	Timeout          time.Duration `yaml:"timeout" env:"BREAKER_TIMEOUT" env-default:"30s"`
	FailureThreshold uint32        `yaml:"failure_threshold" env:"BREAKER_FAILURE_THRESHOLD" env-default:"5"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"CLIENT_REQUEST_TIMEOUT" env-default:"5s"`
	Retries          uint64        `yaml:"retries" env:"CLIENT_RETRIES" env-default:"2"`
}

// Services are the base URLs of sibling services.
type Services struct {
	CustomerURL string `yaml:"customer_url" env:"CUSTOMER_SERVICE_URL"`
	BankURL     string `yaml:"bank_url" env:"BANK_SERVICE_URL" env-default:"http://localhost:3001"`
}

type Ledger struct {
	MonthlyResetEnabled bool   `yaml:"monthly_reset_enabled" env:"MONTHLY_RESET_ENABLED" env-default:"false"`
	MonthlyResetZone    string `yaml:"monthly_reset_zone" env:"MONTHLY_RESET_ZONE" env-default:"UTC"`
}

type Admin struct {
	APIKeyHash string `yaml:"api_key_hash" env:"ADMIN_API_KEY_HASH"`
}

// Load reads .env (when present), then the YAML file at path if one is
// given, then the environment, which wins over the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on System Env Variables")
	}

	cfg := &Config{}
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't read configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
