package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultPath = "config.yaml"

type Config struct {
	App         App         `yaml:"app"`
	HTTP        HTTP        `yaml:"http"`
	Log         Log         `yaml:"log"`
	Postgres    Postgres    `yaml:"postgres"`
	Redis       Redis       `yaml:"redis"`
	Kafka       Kafka       `yaml:"kafka"`
	Relay       Relay       `yaml:"relay"`
	Remote      Remote      `yaml:"remote"`
	Idempotency Idempotency `yaml:"idempotency"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type Log struct {
	Level      string   `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	FormatJSON bool     `yaml:"format_json" env:"LOG_FORMAT_JSON" env-default:"true"`
	Rotation   Rotation `yaml:"rotation"`
}

// Rotation enables file output through lumberjack when File is set.
type Rotation struct {
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSize    int    `yaml:"max_size" env:"LOG_MAX_SIZE" env-default:"100"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAge     int    `yaml:"max_age" env:"LOG_MAX_AGE" env-default:"28"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"staffsync"`
	SSLMode  string `yaml:"ssl_mode" env:"POSTGRES_SSL_MODE" env-default:"disable"`
	MaxConns int32  `yaml:"max_conns" env:"POSTGRES_MAX_CONNS" env-default:"10"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	PoolSize int    `yaml:"pool_size" env:"REDIS_POOL_SIZE"`

	DialTimeout time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"3s"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"employee-events"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"project-service"`
	// StartOffset is used while the group has no committed offset: earliest or latest.
	StartOffset string `yaml:"start_offset" env:"KAFKA_START_OFFSET" env-default:"earliest"`
}

// Relay is read once at startup; there is no hot reload.
type Relay struct {
	Subscribers     []string      `yaml:"subscribers" env:"RELAY_SUBSCRIBERS" env-default:"http://department-service:8080/events/employee,http://project-service:8080/events/employee"`
	PollInterval    time.Duration `yaml:"poll_interval" env:"RELAY_POLL_INTERVAL" env-default:"2s"`
	MaxBackoff      time.Duration `yaml:"max_backoff" env:"RELAY_MAX_BACKOFF" env-default:"60s"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout" env:"RELAY_DELIVERY_TIMEOUT" env-default:"5s"`
	BatchSize       int           `yaml:"batch_size" env:"RELAY_BATCH_SIZE" env-default:"100"`
	ClaimLease      time.Duration `yaml:"claim_lease" env:"RELAY_CLAIM_LEASE" env-default:"30s"`
}

type Remote struct {
	EmployeeURL   string        `yaml:"employee_url" env:"REMOTE_EMPLOYEE_URL" env-default:"http://employee-service:8080"`
	DepartmentURL string        `yaml:"department_url" env:"REMOTE_DEPARTMENT_URL" env-default:"http://department-service:8080"`
	Timeout       time.Duration `yaml:"timeout" env:"REMOTE_TIMEOUT" env-default:"3s"`
	Breaker       Breaker       `yaml:"breaker"`
}

type Breaker struct {
	ConsecutiveFailures uint32        `yaml:"consecutive_failures" env:"REMOTE_BREAKER_FAILURES" env-default:"5"`
	OpenTimeout         time.Duration `yaml:"open_timeout" env:"REMOTE_BREAKER_OPEN_TIMEOUT" env-default:"30s"`
}

type Idempotency struct {
	// Backend is one of memory, redis, postgres.
	Backend string `yaml:"backend" env:"IDEMPOTENCY_BACKEND" env-default:"postgres"`
}

// New reads the yaml file at CONFIG_PATH (or ./config.yaml) and lets
// environment variables override it. Without a file, env and defaults are used.
func New() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultPath
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Idempotency.Backend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("config error: unknown idempotency backend %q", c.Idempotency.Backend)
	}
	if c.Relay.PollInterval <= 0 {
		return fmt.Errorf("config error: relay poll interval must be positive")
	}
	if c.Relay.MaxBackoff <= 0 {
		return fmt.Errorf("config error: relay max backoff must be positive")
	}
	return nil
}

// DSN returns the pgx connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}
