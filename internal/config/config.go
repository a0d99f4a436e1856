package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Postgres PostgresConfig `yaml:"postgres"`
	DocStore DocStoreConfig `yaml:"docstore"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Session  SessionConfig  `yaml:"session"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

type AppConfig struct {
	Name            string        `yaml:"name"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

// DocStoreConfig configures the secondary document store.
type DocStoreConfig struct {
	Enabled         bool          `yaml:"enabled"`
	CredentialsPath string        `yaml:"credentials_path"`
	BaseURL         string        `yaml:"base_url"`
	Database        string        `yaml:"database"`
	Collection      string        `yaml:"collection"`
	Timeout         time.Duration `yaml:"timeout"`
	MirrorTimeout   time.Duration `yaml:"mirror_timeout"`
	PageSize        int           `yaml:"page_size"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type SessionConfig struct {
	Backend string `yaml:"backend"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

func defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:            "admin-service",
			Port:            "8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			RequestTimeout:  45 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Postgres: PostgresConfig{
			Port:            "5432",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MigrationsPath:  "migrations",
		},
		DocStore: DocStoreConfig{
			Database:      "(default)",
			Collection:    "orders",
			Timeout:       30 * time.Second,
			MirrorTimeout: 10 * time.Second,
			PageSize:      300,
		},
		Kafka: KafkaConfig{
			Topic: "order.status.mirror",
		},
		Session: SessionConfig{
			Backend: SessionBackendPostgres,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// NewConfig собирает конфиг: значения по умолчанию, затем YAML из CONFIG_PATH,
// затем .env (ENV_FILE), затем переменные окружения.
func NewConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to load %s: %w", envFile, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("config: invalid config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.App.Port, "APP_PORT")
	setString(&cfg.Postgres.Host, "DB_HOST")
	setString(&cfg.Postgres.Port, "DB_PORT")
	setString(&cfg.Postgres.User, "DB_USER")
	setString(&cfg.Postgres.Password, "DB_PASSWORD")
	setString(&cfg.Postgres.DBName, "DB_NAME")
	setString(&cfg.Postgres.SSLMode, "DB_SSLMODE")
	setString(&cfg.Postgres.MigrationsPath, "DB_MIGRATIONS_PATH")

	setString(&cfg.DocStore.CredentialsPath, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&cfg.DocStore.CredentialsPath, "DOCSTORE_CREDENTIALS_PATH")
	setString(&cfg.DocStore.BaseURL, "DOCSTORE_BASE_URL")
	setString(&cfg.DocStore.Collection, "DOCSTORE_COLLECTION")

	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}

	setString(&cfg.Session.Backend, "SESSION_BACKEND")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	var errs []error
	errs = append(errs,
		setBool(&cfg.DocStore.Enabled, "DOCSTORE_ENABLED"),
		setDuration(&cfg.DocStore.Timeout, "DOCSTORE_TIMEOUT"),
		setDuration(&cfg.DocStore.MirrorTimeout, "DOCSTORE_MIRROR_TIMEOUT"),
		setDuration(&cfg.App.RequestTimeout, "APP_REQUEST_TIMEOUT"),
		setInt(&cfg.Redis.DB, "REDIS_DB"),
		setBool(&cfg.Log.Pretty, "LOG_PRETTY"),
	)
	return errors.Join(errs...)
}

// Validate checks required settings. A missing credential file for an
// enabled document store is fatal at startup.
func (c *Config) Validate() error {
	if c.Postgres.Host == "" {
		return errors.New("config: DB_HOST is required")
	}
	if c.Postgres.User == "" {
		return errors.New("config: DB_USER is required")
	}
	if c.Postgres.DBName == "" {
		return errors.New("config: DB_NAME is required")
	}

	switch c.Session.Backend {
	case SessionBackendPostgres:
	case SessionBackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("config: REDIS_ADDR is required for the redis session backend")
		}
	default:
		return fmt.Errorf("config: unknown session backend %q", c.Session.Backend)
	}

	if c.DocStore.Enabled {
		if c.DocStore.CredentialsPath == "" {
			return errors.New("config: DOCSTORE_CREDENTIALS_PATH is required when the document store is enabled")
		}
		if _, err := os.Stat(c.DocStore.CredentialsPath); err != nil {
			return fmt.Errorf("config: document store credentials: %w", err)
		}
		if c.DocStore.Collection == "" {
			return errors.New("config: document store collection is empty")
		}
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("config: KAFKA_TOPIC is required when brokers are set")
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
