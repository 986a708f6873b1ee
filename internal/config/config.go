package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Name            string        `yaml:"name"`
	Env             string        `yaml:"env"`
	Port            string        `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
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

type AuthConfig struct {
	// JWTSecret verifies end-user access tokens issued by the identity provider (HS256).
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`
	// AdminSecret is either the plain shared secret or its bcrypt hash.
	AdminSecret string `yaml:"admin_secret"`
}

type StripeConfig struct {
	SecretKey               string `yaml:"secret_key"`
	WebhookSecret           string `yaml:"webhook_secret"`
	Currency                string `yaml:"currency"`
	MinChargeCents          int64  `yaml:"min_charge_cents"`
	AllowUnverifiedWebhooks bool   `yaml:"allow_unverified_webhooks"`
}

type StorageConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	UseSSL          bool          `yaml:"use_ssl"`
	PublicBaseURL   string        `yaml:"public_base_url"`
	UploadURLTTL    time.Duration `yaml:"upload_url_ttl"`
	ReadURLTTL      time.Duration `yaml:"read_url_ttl"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	EventTTL time.Duration `yaml:"event_ttl"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Config struct {
	App       AppConfig       `yaml:"app"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Auth      AuthConfig      `yaml:"auth"`
	Stripe    StripeConfig    `yaml:"stripe"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

func defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:            "storefront-service",
			Env:             "development",
			Port:            "8080",
			LogLevel:        "info",
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Port:            "5432",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MigrationsPath:  "migrations",
		},
		Stripe: StripeConfig{
			Currency:       "usd",
			MinChargeCents: 50,
		},
		Storage: StorageConfig{
			Bucket:       "storefront",
			Region:       "us-east-1",
			UseSSL:       true,
			UploadURLTTL: 15 * time.Minute,
			ReadURLTTL:   time.Hour,
		},
		Redis: RedisConfig{
			EventTTL: 72 * time.Hour,
		},
		Kafka: KafkaConfig{
			Topic: "storefront.orders",
		},
		RateLimit: RateLimitConfig{
			RPS:   2,
			Burst: 10,
		},
	}
}

// NewConfig builds the configuration from defaults, an optional YAML file (CONFIG_FILE)
// and environment variables, in that order of precedence. A .env file is loaded first if present.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("Config file loaded")
	return nil
}

func (c *Config) loadEnv() error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	setString(&c.App.Env, "APP_ENV")
	setString(&c.App.Port, "APP_PORT")
	setString(&c.App.LogLevel, "LOG_LEVEL")
	collect(setDuration(&c.App.ShutdownTimeout, "APP_SHUTDOWN_TIMEOUT"))

	setString(&c.Postgres.Host, "DB_HOST")
	setString(&c.Postgres.Port, "DB_PORT")
	setString(&c.Postgres.User, "DB_USER")
	setString(&c.Postgres.Password, "DB_PASSWORD")
	setString(&c.Postgres.DBName, "DB_NAME")
	setString(&c.Postgres.SSLMode, "DB_SSLMODE")
	collect(setInt32(&c.Postgres.MaxConns, "DB_MAX_CONNS"))
	collect(setInt32(&c.Postgres.MinConns, "DB_MIN_CONNS"))
	collect(setDuration(&c.Postgres.MaxConnLifetime, "DB_MAX_CONN_LIFETIME"))
	setString(&c.Postgres.MigrationsPath, "DB_MIGRATIONS_PATH")

	setString(&c.Auth.JWTSecret, "AUTH_JWT_SECRET")
	setString(&c.Auth.JWTIssuer, "AUTH_JWT_ISSUER")
	setString(&c.Auth.AdminSecret, "ADMIN_SECRET")

	setString(&c.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setString(&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setString(&c.Stripe.Currency, "STRIPE_CURRENCY")
	collect(setInt64(&c.Stripe.MinChargeCents, "STRIPE_MIN_CHARGE_CENTS"))
	collect(setBool(&c.Stripe.AllowUnverifiedWebhooks, "STRIPE_ALLOW_UNVERIFIED_WEBHOOKS"))

	setString(&c.Storage.Endpoint, "STORAGE_ENDPOINT")
	setString(&c.Storage.AccessKeyID, "STORAGE_ACCESS_KEY_ID")
	setString(&c.Storage.SecretAccessKey, "STORAGE_SECRET_ACCESS_KEY")
	setString(&c.Storage.Bucket, "STORAGE_BUCKET")
	setString(&c.Storage.Region, "STORAGE_REGION")
	collect(setBool(&c.Storage.UseSSL, "STORAGE_USE_SSL"))
	setString(&c.Storage.PublicBaseURL, "STORAGE_PUBLIC_BASE_URL")
	collect(setDuration(&c.Storage.UploadURLTTL, "STORAGE_UPLOAD_URL_TTL"))
	collect(setDuration(&c.Storage.ReadURLTTL, "STORAGE_READ_URL_TTL"))

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	collect(setInt(&c.Redis.DB, "REDIS_DB"))
	collect(setDuration(&c.Redis.EventTTL, "REDIS_EVENT_TTL"))

	setSlice(&c.Kafka.Brokers, "KAFKA_BROKERS")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC_ORDERS")

	collect(setFloat(&c.RateLimit.RPS, "RATE_LIMIT_RPS"))
	collect(setInt(&c.RateLimit.Burst, "RATE_LIMIT_BURST"))

	return errors.Join(errs...)
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string
	required := map[string]string{
		"DB_HOST":                   c.Postgres.Host,
		"DB_USER":                   c.Postgres.User,
		"DB_NAME":                   c.Postgres.DBName,
		"AUTH_JWT_SECRET":           c.Auth.JWTSecret,
		"ADMIN_SECRET":              c.Auth.AdminSecret,
		"STRIPE_SECRET_KEY":         c.Stripe.SecretKey,
		"STORAGE_ENDPOINT":          c.Storage.Endpoint,
		"STORAGE_ACCESS_KEY_ID":     c.Storage.AccessKeyID,
		"STORAGE_SECRET_ACCESS_KEY": c.Storage.SecretAccessKey,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if c.Stripe.MinChargeCents < 0 {
		return fmt.Errorf("STRIPE_MIN_CHARGE_CENTS must be non-negative, got %d", c.Stripe.MinChargeCents)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func setString(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok {
		*dst = value
	}
}

func setSlice(dst *[]string, key string) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, value)
	}
	*dst = i
	return nil
}

func setInt32(dst *int32, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, value)
	}
	*dst = int32(i)
	return nil
}

func setInt64(dst *int64, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, value)
	}
	*dst = i
	return nil
}

func setFloat(dst *float64, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s: invalid number %q", key, value)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, value)
	}
	*dst = d
	return nil
}
