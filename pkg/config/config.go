package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Fees       FeesConfig
	Generation GenerationConfig
	Reminders  RemindersConfig
	Statements StatementsConfig
	Summary    SummaryConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// FeesConfig sets the flat monthly billing rates in whole rupees.
type FeesConfig struct {
	BaseAmount             int64
	TransportSurcharge     int64
	AccommodationSurcharge int64
	Timezone               string
}

// GenerationConfig controls the daily monthly-fee generation job.
type GenerationConfig struct {
	Enabled  bool
	CronSpec string
}

// RemindersConfig controls due-fee SMS reminders.
type RemindersConfig struct {
	AutoEnabled      bool
	CronSpec         string
	MinDueAmount     int64
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	CountryPrefix    string
}

// StatementsConfig governs asynchronous fee-statement exports.
type StatementsConfig struct {
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	ResultTTL         time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// SummaryConfig tunes caching of the monthly fees summary.
type SummaryConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Fees = FeesConfig{
		BaseAmount:             v.GetInt64("FEES_BASE_AMOUNT"),
		TransportSurcharge:     v.GetInt64("FEES_TRANSPORT_SURCHARGE"),
		AccommodationSurcharge: v.GetInt64("FEES_ACCOMMODATION_SURCHARGE"),
		Timezone:               v.GetString("FEES_TIMEZONE"),
	}

	cfg.Generation = GenerationConfig{
		Enabled:  v.GetBool("ENABLE_FEE_GENERATION"),
		CronSpec: v.GetString("FEE_GENERATION_CRON"),
	}

	cfg.Reminders = RemindersConfig{
		AutoEnabled:      v.GetBool("ENABLE_AUTO_REMINDERS"),
		CronSpec:         v.GetString("REMINDER_CRON"),
		MinDueAmount:     v.GetInt64("REMINDER_MIN_DUE_AMOUNT"),
		TwilioAccountSID: v.GetString("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  v.GetString("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: v.GetString("TWILIO_SMS_PHONE_NUMBER"),
		CountryPrefix:    v.GetString("SMS_COUNTRY_PREFIX"),
	}

	cfg.Statements = StatementsConfig{
		StorageDir:        v.GetString("STATEMENTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("STATEMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("STATEMENTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("STATEMENTS_CLEANUP_INTERVAL"), time.Hour),
		ResultTTL:         parseDuration(v.GetString("STATEMENTS_RESULT_TTL"), 24*time.Hour),
		WorkerConcurrency: v.GetInt("STATEMENTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("STATEMENTS_WORKER_RETRIES"),
	}

	cfg.Summary = SummaryConfig{
		CacheTTL: parseDuration(v.GetString("SUMMARY_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "pahal_school")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("FEES_BASE_AMOUNT", 600)
	v.SetDefault("FEES_TRANSPORT_SURCHARGE", 600)
	v.SetDefault("FEES_ACCOMMODATION_SURCHARGE", 2500)
	v.SetDefault("FEES_TIMEZONE", "Asia/Kolkata")

	v.SetDefault("ENABLE_FEE_GENERATION", true)
	v.SetDefault("FEE_GENERATION_CRON", "0 0 * * *")

	// The auto reminder ships disabled, matching how the school ran it.
	v.SetDefault("ENABLE_AUTO_REMINDERS", false)
	v.SetDefault("REMINDER_CRON", "0 9 * * *")
	v.SetDefault("REMINDER_MIN_DUE_AMOUNT", 500)
	v.SetDefault("TWILIO_ACCOUNT_SID", "")
	v.SetDefault("TWILIO_AUTH_TOKEN", "")
	v.SetDefault("TWILIO_SMS_PHONE_NUMBER", "")
	v.SetDefault("SMS_COUNTRY_PREFIX", "+91")

	v.SetDefault("STATEMENTS_STORAGE_DIR", "./statements")
	v.SetDefault("STATEMENTS_SIGNED_URL_SECRET", "dev_statements_secret")
	v.SetDefault("STATEMENTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("STATEMENTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("STATEMENTS_RESULT_TTL", "24h")
	v.SetDefault("STATEMENTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("STATEMENTS_WORKER_RETRIES", 3)

	v.SetDefault("SUMMARY_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
