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

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Booking       BookingConfig
	Waitlist      WaitlistConfig
	Billing       BillingConfig
	Calendar      CalendarConfig
	Notifications NotificationsConfig
	Catalog       CatalogConfig
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

// BookingConfig governs the booking and capacity engine.
type BookingConfig struct {
	MaxPerSlot         int
	LeadTimeHours      int
	SeriesHorizonWeeks int
	SerializableRetry  int

	// Shift windows expressed as hours in the owner's local day.
	MorningStartHour   int
	MorningEndHour     int
	AfternoonStartHour int
	AfternoonEndHour   int

	RecurringEnabled bool
}

// WaitlistConfig governs the waitlist cascade.
type WaitlistConfig struct {
	Enabled bool
	HoldTTL time.Duration
}

// BillingConfig governs billing cycle and proration behaviour.
type BillingConfig struct {
	CustomCycleDayEnabled bool
	DefaultCycleStartDay  int
}

// CalendarConfig tunes the calendar-sync side-effect queue.
type CalendarConfig struct {
	Enabled           bool
	WorkerConcurrency int
	WorkerRetries     int
}

// NotificationsConfig tunes the notification side-effect queue.
type NotificationsConfig struct {
	Enabled           bool
	WorkerConcurrency int
	WorkerRetries     int
}

// CatalogConfig controls caching of the plan catalog and schedule windows.
type CatalogConfig struct {
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

	cfg.Booking = BookingConfig{
		MaxPerSlot:         v.GetInt("BOOKING_MAX_PER_SLOT"),
		LeadTimeHours:      v.GetInt("BOOKING_LEAD_TIME_HOURS"),
		SeriesHorizonWeeks: v.GetInt("BOOKING_SERIES_HORIZON_WEEKS"),
		SerializableRetry:  v.GetInt("BOOKING_SERIALIZABLE_RETRIES"),
		MorningStartHour:   v.GetInt("BOOKING_MORNING_START_HOUR"),
		MorningEndHour:     v.GetInt("BOOKING_MORNING_END_HOUR"),
		AfternoonStartHour: v.GetInt("BOOKING_AFTERNOON_START_HOUR"),
		AfternoonEndHour:   v.GetInt("BOOKING_AFTERNOON_END_HOUR"),
		RecurringEnabled:   v.GetBool("ENABLE_RECURRING_BOOKINGS"),
	}

	cfg.Waitlist = WaitlistConfig{
		Enabled: v.GetBool("ENABLE_WAITLIST"),
		HoldTTL: parseDuration(v.GetString("WAITLIST_HOLD_TTL"), 2*time.Hour),
	}

	cfg.Billing = BillingConfig{
		CustomCycleDayEnabled: v.GetBool("ENABLE_CUSTOM_CYCLE_DAY"),
		DefaultCycleStartDay:  v.GetInt("BILLING_DEFAULT_CYCLE_START_DAY"),
	}

	cfg.Calendar = CalendarConfig{
		Enabled:           v.GetBool("ENABLE_CALENDAR_SYNC"),
		WorkerConcurrency: v.GetInt("CALENDAR_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("CALENDAR_WORKER_RETRIES"),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:           v.GetBool("ENABLE_NOTIFICATIONS"),
		WorkerConcurrency: v.GetInt("NOTIFICATION_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("NOTIFICATION_WORKER_RETRIES"),
	}

	cfg.Catalog = CatalogConfig{
		CacheTTL: parseDuration(v.GetString("CATALOG_CACHE_TTL"), 10*time.Minute),
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
	v.SetDefault("DB_NAME", "studio_booking")
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

	v.SetDefault("BOOKING_MAX_PER_SLOT", 3)
	v.SetDefault("BOOKING_LEAD_TIME_HOURS", 24)
	v.SetDefault("BOOKING_SERIES_HORIZON_WEEKS", 8)
	v.SetDefault("BOOKING_SERIALIZABLE_RETRIES", 3)
	v.SetDefault("BOOKING_MORNING_START_HOUR", 8)
	v.SetDefault("BOOKING_MORNING_END_HOUR", 13)
	v.SetDefault("BOOKING_AFTERNOON_START_HOUR", 14)
	v.SetDefault("BOOKING_AFTERNOON_END_HOUR", 21)
	v.SetDefault("ENABLE_RECURRING_BOOKINGS", true)

	v.SetDefault("ENABLE_WAITLIST", true)
	v.SetDefault("WAITLIST_HOLD_TTL", "2h")

	v.SetDefault("ENABLE_CUSTOM_CYCLE_DAY", true)
	v.SetDefault("BILLING_DEFAULT_CYCLE_START_DAY", 1)

	v.SetDefault("ENABLE_CALENDAR_SYNC", false)
	v.SetDefault("CALENDAR_WORKER_CONCURRENCY", 1)
	v.SetDefault("CALENDAR_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_NOTIFICATIONS", true)
	v.SetDefault("NOTIFICATION_WORKER_CONCURRENCY", 2)
	v.SetDefault("NOTIFICATION_WORKER_RETRIES", 3)

	v.SetDefault("CATALOG_CACHE_TTL", "10m")
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
