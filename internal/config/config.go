package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	SLA          SLAConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// SLAConfig carries the working calendar and escalation scheduler
// settings. The calendar fields are validated at load time; malformed
// calendar configuration is fatal at startup.
type SLAConfig struct {
	Timezone      *time.Location
	WorkdayStart  time.Duration
	WorkdayEnd    time.Duration
	OffDays       []time.Weekday
	Holidays      []time.Time
	TickInterval  time.Duration
	TickTimeout   time.Duration
	TicketLockTTL time.Duration
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	slaCfg, err := loadSLAConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "grievance-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		SLA: *slaCfg,
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

func loadSLAConfig() (*SLAConfig, error) {
	loc, err := time.LoadLocation(getEnv("SLA_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid SLA_TIMEZONE: %w", err)
	}

	start, err := parseClock(getEnv("SLA_WORKDAY_START", "09:00"))
	if err != nil {
		return nil, fmt.Errorf("invalid SLA_WORKDAY_START: %w", err)
	}
	end, err := parseClock(getEnv("SLA_WORKDAY_END", "17:00"))
	if err != nil {
		return nil, fmt.Errorf("invalid SLA_WORKDAY_END: %w", err)
	}
	if start >= end {
		return nil, fmt.Errorf("SLA_WORKDAY_START must be before SLA_WORKDAY_END")
	}

	offDays, err := parseWeekdays(getEnv("SLA_OFF_DAYS", "Sunday"))
	if err != nil {
		return nil, fmt.Errorf("invalid SLA_OFF_DAYS: %w", err)
	}

	holidays, err := parseHolidays(os.Getenv("SLA_HOLIDAYS"), loc)
	if err != nil {
		return nil, fmt.Errorf("invalid SLA_HOLIDAYS: %w", err)
	}

	return &SLAConfig{
		Timezone:      loc,
		WorkdayStart:  start,
		WorkdayEnd:    end,
		OffDays:       offDays,
		Holidays:      holidays,
		TickInterval:  time.Duration(getEnvAsInt("SLA_TICK_INTERVAL_MINUTES", 5)) * time.Minute,
		TickTimeout:   time.Duration(getEnvAsInt("SLA_TICK_TIMEOUT_MINUTES", 5)) * time.Minute,
		TicketLockTTL: time.Duration(getEnvAsInt("SLA_TICKET_LOCK_TTL_SECONDS", 15)) * time.Second,
	}, nil
}

// parseClock parses an HH:MM time-of-day into an offset from midnight.
func parseClock(value string) (time.Duration, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("bad hour in %q", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("bad minute in %q", value)
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekdays(value string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(value, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		day, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days = append(days, day)
	}
	return days, nil
}

// parseHolidays accepts a comma-separated list of YYYY-MM-DD entries,
// each optionally suffixed with ":name".
func parseHolidays(value string, loc *time.Location) ([]time.Time, error) {
	var holidays []time.Time
	for _, part := range strings.Split(value, ",") {
		entry := strings.TrimSpace(part)
		if entry == "" {
			continue
		}
		dateStr := entry
		if idx := strings.Index(entry, ":"); idx >= 0 {
			dateStr = entry[:idx]
		}
		day, err := time.ParseInLocation("2006-01-02", dateStr, loc)
		if err != nil {
			return nil, fmt.Errorf("bad holiday date %q: %w", dateStr, err)
		}
		holidays = append(holidays, day)
	}
	return holidays, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
