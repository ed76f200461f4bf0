package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"lifeplanner-backend/utils"
)

// ConfigurationError reports a setting that prevents the service from starting.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// Policy names for calendar event reminders.
const (
	PolicyDayBefore = "day_before"
	PolicyDaysAhead = "days_ahead"
)

// Notifier providers.
const (
	NotifierZAPI   = "zapi"
	NotifierTwilio = "twilio"
)

// Guard backends.
const (
	GuardMemory = "memory"
	GuardRedis  = "redis"
)

type Config struct {
	Port        string
	CORSOrigins []string
	JWTSecret   string

	Database struct {
		URL         string
		AutoMigrate bool
		MaxRetries  int
		MaxOpen     int
		MaxIdle     int
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Supabase struct {
		URL        string
		ServiceKey string
	}

	Reminders struct {
		TimezoneName    string
		Location        *time.Location
		PollInterval    time.Duration
		Window          time.Duration
		Policy          string
		DaysAhead       int
		MorningSend     utils.TimeOfDay
		EarlyCutoff     utils.TimeOfDay
		HoursBefore     int
		GuardBackend    string
		GuardTTL        time.Duration
		GuardMaxEntries int
		RetentionDays   int
	}

	Notifier struct {
		Provider      string
		Timeout       time.Duration
		RatePerSecond float64
		Burst         int

		ZAPIURL   string
		ZAPIToken string

		TwilioAccountSID string
		TwilioAuthToken  string
		TwilioFrom       string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the environment into a Config and validates it.
// Any problem comes back as a *ConfigurationError so the process can fail before the first tick.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Port = getEnv("PORT", "8080")
	cfg.CORSOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"))
	cfg.JWTSecret = os.Getenv("SUPABASE_JWT_SECRET")

	cfg.Database.URL = os.Getenv("DB_URL")
	cfg.Database.AutoMigrate = getEnvBool("DB_AUTO_MIGRATE", false)
	cfg.Database.MaxRetries = getEnvInt("DB_MAX_RETRIES", 5)
	cfg.Database.MaxOpen = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE_CONNS", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Supabase.URL = strings.TrimRight(os.Getenv("SUPABASE_URL"), "/")
	cfg.Supabase.ServiceKey = os.Getenv("SUPABASE_SERVICE_ROLE")

	r := &cfg.Reminders
	r.TimezoneName = getEnv("REMINDER_TIMEZONE", "America/Sao_Paulo")
	r.PollInterval = time.Duration(getEnvInt("REMINDER_POLL_INTERVAL_MINUTES", 1)) * time.Minute
	r.Window = time.Duration(getEnvInt("REMINDER_WINDOW_MINUTES", 15)) * time.Minute
	r.Policy = getEnv("REMINDER_POLICY", PolicyDayBefore)
	r.DaysAhead = getEnvInt("REMINDER_DAYS_AHEAD", 3)
	r.HoursBefore = getEnvInt("REMINDER_HOURS_BEFORE", 3)
	r.GuardBackend = getEnv("REMINDER_GUARD_BACKEND", GuardMemory)
	r.GuardTTL = time.Duration(getEnvInt("REMINDER_GUARD_TTL_SECONDS", 90)) * time.Second
	r.GuardMaxEntries = getEnvInt("REMINDER_GUARD_MAX_ENTRIES", 5000)
	r.RetentionDays = getEnvInt("REMINDER_RETENTION_DAYS", 30)

	n := &cfg.Notifier
	n.Provider = getEnv("NOTIFIER_PROVIDER", NotifierZAPI)
	n.Timeout = time.Duration(getEnvInt("NOTIFIER_TIMEOUT_SECONDS", 15)) * time.Second
	n.RatePerSecond = getEnvFloat("NOTIFIER_RATE_PER_SECOND", 1)
	n.Burst = getEnvInt("NOTIFIER_BURST", 1)
	n.ZAPIURL = os.Getenv("WHATSAPP_API_URL")
	n.ZAPIToken = os.Getenv("WHATSAPP_API_TOKEN")
	n.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	n.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	n.TwilioFrom = os.Getenv("TWILIO_WHATSAPP_NUMBER")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	var err error
	if r.MorningSend, err = parseClock("REMINDER_MORNING_SEND_TIME", getEnv("REMINDER_MORNING_SEND_TIME", "06:20")); err != nil {
		return nil, err
	}
	if r.EarlyCutoff, err = parseClock("REMINDER_EARLY_EVENT_CUTOFF", getEnv("REMINDER_EARLY_EVENT_CUTOFF", "09:20")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints and resolves the timezone.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return &ConfigurationError{Key: "DB_URL", Reason: "is required"}
	}

	loc, err := time.LoadLocation(c.Reminders.TimezoneName)
	if err != nil {
		return &ConfigurationError{Key: "REMINDER_TIMEZONE", Reason: err.Error()}
	}
	c.Reminders.Location = loc

	if c.Reminders.PollInterval <= 0 {
		return &ConfigurationError{Key: "REMINDER_POLL_INTERVAL_MINUTES", Reason: "must be positive"}
	}
	// Workout slots and daily reminders match a single minute.
	if c.Reminders.PollInterval > time.Minute {
		return &ConfigurationError{Key: "REMINDER_POLL_INTERVAL_MINUTES", Reason: "must be at most 1 minute"}
	}
	// A window shorter than the poll interval lets a reminder fall between two ticks.
	if c.Reminders.Window < c.Reminders.PollInterval {
		return &ConfigurationError{Key: "REMINDER_WINDOW_MINUTES", Reason: "must be >= the poll interval"}
	}

	switch c.Reminders.Policy {
	case PolicyDayBefore:
	case PolicyDaysAhead:
		if c.Reminders.DaysAhead < 1 {
			return &ConfigurationError{Key: "REMINDER_DAYS_AHEAD", Reason: "must be at least 1"}
		}
	default:
		return &ConfigurationError{Key: "REMINDER_POLICY", Reason: fmt.Sprintf("unknown policy %q", c.Reminders.Policy)}
	}

	if c.Reminders.HoursBefore < 0 {
		return &ConfigurationError{Key: "REMINDER_HOURS_BEFORE", Reason: "must not be negative"}
	}

	if c.Reminders.GuardTTL <= 0 || c.Reminders.GuardTTL >= 2*time.Minute {
		return &ConfigurationError{Key: "REMINDER_GUARD_TTL_SECONDS", Reason: "must be between 1 and 119 seconds"}
	}
	switch c.Reminders.GuardBackend {
	case GuardMemory, GuardRedis:
	default:
		return &ConfigurationError{Key: "REMINDER_GUARD_BACKEND", Reason: fmt.Sprintf("unknown backend %q", c.Reminders.GuardBackend)}
	}

	switch c.Notifier.Provider {
	case NotifierZAPI:
		if c.Notifier.ZAPIURL == "" || c.Notifier.ZAPIToken == "" {
			return &ConfigurationError{Key: "WHATSAPP_API_URL/WHATSAPP_API_TOKEN", Reason: "are required for the zapi notifier"}
		}
	case NotifierTwilio:
		if c.Notifier.TwilioAccountSID == "" || c.Notifier.TwilioAuthToken == "" || c.Notifier.TwilioFrom == "" {
			return &ConfigurationError{Key: "TWILIO_*", Reason: "account sid, auth token and whatsapp number are required"}
		}
	default:
		return &ConfigurationError{Key: "NOTIFIER_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", c.Notifier.Provider)}
	}
	if c.Notifier.RatePerSecond <= 0 || c.Notifier.Burst < 1 {
		return &ConfigurationError{Key: "NOTIFIER_RATE_PER_SECOND/NOTIFIER_BURST", Reason: "must be positive"}
	}

	if c.JWTSecret == "" {
		return &ConfigurationError{Key: "SUPABASE_JWT_SECRET", Reason: "is required to protect the API"}
	}
	return nil
}

// FallbackEnabled reports whether the PostgREST fallback can be used.
func (c *Config) FallbackEnabled() bool {
	return c.Supabase.URL != "" && c.Supabase.ServiceKey != ""
}

func parseClock(key, value string) (utils.TimeOfDay, error) {
	tod, err := utils.ParseTimeOfDay(value)
	if err != nil {
		return utils.TimeOfDay{}, &ConfigurationError{Key: key, Reason: err.Error()}
	}
	return tod, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
