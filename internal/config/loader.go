package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config captures environment driven configuration values for the fieldops service.
type Config struct {
	HTTPPort int

	Store       string
	SQLitePath  string
	PostgresDSN string

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	CheckInRadiusMiles  float64
	CheckOutRadiusMiles float64
	Location            *time.Location

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string

	PinMaxAttempts      int
	PinLockout          time.Duration
	CalendarHorizonDays int

	LogLevel  slog.Level
	LogFormat string
}

// fileOverlay is the optional YAML document named by FIELDOPS_CONFIG_FILE.
// Only policy values live there; environment variables take precedence.
type fileOverlay struct {
	Geofence struct {
		CheckInRadiusMiles  *float64 `yaml:"check_in_radius_miles"`
		CheckOutRadiusMiles *float64 `yaml:"check_out_radius_miles"`
	} `yaml:"geofence"`
	Pin struct {
		MaxAttempts *int   `yaml:"max_attempts"`
		Lockout     string `yaml:"lockout"`
	} `yaml:"pin"`
	Calendar struct {
		HorizonDays *int   `yaml:"horizon_days"`
		Timezone    string `yaml:"timezone"`
	} `yaml:"calendar"`
}

// Load parses configuration values from the current process environment.
//
// Defaults apply first, then the YAML overlay file when FIELDOPS_CONFIG_FILE is
// set, then environment variables. Missing and invalid keys are reported
// together in a single error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:            8080,
		Store:               StoreSQLite,
		SQLitePath:          "fieldops.db",
		JWTIssuer:           "fieldops",
		TokenTTL:            12 * time.Hour,
		CheckInRadiusMiles:  1.0,
		CheckOutRadiusMiles: 1.0,
		Location:            time.UTC,
		KafkaTopic:          "fieldops.shifts",
		PinMaxAttempts:      5,
		PinLockout:          15 * time.Minute,
		CalendarHorizonDays: 92,
		LogLevel:            slog.LevelInfo,
		LogFormat:           "json",
	}

	l := &loader{cfg: &cfg}

	if path := env("FIELDOPS_CONFIG_FILE"); path != "" {
		if err := l.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	l.intVar("FIELDOPS_HTTP_PORT", &cfg.HTTPPort, func(v int) bool { return v > 0 && v < 65536 })

	if store := strings.ToLower(env("FIELDOPS_STORE")); store != "" {
		if store != StoreSQLite && store != StorePostgres {
			l.invalid = append(l.invalid, "FIELDOPS_STORE")
		} else {
			cfg.Store = store
		}
	}
	if path := env("FIELDOPS_SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}
	cfg.PostgresDSN = env("FIELDOPS_POSTGRES_DSN")
	if cfg.Store == StorePostgres && cfg.PostgresDSN == "" {
		l.missing = append(l.missing, "FIELDOPS_POSTGRES_DSN")
	}

	if cfg.JWTSecret = env("FIELDOPS_JWT_SECRET"); cfg.JWTSecret == "" {
		l.missing = append(l.missing, "FIELDOPS_JWT_SECRET")
	}
	if issuer := env("FIELDOPS_JWT_ISSUER"); issuer != "" {
		cfg.JWTIssuer = issuer
	}
	l.durationVar("FIELDOPS_JWT_TTL", &cfg.TokenTTL)

	l.floatVar("FIELDOPS_CHECKIN_RADIUS_MILES", &cfg.CheckInRadiusMiles)
	l.floatVar("FIELDOPS_CHECKOUT_RADIUS_MILES", &cfg.CheckOutRadiusMiles)
	if name := env("FIELDOPS_TIMEZONE"); name != "" {
		if loc, err := time.LoadLocation(name); err != nil {
			l.invalid = append(l.invalid, "FIELDOPS_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	cfg.RedisAddr = env("FIELDOPS_REDIS_ADDR")
	cfg.RedisPassword = env("FIELDOPS_REDIS_PASSWORD")
	l.intVar("FIELDOPS_REDIS_DB", &cfg.RedisDB, func(v int) bool { return v >= 0 })

	if brokers := env("FIELDOPS_KAFKA_BROKERS"); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if trimmed := strings.TrimSpace(broker); trimmed != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, trimmed)
			}
		}
	}
	if topic := env("FIELDOPS_KAFKA_TOPIC"); topic != "" {
		cfg.KafkaTopic = topic
	}

	l.intVar("FIELDOPS_PIN_MAX_ATTEMPTS", &cfg.PinMaxAttempts, func(v int) bool { return v > 0 })
	l.durationVar("FIELDOPS_PIN_LOCKOUT", &cfg.PinLockout)
	l.intVar("FIELDOPS_CALENDAR_HORIZON_DAYS", &cfg.CalendarHorizonDays, func(v int) bool { return v > 0 && v <= 366 })

	if level := env("FIELDOPS_LOG_LEVEL"); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			l.invalid = append(l.invalid, "FIELDOPS_LOG_LEVEL")
		}
	}
	if format := strings.ToLower(env("FIELDOPS_LOG_FORMAT")); format != "" {
		if format != "json" && format != "text" {
			l.invalid = append(l.invalid, "FIELDOPS_LOG_FORMAT")
		} else {
			cfg.LogFormat = format
		}
	}

	if err := l.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type loader struct {
	cfg     *Config
	missing []string
	invalid []string
}

func (l *loader) err() error {
	var errs []error
	if len(l.missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required environment variables: %s", strings.Join(l.missing, ", ")))
	}
	if len(l.invalid) > 0 {
		errs = append(errs, fmt.Errorf("invalid environment variable values: %s", strings.Join(l.invalid, ", ")))
	}
	return errors.Join(errs...)
}

func (l *loader) intVar(key string, dst *int, valid func(int) bool) {
	value := env(key)
	if value == "" {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || !valid(parsed) {
		l.invalid = append(l.invalid, key)
		return
	}
	*dst = parsed
}

func (l *loader) floatVar(key string, dst *float64) {
	value := env(key)
	if value == "" {
		return
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		l.invalid = append(l.invalid, key)
		return
	}
	*dst = parsed
}

func (l *loader) durationVar(key string, dst *time.Duration) {
	value := env(key)
	if value == "" {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		l.invalid = append(l.invalid, key)
		return
	}
	*dst = parsed
}

func (l *loader) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg := l.cfg
	if v := overlay.Geofence.CheckInRadiusMiles; v != nil && *v > 0 {
		cfg.CheckInRadiusMiles = *v
	}
	if v := overlay.Geofence.CheckOutRadiusMiles; v != nil && *v > 0 {
		cfg.CheckOutRadiusMiles = *v
	}
	if v := overlay.Pin.MaxAttempts; v != nil && *v > 0 {
		cfg.PinMaxAttempts = *v
	}
	if overlay.Pin.Lockout != "" {
		lockout, err := time.ParseDuration(overlay.Pin.Lockout)
		if err != nil || lockout <= 0 {
			return fmt.Errorf("config file %s: invalid pin.lockout %q", path, overlay.Pin.Lockout)
		}
		cfg.PinLockout = lockout
	}
	if v := overlay.Calendar.HorizonDays; v != nil && *v > 0 {
		cfg.CalendarHorizonDays = *v
	}
	if overlay.Calendar.Timezone != "" {
		loc, err := time.LoadLocation(overlay.Calendar.Timezone)
		if err != nil {
			return fmt.Errorf("config file %s: invalid calendar.timezone: %w", path, err)
		}
		cfg.Location = loc
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
