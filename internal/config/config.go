package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/turfbook/turfbook/internal/identity"
)

const (
	defaultAppName        = "TurfBook"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultTokenTTL       = 30 * 24 * time.Hour
	defaultOTPTTL         = 5 * time.Minute
	defaultOTPMaxAttempts = 5
	defaultOTPPerMinute   = 3
	defaultPhoneRegion    = "IN"
	devJWTSecret          = "turfbook-development-secret"
)

// Config captures API server configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string
	PhoneRegion    string
	TokenTTL       time.Duration
	OTPTTL         time.Duration
	OTPMaxAttempts int
	OTPPerMinute   int
	ShutdownPeriod time.Duration
	Roles          map[string]identity.Role
}

// Load reads configuration values from the environment (and an optional
// .env file) and populates a Config instance.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getEnv("APP_NAME", defaultAppName),
		AppEnv:      getEnv("APP_ENV", defaultAppEnv),
		Port:        getEnv("PORT", defaultPort),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		PhoneRegion: getEnv("PHONE_REGION", defaultPhoneRegion),
		Roles:       map[string]identity.Role{},
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT_SECONDS", "SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL_SECONDS", "TOKEN_TTL", defaultTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.OTPTTL, err = durationEnv("OTP_TTL_SECONDS", "OTP_TTL", defaultOTPTTL); err != nil {
		return Config{}, err
	}
	if cfg.OTPMaxAttempts, err = intEnv("OTP_MAX_ATTEMPTS", defaultOTPMaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.OTPPerMinute, err = intEnv("SEND_OTP_PER_MINUTE", defaultOTPPerMinute); err != nil {
		return Config{}, err
	}

	for _, phone := range splitList(os.Getenv("ADMIN_PHONES")) {
		cfg.Roles[phone] = identity.RoleAdmin
	}
	for _, phone := range splitList(os.Getenv("MANAGER_PHONES")) {
		cfg.Roles[phone] = identity.RoleManager
	}

	if cfg.IsDev() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devJWTSecret
		}
		return cfg, nil
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	return cfg, nil
}

// IsDev reports whether in-memory fallbacks are allowed.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// Client configures the turfctl client.
type Client struct {
	APIURL      string
	Store       string
	StoreDir    string
	RedisURL    string
	Profile     string
	PhoneRegion string
	HTTPTimeout time.Duration
	LogLevel    string
}

// LoadClient reads client settings from the environment.
func LoadClient() (Client, error) {
	_ = godotenv.Load()

	cfg := Client{
		APIURL:      getEnv("TURF_API_URL", "http://localhost:8080/api/v1"),
		Store:       strings.ToLower(getEnv("TURF_STORE", "file")),
		StoreDir:    os.Getenv("TURF_STORE_DIR"),
		RedisURL:    os.Getenv("TURF_REDIS_URL"),
		Profile:     getEnv("TURF_PROFILE", "default"),
		PhoneRegion: getEnv("TURF_PHONE_REGION", defaultPhoneRegion),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "warn")),
	}

	var err error
	if cfg.HTTPTimeout, err = durationEnv("TURF_HTTP_TIMEOUT_SECONDS", "TURF_HTTP_TIMEOUT", 15*time.Second); err != nil {
		return Client{}, err
	}

	switch cfg.Store {
	case "file", "memory":
	case "redis":
		if cfg.RedisURL == "" {
			return Client{}, fmt.Errorf("TURF_REDIS_URL must be set when TURF_STORE=redis")
		}
	default:
		return Client{}, fmt.Errorf("invalid TURF_STORE %q: want file, redis or memory", cfg.Store)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads whole seconds from secondsKey, else a Go duration from
// durKey, else fallback.
func durationEnv(secondsKey, durKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
