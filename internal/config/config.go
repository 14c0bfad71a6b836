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
)

const DefaultCRMBaseURL = "https://rest.gohighlevel.com/v1"

type Config struct {
	//App
	Env string // dev / staging / prod
	//HTTP
	HTTPAddr string

	// Persistence
	UserStore   string // postgres / memory
	DatabaseURL string
	DBDebug     bool
	AutoMigrate bool

	//Auth / Security
	JWTSecret      string
	JWTIssuer      string
	SessionTTL     time.Duration
	BcryptCost     int
	InternalSecret string

	CRM CRMConfig

	// Optional infrastructure; empty disables the feature.
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	SignupRateLimit int
	SignupRateWin   time.Duration
	RabbitURL       string
	RabbitExchange  string

	// TrustedProxy means a reverse proxy appends the peer address to
	// X-Forwarded-For; rate limiting then keys on its last hop.
	TrustedProxy bool

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// CRMConfig holds GoHighLevel credentials. Both APIKey and LocationID must be
// present for contact sync to run.
type CRMConfig struct {
	APIKey     string
	LocationID string
	BaseURL    string
	BaseURLSet bool // GHL_API_BASE_URL was given rather than defaulted
	Timeout    time.Duration
	Source     string
}

// Enabled reports whether both credentials are present.
func (c CRMConfig) Enabled() bool {
	return c.APIKey != "" && c.LocationID != ""
}

// Missing lists the env var names that keep the CRM integration disabled.
func (c CRMConfig) Missing() []string {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "GHL_API_KEY")
	}
	if c.LocationID == "" {
		missing = append(missing, "GHL_LOCATION_ID")
	}
	return missing
}

// KeyPreview returns the first 10 characters of the API key, for diagnostics.
func (c CRMConfig) KeyPreview() string {
	if c.APIKey == "" {
		return "Not set"
	}
	if len(c.APIKey) <= 10 {
		return c.APIKey[:len(c.APIKey)/2] + "..."
	}
	return c.APIKey[:10] + "..."
}

func loadDotEnv() error {
	// .env is optional; real environment variables always win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// LoadCRM reads only the GHL_* settings, for tools that never serve traffic.
func LoadCRM() (CRMConfig, error) {
	if err := loadDotEnv(); err != nil {
		return CRMConfig{}, err
	}
	return crmFromEnv()
}

func crmFromEnv() (CRMConfig, error) {
	c := CRMConfig{
		APIKey:     os.Getenv("GHL_API_KEY"),
		LocationID: os.Getenv("GHL_LOCATION_ID"),
		BaseURL:    strings.TrimRight(getEnv("GHL_API_BASE_URL", DefaultCRMBaseURL), "/"),
		BaseURLSet: os.Getenv("GHL_API_BASE_URL") != "",
		Source:     getEnv("GHL_SOURCE", "Meeting Machine"),
	}
	var err error
	if c.Timeout, err = getDuration("GHL_TIMEOUT", 5*time.Second); err != nil {
		return CRMConfig{}, err
	}
	return c, nil
}

func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:            getEnv("ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		UserStore:      strings.ToLower(getEnv("USER_STORE", "postgres")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTIssuer:      getEnv("JWT_ISSUER", "meeting-machine"),
		InternalSecret: os.Getenv("INTERNAL_SECRET"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "meetingmachine.events"),
	}

	// required values
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}

	switch cfg.UserStore {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("missing required env var: DATABASE_URL")
		}
	case "memory":
		if cfg.Env == "prod" {
			return nil, fmt.Errorf("USER_STORE=memory is not allowed in prod")
		}
	default:
		return nil, fmt.Errorf("invalid USER_STORE %q (want postgres or memory)", cfg.UserStore)
	}

	var err error
	if cfg.DBDebug, err = getBool("DB_DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.AutoMigrate, err = getBool("DB_AUTO_MIGRATE", cfg.Env == "dev"); err != nil {
		return nil, err
	}

	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = getInt("BCRYPT_COST", 12); err != nil {
		return nil, err
	}

	if cfg.CRM, err = crmFromEnv(); err != nil {
		return nil, err
	}

	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.SignupRateLimit, err = getInt("SIGNUP_RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.SignupRateWin, err = getDuration("SIGNUP_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.TrustedProxy, err = getBool("TRUSTED_PROXY", false); err != nil {
		return nil, err
	}

	//Timeout values are optional and have a default value if not
	if cfg.HTTPReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPIdleTimeout, err = getDuration("HTTP_IDLE_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}

	// The CRM call is awaited inside the request, so it must finish well
	// before the server gives up on writing the response.
	if cfg.CRM.Timeout <= 0 || cfg.CRM.Timeout >= cfg.HTTPWriteTimeout {
		return nil, fmt.Errorf("GHL_TIMEOUT must be positive and below HTTP_WRITE_TIMEOUT")
	}

	return cfg, nil
}

// Presence reports which configuration values are set, never their contents.
func (c *Config) Presence() map[string]bool {
	return map[string]bool{
		"DATABASE_URL":     c.DatabaseURL != "",
		"JWT_SECRET":       c.JWTSecret != "",
		"GHL_API_KEY":      c.CRM.APIKey != "",
		"GHL_API_BASE_URL": c.CRM.BaseURLSet,
		"GHL_LOCATION_ID":  c.CRM.LocationID != "",
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %q: %w", key, v, err)
	}
	return b, nil
}
