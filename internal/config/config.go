// Package config loads settings with precedence flag > environment >
// .env file > default.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

type Config struct {
	Env      string
	LogLevel string
	Port     int

	Store  StoreConfig
	Auth   AuthConfig
	Google GoogleConfig
	Mail   MailConfig

	CORSOrigins       []string
	AuthRatePerMinute int
}

type StoreConfig struct {
	Driver        string
	DBPath        string
	MongoURI      string
	MongoDatabase string
}

type AuthConfig struct {
	JWTSecret        string
	JWTExpire        time.Duration
	ResetTokenExpire time.Duration
	// ResetURL is the front-end page the reset token is appended to.
	ResetURL string
}

// GoogleConfig is optional; the Google routes exist only when Enabled.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// MailConfig selects SMTP delivery when Host is set, else mails are logged.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Load parses args (usually os.Args[1:]), reads the .env file named by
// -env-file and builds the config. It does not validate.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("cardbook", flag.ContinueOnError)
	env := fs.String("env", "", "environment (development, production)")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	port := fs.String("port", "", "HTTP port (default 8080)")
	driver := fs.String("store", "", "storage driver (sqlite, mongo)")
	dbPath := fs.String("db-path", "", "SQLite database file")
	envFile := fs.String("env-file", ".env", "path to .env file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// A missing .env file is fine. godotenv never overrides variables
	// already present in the environment.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading %s: %w", *envFile, err)
	}

	cfg := &Config{
		Env:      value(*env, "ENV", EnvDevelopment),
		LogLevel: value(*logLevel, "LOG_LEVEL", "info"),
		Store: StoreConfig{
			Driver:        value(*driver, "STORE_DRIVER", DriverSQLite),
			DBPath:        value(*dbPath, "DB_PATH", "data/cardbook.db"),
			MongoURI:      value("", "MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase: value("", "MONGO_DATABASE", "cardbook"),
		},
		Auth: AuthConfig{
			JWTSecret: value("", "JWT_SECRET", ""),
			ResetURL:  value("", "RESET_URL", "http://localhost:3000/reset-password"),
		},
		Google: GoogleConfig{
			ClientID:     value("", "GOOGLE_CLIENT_ID", ""),
			ClientSecret: value("", "GOOGLE_CLIENT_SECRET", ""),
			CallbackURL:  value("", "GOOGLE_CALLBACK_URL", ""),
		},
		Mail: MailConfig{
			Host:     value("", "SMTP_HOST", ""),
			User:     value("", "SMTP_USER", ""),
			Password: value("", "SMTP_PASSWORD", ""),
			From:     value("", "MAIL_FROM", "no-reply@cardbook.local"),
		},
		CORSOrigins: splitList(value("", "CORS_ORIGINS", "*")),
	}

	var err error
	if cfg.Port, err = intValue(*port, "PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.Mail.Port, err = intValue("", "SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.AuthRatePerMinute, err = intValue("", "AUTH_RATE_PER_MINUTE", 20); err != nil {
		return nil, err
	}
	if cfg.Auth.JWTExpire, err = durationValue("JWT_EXPIRE", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Auth.ResetTokenExpire, err = durationValue("RESET_TOKEN_EXPIRE", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Google.CallbackURL == "" {
		cfg.Google.CallbackURL = fmt.Sprintf("http://localhost:%d/api/users/google/callback", cfg.Port)
	}
	return cfg, nil
}

// Validate reports every setting the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be set and at least 16 characters"))
	}
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("ENV must be %s or %s, got %q", EnvDevelopment, EnvProduction, c.Env))
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite store"))
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %s or %s, got %q", DriverSQLite, DriverMongo, c.Store.Driver))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.AuthRatePerMinute <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_PER_MINUTE must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func value(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return defaultValue
}

func intValue(flagValue, envKey string, defaultValue int) (int, error) {
	s := value(flagValue, envKey, "")
	if s == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", envKey, s)
	}
	return n, nil
}

func durationValue(envKey string, defaultValue time.Duration) (time.Duration, error) {
	s := value("", envKey, "")
	if s == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration, got %q", envKey, s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
