// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	configPath        = pflag.String("config", ".", "Directory containing config.toml")
	validLogLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validDBDrivers    = []string{"sqlite", "postgres"}
	ErrMissingSecret  = errors.New("jwt.secret is required")
	ErrMissingDSN     = errors.New("db.dsn is required")
	ErrMissingGoogle  = errors.New("google.client_id and google.client_secret are required")
	ErrMissingAppURL  = errors.New("app.url is required")
	ErrMissingClient  = errors.New("app.client_url is required")
	ErrInvalidLogLvl  = errors.New("invalid log level provided")
	ErrInvalidDriver  = errors.New("invalid database driver provided")
	ErrInvalidPort    = errors.New("invalid port provided")
	ErrTurnstileToken = errors.New("turnstile secret token is missing")
)

type Config struct {
	App       App
	Host      Host
	DB        DB
	JWT       JWT
	Google    Google
	Mail      Mail
	Security  Security
	Turnstile Turnstile
}

type App struct {
	LogLevel  string
	URL       string // Public base URL of this service, used for the OAuth redirect
	ClientURL string // Frontend URL, default redirect target and verification link host
}

type Host struct {
	Port int
	CORS []string
}

type DB struct {
	Driver string
	DSN    string
}

type JWT struct {
	Secret string
	TTL    time.Duration
}

type Google struct {
	ClientID     string
	ClientSecret string
	TokenInfoURL string
	Timeout      time.Duration
}

type Mail struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

type Security struct {
	RateLimit int // Requests per second per client IP on the auth endpoints
}

type Turnstile struct {
	Enabled     bool
	SecretToken string
}

// RedirectURL is the OAuth callback registered with Google.
func (c *Config) RedirectURL() string {
	return strings.TrimSuffix(c.App.URL, "/") + "/api/auth/callback/google"
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() (*Config, error) {
	pflag.Parse()

	// A .env file is a local convenience, deployments inject the env directly
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env file, %w", err)
		}
	}

	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(*configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound v.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file, %w", err)
		}
	}

	return Load(v.GetViper())
}

// Load binds environment variables and defaults onto vp and builds a
// validated Config from it.
func Load(vp *v.Viper) (*Config, error) {
	vp.AutomaticEnv()

	//
	// ENVS
	//
	vp.BindEnv("app.log_level", "APP_LOG_LEVEL")
	vp.BindEnv("app.url", "APP_URL")
	vp.BindEnv("app.client_url", "CLIENT_URL")

	vp.BindEnv("host.port", "HOST_PORT")
	vp.BindEnv("host.cors", "HOST_CORS")

	vp.BindEnv("db.driver", "DB_DRIVER")
	vp.BindEnv("db.dsn", "DB_DSN")

	vp.BindEnv("jwt.secret", "JWT_SECRET")
	vp.BindEnv("jwt.ttl", "JWT_TTL")

	vp.BindEnv("google.client_id", "GOOGLE_CLIENT_ID")
	vp.BindEnv("google.client_secret", "GOOGLE_CLIENT_SECRET")
	vp.BindEnv("google.tokeninfo_url", "GOOGLE_TOKENINFO_URL")
	vp.BindEnv("google.timeout", "GOOGLE_TIMEOUT")

	vp.BindEnv("mail.host", "MAIL_HOST")
	vp.BindEnv("mail.port", "MAIL_PORT")
	vp.BindEnv("mail.username", "MAIL_USERNAME")
	vp.BindEnv("mail.password", "MAIL_PASSWORD")
	vp.BindEnv("mail.sender", "MAIL_SENDER_ADDRESS")

	vp.BindEnv("security.rate_limit", "SECURITY_RATE_LIMIT")

	vp.BindEnv("turnstile.enabled", "TURNSTILE_ENABLED")
	vp.BindEnv("turnstile.secret_token", "TURNSTILE_SECRET_TOKEN")

	//
	// Defaults
	//
	vp.SetDefault("app.log_level", "info")

	vp.SetDefault("host.port", 8000)
	vp.SetDefault("host.cors", []string{"http://localhost:5173"})

	vp.SetDefault("db.driver", "sqlite")

	vp.SetDefault("jwt.ttl", 30*24*time.Hour)

	vp.SetDefault("google.tokeninfo_url", "https://www.googleapis.com/oauth2/v3/tokeninfo")
	vp.SetDefault("google.timeout", 10*time.Second)

	vp.SetDefault("mail.port", 587)

	vp.SetDefault("security.rate_limit", 5)

	vp.SetDefault("turnstile.enabled", false)

	c := &Config{
		App: App{
			LogLevel:  vp.GetString("app.log_level"),
			URL:       vp.GetString("app.url"),
			ClientURL: vp.GetString("app.client_url"),
		},
		Host: Host{
			Port: vp.GetInt("host.port"),
			CORS: splitList(vp.GetStringSlice("host.cors")),
		},
		DB: DB{
			Driver: vp.GetString("db.driver"),
			DSN:    vp.GetString("db.dsn"),
		},
		JWT: JWT{
			Secret: vp.GetString("jwt.secret"),
			TTL:    vp.GetDuration("jwt.ttl"),
		},
		Google: Google{
			ClientID:     vp.GetString("google.client_id"),
			ClientSecret: vp.GetString("google.client_secret"),
			TokenInfoURL: vp.GetString("google.tokeninfo_url"),
			Timeout:      vp.GetDuration("google.timeout"),
		},
		Mail: Mail{
			Host:     vp.GetString("mail.host"),
			Port:     vp.GetInt("mail.port"),
			Username: vp.GetString("mail.username"),
			Password: vp.GetString("mail.password"),
			Sender:   vp.GetString("mail.sender"),
		},
		Security: Security{
			RateLimit: vp.GetInt("security.rate_limit"),
		},
		Turnstile: Turnstile{
			Enabled:     vp.GetBool("turnstile.enabled"),
			SecretToken: vp.GetString("turnstile.secret_token"),
		},
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) validate() error {
	if !slices.Contains(validLogLevels, c.App.LogLevel) {
		return ErrInvalidLogLvl
	}

	if c.Host.Port <= 0 {
		return ErrInvalidPort
	}

	if len(c.Host.CORS) == 0 {
		return errors.New("host.cors needs at least one origin")
	}

	if !slices.Contains(validDBDrivers, c.DB.Driver) {
		return ErrInvalidDriver
	}

	if c.DB.DSN == "" {
		return ErrMissingDSN
	}

	if c.JWT.Secret == "" {
		return ErrMissingSecret
	}

	if c.JWT.TTL <= 0 {
		return errors.New("jwt.ttl must be bigger than 0")
	}

	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		return ErrMissingGoogle
	}

	if c.Google.Timeout <= 0 {
		return errors.New("google.timeout must be bigger than 0")
	}

	if c.App.URL == "" {
		return ErrMissingAppURL
	}

	if c.App.ClientURL == "" {
		return ErrMissingClient
	}

	if c.Security.RateLimit <= 0 {
		return errors.New("security.rate_limit must be bigger than 0")
	}

	if c.Turnstile.Enabled && c.Turnstile.SecretToken == "" {
		return ErrTurnstileToken
	}

	return nil
}

// splitList accepts both toml arrays and comma separated env values
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}

	return out
}
