// Package config loads the service settings from the environment. An
// optional .env file is read first, real environment variables win.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	masked         = "********"
)

// Config is read once at start and not changed afterwards
type Config struct {
	Env      string
	Version  string
	HTTP     HTTPConfig
	Auth     AuthConfig
	Password PasswordConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Limit    RateLimitConfig
	Content  ContentConfig
	Log      LogConfig
	Admin    SuperuserConfig
}

type HTTPConfig struct {
	Address        string
	APIPrefix      string
	RequestTimeout time.Duration
}

type AuthConfig struct {
	SecretKey       string
	Algorithm       string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func (a AuthConfig) GetSigningKey() string             { return a.SecretKey }
func (a AuthConfig) GetSigningMethod() string          { return a.Algorithm }
func (a AuthConfig) GetAccessTokenTTL() time.Duration  { return a.AccessTokenTTL }
func (a AuthConfig) GetRefreshTokenTTL() time.Duration { return a.RefreshTokenTTL }
func (a AuthConfig) GetIssuer() string                 { return a.Issuer }

type PasswordConfig struct {
	HashCost            int
	MaxConcurrentHashes int
}

func (p PasswordConfig) GetHashCost() int            { return p.HashCost }
func (p PasswordConfig) GetMaxConcurrentHashes() int { return p.MaxConcurrentHashes }

type DatabaseConfig struct {
	Driver string
	// DSN overrides the POSTGRES_* settings when set
	DSN      string
	Server   string
	Port     int
	User     string
	Password string
	Name     string
	Debug    bool
}

// GetDSN returns the connection string for the configured driver
func (d DatabaseConfig) GetDSN() string {
	if d.DSN != "" {
		return d.DSN
	}

	if d.Driver == DriverSQLite {
		return "file:cms.db?cache=shared"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Server, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

type RedisConfig struct {
	Host string
	Port string
}

// Address is host:port, empty when no host is configured
func (r RedisConfig) Address() string {
	if r.Host == "" {
		return ""
	}
	return net.JoinHostPort(r.Host, r.Port)
}

type RateLimitConfig struct {
	Enabled           bool
	MaxRequestsPerMin int
	Window            time.Duration
}

type ContentConfig struct {
	AllowedTags       []string
	AllowedAttributes map[string][]string
}

func (c ContentConfig) GetAllowedTags() []string                  { return c.AllowedTags }
func (c ContentConfig) GetAllowedAttributes() map[string][]string { return c.AllowedAttributes }

type LogConfig struct {
	Level  string
	Format string
}

type SuperuserConfig struct {
	Email    string
	Password string
}

// Option tweaks how Load reads its sources
type Option func(*loader)

type loader struct {
	envFiles []string
	lookup   *viper.Viper
}

// WithEnvFiles sets the dotenv files to read. Missing files are skipped.
func WithEnvFiles(files ...string) Option {
	return func(l *loader) {
		l.envFiles = files
	}
}

// WithViper reads from v instead of a fresh instance bound to the
// environment. Mostly useful in tests.
func WithViper(v *viper.Viper) Option {
	return func(l *loader) {
		if v != nil {
			l.lookup = v
		}
	}
}

// Load reads and validates the configuration
func Load(opts ...Option) (*Config, error) {
	l := &loader{envFiles: []string{".env"}}
	for _, opt := range opts {
		opt(l)
	}

	for _, file := range l.envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read env file").
				WithMetadata(map[string]any{"file": file})
		}
	}

	v := l.lookup
	if v == nil {
		v = viper.New()
		v.AutomaticEnv()
	}
	setDefaults(v)

	tags, err := parseList(v.GetString("ALLOWED_TAGS"))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid ALLOWED_TAGS")
	}

	attrs, err := parseAttributes(v.GetString("ALLOWED_ATTRIBUTES"))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid ALLOWED_ATTRIBUTES")
	}

	cfg := &Config{
		Env:     v.GetString("ENV"),
		Version: v.GetString("VERSION"),
		HTTP: HTTPConfig{
			Address:        v.GetString("HTTP_ADDRESS"),
			APIPrefix:      "/api/" + v.GetString("API_VERSION"),
			RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
		},
		Auth: AuthConfig{
			SecretKey:       v.GetString("SECRET_KEY"),
			Algorithm:       v.GetString("ALGORITHM"),
			Issuer:          v.GetString("TOKEN_ISSUER"),
			AccessTokenTTL:  time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute,
			RefreshTokenTTL: time.Duration(v.GetInt("REFRESH_TOKEN_EXPIRE_DAYS")) * 24 * time.Hour,
		},
		Password: PasswordConfig{
			HashCost:            v.GetInt("PASSWORD_HASH_COST"),
			MaxConcurrentHashes: v.GetInt("PASSWORD_MAX_CONCURRENT_HASHES"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:      v.GetString("DB_DSN"),
			Server:   v.GetString("POSTGRES_SERVER"),
			Port:     v.GetInt("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			Name:     v.GetString("POSTGRES_DB"),
			Debug:    v.GetBool("DB_DEBUG"),
		},
		Redis: RedisConfig{
			Host: v.GetString("REDIS_HOST"),
			Port: v.GetString("REDIS_PORT"),
		},
		Limit: RateLimitConfig{
			Enabled:           v.GetBool("RATE_LIMIT_ENABLED"),
			MaxRequestsPerMin: v.GetInt("MAX_REQUESTS_PER_MINUTE"),
			Window:            time.Minute,
		},
		Content: ContentConfig{
			AllowedTags:       tags,
			AllowedAttributes: attrs,
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Admin: SuperuserConfig{
			Email:    v.GetString("FIRST_SUPERUSER"),
			Password: v.GetString("FIRST_SUPERUSER_PASSWORD"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "local")
	v.SetDefault("VERSION", "0.1.0")
	v.SetDefault("API_VERSION", "v1")
	v.SetDefault("HTTP_ADDRESS", ":8000")
	v.SetDefault("REQUEST_TIMEOUT", "10s")

	v.SetDefault("SECRET_KEY", "changethis")
	v.SetDefault("ALGORITHM", "HS256")
	v.SetDefault("TOKEN_ISSUER", "cms")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("REFRESH_TOKEN_EXPIRE_DAYS", 7)

	v.SetDefault("PASSWORD_HASH_COST", 0)
	v.SetDefault("PASSWORD_MAX_CONCURRENT_HASHES", 4)

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_DSN", "")
	v.SetDefault("DB_DEBUG", false)
	v.SetDefault("POSTGRES_SERVER", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "changethis")
	v.SetDefault("POSTGRES_DB", "db")

	v.SetDefault("REDIS_HOST", "redis")
	v.SetDefault("REDIS_PORT", "6379")

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("MAX_REQUESTS_PER_MINUTE", 60)

	v.SetDefault("ALLOWED_TAGS", "")
	v.SetDefault("ALLOWED_ATTRIBUTES", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("FIRST_SUPERUSER", "admin@example.com")
	v.SetDefault("FIRST_SUPERUSER_PASSWORD", "changethis")
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	err := validation.Errors{
		"SECRET_KEY":                  validation.Validate(c.Auth.SecretKey, validation.Required),
		"ALGORITHM":                   validation.Validate(c.Auth.Algorithm, validation.Required, validation.In("HS256", "HS384", "HS512")),
		"ACCESS_TOKEN_EXPIRE_MINUTES": validation.Validate(c.Auth.AccessTokenTTL, validation.Required, validation.Min(time.Minute)),
		"REFRESH_TOKEN_EXPIRE_DAYS":   validation.Validate(c.Auth.RefreshTokenTTL, validation.Required, validation.Min(24*time.Hour)),
		"DB_DRIVER":                   validation.Validate(c.Database.Driver, validation.Required, validation.In(DriverPostgres, DriverSQLite)),
		"POSTGRES_PORT":               validation.Validate(c.Database.Port, validation.Min(1), validation.Max(65535)),
		"MAX_REQUESTS_PER_MINUTE":     validation.Validate(c.Limit.MaxRequestsPerMin, validation.Required, validation.Min(1)),
		"FIRST_SUPERUSER":             validation.Validate(c.Admin.Email, is.EmailFormat),
		"REQUEST_TIMEOUT":             validation.Validate(c.HTTP.RequestTimeout, validation.Required, validation.Min(time.Millisecond)),
		"LOG_FORMAT":                  validation.Validate(c.Log.Format, validation.In("text", "json")),
		"HTTP_ADDRESS":                validation.Validate(c.HTTP.Address, validation.Required),
	}.Filter()

	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid configuration")
	}
	return nil
}

// String masks secrets so the config can be logged
func (c Config) String() string {
	secret := func(s string) string {
		if s == "" {
			return ""
		}
		return masked
	}

	return fmt.Sprintf(
		"env=%s version=%s http=%s prefix=%s db=%s/%s@%s:%d secret_key=%s db_password=%s redis=%s rate_limit=%t/%d superuser=%s superuser_password=%s",
		c.Env, c.Version, c.HTTP.Address, c.HTTP.APIPrefix,
		c.Database.Driver, c.Database.Name, c.Database.Server, c.Database.Port,
		secret(c.Auth.SecretKey), secret(c.Database.Password),
		c.Redis.Address(), c.Limit.Enabled, c.Limit.MaxRequestsPerMin,
		c.Admin.Email, secret(c.Admin.Password),
	)
}

// parseList accepts a JSON array or a comma separated list. Empty means
// the built in defaults.
func parseList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// parseAttributes accepts a JSON object of tag to attribute list
func parseAttributes(raw string) (map[string][]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var out map[string][]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
