package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"shifttime/internal/security"
)

const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8080
	DefaultNetlifyAPIURL   = "https://api.netlify.com/api/v1"
	DefaultSitePrefix      = "shifttime"
	DefaultRateLimit       = 300
	DefaultRateWindow      = 15 * time.Minute
	DefaultUpstreamTimeout = 30 * time.Second
	DefaultRedisPrefix     = "shifttime:ratelimit:"

	// FileName is the config file looked up in the default locations
	FileName = "shifttime.yaml"
)

// Rate limiter backends
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
	RateLimitToken  = "token"
)

// Config is the process-wide configuration. It is built once at start
// and handed to constructors; nothing reads the environment afterwards.
type Config struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	LogFile         string        `yaml:"log_file"`
	LogLevel        string        `yaml:"log_level"`
	SheetsURL       string        `yaml:"sheets_webapp_url"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`

	Netlify    NetlifyConfig    `yaml:"netlify"`
	CORS       CORSConfig       `yaml:"cors"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Cloudflare CloudflareConfig `yaml:"cloudflare"`
}

// NetlifyConfig holds the hosting provider credentials
type NetlifyConfig struct {
	Token      string `yaml:"token"`
	Team       string `yaml:"team"`
	APIURL     string `yaml:"api_url"`
	SitePrefix string `yaml:"site_prefix"`
}

// CORSConfig is either Origin "*" or an explicit allow-list
type CORSConfig struct {
	Origin    string   `yaml:"origin"`
	AllowList []string `yaml:"allowlist"`
}

// AllowAll reports whether every origin is accepted
func (c CORSConfig) AllowAll() bool {
	return c.Origin == "*"
}

// RateLimitConfig describes the /api/* throttle
type RateLimitConfig struct {
	Backend       string        `yaml:"backend"`
	Requests      int           `yaml:"requests"`
	Window        time.Duration `yaml:"window"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix"`
}

// CloudflareConfig enables DNS linking of project domains
type CloudflareConfig struct {
	APIToken string `yaml:"api_token"`
	ZoneID   string `yaml:"zone_id"`
	Proxied  bool   `yaml:"proxied"`
}

// Enabled reports whether both token and zone are present
func (c CloudflareConfig) Enabled() bool {
	return c.APIToken != "" && c.ZoneID != ""
}

// New creates a config with defaults
func New() *Config {
	return &Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		LogLevel:        "info",
		UpstreamTimeout: DefaultUpstreamTimeout,
		Netlify: NetlifyConfig{
			APIURL:     DefaultNetlifyAPIURL,
			SitePrefix: DefaultSitePrefix,
		},
		RateLimit: RateLimitConfig{
			Backend:     RateLimitMemory,
			Requests:    DefaultRateLimit,
			Window:      DefaultRateWindow,
			RedisPrefix: DefaultRedisPrefix,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file (optional,
// path may be empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	c := New()
	if err := c.LoadFromFile(path); err != nil {
		return nil, err
	}
	c.LoadFromEnv()

	if problems := c.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration:\n%s", strings.Join(problems, "\n"))
	}
	return c, nil
}

// LoadFromFile loads config from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Config file is optional
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// LoadFromEnv overrides values with any environment variables that are set
func (c *Config) LoadFromEnv() {
	setString(&c.Host, "HOST")
	setInt(&c.Port, "PORT")
	setString(&c.LogFile, "LOG_FILE")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.SheetsURL, "SHEETS_WEBAPP_URL")

	setString(&c.Netlify.Token, "NETLIFY_AUTH_TOKEN")
	setString(&c.Netlify.Token, "NETLIFY_TOKEN")
	setString(&c.Netlify.Team, "NETLIFY_TEAM")
	setString(&c.Netlify.APIURL, "NETLIFY_API_URL")

	setString(&c.CORS.Origin, "CORS_ORIGIN")
	if raw, ok := lookup("CORS_ALLOWLIST"); ok {
		c.CORS.AllowList = SplitList(raw)
	}

	setString(&c.RateLimit.Backend, "RATE_LIMIT_BACKEND")
	setInt(&c.RateLimit.Requests, "RATE_LIMIT_REQUESTS")
	if raw, ok := lookup("RATE_LIMIT_WINDOW"); ok {
		if d, err := time.ParseDuration(raw); err == nil {
			c.RateLimit.Window = d
		}
	}
	setString(&c.RateLimit.RedisAddr, "REDIS_ADDR")
	setString(&c.RateLimit.RedisPassword, "REDIS_PASSWORD")

	setString(&c.Cloudflare.APIToken, "CLOUDFLARE_API_TOKEN")
	setString(&c.Cloudflare.ZoneID, "CLOUDFLARE_ZONE_ID")
}

// Validate returns every problem found, one line each
func (c *Config) Validate() []string {
	var errors []string

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, fmt.Sprintf("  - port must be between 1 and 65535, got %d", c.Port))
	}

	if c.SheetsURL != "" {
		if u, err := url.Parse(c.SheetsURL); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("  - sheets_webapp_url must be an absolute http(s) URL, got '%s'", c.SheetsURL))
		}
	}

	if u, err := url.Parse(c.Netlify.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("  - netlify.api_url must be an absolute URL, got '%s'", c.Netlify.APIURL))
	}

	if c.CORS.Origin != "" && c.CORS.Origin != "*" {
		errors = append(errors, fmt.Sprintf("  - cors.origin must be '*' or empty (use cors.allowlist for explicit origins), got '%s'", c.CORS.Origin))
	}

	switch c.RateLimit.Backend {
	case RateLimitMemory, RateLimitToken:
	case RateLimitRedis:
		if c.RateLimit.RedisAddr == "" {
			errors = append(errors, "  - rate_limit.redis_addr is required for the redis backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("  - rate_limit.backend must be one of memory, redis, token, got '%s'", c.RateLimit.Backend))
	}

	if c.RateLimit.Requests < 0 {
		errors = append(errors, fmt.Sprintf("  - rate_limit.requests must not be negative, got %d", c.RateLimit.Requests))
	}
	if c.RateLimit.Window <= 0 {
		errors = append(errors, fmt.Sprintf("  - rate_limit.window must be positive, got %s", c.RateLimit.Window))
	}

	if c.UpstreamTimeout < 0 {
		errors = append(errors, fmt.Sprintf("  - upstream_timeout must not be negative, got %s", c.UpstreamTimeout))
	}

	if c.Netlify.Token != "" && security.IsPlaceholder(c.Netlify.Token) {
		errors = append(errors, "  - netlify.token appears to be a placeholder value")
	}
	if c.Cloudflare.APIToken != "" && security.IsPlaceholder(c.Cloudflare.APIToken) {
		errors = append(errors, "  - cloudflare.api_token appears to be a placeholder value")
	}

	if (c.Cloudflare.APIToken == "") != (c.Cloudflare.ZoneID == "") {
		errors = append(errors, "  - cloudflare.api_token and cloudflare.zone_id must be set together")
	}

	return errors
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SplitList splits a comma separated list, dropping blanks
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lookup(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

func setString(dst *string, key string) {
	if value, ok := lookup(key); ok {
		*dst = value
	}
}

func setInt(dst *int, key string) {
	if value, ok := lookup(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			*dst = n
		}
	}
}
