// Package config loads Billy's settings from the environment, an optional .env
// file and an optional YAML or TOML file named by CONFIG_FILE.
//
// Precedence, highest first: process environment, .env, CONFIG_FILE, defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/govalues/money"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// HTTP server
	Port string

	// Storage
	DatabaseURL string
	DevSeed     bool

	// Logging
	LogLevel  string
	LogFormat string

	// Tokens
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	TokenTTL    time.Duration

	// Service credentials used by the bot to obtain a service token
	APIAuthUsername string
	APIAuthPassword string

	// Session cache
	RedisAddr     string
	RedisUser     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	// Email
	EmailSMTP     string
	EmailPort     int
	EmailAddress  string
	EmailPassword string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Bot
	BotToken           string
	BotUsername        string
	APIEndpoint        string
	APILoginEndpoint   string
	SignupPageEndpoint string
	DisplayCurrency    string
}

// source resolves a key to a raw string value.
type source func(key string) (string, bool)

// Load reads .env (if present) and CONFIG_FILE (if set), then the environment.
// Only an unreadable or malformed CONFIG_FILE is an error; bad values are
// reported by the Validate methods.
func Load() (*Config, error) {
	_ = godotenv.Load()
	file := map[string]string{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		var err error
		if file, err = readFile(path); err != nil {
			return nil, err
		}
	}
	return build(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := file[key]
		return v, ok && v != ""
	}), nil
}

func build(get source) *Config {
	return &Config{
		Port: str(get, "PORT", "8080"),

		DatabaseURL: str(get, "DATABASE_URL", ""),
		DevSeed:     boolean(get, "DEV_SEED", false),

		LogLevel:  str(get, "LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(str(get, "LOG_FORMAT", "json")),

		JWTSecret:   str(get, "JWT_SECRET", ""),
		JWTIssuer:   str(get, "JWT_ISSUER", "billy"),
		JWTAudience: str(get, "JWT_AUDIENCE", ""),
		TokenTTL:    time.Duration(integer(get, "TOKEN_TTL_HOURS", 24)) * time.Hour,

		APIAuthUsername: str(get, "API_AUTH_USERNAME", ""),
		APIAuthPassword: str(get, "API_AUTH_PASSWORD", ""),

		RedisAddr:     str(get, "REDIS_ADDR", ""),
		RedisUser:     str(get, "REDIS_USER", ""),
		RedisPassword: str(get, "REDIS_PASSWORD", ""),
		RedisDB:       integer(get, "REDIS_DB", 0),
		SessionTTL:    time.Duration(integer(get, "BOT_EXPIRE_LOGGED_TIME", 86400)) * time.Second,

		EmailSMTP:     str(get, "EMAIL_SMTP", ""),
		EmailPort:     integer(get, "EMAIL_PORT", 465),
		EmailAddress:  str(get, "EMAIL_ADDRESS", ""),
		EmailPassword: str(get, "EMAIL_PASSWORD", ""),

		AMQPURL:      str(get, "AMQP_URL", ""),
		AMQPExchange: str(get, "AMQP_EXCHANGE", "billy"),
		AMQPQueue:    str(get, "AMQP_QUEUE", "billy.email"),

		BotToken:           str(get, "BOT_TOKEN", ""),
		BotUsername:        strings.TrimPrefix(str(get, "BOT_USERNAME", ""), "@"),
		APIEndpoint:        strings.TrimRight(str(get, "BILLY_API_ENDPOINT", "http://localhost:8080"), "/"),
		APILoginEndpoint:   str(get, "BILLY_API_LOGIN_ENDPOINT", "/v1/bot/login"),
		SignupPageEndpoint: str(get, "BILLY_PAGE_SIGNUP_ENDPOINT", "/signup"),
		DisplayCurrency:    strings.ToUpper(str(get, "DISPLAY_CURRENCY", "IDR")),
	}
}

// readFile flattens a YAML or TOML document of scalar values into KEY=value pairs.
// Keys are upper-cased so the file may use either spelling.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("error parsing YAML file: %w", err)
		}
	case ".toml":
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return nil, fmt.Errorf("error parsing TOML file: %w", err)
		}
		raw = tree.ToMap()
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("config file key %q: only scalar values are supported", k)
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func str(get source, key, def string) string {
	if v, ok := get(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

// integer keeps unparsable values visible to Validate as -1.
func integer(get source, key string, def int) int {
	v, ok := get(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return -1
	}
	return i
}

func boolean(get source, key string, def bool) bool {
	v, ok := get(key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

type problems []string

func (p *problems) add(format string, args ...any) { *p = append(*p, fmt.Sprintf(format, args...)) }

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(p, "\n- "))
}

func (c *Config) common(p *problems) {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "err":
	default:
		p.add("invalid LOG_LEVEL %q: must be debug, info, warn or error", c.LogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		p.add("invalid LOG_FORMAT %q: must be json or text", c.LogFormat)
	}
	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			p.add("invalid AMQP_URL: %v", err)
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			p.add("invalid AMQP_URL scheme %q: must be amqp or amqps", u.Scheme)
		}
		if c.AMQPExchange == "" || c.AMQPQueue == "" {
			p.add("AMQP_EXCHANGE and AMQP_QUEUE cannot be empty when AMQP_URL is set")
		}
	}
	if c.EmailSMTP != "" {
		if c.EmailPort < 1 || c.EmailPort > 65535 {
			p.add("invalid EMAIL_PORT %d: must be between 1 and 65535", c.EmailPort)
		}
		if c.EmailAddress == "" {
			p.add("EMAIL_ADDRESS is required when EMAIL_SMTP is set")
		}
	}
}

// Validate checks what every command needs.
func (c *Config) Validate() error {
	var p problems
	c.common(&p)
	return p.err()
}

// ValidateServe checks the settings of the HTTP API.
func (c *Config) ValidateServe() error {
	var p problems
	c.common(&p)
	if port, err := strconv.Atoi(c.Port); err != nil {
		p.add("invalid PORT %q: must be a number", c.Port)
	} else if port < 1 || port > 65535 {
		p.add("invalid PORT %d: must be between 1 and 65535", port)
	}
	if len(c.JWTSecret) < 16 {
		p.add("JWT_SECRET must be at least 16 characters")
	}
	if c.TokenTTL <= 0 {
		p.add("TOKEN_TTL_HOURS must be a positive number of hours")
	}
	if c.SessionTTL <= 0 {
		p.add("BOT_EXPIRE_LOGGED_TIME must be a positive number of seconds")
	}
	if c.RedisDB < 0 {
		p.add("REDIS_DB must be a non-negative number")
	}
	if (c.APIAuthUsername == "") != (c.APIAuthPassword == "") {
		p.add("API_AUTH_USERNAME and API_AUTH_PASSWORD must be set together")
	}
	return p.err()
}

// ValidateBot checks the settings of the chat bot.
func (c *Config) ValidateBot() error {
	var p problems
	c.common(&p)
	if c.BotToken == "" {
		p.add("BOT_TOKEN is required")
	}
	if c.APIAuthUsername == "" || c.APIAuthPassword == "" {
		p.add("API_AUTH_USERNAME and API_AUTH_PASSWORD are required")
	}
	if u, err := url.Parse(c.APIEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		p.add("invalid BILLY_API_ENDPOINT %q: must be an http(s) URL", c.APIEndpoint)
	}
	if !strings.HasPrefix(c.APILoginEndpoint, "/") {
		p.add("BILLY_API_LOGIN_ENDPOINT must start with /")
	}
	if _, err := money.ParseCurr(c.DisplayCurrency); err != nil {
		p.add("invalid DISPLAY_CURRENCY %q: %v", c.DisplayCurrency, err)
	}
	return p.err()
}

// ValidateWorker checks the settings of the email worker.
func (c *Config) ValidateWorker() error {
	var p problems
	c.common(&p)
	if c.AMQPURL == "" {
		p.add("AMQP_URL is required")
	}
	if c.EmailSMTP == "" {
		p.add("EMAIL_SMTP is required")
	}
	return p.err()
}
