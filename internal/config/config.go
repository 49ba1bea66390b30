// Package config handles application configuration using Viper.
// Viper supports YAML files, environment variables, and defaults, merged in priority order.
// Go convention: configuration is loaded into structs, not accessed as raw key-value pairs.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override: IMG_SERVER_PORT=9090.
const EnvPrefix = "IMG"

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Codec      CodecConfig      `mapstructure:"codec"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For
	// header is believed. Empty means the peer address is the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type UploadConfig struct {
	// MaxBytes is the largest accepted image file.
	MaxBytes int64 `mapstructure:"max_bytes"`
	// FormOverheadBytes is how far the whole multipart body may exceed
	// MaxBytes (boundaries, headers, other fields) before it is cut off.
	FormOverheadBytes int64 `mapstructure:"form_overhead_bytes"`
}

// MaxRequestBytes is the hard cap on the request body.
func (u UploadConfig) MaxRequestBytes() int64 {
	return u.MaxBytes + u.FormOverheadBytes
}

type ProcessingConfig struct {
	DefaultQuality          int    `mapstructure:"default_quality"`
	ResizeQuality           int    `mapstructure:"resize_quality"`
	DefaultCompressionLevel int    `mapstructure:"default_compression_level"`
	DefaultFit              string `mapstructure:"default_fit"`
}

type CodecConfig struct {
	// Engine selects the codec implementation: "vips" or "native".
	Engine string `mapstructure:"engine"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type TracingConfig struct {
	// Exporter is "none", "stdout" or "otlp".
	Exporter     string `mapstructure:"exporter"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// setDefaults registers every default. Defaults apply when neither file nor env provides a value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("upload.max_bytes", 6*1024*1024)
	v.SetDefault("upload.form_overhead_bytes", 1024*1024)
	v.SetDefault("processing.default_quality", 80)
	v.SetDefault("processing.resize_quality", 90)
	v.SetDefault("processing.default_compression_level", 6)
	v.SetDefault("processing.default_fit", "inside")
	v.SetDefault("codec.engine", "vips")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("cors.max_age", 86400)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.otlp_insecure", false)
	v.SetDefault("tracing.service_name", "image-service")
	v.SetDefault("log.level", "info")
}

// Load reads configuration from a YAML file and environment variables.
// In Go, functions return errors as the last return value, callers must check them.
// This pattern replaces try/catch: if err != nil { handle it }.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Read from YAML config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Read config file (ignore "not found", defaults + env are enough)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Environment variables override everything.
	// IMG_ prefix + nested keys: IMG_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal into our Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with only built-in defaults applied.
// Tests use it to build a server without touching the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Unmarshalling our own defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive, got %d", c.Upload.MaxBytes)
	}
	if c.Upload.FormOverheadBytes < 0 {
		return fmt.Errorf("upload.form_overhead_bytes must not be negative, got %d", c.Upload.FormOverheadBytes)
	}
	switch c.Processing.DefaultFit {
	case "inside", "cover":
	default:
		return fmt.Errorf("processing.default_fit must be \"inside\" or \"cover\", got %q", c.Processing.DefaultFit)
	}
	switch c.Codec.Engine {
	case "vips", "native":
	default:
		return fmt.Errorf("codec.engine must be \"vips\" or \"native\", got %q", c.Codec.Engine)
	}
	for _, proxy := range c.Server.TrustedProxies {
		if !validProxy(proxy) {
			return fmt.Errorf("server.trusted_proxies: %q is not an IP or CIDR", proxy)
		}
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate_limit needs positive requests_per_second and burst when enabled")
	}
	return nil
}

func validProxy(s string) bool {
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}

// Address returns the listen address string like "0.0.0.0:8000".
// This is a method on ServerConfig, Go attaches methods to types via receiver syntax.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
