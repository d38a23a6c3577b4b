// Package config loads and validates the API server configuration. Values
// come from environment variables, layered over an optional YAML file via
// koanf; env always wins.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (heat buckets, frequency caps, bandit stats, retrieval cache).
	// Optional: when empty, in-memory fallbacks are used.
	RedisURL string `koanf:"redis_url"`

	// Track-token signing
	JWTSecret string `koanf:"jwt_secret"`

	// Retrieval
	EmbedderURL        string `koanf:"embedder_url"`
	RerankerURL        string `koanf:"reranker_url"` // empty disables reranking
	RetrievalTopK      int    `koanf:"retrieval_top_k"`
	RetrievalTimeoutMS int    `koanf:"retrieval_timeout_ms"`

	// Policy selection
	BanditEpsilon float64 `koanf:"bandit_epsilon"`
	ActivePolicy  string  `koanf:"active_policy"` // deployment override, empty means bandit-driven

	// Ads
	SoloSettlementFraction float64 `koanf:"solo_settlement_fraction"`
	FrequencyCap           int     `koanf:"frequency_cap"`

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`

	// CORS allowed origins, comma-separated in env. Empty disables CORS.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// Profiling exposes /debug/pprof; refused outside development.
	ProfilingEnabled bool `koanf:"profiling_enabled"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL  = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret    = errors.New("JWT_SECRET is required")
	ErrInvalidPort         = errors.New("PORT must be a valid integer")
	ErrInvalidEpsilon      = errors.New("BANDIT_EPSILON must be in (0, 1]")
	ErrInvalidSoloFraction = errors.New("SOLO_SETTLEMENT_FRACTION must be in (0, 1]")
	ErrInvalidSampleRate   = errors.New("TRACING_SAMPLE_RATE must be in [0, 1]")
)

// Default values for non-secret configuration.
const (
	DefaultPort                   = 8080
	DefaultEnv                    = "development"
	DefaultRetrievalTopK          = 50
	DefaultRetrievalTimeoutMS     = 800
	DefaultBanditEpsilon          = 0.25
	DefaultSoloSettlementFraction = 0.8
	DefaultFrequencyCap           = 3
	DefaultTracingSampleRate      = 1.0
)

// loader resolves one value at a time against the precedence chain and
// accumulates parse errors so Load can report them all at once.
type loader struct {
	k    *koanf.Koanf
	errs []error
}

// str returns the first set env var among keys, else the koanf value, else def.
func (l *loader) str(koanfKey, def string, keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	if v := l.k.String(koanfKey); v != "" {
		return v
	}
	return def
}

// integer parses the first set env var among keys. sentinel, when non-nil,
// tags the parse error so callers can match it with errors.Is.
func (l *loader) integer(koanfKey string, def int, sentinel error, keys ...string) int {
	for _, key := range keys {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			if sentinel != nil {
				err = sentinel
			}
			l.errs = append(l.errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return i
	}
	if v := l.k.Int(koanfKey); v != 0 {
		return v
	}
	return def
}

func (l *loader) float(koanfKey string, def float64, keys ...string) float64 {
	for _, key := range keys {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s must be a valid float: %w", key, err))
			return def
		}
		return f
	}
	if v := l.k.Float64(koanfKey); v != 0 {
		return v
	}
	return def
}

// boolean reads "true" or "1" as true; anything else set reads false.
func (l *loader) boolean(koanfKey, key string) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return l.k.Bool(koanfKey)
}

// list splits a comma-separated env var, dropping blank entries.
func (l *loader) list(koanfKey, key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return l.k.Strings(koanfKey)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Load reads configuration from environment variables and an optional YAML
// file, env taking precedence. It returns the config plus every validation
// and parse error found, so an operator sees the full list in one run.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	l := &loader{k: k}
	cfg := &Config{
		Port:                   l.integer("port", DefaultPort, ErrInvalidPort, "CITYPULSE_PORT", "PORT"),
		Env:                    l.str("env", DefaultEnv, "CITYPULSE_ENV", "ENV", "GO_ENV"),
		DatabaseURL:            l.str("database_url", "", "DATABASE_URL"),
		RedisURL:               l.str("redis_url", "", "REDIS_URL"),
		JWTSecret:              l.str("jwt_secret", "", "JWT_SECRET"),
		EmbedderURL:            l.str("embedder_url", "", "EMBEDDER_URL"),
		RerankerURL:            l.str("reranker_url", "", "RERANKER_URL"),
		RetrievalTopK:          l.integer("retrieval_top_k", DefaultRetrievalTopK, nil, "RETRIEVAL_TOP_K"),
		RetrievalTimeoutMS:     l.integer("retrieval_timeout_ms", DefaultRetrievalTimeoutMS, nil, "RETRIEVAL_TIMEOUT_MS"),
		BanditEpsilon:          l.float("bandit_epsilon", DefaultBanditEpsilon, "BANDIT_EPSILON"),
		ActivePolicy:           l.str("active_policy", "", "ACTIVE_POLICY"),
		SoloSettlementFraction: l.float("solo_settlement_fraction", DefaultSoloSettlementFraction, "SOLO_SETTLEMENT_FRACTION"),
		FrequencyCap:           l.integer("frequency_cap", DefaultFrequencyCap, nil, "FREQUENCY_CAP"),
		TracingEnabled:         l.boolean("tracing_enabled", "TRACING_ENABLED"),
		OTLPEndpoint:           l.str("otlp_endpoint", "", "OTLP_ENDPOINT"),
		TracingSampleRate:      l.float("tracing_sample_rate", DefaultTracingSampleRate, "TRACING_SAMPLE_RATE"),
		AllowedOrigins:         l.list("allowed_origins", "ALLOWED_ORIGINS"),
		ProfilingEnabled:       l.boolean("profiling_enabled", "PROFILING_ENABLED"),
	}

	return cfg, append(l.errs, cfg.Validate()...)
}

// Validate checks required values and tunable ranges.
func (c *Config) Validate() []error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.BanditEpsilon <= 0 || c.BanditEpsilon > 1 {
		errs = append(errs, ErrInvalidEpsilon)
	}
	if c.SoloSettlementFraction <= 0 || c.SoloSettlementFraction > 1 {
		errs = append(errs, ErrInvalidSoloFraction)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}
	return errs
}

// LogSummary returns the configuration for startup logging, secrets masked.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                     strconv.Itoa(c.Port),
		"env":                      c.Env,
		"database_url":             maskConnURL(c.DatabaseURL),
		"redis_url":                maskConnURL(c.RedisURL),
		"jwt_secret":               maskSecret(c.JWTSecret),
		"embedder_url":             c.EmbedderURL,
		"reranker_url":             c.RerankerURL,
		"retrieval_top_k":          strconv.Itoa(c.RetrievalTopK),
		"retrieval_timeout_ms":     strconv.Itoa(c.RetrievalTimeoutMS),
		"bandit_epsilon":           fmt.Sprintf("%g", c.BanditEpsilon),
		"active_policy":            c.ActivePolicy,
		"solo_settlement_fraction": fmt.Sprintf("%g", c.SoloSettlementFraction),
		"frequency_cap":            strconv.Itoa(c.FrequencyCap),
		"tracing_enabled":          strconv.FormatBool(c.TracingEnabled),
		"otlp_endpoint":            c.OTLPEndpoint,
		"tracing_sample_rate":      fmt.Sprintf("%g", c.TracingSampleRate),
		"allowed_origins":          strings.Join(c.AllowedOrigins, ","),
		"profiling_enabled":        strconv.FormatBool(c.ProfilingEnabled),
	}
}

// maskSecret keeps the first 4 characters of long secrets so operators can
// tell two secrets apart without the log leaking either.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskConnURL masks the password in a postgres:// or redis:// connection URL.
func maskConnURL(s string) string {
	if s == "" {
		return "<not set>"
	}
	u, err := url.Parse(s)
	if err != nil {
		return maskSecret(s)
	}
	if u.User == nil {
		return s
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return s
	}
	u.User = url.UserPassword(u.User.Username(), "****")
	// url.String percent-encodes the placeholder; keep it literal.
	return strings.Replace(u.String(), url.QueryEscape("****"), "****", 1)
}
