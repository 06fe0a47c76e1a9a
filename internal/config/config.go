// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

// Package config loads KodBank settings from defaults, a YAML file, the
// environment and command-line flags, in increasing precedence.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/kodbank/kodbank/internal/auth"
	"github.com/kodbank/kodbank/internal/logging"
	"github.com/kodbank/kodbank/internal/xdg"
)

// EnvPrefix marks environment variables read as configuration.
// KODBANK_SIGNING_SECRET sets signing_secret.
const EnvPrefix = "KODBANK_"

// Configuration keys.
const (
	KeySigningSecret    = "signing_secret"
	KeyStoreDSN         = "store_dsn"
	KeyTokenTTL         = "token_ttl"
	KeyHTTPAddr         = "http_addr"
	KeyMetricsAddr      = "metrics_addr"
	KeyLogFormat        = "log_format"
	KeyLogLevel         = "log_level"
	KeyCookieSecure     = "cookie_secure"
	KeyAllowedOrigins   = "allowed_origins"
	KeySweepInterval    = "sweep_interval"
	KeyAutoMigrate      = "auto_migrate"
	KeyDBConnectTimeout = "db_connect_timeout"
	KeyOTLPEndpoint     = "otlp_endpoint"
)

// Config is the effective KodBank configuration.
type Config struct {
	SigningSecret    string        `koanf:"signing_secret" yaml:"signing_secret"`
	StoreDSN         string        `koanf:"store_dsn" yaml:"store_dsn"`
	TokenTTL         time.Duration `koanf:"token_ttl" yaml:"token_ttl"`
	HTTPAddr         string        `koanf:"http_addr" yaml:"http_addr"`
	MetricsAddr      string        `koanf:"metrics_addr" yaml:"metrics_addr"`
	LogFormat        string        `koanf:"log_format" yaml:"log_format"`
	LogLevel         string        `koanf:"log_level" yaml:"log_level"`
	CookieSecure     bool          `koanf:"cookie_secure" yaml:"cookie_secure"`
	AllowedOrigins   []string      `koanf:"allowed_origins" yaml:"allowed_origins"`
	SweepInterval    time.Duration `koanf:"sweep_interval" yaml:"sweep_interval"`
	AutoMigrate      bool          `koanf:"auto_migrate" yaml:"auto_migrate"`
	DBConnectTimeout time.Duration `koanf:"db_connect_timeout" yaml:"db_connect_timeout"`
	OTLPEndpoint     string        `koanf:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// defaults holds every optional key. Required keys have no default.
func defaults() map[string]any {
	return map[string]any{
		KeyHTTPAddr:         ":5000",
		KeyMetricsAddr:      "127.0.0.1:9100",
		KeyLogFormat:        "json",
		KeyLogLevel:         "info",
		KeyCookieSecure:     false,
		KeyAllowedOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		KeySweepInterval:    10 * time.Minute,
		KeyAutoMigrate:      true,
		KeyDBConnectTimeout: 30 * time.Second,
		KeyOTLPEndpoint:     "",
	}
}

// RegisterFlags adds the command-line overrides to fs. Secrets are not
// accepted as flags.
func RegisterFlags(fs *pflag.FlagSet) {
	d := defaults()
	fs.Duration(flagName(KeyTokenTTL), 0, "lifetime of session tokens (e.g. 1h)")
	fs.String(flagName(KeyHTTPAddr), d[KeyHTTPAddr].(string), "API listen address")
	fs.String(flagName(KeyMetricsAddr), d[KeyMetricsAddr].(string), "metrics/health HTTP address (empty = disabled)")
	fs.String(flagName(KeyLogFormat), d[KeyLogFormat].(string), "log format (json or text)")
	fs.String(flagName(KeyLogLevel), d[KeyLogLevel].(string), "log level (debug, info, warn, error)")
	fs.Bool(flagName(KeyCookieSecure), false, "mark the session cookie Secure")
	fs.StringSlice(flagName(KeyAllowedOrigins), d[KeyAllowedOrigins].([]string), "origins allowed to make credentialed requests")
	fs.Duration(flagName(KeySweepInterval), d[KeySweepInterval].(time.Duration), "expired token sweep interval (0 = disabled)")
	fs.Bool(flagName(KeyAutoMigrate), true, "apply database migrations on startup")
	fs.Duration(flagName(KeyDBConnectTimeout), d[KeyDBConnectTimeout].(time.Duration), "how long to retry the initial database connection")
	fs.String(flagName(KeyOTLPEndpoint), "", "OTLP/HTTP trace collector URL (empty = traces stay in-process)")
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func keyName(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

// LoadOptions selects the sources read by Load.
type LoadOptions struct {
	// File is an explicit config file. It must exist. When empty the XDG
	// config file is read if present.
	File string
	// Flags, when set, overrides every other source with the flags the
	// user changed.
	Flags *pflag.FlagSet
	// SkipDefaultFile disables the XDG config file lookup.
	SkipDefaultFile bool
}

// Load reads and validates the configuration. Any missing or invalid
// required value fails with CONFIG_INVALID.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	path, err := configPath(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", path).
				Wrap(err)
		}
	}

	// Empty variables count as unset.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		flagProvider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			return keyName(f.Name), posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(flagProvider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configPath(opts LoadOptions) (string, error) {
	if opts.File != "" {
		return opts.File, nil
	}
	if opts.SkipDefaultFile {
		return "", nil
	}
	path, ok, err := xdg.ConfigFile()
	if err != nil || !ok {
		// No home directory means no default file.
		return "", nil //nolint:nilerr // default file is optional
	}
	return path, nil
}

func (c *Config) normalize() {
	c.SigningSecret = strings.TrimSpace(c.SigningSecret)
	c.StoreDSN = strings.TrimSpace(c.StoreDSN)
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.OTLPEndpoint = strings.TrimSpace(c.OTLPEndpoint)

	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	c.AllowedOrigins = origins
}

// Validate reports the first invalid key.
func (c *Config) Validate() error {
	switch {
	case c.SigningSecret == "":
		return invalid(KeySigningSecret, "is required")
	case len(c.SigningSecret) < auth.MinSigningSecretLength:
		return invalid(KeySigningSecret, fmt.Sprintf("must be at least %d bytes", auth.MinSigningSecretLength))
	case c.StoreDSN == "":
		return invalid(KeyStoreDSN, "is required")
	case c.TokenTTL <= 0:
		return invalid(KeyTokenTTL, "is required and must be positive")
	case c.HTTPAddr == "":
		return invalid(KeyHTTPAddr, "is required")
	case c.LogFormat != "json" && c.LogFormat != "text":
		return invalid(KeyLogFormat, fmt.Sprintf("must be 'json' or 'text', got %q", c.LogFormat))
	case c.SweepInterval < 0:
		return invalid(KeySweepInterval, "must not be negative")
	case c.DBConnectTimeout <= 0:
		return invalid(KeyDBConnectTimeout, "must be positive")
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid(KeyLogLevel, fmt.Sprintf("unknown level %q", c.LogLevel))
	}
	for _, origin := range c.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.Path != "" {
			return invalid(KeyAllowedOrigins, fmt.Sprintf("%q is not an origin", origin))
		}
	}
	if c.OTLPEndpoint != "" {
		u, err := url.Parse(c.OTLPEndpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid(KeyOTLPEndpoint, fmt.Sprintf("%q is not an http(s) URL", c.OTLPEndpoint))
		}
	}
	return nil
}

func invalid(key, problem string) error {
	return oops.Code("CONFIG_INVALID").
		With("key", key).
		Errorf("invalid configuration: %s %s", key, problem)
}

// SlogLevel returns the parsed log level. Validate has already accepted it.
func (c *Config) SlogLevel() slog.Level {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// Redacted returns a copy safe to print: the secret is masked and the DSN
// password removed.
func (c Config) Redacted() Config {
	if c.SigningSecret != "" {
		c.SigningSecret = logging.Redacted
	}
	c.StoreDSN = redactDSN(c.StoreDSN)
	c.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	return c
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Host == "" {
		// Keyword/value DSNs are masked whole.
		return logging.Redacted
	}
	return u.Redacted()
}

// YAML renders the redacted configuration.
func (c Config) YAML() ([]byte, error) {
	out, err := yamlv3.Marshal(c.Redacted())
	if err != nil {
		return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	return out, nil
}

// LogValue implements slog.LogValuer with the redacted form.
func (c Config) LogValue() slog.Value {
	r := c.Redacted()
	return slog.GroupValue(
		slog.String(KeyStoreDSN, r.StoreDSN),
		slog.Duration(KeyTokenTTL, r.TokenTTL),
		slog.String(KeyHTTPAddr, r.HTTPAddr),
		slog.String(KeyMetricsAddr, r.MetricsAddr),
		slog.String(KeyLogFormat, r.LogFormat),
		slog.String(KeyLogLevel, r.LogLevel),
		slog.Bool(KeyCookieSecure, r.CookieSecure),
		slog.Any(KeyAllowedOrigins, r.AllowedOrigins),
		slog.Duration(KeySweepInterval, r.SweepInterval),
		slog.Bool(KeyAutoMigrate, r.AutoMigrate),
		slog.Duration(KeyDBConnectTimeout, r.DBConnectTimeout),
		slog.String(KeyOTLPEndpoint, r.OTLPEndpoint),
	)
}
