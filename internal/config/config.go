// Package config loads the auth-dialog server settings with viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "AUTH_DIALOG"

const (
	SourceHTTP   = "http"
	SourceSQLite = "sqlite"
)

// ProviderClient holds the OAuth client settings of one external provider.
type ProviderClient struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Issuer       string   `mapstructure:"issuer"`
	Scopes       []string `mapstructure:"scopes"`
}

type Config struct {
	Addr         string                    `mapstructure:"addr"`
	MetricsAddr  string                    `mapstructure:"metrics_addr"`
	Debug        bool                      `mapstructure:"debug"`
	Source       string                    `mapstructure:"source"`
	ConfigURL    string                    `mapstructure:"config_url"`
	ConfigAPIKey string                    `mapstructure:"config_api_key"`
	FetchTimeout time.Duration             `mapstructure:"fetch_timeout"`
	SQLiteDSN    string                    `mapstructure:"sqlite_dsn"`
	ServeConfig  bool                      `mapstructure:"serve_config"`
	CSRFSecret   string                    `mapstructure:"csrf_secret"`
	RedisAddr    string                    `mapstructure:"redis_addr"`
	Locale       string                    `mapstructure:"locale"`
	PassportPath string                    `mapstructure:"passport_path"`
	StateKey     string                    `mapstructure:"state_key"`
	StateHMACKey string                    `mapstructure:"state_hmac_key"`
	BackendURL   string                    `mapstructure:"backend_url"`
	PublicURL    string                    `mapstructure:"public_url"`
	CSRFCookie   string                    `mapstructure:"csrf_cookie"`
	Providers    map[string]ProviderClient `mapstructure:"providers"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8572")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("debug", false)
	v.SetDefault("source", SourceSQLite)
	v.SetDefault("config_url", "")
	v.SetDefault("fetch_timeout", 5*time.Second)
	v.SetDefault("sqlite_dsn", "file:auth_dialog.db?cache=shared")
	v.SetDefault("serve_config", true)
	v.SetDefault("locale", "en")
	v.SetDefault("passport_path", "/passport")
}

// Load reads path (optional) and the AUTH_DIALOG_* environment into a Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Source {
	case SourceHTTP:
		if strings.TrimSpace(c.ConfigURL) == "" {
			return errors.New("config_url is required when source is http")
		}
	case SourceSQLite:
		if strings.TrimSpace(c.SQLiteDSN) == "" {
			return errors.New("sqlite_dsn is required when source is sqlite")
		}
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	if c.CSRFSecret != "" && len(c.CSRFSecret) < 32 {
		return errors.New("csrf_secret must be at least 32 bytes")
	}
	if err := validateBaseURL("backend_url", c.BackendURL); err != nil {
		return err
	}
	if err := validateBaseURL("public_url", c.PublicURL); err != nil {
		return err
	}
	if c.StateKey != "" {
		switch len(c.StateKey) {
		case 16, 24, 32:
		default:
			return errors.New("state_key must be 16, 24 or 32 bytes")
		}
	}
	return nil
}

func validateBaseURL(key, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL", key)
	}
	return nil
}

func (c *Config) GetAddr() string                { return c.Addr }
func (c *Config) GetMetricsAddr() string         { return c.MetricsAddr }
func (c *Config) GetDebug() bool                 { return c.Debug }
func (c *Config) GetSource() string              { return c.Source }
func (c *Config) GetConfigURL() string           { return c.ConfigURL }
func (c *Config) GetConfigAPIKey() string        { return c.ConfigAPIKey }
func (c *Config) GetFetchTimeout() time.Duration { return c.FetchTimeout }
func (c *Config) GetSQLiteDSN() string           { return c.SQLiteDSN }
func (c *Config) GetServeConfig() bool           { return c.ServeConfig }
func (c *Config) GetCSRFSecret() []byte          { return []byte(c.CSRFSecret) }
func (c *Config) GetRedisAddr() string           { return c.RedisAddr }
func (c *Config) GetLocale() string              { return c.Locale }
func (c *Config) GetPassportPath() string        { return c.PassportPath }
func (c *Config) GetStateKey() []byte            { return []byte(c.StateKey) }
func (c *Config) GetStateHMACKey() []byte        { return []byte(c.StateHMACKey) }
func (c *Config) GetBackendURL() string          { return strings.TrimRight(c.BackendURL, "/") }
func (c *Config) GetPublicURL() string           { return strings.TrimRight(c.PublicURL, "/") }
func (c *Config) GetCSRFCookie() string          { return c.CSRFCookie }

// BackendPath resolves a relative path against backend_url. Absolute URLs
// and an empty backend_url leave path unchanged.
func (c *Config) BackendPath(path string) string {
	base := c.GetBackendURL()
	if base == "" || !strings.HasPrefix(path, "/") {
		return path
	}
	return base + path
}

// GetProviders returns the configured OAuth clients keyed by lowercase
// provider name.
func (c *Config) GetProviders() map[string]ProviderClient {
	out := make(map[string]ProviderClient, len(c.Providers))
	for name, client := range c.Providers {
		out[strings.ToLower(name)] = client
	}
	return out
}
