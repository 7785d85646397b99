// Package config loads gateway settings from an optional YAML file and
// RENDINI_* environment variables.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api/backend"
	"github.com/spf13/viper"
)

// ErrorCode defines error types for configuration
type ErrorCode string

const (
	// ErrInvalidConfig represents a configuration that cannot be used
	ErrInvalidConfig ErrorCode = "InvalidConfig"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// EnvPrefix prefixes every environment variable the gateway reads
const EnvPrefix = "RENDINI"

// Backend is one configured rendering backend
type Backend struct {
	Name string `mapstructure:"name" validate:"required"`
	URL  string `mapstructure:"url" validate:"required,url"`
}

// Config holds everything needed to run the gateway
type Config struct {
	Server struct {
		Port        int      `mapstructure:"port" validate:"min=1,max=65535"`
		CORSOrigins []string `mapstructure:"corsorigins"`
	} `mapstructure:"server"`

	Backend struct {
		Timeout time.Duration `mapstructure:"timeout" validate:"gt=0,lte=5m"`
	} `mapstructure:"backend"`

	Backends []Backend `mapstructure:"backends" validate:"unique=Name,dive"`

	Debug bool `mapstructure:"debug"`
}

// DefaultBackends are used when neither the config file nor
// RENDINI_BACKENDS name any
var DefaultBackends = []Backend{
	{Name: "nunjucks", URL: "http://localhost:3001/api"},
	{Name: "vue", URL: "http://localhost:3002/api"},
}

// Load reads the configuration. An explicit path must exist; without one,
// rendini.yaml is looked up in . and ./config and may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.corsorigins", []string{"*"})
	v.SetDefault("backend.timeout", "5s")
	v.SetDefault("debug", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", EnvPrefix+"_PORT", "PORT"); err != nil {
		return nil, failure.Wrap(err)
	}
	if err := v.BindEnv("server.corsorigins", EnvPrefix+"_CORS_ORIGINS"); err != nil {
		return nil, failure.Wrap(err)
	}
	if err := v.BindEnv("backendlist", EnvPrefix+"_BACKENDS"); err != nil {
		return nil, failure.Wrap(err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, failure.Translate(err, ErrInvalidConfig,
				failure.Message("Failed to read config file"),
				failure.Context{"path": path},
			)
		}
	} else {
		v.SetConfigName("rendini")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, failure.Translate(err, ErrInvalidConfig,
					failure.Message("Failed to read config file"),
				)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, failure.Translate(err, ErrInvalidConfig,
			failure.Message("Failed to decode configuration"),
		)
	}

	if list := v.GetString("backendlist"); list != "" {
		backends, err := ParseBackendList(strings.Split(list, ","))
		if err != nil {
			return nil, err
		}
		cfg.Backends = backends
	}
	if len(cfg.Backends) == 0 {
		cfg.Backends = append([]Backend(nil), DefaultBackends...)
	}

	// RENDINI_RENDER_<NAME>_URL overrides a single backend's address
	for i, b := range cfg.Backends {
		key := "render." + strings.ToLower(b.Name) + ".url"
		env := EnvPrefix + "_RENDER_" + envName(b.Name) + "_URL"
		if err := v.BindEnv(key, env); err != nil {
			return nil, failure.Wrap(err)
		}
		if u := v.GetString(key); u != "" {
			cfg.Backends[i].URL = u
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration's constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return failure.Translate(err, ErrInvalidConfig,
			failure.Message("Invalid configuration"),
		)
	}
	return nil
}

// Registry builds the backend registry in configuration order
func (c *Config) Registry() (*backend.Registry, error) {
	backends := make([]backend.Backend, 0, len(c.Backends))
	for _, b := range c.Backends {
		parsed, err := backend.Parse(b.Name, b.URL)
		if err != nil {
			return nil, err
		}
		backends = append(backends, parsed)
	}
	return backend.NewRegistry(backends...)
}

// ParseBackendList parses name=url pairs
func ParseBackendList(list []string) ([]Backend, error) {
	backends := make([]Backend, 0, len(list))
	for _, item := range list {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, url, ok := strings.Cut(item, "=")
		if !ok || name == "" || url == "" {
			return nil, failure.New(ErrInvalidConfig,
				failure.Message("Backend must be given as name=url"),
				failure.Context{"backend": item},
			)
		}
		backends = append(backends, Backend{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}
	return backends, nil
}

func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}
