package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tanq16/rfidrop/internal/utils"
	"gopkg.in/yaml.v3"
)

const DefaultFileName = ".rfidrop.yaml"

type Config struct {
	APIURL         string        `yaml:"api_url"`
	Workers        int           `yaml:"workers"`
	Concurrency    int           `yaml:"concurrency"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	APIRetries     int           `yaml:"api_retries"`
	Timeout        time.Duration `yaml:"timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	UserAgent      string        `yaml:"user_agent"`
	Serve          ServeConfig   `yaml:"serve"`
}

// ServeConfig configures the reference authorization service
type ServeConfig struct {
	ListenAddr string        `yaml:"listen_addr"`
	Bucket     string        `yaml:"bucket"`
	Region     string        `yaml:"region"`
	Profile    string        `yaml:"profile"`
	Prefix     string        `yaml:"prefix"`
	URLExpiry  time.Duration `yaml:"url_expiry"`
}

func Default() Config {
	return Config{
		APIURL:         "http://localhost:8080",
		Workers:        1,
		Concurrency:    utils.DefaultConcurrency,
		MaxRetries:     utils.DefaultMaxRetries,
		RetryBaseDelay: utils.DefaultRetryBaseDelay,
		APIRetries:     utils.DefaultAPIRetries,
		Timeout:        utils.DefaultRequestTimeout,
		KeepAlive:      utils.DefaultKeepAlive,
		UserAgent:      utils.ToolUserAgent,
		Serve: ServeConfig{
			ListenAddr: ":8080",
			Prefix:     "rfi-uploads",
			URLExpiry:  utils.DefaultPresignedExpiry,
		},
	}
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(home, DefaultFileName)
}

// Load reads path over the defaults and applies environment overrides. An empty path
// means the default location, which may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("error parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("error reading config: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("RFIDROP_API_URL"); ok && v != "" {
		c.APIURL = v
	}
	for name, target := range map[string]*int{
		"RFIDROP_WORKERS":     &c.Workers,
		"RFIDROP_CONCURRENCY": &c.Concurrency,
	} {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %q", name, v)
		}
		*target = n
	}
	if v, ok := lookup("RFIDROP_BUCKET"); ok && v != "" {
		c.Serve.Bucket = v
	}
	if v, ok := lookup("RFIDROP_REGION"); ok && v != "" {
		c.Serve.Region = v
	}
	return nil
}

func (c Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	case c.Concurrency < 1:
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	case c.MaxRetries < 0:
		return fmt.Errorf("max_retries cannot be negative, got %d", c.MaxRetries)
	case c.APIRetries < 0:
		return fmt.Errorf("api_retries cannot be negative, got %d", c.APIRetries)
	case c.RetryBaseDelay <= 0:
		return fmt.Errorf("retry_base_delay must be positive, got %s", c.RetryBaseDelay)
	}
	return nil
}

func (c Config) RetryConfig() utils.RetryConfig {
	return utils.RetryConfig{MaxRetries: c.MaxRetries, BaseDelay: c.RetryBaseDelay}
}
