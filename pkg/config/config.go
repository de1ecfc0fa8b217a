package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/forkful/pkg/log"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration loaded from YAML and overridden by
// command line flags
type Config struct {
	ListenAddr string        `yaml:"listen_addr"`
	DataDir    string        `yaml:"data_dir"`
	MediaDir   string        `yaml:"media_dir"`
	SecretKey  string        `yaml:"secret_key"`
	SessionTTL time.Duration `yaml:"session_ttl"`

	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scale     ScaleConfig     `yaml:"scale"`
	Cache     CacheConfig     `yaml:"cache"`
	Upload    UploadConfig    `yaml:"upload"`
}

type LogConfig struct {
	Level log.Level `yaml:"level"`
	JSON  bool      `yaml:"json"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ScaleConfig bounds the serving scale control shown on recipe pages
type ScaleConfig struct {
	Step  float64 `yaml:"step"`
	Floor float64 `yaml:"floor"`
	Max   float64 `yaml:"max"`
}

type CacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:8080",
		DataDir:    "./forkful-data",
		SessionTTL: 7 * 24 * time.Hour,
		Log: LogConfig{
			Level: log.InfoLevel,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Scale: ScaleConfig{
			Step:  0.5,
			Floor: 0.5,
			Max:   10,
		},
		Cache: CacheConfig{
			Size: 1024,
			TTL:  5 * time.Minute,
		},
		Upload: UploadConfig{
			MaxBytes: 5 << 20,
		},
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// MediaPath returns the media directory, defaulting to <data_dir>/media
func (c *Config) MediaPath() string {
	if c.MediaDir != "" {
		return c.MediaDir
	}
	return filepath.Join(c.DataDir, "media")
}

const secretFile = "secret.key"

// ResolveSecret returns the configured secret key. Without one, a random
// key is generated on first use and kept in <data_dir>/secret.key so that
// sealed messages stay readable across restarts.
func (c *Config) ResolveSecret() (string, error) {
	if c.SecretKey != "" {
		return c.SecretKey, nil
	}

	path := filepath.Join(c.DataDir, secretFile)
	data, err := os.ReadFile(path)
	if err == nil {
		if key := strings.TrimSpace(string(data)); key != "" {
			c.SecretKey = key
			return key, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read secret key: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret key: %w", err)
	}
	key := hex.EncodeToString(buf)

	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(key+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to write secret key: %w", err)
	}

	log.Info("Generated new secret key in " + path)
	c.SecretKey = key
	return key, nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session_ttl must be positive"))
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values cannot be negative"))
	}
	if c.Scale.Step <= 0 {
		errs = append(errs, errors.New("scale.step must be positive"))
	}
	if c.Scale.Floor <= 0 {
		errs = append(errs, errors.New("scale.floor must be positive"))
	}
	if c.Scale.Max != 0 && c.Scale.Max < c.Scale.Floor {
		errs = append(errs, errors.New("scale.max must not be below scale.floor"))
	}
	if c.Cache.Size <= 0 {
		errs = append(errs, errors.New("cache.size must be positive"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload.max_bytes must be positive"))
	}

	return errors.Join(errs...)
}
