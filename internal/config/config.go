// Package config loads breadstamp settings from an optional YAML file and
// BREADSTAMP_* environment overrides, in that order.
package config

import (
	"breadstamp/internal/blob"
	"breadstamp/internal/core"
	"breadstamp/internal/logging"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Seoul on hosts without zoneinfo

	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "BREADSTAMP_"

// Config is the full runtime configuration.
type Config struct {
	Timezone   string             `yaml:"timezone"`
	Storage    core.StorageConfig `yaml:"storage"`
	Blob       blob.Config        `yaml:"blob"`
	HTTP       HTTPConfig         `yaml:"http"`
	Redis      RedisConfig        `yaml:"redis"`
	Stats      StatsConfig        `yaml:"stats"`
	ImageCache ImageCacheConfig   `yaml:"image_cache"`
	Log        logging.Config     `yaml:"log"`
}

// HTTPConfig configures the REST server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       float64       `yaml:"rate_limit"` // requests per second per client, 0 disables
	RateBurst       int           `yaml:"rate_burst"`
	ClientIdleTTL   time.Duration `yaml:"client_idle_ttl"`
}

// RedisConfig enables the shared statistics cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type StatsConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type ImageCacheConfig struct {
	MaxEntries   int   `yaml:"max_entries"`
	MaxCostBytes int64 `yaml:"max_cost_bytes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Timezone: "Asia/Seoul",
		Storage:  core.StorageConfig{Driver: string(core.StorageSQLite), SQLitePath: "breadstamp.db"},
		Blob:     blob.Config{Driver: string(blob.DriverFilesystem), FSRoot: "./photos"},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       20,
			RateBurst:       40,
			ClientIdleTTL:   5 * time.Minute,
		},
		Redis:      RedisConfig{Prefix: "breadstamp:stats"},
		Stats:      StatsConfig{TTL: 60 * time.Second},
		ImageCache: ImageCacheConfig{MaxEntries: 100, MaxCostBytes: 50 << 20},
		Log:        logging.Config{Level: "info"},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.Decode(bytes.NewReader(data)); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode overlays YAML from r. Unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from BREADSTAMP_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"TIMEZONE":                  &c.Timezone,
		"STORAGE_DRIVER":            &c.Storage.Driver,
		"SQLITE_PATH":               &c.Storage.SQLitePath,
		"POSTGRES_DSN":              &c.Storage.PostgresDSN,
		"BLOB_DRIVER":               &c.Blob.Driver,
		"BLOB_FS_ROOT":              &c.Blob.FSRoot,
		"BLOB_S3_REGION":            &c.Blob.S3.Region,
		"BLOB_S3_BUCKET":            &c.Blob.S3.Bucket,
		"BLOB_S3_ENDPOINT":          &c.Blob.S3.Endpoint,
		"BLOB_S3_ACCESS_KEY_ID":     &c.Blob.S3.AccessKeyID,
		"BLOB_S3_SECRET_ACCESS_KEY": &c.Blob.S3.SecretAccessKey,
		"BLOB_S3_SESSION_TOKEN":     &c.Blob.S3.SessionToken,
		"HTTP_ADDR":                 &c.HTTP.Addr,
		"REDIS_ADDR":                &c.Redis.Addr,
		"REDIS_PASSWORD":            &c.Redis.Password,
		"REDIS_PREFIX":              &c.Redis.Prefix,
		"LOG_LEVEL":                 &c.Log.Level,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	durations := map[string]*time.Duration{
		"HTTP_READ_TIMEOUT":     &c.HTTP.ReadTimeout,
		"HTTP_WRITE_TIMEOUT":    &c.HTTP.WriteTimeout,
		"HTTP_SHUTDOWN_TIMEOUT": &c.HTTP.ShutdownTimeout,
		"HTTP_CLIENT_IDLE_TTL":  &c.HTTP.ClientIdleTTL,
		"STATS_TTL":             &c.Stats.TTL,
	}
	for key, dst := range durations {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"HTTP_RATE_BURST":         &c.HTTP.RateBurst,
		"REDIS_DB":                &c.Redis.DB,
		"IMAGE_CACHE_MAX_ENTRIES": &c.ImageCache.MaxEntries,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "IMAGE_CACHE_MAX_COST_BYTES"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%sIMAGE_CACHE_MAX_COST_BYTES: %w", EnvPrefix, err)
		}
		c.ImageCache.MaxCostBytes = n
	}
	if v, ok := lookup(EnvPrefix + "HTTP_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%sHTTP_RATE_LIMIT: %w", EnvPrefix, err)
		}
		c.HTTP.RateLimit = f
	}
	bools := map[string]*bool{
		"BLOB_S3_PATH_STYLE": &c.Blob.S3.PathStyle,
		"LOG_DEVELOPMENT":    &c.Log.Development,
	}
	for key, dst := range bools {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	switch core.StorageDriver(strings.ToLower(c.Storage.Driver)) {
	case "", core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch blob.Driver(strings.ToLower(c.Blob.Driver)) {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.RateBurst < 0 {
		errs = append(errs, errors.New("http rate limit and burst must not be negative"))
	}
	if c.Stats.TTL < 0 {
		errs = append(errs, errors.New("stats.ttl must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location resolves Timezone. Blank means local time.
func (c Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
