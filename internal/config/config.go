package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPath     = "config.yaml"
	defaultTimezone = "UTC"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		CORSOrigins     []string      `yaml:"corsOrigins"`
		// submit endpoint token bucket, per client IP
		RateLimitBurst  int `yaml:"rateLimitBurst"`
		RateLimitRefill int `yaml:"rateLimitRefill"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Storage struct {
		// Driver: jsonfile | mysql | postgres
		Driver   string `yaml:"driver"`
		FilePath string `yaml:"filePath"`
		// ReadOnly opens the json store without taking its lock; writes fail
		ReadOnly bool `yaml:"readOnly"`
	} `yaml:"storage"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		// DSN overrides the fields above when set
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	AI struct {
		APIKey     string        `yaml:"apiKey"`
		BaseURL    string        `yaml:"baseUrl"`
		Model      string        `yaml:"model"`
		Timeout    time.Duration `yaml:"timeout"`
		MaxWorkers int           `yaml:"maxWorkers"`
		MaxTokens  int           `yaml:"maxTokens"`
		// RefineMode: off | fallback | always
		RefineMode string `yaml:"refineMode"`
	} `yaml:"ai"`

	Analytics struct {
		Timezone string        `yaml:"timezone"`
		Radar    string        `yaml:"radar"`
		CacheTTL time.Duration `yaml:"cacheTTL"`

		location *time.Location
	} `yaml:"analytics"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		Prefix     string `yaml:"prefix"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Auth struct {
		// AdminKeys maps an admin name to its API key
		AdminKeys map[string]string `yaml:"adminKeys"`
	} `yaml:"auth"`
}

// Path returns CONFIG_PATH or config.yaml.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return defaultPath
}

// Load baca file config.yaml. A missing file yields the defaults; env
// overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.bindTimezone(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default is the configuration used without any file.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 5 * time.Second
	c.Server.ShutdownTimeout = 30 * time.Second
	c.Server.CORSOrigins = []string{"*"}
	c.Server.RateLimitBurst = 20
	c.Server.RateLimitRefill = 2
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Storage.Driver = "jsonfile"
	c.Storage.FilePath = "data/submissions.json"
	c.Database.Port = 3306
	c.AI.Model = "gpt-4o-mini"
	c.AI.Timeout = 20 * time.Second
	c.AI.MaxWorkers = 2
	c.AI.MaxTokens = 512
	c.AI.RefineMode = "fallback"
	c.Analytics.Timezone = defaultTimezone
	c.Analytics.Radar = "keyword"
	c.Analytics.CacheTTL = time.Minute
	c.Redis.Prefix = "feedback:"
	c.Kafka.Topic = "feedback.submissions"
	c.Minio.Prefix = "feedback"
	c.Analytics.location = time.UTC
	return &c
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&c.AI.APIKey, "OPENAI_API_KEY")
	setString(&c.AI.Model, "OPENAI_MODEL")
	setString(&c.AI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.AI.RefineMode, "AI_REFINE_MODE")
	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Storage.FilePath, "DATA_FILE")
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Analytics.Timezone, "ANALYTICS_TIMEZONE")
	setString(&c.Redis.Addr, "REDIS_ADDR")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("AI_TIMEOUT"); v != "" {
		if d, err := parseSeconds(v); err == nil {
			c.AI.Timeout = d
		}
	}
	if v := os.Getenv("AI_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.AI.MaxWorkers = n
		}
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		if c.Auth.AdminKeys == nil {
			c.Auth.AdminKeys = map[string]string{}
		}
		c.Auth.AdminKeys["admin"] = v
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Analytics.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("analytics timezone %q: %w", tz, err)
	}
	c.Analytics.location = loc
	return nil
}

// Location is the timezone that defines calendar days for filters and trends.
func (c *Config) Location() *time.Location {
	if c.Analytics.location == nil {
		return time.UTC
	}
	return c.Analytics.location
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}

// parseSeconds accepts "5", "2.5" or a Go duration like "750ms".
func parseSeconds(v string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
