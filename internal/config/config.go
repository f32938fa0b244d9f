package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Matching  MatchingConfig  `yaml:"matching"`
	Web       WebConfig       `yaml:"web"`
	Log       LogConfig       `yaml:"log"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // postgres or mariadb
	URL          string `yaml:"-"`      // connection URL / DSN, never read from the embedded file
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type EmbeddingConfig struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxImageSize int           `yaml:"max_image_size"`
}

// MatchingConfig holds the matcher settings. Metric is "cosine" or
// "euclidean"; both score in [0, 1] but differ in strictness at the same
// threshold: cosine scores 0.6 at cos θ = 0.2, euclidean needs a normalized
// distance of 0.8 (cos θ = 0.68) for the same score.
type MatchingConfig struct {
	Strategy         string  `yaml:"strategy"`
	Metric           string  `yaml:"metric"`
	DefaultThreshold float64 `yaml:"default_threshold"`
	MinThreshold     float64 `yaml:"min_threshold"`
	MaxThreshold     float64 `yaml:"max_threshold"`
	VerifyThreshold  float64 `yaml:"verify_threshold"`
	OverlapIoU       float64 `yaml:"overlap_iou"`
	Workers          int     `yaml:"workers"`
}

// ClampThreshold keeps a requested threshold inside [MinThreshold, MaxThreshold].
func (c *MatchingConfig) ClampThreshold(t float64) float64 {
	if c.MinThreshold > 0 && t < c.MinThreshold {
		return c.MinThreshold
	}
	if c.MaxThreshold > 0 && t > c.MaxThreshold {
		return c.MaxThreshold
	}
	return t
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"-"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in (0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the embedded defaults without looking at the environment.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

func Load() *Config {
	d := Defaults()

	return &Config{
		Database: DatabaseConfig{
			Driver:       strings.ToLower(envString("DATABASE_DRIVER", d.Database.Driver)),
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		Embedding: EmbeddingConfig{
			URL:          envString("EMBEDDING_URL", d.Embedding.URL),
			Timeout:      envDuration("EMBEDDING_TIMEOUT", d.Embedding.Timeout),
			MaxImageSize: envInt("EMBEDDING_MAX_IMAGE_SIZE", d.Embedding.MaxImageSize),
		},
		Matching: MatchingConfig{
			Strategy:         strings.ToLower(envString("MATCH_STRATEGY", d.Matching.Strategy)),
			Metric:           strings.ToLower(envString("MATCH_METRIC", d.Matching.Metric)),
			DefaultThreshold: envFloat("MATCH_THRESHOLD", d.Matching.DefaultThreshold),
			MinThreshold:     envFloat("MATCH_THRESHOLD_MIN", d.Matching.MinThreshold),
			MaxThreshold:     envFloat("MATCH_THRESHOLD_MAX", d.Matching.MaxThreshold),
			VerifyThreshold:  envFloat("VERIFY_THRESHOLD", d.Matching.VerifyThreshold),
			OverlapIoU:       envFloat("MATCH_OVERLAP_IOU", d.Matching.OverlapIoU),
			Workers:          envInt("MATCH_WORKERS", d.Matching.Workers),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "console"),
		},
	}
}
