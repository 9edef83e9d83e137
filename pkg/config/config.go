package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, loadable from a yaml file with every
// field optional.
type Config struct {
	ListenAddr        string `yaml:"listen_addr"`         // e.g. ":8080"
	UploadDir         string `yaml:"upload_dir"`          // temporary upload storage
	StreamDir         string `yaml:"stream_dir"`          // produced HLS output, served at /streams
	MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"` // transcode worker pool size
	MaxUploadBytes    int64  `yaml:"max_upload_bytes"`    // request body limit
	SegmentSeconds    int    `yaml:"segment_seconds"`     // HLS segment duration
	FFmpegPath        string `yaml:"ffmpeg_path"`
	FFprobePath       string `yaml:"ffprobe_path"`
	LogLevel          string `yaml:"log_level"` // debug, info, warn, error
	LogJSON           bool   `yaml:"log_json"`
	ShutdownTimeout   string `yaml:"shutdown_timeout"` // e.g. "30s"
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr:        ":8080",
		UploadDir:         "./uploads",
		StreamDir:         "./streams",
		MaxConcurrentJobs: 4,
		MaxUploadBytes:    500 * 1024 * 1024, // 500 MB
		SegmentSeconds:    10,
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		LogLevel:          "info",
		ShutdownTimeout:   "30s",
	}
}

// Load reads a yaml config file and merges it over the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("max_concurrent_jobs must be positive, got %d", c.MaxConcurrentJobs)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.SegmentSeconds <= 0 {
		return fmt.Errorf("segment_seconds must be positive, got %d", c.SegmentSeconds)
	}
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout %q: %w", c.ShutdownTimeout, err)
	}
	return nil
}

// ShutdownTimeoutDuration parses the configured shutdown timeout. Validate
// has already checked it, so errors fall back to 30s.
func (c Config) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
