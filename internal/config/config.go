package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full FRAMEPULSE-CORE runtime configuration, loaded from
// config.yaml plus FRAMEPULSE_* environment overrides.
type Config struct {
	Port        int    `mapstructure:"port" yaml:"port"`
	Environment string `mapstructure:"environment" yaml:"environment"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Detection DetectionConfig `mapstructure:"detection" yaml:"detection"`
	Video     VideoConfig     `mapstructure:"video" yaml:"video"`
	Stream    StreamConfig    `mapstructure:"stream" yaml:"stream"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	CORS      CORSConfig      `mapstructure:"cors" yaml:"cors"`
}

// DetectionConfig tunes the image pipeline.
type DetectionConfig struct {
	Profile           string             `mapstructure:"profile" yaml:"profile"`
	Level             string             `mapstructure:"level" yaml:"level"`
	ParallelDetection bool               `mapstructure:"parallel_detection" yaml:"parallel_detection"`
	MaxWorkers        int                `mapstructure:"max_workers" yaml:"max_workers"`
	DetectorTimeoutMs int                `mapstructure:"detector_timeout_ms" yaml:"detector_timeout_ms"`
	CustomThresholds  map[string]float64 `mapstructure:"custom_thresholds" yaml:"custom_thresholds"`
	ProfilesFile      string             `mapstructure:"profiles_file" yaml:"profiles_file"`
}

// VideoConfig tunes the video pipeline and sampler.
type VideoConfig struct {
	SampleStrategy   string  `mapstructure:"sample_strategy" yaml:"sample_strategy"`
	SampleInterval   float64 `mapstructure:"sample_interval" yaml:"sample_interval"`
	MaxFrames        int     `mapstructure:"max_frames" yaml:"max_frames"`
	Workers          int     `mapstructure:"workers" yaml:"workers"`
	MinEventDuration float64 `mapstructure:"min_event_duration" yaml:"min_event_duration"`
	MaxFrameBytes    int     `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`
}

// StreamConfig holds stream worker defaults; per-stream config overrides
// these at start time.
type StreamConfig struct {
	SampleInterval       float64 `mapstructure:"sample_interval" yaml:"sample_interval"`
	DetectionInterval    float64 `mapstructure:"detection_interval" yaml:"detection_interval"`
	WindowSize           int     `mapstructure:"window_size" yaml:"window_size"`
	ResultsSize          int     `mapstructure:"results_size" yaml:"results_size"`
	MaxConsecutiveErrors int     `mapstructure:"max_consecutive_errors" yaml:"max_consecutive_errors"`
	ReconnectBackoffCap  float64 `mapstructure:"reconnect_backoff_cap" yaml:"reconnect_backoff_cap"`
	GraceSeconds         float64 `mapstructure:"grace_seconds" yaml:"grace_seconds"`
	MaxStreams           int     `mapstructure:"max_streams" yaml:"max_streams"`
}

// SchedulerConfig holds the task scheduler settings.
type SchedulerConfig struct {
	Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
	DataDir          string `mapstructure:"data_dir" yaml:"data_dir"`
	TickSeconds      int    `mapstructure:"tick_seconds" yaml:"tick_seconds"`
	Workers          int    `mapstructure:"workers" yaml:"workers"`
	HistoryRetention int    `mapstructure:"history_retention" yaml:"history_retention"`
}

// CacheConfig selects the verdict cache backend. With no nodes configured
// the in-memory cache is used.
type CacheConfig struct {
	Nodes      []string `mapstructure:"nodes" yaml:"nodes"`
	TTLSeconds int      `mapstructure:"ttl_seconds" yaml:"ttl_seconds"`
}

// CORSConfig mirrors the HTTP CORS policy.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// Load reads configuration from the given file (optional), the working
// directory, and FRAMEPULSE_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/framepulse")
	}

	v.SetEnvPrefix("FRAMEPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; env and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("detection.profile", "normal")
	v.SetDefault("detection.level", "standard")
	v.SetDefault("detection.parallel_detection", true)
	v.SetDefault("detection.max_workers", 8)
	v.SetDefault("detection.detector_timeout_ms", 2000)

	v.SetDefault("video.sample_strategy", "interval")
	v.SetDefault("video.sample_interval", 1.0)
	v.SetDefault("video.max_frames", 300)
	v.SetDefault("video.workers", 4)
	v.SetDefault("video.min_event_duration", 0.5)
	v.SetDefault("video.max_frame_bytes", 64<<20)

	v.SetDefault("stream.sample_interval", 1.0)
	v.SetDefault("stream.detection_interval", 5.0)
	v.SetDefault("stream.window_size", 32)
	v.SetDefault("stream.results_size", 256)
	v.SetDefault("stream.max_consecutive_errors", 10)
	v.SetDefault("stream.reconnect_backoff_cap", 30.0)
	v.SetDefault("stream.grace_seconds", 5.0)
	v.SetDefault("stream.max_streams", 16)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.data_dir", "./data/scheduler")
	v.SetDefault("scheduler.tick_seconds", 30)
	v.SetDefault("scheduler.workers", 0) // 0 = max(2, NumCPU)
	v.SetDefault("scheduler.history_retention", 1000)

	v.SetDefault("cache.ttl_seconds", 300)

	v.SetDefault("cors.max_age", 43200)
}
