// Package config holds runtime configuration for mediasweep: defaults,
// file and environment loading through viper, and validation.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// MEDIASWEEP_TRANSCODE_JOB_TIMEOUT=2h.
const EnvPrefix = "MEDIASWEEP"

// Default configuration values.
const (
	defaultTargetExtension = "mp4"
	defaultTempExtension   = "tmp"
	defaultTargetWidth     = 1920
	defaultBitRateMargin   = 1.05
	defaultJobTimeout      = 20000 * time.Second
	defaultFileMode        = "0666"
	defaultMinFileSize     = 1000
	defaultRemoveAttempts  = 5
	defaultRemoveDelay     = 5 * time.Second
	defaultSegmentIndex    = 3
	defaultServerPort      = 5000
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultQueueSize       = 1000
	defaultQueueWorkers    = 1
	defaultScheduleCron    = "0 3 * * *"
)

// ColorMode controls ANSI color output in terminal reports.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Resolver names accepted by category.resolver.
const (
	ResolverSegment = "segment" // Folder name at a fixed path segment.
	ResolverLibrary = "library" // Longest configured library root.
)

// Config holds all runtime settings. It is produced by [Load] and passed
// by pointer to the packages that need it.
type Config struct {
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	Transcode TranscodeConfig `mapstructure:"transcode" yaml:"transcode"`
	Remove    RemoveConfig    `mapstructure:"remove" yaml:"remove"`
	Category  CategoryConfig  `mapstructure:"category" yaml:"category"`
	Libraries []LibraryConfig `mapstructure:"libraries" yaml:"libraries"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Queue     QueueConfig     `mapstructure:"queue" yaml:"queue"`
	Schedule  ScheduleConfig  `mapstructure:"schedule" yaml:"schedule"`
	Webhook   WebhookConfig   `mapstructure:"webhook" yaml:"webhook"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// FFmpegConfig locates the ffmpeg tools and fixes the encoder settings.
type FFmpegConfig struct {
	BinaryPath    string `mapstructure:"binary_path" yaml:"binary_path"` // Empty: auto-detect.
	ProbePath     string `mapstructure:"probe_path" yaml:"probe_path"`   // Empty: auto-detect.
	VideoEncoder  string `mapstructure:"video_encoder" yaml:"video_encoder"`
	Preset        string `mapstructure:"preset" yaml:"preset"`
	AudioCodec    string `mapstructure:"audio_codec" yaml:"audio_codec"`
	SubtitleCodec string `mapstructure:"subtitle_codec" yaml:"subtitle_codec"`
	Verbose       bool   `mapstructure:"verbose" yaml:"verbose"` // Tee ffmpeg stderr to the terminal.
}

// TranscodeConfig holds the per-job decision and execution parameters.
type TranscodeConfig struct {
	TargetExtension string        `mapstructure:"target_extension" yaml:"target_extension"`
	TempExtension   string        `mapstructure:"temp_extension" yaml:"temp_extension"`
	TargetWidth     int           `mapstructure:"target_width" yaml:"target_width"`
	BitRateMargin   float64       `mapstructure:"bitrate_margin" yaml:"bitrate_margin"`
	JobTimeout      time.Duration `mapstructure:"job_timeout" yaml:"job_timeout"`
	FileMode        string        `mapstructure:"file_mode" yaml:"file_mode"` // Octal, applied to new outputs.
	Extensions      []string      `mapstructure:"extensions" yaml:"extensions"`
	MinFileSize     int64         `mapstructure:"min_file_size" yaml:"min_file_size"`
}

// RemoveConfig is the retry policy for deleting a superseded source file.
type RemoveConfig struct {
	Attempts int           `mapstructure:"attempts" yaml:"attempts"`
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
}

// CategoryConfig selects the category resolver and holds the bitrate table.
type CategoryConfig struct {
	Resolver     string           `mapstructure:"resolver" yaml:"resolver"`
	SegmentIndex int              `mapstructure:"segment_index" yaml:"segment_index"`
	Folders      []FolderMapping  `mapstructure:"folders" yaml:"folders"`
	BitRates     map[string]int64 `mapstructure:"bitrates" yaml:"bitrates"`
}

// FolderMapping maps a library folder name to a category. Folder names are
// kept in a list because viper lowercases map keys.
type FolderMapping struct {
	Folder   string `mapstructure:"folder" yaml:"folder"`
	Category string `mapstructure:"category" yaml:"category"`
}

// LibraryConfig is a media library root and the category of its contents.
type LibraryConfig struct {
	Path     string `mapstructure:"path" yaml:"path"`
	Category string `mapstructure:"category" yaml:"category"`
}

// ServerConfig holds webhook HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// QueueConfig sizes the in-process job queue.
type QueueConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
	Size    int `mapstructure:"size" yaml:"size"`
}

// ScheduleConfig controls the periodic library sweep.
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Cron    string `mapstructure:"cron" yaml:"cron"` // 5-field cron expression.
}

// WebhookConfig controls how Sonarr/Radarr payload paths are interpreted.
type WebhookConfig struct {
	PathMappings   []PathMapping `mapstructure:"path_mappings" yaml:"path_mappings"`
	SonarrFallback string        `mapstructure:"sonarr_fallback" yaml:"sonarr_fallback"`
}

// PathMapping rewrites a path prefix seen by the *arr application to the
// prefix seen by mediasweep.
type PathMapping struct {
	From string `mapstructure:"from" yaml:"from"`
	To   string `mapstructure:"to" yaml:"to"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string    `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format     string    `mapstructure:"format" yaml:"format"` // json, text
	File       string    `mapstructure:"file" yaml:"file"`     // Optional append-only sink.
	Color      ColorMode `mapstructure:"color" yaml:"color"`
	AddSource  bool      `mapstructure:"add_source" yaml:"add_source"`
	TimeFormat string    `mapstructure:"time_format" yaml:"time_format"`
}

// Load reads configuration from file and environment variables on top of
// the defaults. An empty configPath searches the usual locations; a missing
// file is not an error.
func Load(configPath string) (*Config, error) {
	return LoadWith(viper.New(), configPath)
}

// LoadWith is [Load] on a caller-supplied viper instance, so CLI flags bound
// to v take precedence over the file and environment.
func LoadWith(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".mediasweep")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.AddConfigPath("/etc/mediasweep")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults configures default values for every option. The category and
// library defaults describe a /data/media/<Folder>/ layout.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.video_encoder", "hevc_nvenc")
	v.SetDefault("ffmpeg.preset", "slow")
	v.SetDefault("ffmpeg.audio_codec", "ac3")
	v.SetDefault("ffmpeg.subtitle_codec", "mov_text")
	v.SetDefault("ffmpeg.verbose", false)

	v.SetDefault("transcode.target_extension", defaultTargetExtension)
	v.SetDefault("transcode.temp_extension", defaultTempExtension)
	v.SetDefault("transcode.target_width", defaultTargetWidth)
	v.SetDefault("transcode.bitrate_margin", defaultBitRateMargin)
	v.SetDefault("transcode.job_timeout", defaultJobTimeout)
	v.SetDefault("transcode.file_mode", defaultFileMode)
	v.SetDefault("transcode.extensions", []string{"mkv", "m4v", "avi", "wmv", "mov", "mp4"})
	v.SetDefault("transcode.min_file_size", defaultMinFileSize)

	v.SetDefault("remove.attempts", defaultRemoveAttempts)
	v.SetDefault("remove.delay", defaultRemoveDelay)

	v.SetDefault("category.resolver", ResolverSegment)
	v.SetDefault("category.segment_index", defaultSegmentIndex)
	v.SetDefault("category.folders", []map[string]any{
		{"folder": "Animated TV Shows", "category": "animation"},
		{"folder": "Movies", "category": "movie"},
		{"folder": "TV Shows", "category": "tv"},
	})
	v.SetDefault("category.bitrates", map[string]any{
		"tv":        2_000_000,
		"movie":     4_000_000,
		"animation": 1_000_000,
	})

	v.SetDefault("libraries", []map[string]any{
		{"path": "/data/media/TV Shows", "category": "tv"},
		{"path": "/data/media/Movies", "category": "movie"},
		{"path": "/data/media/Animated TV Shows", "category": "animation"},
	})

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("queue.workers", defaultQueueWorkers)
	v.SetDefault("queue.size", defaultQueueSize)

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.cron", defaultScheduleCron)

	v.SetDefault("webhook.path_mappings", []map[string]any{})
	v.SetDefault("webhook.sonarr_fallback", "tv")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.color", string(ColorAuto))
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Default returns the configuration produced by the defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not unmarshal: %v", err))
	}
	return &cfg
}

// NormalizeDirArg strips trailing path separators while preserving root "/".
func NormalizeDirArg(path string) string {
	if path == "" || path == "/" {
		return path
	}
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// Validate checks field values and normalizes library paths and extensions.
// It must be called before the config is handed to other packages.
func (c *Config) Validate() error {
	if c.FFmpeg.VideoEncoder == "" {
		return errors.New("ffmpeg.video_encoder is required")
	}
	if c.FFmpeg.AudioCodec == "" {
		return errors.New("ffmpeg.audio_codec is required")
	}

	c.Transcode.TargetExtension = strings.TrimPrefix(c.Transcode.TargetExtension, ".")
	c.Transcode.TempExtension = strings.TrimPrefix(c.Transcode.TempExtension, ".")
	if c.Transcode.TargetExtension == "" || c.Transcode.TempExtension == "" {
		return errors.New("transcode.target_extension and transcode.temp_extension are required")
	}
	if strings.EqualFold(c.Transcode.TargetExtension, c.Transcode.TempExtension) {
		return fmt.Errorf("transcode.temp_extension must differ from target extension %q", c.Transcode.TargetExtension)
	}
	if c.Transcode.TargetWidth < 1 {
		return errors.New("transcode.target_width must be at least 1")
	}
	if c.Transcode.BitRateMargin < 1 {
		return fmt.Errorf("transcode.bitrate_margin must be >= 1 (got %g)", c.Transcode.BitRateMargin)
	}
	if c.Transcode.JobTimeout <= 0 {
		return errors.New("transcode.job_timeout must be positive")
	}
	if _, err := c.Transcode.Mode(); err != nil {
		return err
	}
	if len(c.Transcode.Extensions) == 0 {
		return errors.New("transcode.extensions must list at least one extension")
	}
	for i, ext := range c.Transcode.Extensions {
		c.Transcode.Extensions[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}

	if c.Remove.Attempts < 1 {
		return errors.New("remove.attempts must be at least 1")
	}
	if c.Remove.Delay < 0 {
		return errors.New("remove.delay must not be negative")
	}

	if err := c.validateCategories(); err != nil {
		return err
	}

	for i := range c.Libraries {
		lib := &c.Libraries[i]
		if lib.Path == "" {
			return fmt.Errorf("libraries[%d].path is required", i)
		}
		lib.Path = NormalizeDirArg(filepath.Clean(lib.Path))
		if _, ok := c.Category.BitRates[lib.Category]; !ok {
			return fmt.Errorf("libraries[%d].category %q has no bitrate", i, lib.Category)
		}
	}

	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}
	if c.Queue.Workers < 1 {
		return errors.New("queue.workers must be at least 1")
	}
	if c.Queue.Size < 1 {
		return errors.New("queue.size must be at least 1")
	}
	if c.Schedule.Enabled && c.Schedule.Cron == "" {
		return errors.New("schedule.cron is required when schedule.enabled is set")
	}
	if fb := c.Webhook.SonarrFallback; fb != "" {
		if _, ok := c.Category.BitRates[fb]; !ok {
			return fmt.Errorf("webhook.sonarr_fallback %q has no bitrate", fb)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return errors.New("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return errors.New("logging.format must be one of: json, text")
	}
	switch c.Logging.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("logging.color must be auto, always, or never (got %q)", c.Logging.Color)
	}
	return nil
}

func (c *Config) validateCategories() error {
	if len(c.Category.BitRates) == 0 {
		return errors.New("category.bitrates must define at least one category")
	}
	for name, rate := range c.Category.BitRates {
		if rate <= 0 {
			return fmt.Errorf("category.bitrates.%s must be positive", name)
		}
	}
	switch c.Category.Resolver {
	case ResolverSegment:
		if c.Category.SegmentIndex < 1 {
			return errors.New("category.segment_index must be at least 1")
		}
	case ResolverLibrary:
		if len(c.Libraries) == 0 {
			return errors.New("category.resolver library requires at least one entry in libraries")
		}
	default:
		return fmt.Errorf("category.resolver must be %s or %s (got %q)", ResolverSegment, ResolverLibrary, c.Category.Resolver)
	}
	for i, f := range c.Category.Folders {
		if f.Folder == "" {
			return fmt.Errorf("category.folders[%d].folder is required", i)
		}
		if _, ok := c.Category.BitRates[f.Category]; !ok {
			return fmt.Errorf("category.folders[%d].category %q has no bitrate", i, f.Category)
		}
	}
	return nil
}

// Mode parses FileMode as an octal permission set.
func (c *TranscodeConfig) Mode() (uint32, error) {
	m, err := strconv.ParseUint(strings.TrimPrefix(c.FileMode, "0o"), 8, 32)
	if err != nil || m > 0o777 {
		return 0, fmt.Errorf("transcode.file_mode %q is not an octal permission", c.FileMode)
	}
	return uint32(m), nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
