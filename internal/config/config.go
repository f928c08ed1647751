// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Storage modes.
const (
	StorageModeS3    = "s3"
	StorageModeLocal = "local"
)

// Static errors for configuration validation.
var (
	// ErrInvalidStorageMode is returned when STORAGE_MODE is neither s3 nor local.
	ErrInvalidStorageMode = errors.New("config: STORAGE_MODE must be s3 or local")
	// ErrS3EndpointRequired is returned when S3_ENDPOINT is not set in s3 mode.
	ErrS3EndpointRequired = errors.New("config: S3_ENDPOINT is required in s3 mode")
	// ErrS3RegionRequired is returned when S3_REGION is not set in s3 mode.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required in s3 mode")
	// ErrAccessKeyRequired is returned when AWS_ACCESS_KEY_ID is not set in s3 mode.
	ErrAccessKeyRequired = errors.New("config: AWS_ACCESS_KEY_ID is required in s3 mode")
	// ErrSecretKeyRequired is returned when AWS_SECRET_ACCESS_KEY is not set in s3 mode.
	ErrSecretKeyRequired = errors.New("config: AWS_SECRET_ACCESS_KEY is required in s3 mode")
	// ErrLocalDirectoryRequired is returned when LOCAL_DIRECTORY is not set in local mode.
	ErrLocalDirectoryRequired = errors.New("config: LOCAL_DIRECTORY is required in local mode")
	// ErrInvalidValue is returned when a setting is out of range.
	ErrInvalidValue = errors.New("config: invalid value")
)

// Config holds all configuration for the application.
type Config struct {
	// Storage settings
	StorageMode        string `env:"STORAGE_MODE, default=s3" json:"storage_mode" validate:"oneof=s3 local"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"required_if=StorageMode s3"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty" validate:"required_if=StorageMode s3"`
	S3Bucket           string `env:"S3_BUCKET, default=recordings" json:"s3_bucket" validate:"required_if=StorageMode s3"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-" validate:"required_if=StorageMode s3"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-" validate:"required_if=StorageMode s3"` // Masked in JSON
	LocalDirectory     string `env:"LOCAL_DIRECTORY" json:"local_directory,omitempty" validate:"required_if=StorageMode local"`

	// Activity detection
	ThresholdDB  float64       `env:"THRESHOLD_DB, default=50" json:"threshold_db"`
	ReleaseGrace time.Duration `env:"RELEASE_GRACE, default=2s" json:"release_grace" validate:"gt=0"`
	DrainDelay   time.Duration `env:"DRAIN_DELAY, default=500ms" json:"drain_delay" validate:"gte=0"`

	// Audio capture
	MonitorSampleRate int    `env:"MONITOR_SAMPLE_RATE, default=8000" json:"monitor_sample_rate" validate:"min=1000,max=192000"`
	MonitorChannels   int    `env:"MONITOR_CHANNELS, default=1" json:"monitor_channels" validate:"min=1,max=8"`
	RecordSampleRate  int    `env:"RECORD_SAMPLE_RATE, default=44100" json:"record_sample_rate" validate:"min=1000,max=192000"`
	RecordChannels    int    `env:"RECORD_CHANNELS, default=2" json:"record_channels" validate:"min=1,max=8"`
	AudioInputFormat  string `env:"AUDIO_INPUT_FORMAT, default=pulse" json:"audio_input_format" validate:"required"`
	AudioInputDevice  string `env:"AUDIO_INPUT_DEVICE, default=default" json:"audio_input_device" validate:"required"`
	FFmpegPath        string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path" validate:"required"`
	ChunkBytes        int    `env:"CHUNK_BYTES, default=4096" json:"chunk_bytes" validate:"min=2"`

	// Screenshots
	ScreenshotEnabled  bool          `env:"SCREENSHOT_ENABLED, default=false" json:"screenshot_enabled"`
	ScreenshotInterval time.Duration `env:"SCREENSHOT_INTERVAL, default=1s" json:"screenshot_interval" validate:"gt=0"`
	ScreenInputFormat  string        `env:"SCREEN_INPUT_FORMAT, default=x11grab" json:"screen_input_format"`
	ScreenInputDevice  string        `env:"SCREEN_INPUT_DEVICE, default=:0.0" json:"screen_input_device"`

	// Webcam
	WebcamEnabled     bool          `env:"WEBCAM_ENABLED, default=false" json:"webcam_enabled"`
	WebcamInterval    time.Duration `env:"WEBCAM_INTERVAL, default=1s" json:"webcam_interval" validate:"gt=0"`
	WebcamDevice      string        `env:"WEBCAM_DEVICE, default=/dev/video0" json:"webcam_device"`
	WebcamInputFormat string        `env:"WEBCAM_INPUT_FORMAT, default=v4l2" json:"webcam_input_format"`
	WebcamWidth       int           `env:"WEBCAM_WIDTH, default=1280" json:"webcam_width" validate:"min=1"`
	WebcamHeight      int           `env:"WEBCAM_HEIGHT, default=720" json:"webcam_height" validate:"min=1"`
	ImageQuality      int           `env:"IMAGE_QUALITY, default=80" json:"image_quality" validate:"min=1,max=100"`

	// Delivery
	AudioDelivery       string        `env:"AUDIO_DELIVERY, default=buffered" json:"audio_delivery" validate:"oneof=buffered streaming"`
	SkipEmptyRecordings bool          `env:"SKIP_EMPTY_RECORDINGS, default=false" json:"skip_empty_recordings"`
	UploadMaxAttempts   int           `env:"UPLOAD_MAX_ATTEMPTS, default=1" json:"upload_max_attempts" validate:"min=1,max=10"`
	UploadHistorySize   int           `env:"UPLOAD_HISTORY_SIZE, default=256" json:"upload_history_size" validate:"min=1"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT, default=30s" json:"shutdown_timeout" validate:"gt=0"`

	// Status server settings; 0 disables the server.
	StatusPort int `env:"STATUS_PORT, default=0" json:"status_port" validate:"min=0,max=65535"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if recordings go to object storage.
func (c *Config) S3Enabled() bool {
	return c.StorageMode == StorageModeS3
}

// StatusEnabled returns true if the status server should listen.
func (c *Config) StatusEnabled() bool {
	return c.StatusPort > 0
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.StorageMode = strings.ToLower(strings.TrimSpace(cfg.StorageMode))
	cfg.AudioDelivery = strings.ToLower(strings.TrimSpace(cfg.AudioDelivery))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fieldErrors maps fields with a dedicated sentinel to that error.
var fieldErrors = map[string]error{
	"StorageMode":        ErrInvalidStorageMode,
	"S3Endpoint":         ErrS3EndpointRequired,
	"S3Region":           ErrS3RegionRequired,
	"AWSAccessKeyID":     ErrAccessKeyRequired,
	"AWSSecretAccessKey": ErrSecretKeyRequired,
	"LocalDirectory":     ErrLocalDirectoryRequired,
}

// Validate checks that all required configuration is present and in range.
// All violations are reported, joined.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		if sentinel, ok := fieldErrors[fe.StructField()]; ok {
			errs = append(errs, sentinel)
			continue
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		errs = append(errs, fmt.Errorf("%w: %s must satisfy %s", ErrInvalidValue, fe.StructField(), rule))
	}
	return errors.Join(errs...)
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{StorageMode: %s, S3Endpoint: %s, S3Region: %s, S3Bucket: %s, AWSAccessKeyID: %s, AWSSecretAccessKey: %s, LocalDirectory: %s, ThresholdDB: %g, ReleaseGrace: %s, DrainDelay: %s, AudioDelivery: %s, Screenshots: %t, Webcam: %t, UploadMaxAttempts: %d, StatusPort: %d, LogFormat: %s, LogLevel: %s}",
		c.StorageMode,
		c.S3Endpoint,
		c.S3Region,
		c.S3Bucket,
		mask(c.AWSAccessKeyID),
		mask(c.AWSSecretAccessKey),
		c.LocalDirectory,
		c.ThresholdDB,
		c.ReleaseGrace,
		c.DrainDelay,
		c.AudioDelivery,
		c.ScreenshotEnabled,
		c.WebcamEnabled,
		c.UploadMaxAttempts,
		c.StatusPort,
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
