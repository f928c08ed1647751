package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"STORAGE_MODE", "S3_ENDPOINT", "S3_REGION", "S3_BUCKET",
	"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "LOCAL_DIRECTORY",
	"THRESHOLD_DB", "RELEASE_GRACE", "DRAIN_DELAY",
	"MONITOR_SAMPLE_RATE", "MONITOR_CHANNELS", "RECORD_SAMPLE_RATE", "RECORD_CHANNELS",
	"AUDIO_INPUT_FORMAT", "AUDIO_INPUT_DEVICE", "FFMPEG_PATH", "CHUNK_BYTES",
	"SCREENSHOT_ENABLED", "SCREENSHOT_INTERVAL", "SCREEN_INPUT_FORMAT", "SCREEN_INPUT_DEVICE",
	"WEBCAM_ENABLED", "WEBCAM_INTERVAL", "WEBCAM_DEVICE", "WEBCAM_INPUT_FORMAT",
	"WEBCAM_WIDTH", "WEBCAM_HEIGHT", "IMAGE_QUALITY",
	"AUDIO_DELIVERY", "SKIP_EMPTY_RECORDINGS", "UPLOAD_MAX_ATTEMPTS", "UPLOAD_HISTORY_SIZE",
	"SHUTDOWN_TIMEOUT", "STATUS_PORT", "LOG_FORMAT", "LOG_LEVEL",
}

// clearEnv unsets every variable Load reads, restoring them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envVars {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func setS3Env(t *testing.T) {
	t.Helper()
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
}

func TestLoad_RequiredVariables(t *testing.T) {
	t.Run("s3 mode without credentials reports every missing setting", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrS3EndpointRequired)
		assert.ErrorIs(t, err, ErrS3RegionRequired)
		assert.ErrorIs(t, err, ErrAccessKeyRequired)
		assert.ErrorIs(t, err, ErrSecretKeyRequired)
	})

	t.Run("missing secret key", func(t *testing.T) {
		clearEnv(t)
		setS3Env(t)
		os.Unsetenv("AWS_SECRET_ACCESS_KEY")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSecretKeyRequired)
		assert.NotErrorIs(t, err, ErrAccessKeyRequired)
	})

	t.Run("local mode without directory", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORAGE_MODE", "local")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrLocalDirectoryRequired)
	})

	t.Run("local mode does not need credentials", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORAGE_MODE", "local")
		t.Setenv("LOCAL_DIRECTORY", "/tmp/out")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.S3Enabled())
		assert.Equal(t, "/tmp/out", cfg.LocalDirectory)
	})

	t.Run("unknown storage mode", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORAGE_MODE", "ftp")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidStorageMode)
	})

	t.Run("all s3 variables present succeeds", func(t *testing.T) {
		clearEnv(t)
		setS3Env(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.S3Enabled())
		assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
		assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	})
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setS3Env(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageModeS3, cfg.StorageMode)
	assert.Equal(t, "recordings", cfg.S3Bucket)
	assert.Equal(t, 50.0, cfg.ThresholdDB)
	assert.Equal(t, 2*time.Second, cfg.ReleaseGrace)
	assert.Equal(t, 500*time.Millisecond, cfg.DrainDelay)
	assert.Equal(t, 8000, cfg.MonitorSampleRate)
	assert.Equal(t, 1, cfg.MonitorChannels)
	assert.Equal(t, 44100, cfg.RecordSampleRate)
	assert.Equal(t, 2, cfg.RecordChannels)
	assert.Equal(t, "pulse", cfg.AudioInputFormat)
	assert.Equal(t, "default", cfg.AudioInputDevice)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, 4096, cfg.ChunkBytes)
	assert.False(t, cfg.ScreenshotEnabled)
	assert.Equal(t, time.Second, cfg.ScreenshotInterval)
	assert.Equal(t, ":0.0", cfg.ScreenInputDevice)
	assert.False(t, cfg.WebcamEnabled)
	assert.Equal(t, "/dev/video0", cfg.WebcamDevice)
	assert.Equal(t, 80, cfg.ImageQuality)
	assert.Equal(t, "buffered", cfg.AudioDelivery)
	assert.Equal(t, 1, cfg.UploadMaxAttempts)
	assert.Equal(t, 256, cfg.UploadHistorySize)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 0, cfg.StatusPort)
	assert.False(t, cfg.StatusEnabled())
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	setS3Env(t)
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("THRESHOLD_DB", "42.5")
	t.Setenv("RELEASE_GRACE", "1500ms")
	t.Setenv("DRAIN_DELAY", "0s")
	t.Setenv("RECORD_SAMPLE_RATE", "48000")
	t.Setenv("SCREENSHOT_ENABLED", "true")
	t.Setenv("SCREENSHOT_INTERVAL", "5s")
	t.Setenv("WEBCAM_ENABLED", "true")
	t.Setenv("IMAGE_QUALITY", "95")
	t.Setenv("AUDIO_DELIVERY", "Streaming")
	t.Setenv("SKIP_EMPTY_RECORDINGS", "true")
	t.Setenv("UPLOAD_MAX_ATTEMPTS", "3")
	t.Setenv("STATUS_PORT", "9090")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, 42.5, cfg.ThresholdDB)
	assert.Equal(t, 1500*time.Millisecond, cfg.ReleaseGrace)
	assert.Equal(t, time.Duration(0), cfg.DrainDelay)
	assert.Equal(t, 48000, cfg.RecordSampleRate)
	assert.True(t, cfg.ScreenshotEnabled)
	assert.Equal(t, 5*time.Second, cfg.ScreenshotInterval)
	assert.True(t, cfg.WebcamEnabled)
	assert.Equal(t, 95, cfg.ImageQuality)
	assert.Equal(t, "streaming", cfg.AudioDelivery)
	assert.True(t, cfg.SkipEmptyRecordings)
	assert.Equal(t, 3, cfg.UploadMaxAttempts)
	assert.True(t, cfg.StatusEnabled())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"quality above range", "IMAGE_QUALITY", "101"},
		{"zero release grace", "RELEASE_GRACE", "0s"},
		{"unknown delivery", "AUDIO_DELIVERY", "carrier-pigeon"},
		{"zero attempts", "UPLOAD_MAX_ATTEMPTS", "0"},
		{"port out of range", "STATUS_PORT", "70000"},
		{"tiny chunks", "CHUNK_BYTES", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setS3Env(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestLoad_UnparsableValue(t *testing.T) {
	clearEnv(t)
	setS3Env(t)
	t.Setenv("RELEASE_GRACE", "soon")

	// go-envconfig returns an error when parsing fails
	_, err := Load()
	require.Error(t, err)
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		StorageMode:        StorageModeS3,
		S3Endpoint:         "http://minio:9000",
		S3Region:           "eu-west-1",
		S3Bucket:           "bucket",
		AWSAccessKeyID:     "AKIA-access",
		AWSSecretAccessKey: "super-secret",
		ThresholdDB:        50,
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "http://minio:9000")
	assert.Contains(t, str, "eu-west-1")
	assert.Contains(t, str, "bucket")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "AKIA-access")
	assert.NotContains(t, str, "super-secret")
	assert.Contains(t, str, "****")
}

func TestConfig_NewLogger_JSON(t *testing.T) {
	cfg := &Config{
		LogFormat: "json",
		LogLevel:  "info",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))

	// Capture output to verify it's JSON
	var buf bytes.Buffer
	testLogger := slog.New(slog.NewJSONHandler(&buf, nil))
	testLogger.Info("test message")

	assert.Contains(t, buf.String(), `"msg"`)
	assert.Contains(t, buf.String(), "test message")
}

func TestConfig_NewLogger_Text(t *testing.T) {
	cfg := &Config{
		LogFormat: "text",
		LogLevel:  "debug",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
