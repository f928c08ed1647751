package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/maauso/efficient-recorder/internal/storage"
)

// Defaults for grabber configuration.
const (
	DefaultImageQuality = 80
	DefaultWebcamWidth  = 1280
	DefaultWebcamHeight = 720
)

// Compile-time check that FFmpegGrabber implements Grabber.
var _ Grabber = (*FFmpegGrabber)(nil)

// ScreenConfig configures screenshot capture.
type ScreenConfig struct {
	// InputFormat is the ffmpeg screen grab device (e.g. "x11grab",
	// "avfoundation", "gdigrab").
	InputFormat string
	// InputDevice is the display passed to ffmpeg -i (e.g. ":0.0").
	InputDevice string
}

// WebcamConfig configures webcam capture.
type WebcamConfig struct {
	// InputFormat is the ffmpeg video device format (e.g. "v4l2").
	InputFormat string
	// Device is the camera passed to ffmpeg -i (e.g. "/dev/video0").
	Device string
	Width  int
	Height int
	// Quality is the JPEG quality from 1 (worst) to 100 (best).
	Quality int
}

// FFmpegGrabber implements Grabber by running ffmpeg for a single frame and
// reading the encoded image from its stdout.
type FFmpegGrabber struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	kind       storage.Kind
	args       []string
}

// NewScreenshotGrabber creates a grabber producing PNG screenshots.
func NewScreenshotGrabber(ffmpegPath string, cfg ScreenConfig) *FFmpegGrabber {
	if cfg.InputFormat == "" {
		cfg.InputFormat = "x11grab"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = ":0.0"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
	return newGrabber(ffmpegPath, storage.KindScreenshot, args)
}

// NewWebcamGrabber creates a grabber producing JPEG webcam frames.
func NewWebcamGrabber(ffmpegPath string, cfg WebcamConfig) *FFmpegGrabber {
	if cfg.InputFormat == "" {
		cfg.InputFormat = "v4l2"
	}
	if cfg.Device == "" {
		cfg.Device = "/dev/video0"
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = DefaultWebcamWidth, DefaultWebcamHeight
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-f", cfg.InputFormat,
		"-video_size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-i", cfg.Device,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(QScale(cfg.Quality)),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	}
	return newGrabber(ffmpegPath, storage.KindWebcam, args)
}

func newGrabber(ffmpegPath string, kind storage.Kind, args []string) *FFmpegGrabber {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegGrabber{ffmpegPath: ffmpegPath, kind: kind, args: args}
}

// QScale maps a JPEG quality in 1..100 onto ffmpeg's -q:v scale, where 2 is
// best and 31 is worst. Out-of-range qualities use DefaultImageQuality.
func QScale(quality int) int {
	if quality < 1 || quality > 100 {
		quality = DefaultImageQuality
	}
	return 31 - (quality-1)*29/99
}

// Kind returns the artifact kind this grabber produces.
func (g *FFmpegGrabber) Kind() storage.Kind {
	return g.kind
}

// Args returns the ffmpeg arguments used for each grab.
func (g *FFmpegGrabber) Args() []string {
	return append([]string(nil), g.args...)
}

// Grab runs ffmpeg once and returns the encoded frame.
func (g *FFmpegGrabber) Grab(ctx context.Context) ([]byte, error) {
	out, err := g.runFFmpeg(ctx, g.args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCaptureFailed, g.kind, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s: ffmpeg produced no image", ErrCaptureFailed, g.kind)
	}
	return out, nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns its stdout,
// or an error containing stderr output if the command fails.
func (g *FFmpegGrabber) runFFmpeg(ctx context.Context, args []string) ([]byte, error) {
	// #nosec G204 - ffmpegPath and devices come from configuration, not user input
	cmd := exec.CommandContext(ctx, g.ffmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return nil, &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return stdout.Bytes(), nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
