package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

const (
	defaultChunkBytes = 4096
	// stopTimeout bounds how long Close waits for ffmpeg to flush and exit
	// after an interrupt before killing it.
	stopTimeout = 1200 * time.Millisecond
)

// Compile-time check that FFmpegSource implements Source.
var _ Source = (*FFmpegSource)(nil)

// FFmpegSource implements Source using the ffmpeg CLI, reading raw s16le PCM
// from its stdout.
type FFmpegSource struct {
	ffmpegPath string
	cfg        CaptureConfig
}

// NewFFmpegSource creates a new FFmpegSource.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegSource(ffmpegPath string, cfg CaptureConfig) *FFmpegSource {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.ChunkBytes < 2 {
		cfg.ChunkBytes = defaultChunkBytes
	}
	cfg.ChunkBytes -= cfg.ChunkBytes % 2
	return &FFmpegSource{ffmpegPath: ffmpegPath, cfg: cfg}
}

// Config returns the effective capture configuration.
func (s *FFmpegSource) Config() CaptureConfig {
	return s.cfg
}

// args builds the ffmpeg command line for this source.
func (s *FFmpegSource) args() []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", s.cfg.InputFormat,
		"-i", s.cfg.InputDevice,
		"-ac", strconv.Itoa(s.cfg.Channels),
		"-ar", strconv.Itoa(s.cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

// Open starts ffmpeg and begins delivering chunks. The process lives until
// Close is called, ctx is cancelled, or the input ends.
func (s *FFmpegSource) Open(ctx context.Context) (Stream, error) {
	// #nosec G204 - ffmpegPath and device come from configuration, not user input
	cmd := exec.CommandContext(ctx, s.ffmpegPath, s.args()...)
	stream := &ffmpegStream{
		chunks: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	cmd.Stderr = &stream.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	stream.process = cmd.Process

	go stream.pump(cmd, stdout, s.cfg.ChunkBytes)

	return stream, nil
}

// ffmpegStream is a running ffmpeg capture.
type ffmpegStream struct {
	chunks  chan []byte
	done    chan struct{}
	process *os.Process
	stderr  bytes.Buffer

	closing  sync.Once
	closed   bool
	mu       sync.Mutex
	err      error
	closeErr error
}

func (s *ffmpegStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *ffmpegStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// pump reads fixed-size chunks from stdout until EOF, then reaps the process.
func (s *ffmpegStream) pump(cmd *exec.Cmd, stdout io.Reader, chunkBytes int) {
	defer close(s.done)
	defer close(s.chunks)

	var readErr error
	for {
		buf := make([]byte, chunkBytes)
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			s.chunks <- buf[:n]
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				readErr = err
			}
			break
		}
	}

	waitErr := cmd.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		s.err = nil
	case readErr != nil:
		s.err = fmt.Errorf("read ffmpeg output: %w", readErr)
	case waitErr != nil:
		s.err = fmt.Errorf("%w: %w: %s", ErrCaptureExited, waitErr, trimStderr(s.stderr.String()))
	}
}

// Close interrupts ffmpeg so it flushes its buffers, and kills it if it has
// not exited within stopTimeout. Chunks keeps delivering until the output
// is drained.
func (s *ffmpegStream) Close() error {
	s.closing.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case <-s.done:
		case <-time.After(stopTimeout):
			if s.process != nil {
				if err := s.process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
					s.closeErr = fmt.Errorf("kill ffmpeg: %w", err)
				}
			}
			<-s.done
		}
	})
	return s.closeErr
}

func trimStderr(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
