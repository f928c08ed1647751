package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrDirectoryNotFound is returned when the target directory for local
// storage does not exist or is not a directory.
var ErrDirectoryNotFound = errors.New("storage: local directory not found")

// Compile-time checks that LocalStorage implements the storage ports.
var (
	_ Adapter       = (*LocalStorage)(nil)
	_ AudioStreamer = (*LocalStorage)(nil)
)

// LocalStorage implements Adapter by writing artifacts into a directory
// on local disk.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a new LocalStorage writing into dir.
// Unlike a scratch directory, the target is never created implicitly:
// a missing directory is a configuration error and fails fast.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty path", ErrDirectoryNotFound)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDirectoryNotFound, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}

	return &LocalStorage{dir: dir}, nil
}

// Dir returns the target directory path.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// StoreAudio writes data to {dir}/recording-{timestamp}.wav.
func (s *LocalStorage) StoreAudio(ctx context.Context, data []byte, timestamp string) (string, error) {
	return s.write(ctx, Key(KindAudio, timestamp), bytes.NewReader(data))
}

// StoreImage writes data to {dir}/{kind}-{timestamp}{.png|.jpg}.
func (s *LocalStorage) StoreImage(ctx context.Context, data []byte, kind Kind, timestamp string) (string, error) {
	if !kind.IsImage() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return s.write(ctx, Key(kind, timestamp), bytes.NewReader(data))
}

// StreamAudio copies r into {dir}/recording-{timestamp}.wav until EOF.
func (s *LocalStorage) StreamAudio(ctx context.Context, r io.Reader, timestamp string) (string, error) {
	return s.write(ctx, Key(KindAudio, timestamp), r)
}

// write stores the contents of data under name. The file is written to a
// temporary name first and renamed into place once complete, so readers
// never observe a partially written artifact.
func (s *LocalStorage) write(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	tmpName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close file: %w", err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename file: %w", err)
	}

	return path, nil
}
