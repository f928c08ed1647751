package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("accepts existing directory", func(t *testing.T) {
		dir := t.TempDir()

		storage, err := NewLocalStorage(dir)
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}
		if storage.Dir() != dir {
			t.Errorf("Dir() = %v, want %v", storage.Dir(), dir)
		}
	})

	t.Run("fails fast when directory is missing", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "missing")

		_, err := NewLocalStorage(dir)
		if !errors.Is(err, ErrDirectoryNotFound) {
			t.Errorf("expected ErrDirectoryNotFound, got %v", err)
		}
		if _, statErr := os.Stat(dir); !os.IsNotExist(statErr) {
			t.Error("directory must not be created implicitly")
		}
	})

	t.Run("rejects empty path", func(t *testing.T) {
		_, err := NewLocalStorage("")
		if !errors.Is(err, ErrDirectoryNotFound) {
			t.Errorf("expected ErrDirectoryNotFound, got %v", err)
		}
	})

	t.Run("rejects regular file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}

		_, err := NewLocalStorage(file)
		if !errors.Is(err, ErrDirectoryNotFound) {
			t.Errorf("expected ErrDirectoryNotFound, got %v", err)
		}
	})
}

func TestLocalStorage_StoreAudio(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("writes byte-identical recording", func(t *testing.T) {
		data := []byte{0x00, 0x01, 0xfe, 0xff, 0x10}

		path, err := storage.StoreAudio(ctx, data, "2024-01-01T00-00-00")
		if err != nil {
			t.Fatalf("StoreAudio() error = %v", err)
		}

		want := filepath.Join(storage.Dir(), "recording-2024-01-01T00-00-00.wav")
		if path != want {
			t.Errorf("path = %v, want %v", path, want)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read stored file: %v", err)
		}
		if string(content) != string(data) {
			t.Errorf("got %v, want %v", content, data)
		}
	})

	t.Run("stores zero-length recording", func(t *testing.T) {
		path, err := storage.StoreAudio(ctx, []byte{}, "2024-01-01T00-00-01")
		if err != nil {
			t.Fatalf("StoreAudio() error = %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Size() != 0 {
			t.Errorf("size = %d, want 0", info.Size())
		}
	})

	t.Run("leaves no temporary files behind", func(t *testing.T) {
		entries, err := os.ReadDir(storage.Dir())
		if err != nil {
			t.Fatalf("ReadDir: %v", err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") {
				t.Errorf("unexpected temporary file %s", e.Name())
			}
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.StoreAudio(ctx, []byte("data"), "2024-01-01T00-00-02")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_StoreImage(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		kind Kind
		want string
	}{
		{KindScreenshot, "screenshot-2024-01-01T00-00-00.png"},
		{KindWebcam, "webcam-2024-01-01T00-00-00.jpg"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			path, err := storage.StoreImage(ctx, []byte("image"), tt.kind, "2024-01-01T00-00-00")
			if err != nil {
				t.Fatalf("StoreImage() error = %v", err)
			}
			if filepath.Base(path) != tt.want {
				t.Errorf("file = %v, want %v", filepath.Base(path), tt.want)
			}
		})
	}

	t.Run("rejects audio kind", func(t *testing.T) {
		_, err := storage.StoreImage(ctx, []byte("image"), KindAudio, "2024-01-01T00-00-00")
		if !errors.Is(err, ErrInvalidKind) {
			t.Errorf("expected ErrInvalidKind, got %v", err)
		}
	})
}

func TestLocalStorage_StreamAudio(t *testing.T) {
	storage := setupTestStorage(t)

	path, err := storage.StreamAudio(context.Background(), strings.NewReader("streamed pcm"), "2024-01-01T00-00-00")
	if err != nil {
		t.Fatalf("StreamAudio() error = %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if string(content) != "streamed pcm" {
		t.Errorf("got %q, want %q", string(content), "streamed pcm")
	}
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()

	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage
}
