package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestNewS3Storage(t *testing.T) {
	cfg := S3Config{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566", // LocalStack-like endpoint
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	storage, err := NewS3Storage(cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if storage.Bucket() != DefaultBucket {
		t.Errorf("bucket = %v, want %v", storage.Bucket(), DefaultBucket)
	}
	if storage.region != cfg.Region {
		t.Errorf("region = %v, want %v", storage.region, cfg.Region)
	}
}

// mockS3 records PUT requests made against a fake S3 endpoint.
type mockS3 struct {
	mu       sync.Mutex
	paths    []string
	bodies   []string
	ctypes   []string
	failWith int
}

func (m *mockS3) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}

		m.mu.Lock()
		m.paths = append(m.paths, r.URL.Path)
		m.bodies = append(m.bodies, string(body))
		m.ctypes = append(m.ctypes, r.Header.Get("Content-Type"))
		fail := m.failWith
		m.mu.Unlock()

		if fail != 0 {
			w.WriteHeader(fail)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func newMockS3Storage(t *testing.T, m *mockS3) *S3Storage {
	t.Helper()

	server := httptest.NewServer(m.handler(t))
	t.Cleanup(server.Close)

	storage, err := NewS3Storage(S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}
	return storage
}

func TestS3Storage_StoreAudio_MockServer(t *testing.T) {
	m := &mockS3{}
	storage := newMockS3Storage(t, m)

	key, err := storage.StoreAudio(context.Background(), []byte("test content"), "2024-01-01T00-00-00")
	if err != nil {
		t.Fatalf("StoreAudio() error = %v", err)
	}

	if key != "recording-2024-01-01T00-00-00.wav" {
		t.Errorf("key = %v, want %v", key, "recording-2024-01-01T00-00-00.wav")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.paths) != 1 {
		t.Fatalf("expected 1 request, got %d", len(m.paths))
	}
	if m.paths[0] != "/test-bucket/recording-2024-01-01T00-00-00.wav" {
		t.Errorf("unexpected path: %s", m.paths[0])
	}
	if m.bodies[0] != "test content" {
		t.Errorf("unexpected body: %s", m.bodies[0])
	}
	if m.ctypes[0] != "audio/wav" {
		t.Errorf("unexpected content type: %s", m.ctypes[0])
	}
}

func TestS3Storage_StoreImage_MockServer(t *testing.T) {
	m := &mockS3{}
	storage := newMockS3Storage(t, m)

	key, err := storage.StoreImage(context.Background(), []byte("jpeg"), KindWebcam, "2024-01-01T00-00-00")
	if err != nil {
		t.Fatalf("StoreImage() error = %v", err)
	}
	if key != "webcam-2024-01-01T00-00-00.jpg" {
		t.Errorf("key = %v", key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctypes[0] != "image/jpeg" {
		t.Errorf("unexpected content type: %s", m.ctypes[0])
	}

	_, err = storage.StoreImage(context.Background(), []byte("wav"), KindAudio, "2024-01-01T00-00-00")
	if !errors.Is(err, ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
}

func TestS3Storage_StreamAudio_MockServer(t *testing.T) {
	m := &mockS3{}
	storage := newMockS3Storage(t, m)

	key, err := storage.StreamAudio(context.Background(), strings.NewReader("streamed"), "2024-01-01T00-00-00")
	if err != nil {
		t.Fatalf("StreamAudio() error = %v", err)
	}
	if key != "recording-2024-01-01T00-00-00.wav" {
		t.Errorf("key = %v", key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bodies) != 1 || m.bodies[0] != "streamed" {
		t.Errorf("unexpected bodies: %v", m.bodies)
	}
}

func TestS3Storage_UploadFailure(t *testing.T) {
	m := &mockS3{failWith: http.StatusForbidden}
	storage := newMockS3Storage(t, m)

	_, err := storage.StoreAudio(context.Background(), []byte("data"), "2024-01-01T00-00-00")
	if err == nil {
		t.Fatal("expected error from failing endpoint")
	}
	if !strings.Contains(err.Error(), "upload to S3") {
		t.Errorf("unexpected error: %v", err)
	}
}
