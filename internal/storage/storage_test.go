package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("banner image (1).png")
	if !strings.HasPrefix(key, "products/") {
		t.Errorf("key = %q, want products/ prefix", key)
	}
	if !strings.HasSuffix(key, "_banner_image__1_.png") {
		t.Errorf("key = %q, want sanitized filename suffix", key)
	}
}

func TestObjectKeyStripsDirectories(t *testing.T) {
	key := ObjectKey("../../etc/passwd")
	if strings.Contains(key, "..") || strings.Contains(strings.TrimPrefix(key, "products/"), "/") {
		t.Errorf("key = %q, path components not stripped", key)
	}
}

func TestLocalStoreSaveAndDelete(t *testing.T) {
	root := t.TempDir()
	s := NewLocalStore(root)

	path, err := s.Save(context.Background(), "products/1_banner.png", strings.NewReader("imagedata"), 9, "image/png")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if path != "/storage/products/1_banner.png" {
		t.Errorf("public path = %q", path)
	}

	data, err := os.ReadFile(filepath.Join(root, "products", "1_banner.png"))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "imagedata" {
		t.Errorf("file contents = %q", data)
	}

	if err := s.Delete(context.Background(), path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "products", "1_banner.png")); !os.IsNotExist(err) {
		t.Error("expected file removed")
	}
}

func TestLocalStoreDeleteMissingIsNoError(t *testing.T) {
	s := NewLocalStore(t.TempDir())

	if err := s.Delete(context.Background(), "/storage/products/nope.png"); err != nil {
		t.Errorf("delete missing: %v", err)
	}
}

func TestLocalStoreDeleteIgnoresForeignPaths(t *testing.T) {
	s := NewLocalStore(t.TempDir())

	// Paths not under /storage/ belong to another backend.
	if err := s.Delete(context.Background(), "https://cdn.example.com/products/x.png"); err != nil {
		t.Errorf("delete foreign path: %v", err)
	}
}

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreSaveAndDelete(t *testing.T) {
	mock := newMockS3()
	s := &S3Store{client: mock, bucket: "stockroom", publicURL: "https://cdn.example.com"}

	path, err := s.Save(context.Background(), "products/1_banner.png", strings.NewReader("imagedata"), 9, "image/png")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if path != "https://cdn.example.com/products/1_banner.png" {
		t.Errorf("public path = %q", path)
	}
	if string(mock.objects["products/1_banner.png"]) != "imagedata" {
		t.Error("object not uploaded")
	}

	if err := s.Delete(context.Background(), path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := mock.objects["products/1_banner.png"]; ok {
		t.Error("expected object removed")
	}
}

func TestS3StoreSaveError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("bucket unavailable")
	s := &S3Store{client: mock, bucket: "stockroom", publicURL: "https://cdn.example.com"}

	if _, err := s.Save(context.Background(), "products/x.png", strings.NewReader("x"), 1, "image/png"); err == nil {
		t.Error("expected error from failed upload")
	}
}

func TestS3ConfigConfigured(t *testing.T) {
	if (S3Config{}).Configured() {
		t.Error("empty config should not be configured")
	}
	cfg := S3Config{Bucket: "b", AccessKey: "a", SecretKey: "s"}
	if !cfg.Configured() {
		t.Error("expected configured")
	}
}
