package sandbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// StorageProvider is the capability interface for file upload/signed-url
// flows.
type StorageProvider interface {
	UploadFile(ctx context.Context, data []byte, name string) (url, key string, err error)
	GetSignedUrl(ctx context.Context, key string) (string, error)
	DeleteFile(ctx context.Context, key string) error
}

// MockStorageProvider returns synthetic URLs/keys without persisting
// anything. UploadFile mints a fresh random key per call; GetSignedUrl is
// deterministic for a given key.
type MockStorageProvider struct{}

func NewMockStorageProvider() *MockStorageProvider { return &MockStorageProvider{} }

func (MockStorageProvider) UploadFile(ctx context.Context, data []byte, name string) (string, string, error) {
	key := fmt.Sprintf("mock/%s/%s", uuid.NewString(), name)
	url := fmt.Sprintf("https://preview.invalid/storage/%s", key)
	return url, key, nil
}

func (MockStorageProvider) GetSignedUrl(ctx context.Context, key string) (string, error) {
	return fmt.Sprintf("https://preview.invalid/storage/%s?signed=mock", key), nil
}

func (MockStorageProvider) DeleteFile(ctx context.Context, key string) error {
	return nil
}

// RealStorageProvider is an inert stub awaiting a production wiring.
type RealStorageProvider struct{}

func (RealStorageProvider) UploadFile(ctx context.Context, data []byte, name string) (string, string, error) {
	return "", "", ErrNotImplemented
}
func (RealStorageProvider) GetSignedUrl(ctx context.Context, key string) (string, error) {
	return "", ErrNotImplemented
}
func (RealStorageProvider) DeleteFile(ctx context.Context, key string) error {
	return ErrNotImplemented
}
