package services

import (
	"context"
	"fmt"
	"sync"
)

// MockS3Service is a mock implementation of S3Service for testing
type MockS3Service struct {
	objects      map[string][]byte // map of S3 key to object content
	contentTypes map[string]string
	mu           sync.RWMutex

	// PutErr, when set, is returned by PutObject
	PutErr error
}

// NewMockS3Service creates a new mock S3 service
func NewMockS3Service() *MockS3Service {
	return &MockS3Service{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

// PutObject stores the object in memory
func (m *MockS3Service) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	if m.PutErr != nil {
		return m.PutErr
	}

	m.mu.Lock()
	m.objects[key] = append([]byte(nil), body...)
	m.contentTypes[key] = contentType
	m.mu.Unlock()

	return nil
}

// GetPresignedURL simulates generating a presigned URL
func (m *MockS3Service) GetPresignedURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	if !m.ObjectExists(key) {
		return "", fmt.Errorf("object not found in mock S3: %s", key)
	}

	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

// GetObjects returns all stored objects (for testing assertions)
func (m *MockS3Service) GetObjects() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent race conditions
	objects := make(map[string][]byte, len(m.objects))
	for k, v := range m.objects {
		objects[k] = v
	}
	return objects
}

// ContentType returns the content type an object was stored with
func (m *MockS3Service) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.contentTypes[key]
}

// ObjectExists checks if an object exists in mock storage
func (m *MockS3Service) ObjectExists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.objects[key]
	return exists
}

// Clear removes all objects from mock storage
func (m *MockS3Service) Clear() {
	m.mu.Lock()
	m.objects = make(map[string][]byte)
	m.contentTypes = make(map[string]string)
	m.mu.Unlock()
}
