package dispatch_test

import (
	"context"
	"io"

	"crimewatch/backend/internal/blob"
	"crimewatch/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockAlertStore struct {
	mock.Mock
}

func (m *MockAlertStore) InsertAlert(ctx context.Context, alert *models.SOSAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockAlertStore) InsertVoiceRecording(ctx context.Context, rec *models.VoiceRecording) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// MockBlobStore wraps a MemoryStore so calls are both recorded and effective.
type MockBlobStore struct {
	mock.Mock
	mem *blob.MemoryStore
}

func newMockBlobStore() *MockBlobStore {
	return &MockBlobStore{mem: blob.NewMemoryStore("http://blobs/voice-messages")}
}

func (m *MockBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, key, size, contentType)
	if err := args.Error(0); err != nil {
		return "", err
	}
	return m.mem.Put(ctx, key, r, size, contentType)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	if err := args.Error(0); err != nil {
		return err
	}
	return m.mem.Delete(ctx, key)
}

func (m *MockBlobStore) List(ctx context.Context, prefix string) ([]blob.Object, error) {
	return m.mem.List(ctx, prefix)
}

func (m *MockBlobStore) URL(key string) string { return m.mem.URL(key) }

func (m *MockBlobStore) KeyFromURL(url string) (string, bool) { return m.mem.KeyFromURL(url) }
