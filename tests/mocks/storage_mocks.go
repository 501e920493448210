package mocks

import (
	"io"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/node-attachments-backend/internal/storage"
)

// MockBlobStore implements storage.BlobStore
type MockBlobStore struct {
	mock.Mock
}

// Store writes content and returns the generated stored name
func (m *MockBlobStore) Store(content []byte, originalFilename string) (string, error) {
	args := m.Called(content, originalFilename)
	return args.String(0), args.Error(1)
}

// Delete removes a blob by its stored name
func (m *MockBlobStore) Delete(storedName string) error {
	args := m.Called(storedName)
	return args.Error(0)
}

// Resolve returns the path for a stored name
func (m *MockBlobStore) Resolve(storedName string) (string, error) {
	args := m.Called(storedName)
	return args.String(0), args.Error(1)
}

// Open retrieves a blob by its stored name
func (m *MockBlobStore) Open(storedName string) (io.ReadCloser, error) {
	args := m.Called(storedName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// List returns every stored blob
func (m *MockBlobStore) List() ([]storage.BlobInfo, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.BlobInfo), args.Error(1)
}
