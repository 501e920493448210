package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/node-attachments-backend/internal/models"
	"github.com/welldanyogia/node-attachments-backend/internal/services"
)

// MockAttachmentService implements services.AttachmentService
type MockAttachmentService struct {
	mock.Mock
}

// Create stores an upload for a node
func (m *MockAttachmentService) Create(ctx context.Context, nodeID uint, upload services.Upload) (*models.Attachment, error) {
	args := m.Called(ctx, nodeID, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

// Delete removes an attachment
func (m *MockAttachmentService) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// DeleteByNode removes every attachment of a node
func (m *MockAttachmentService) DeleteByNode(ctx context.Context, nodeID uint) error {
	args := m.Called(ctx, nodeID)
	return args.Error(0)
}

// List returns a node's attachments
func (m *MockAttachmentService) List(ctx context.Context, nodeID uint) ([]models.Attachment, error) {
	args := m.Called(ctx, nodeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

// Count returns a node's attachment count
func (m *MockAttachmentService) Count(ctx context.Context, nodeID uint) (int64, error) {
	args := m.Called(ctx, nodeID)
	return args.Get(0).(int64), args.Error(1)
}

// Get retrieves an attachment by ID
func (m *MockAttachmentService) Get(ctx context.Context, id uint) (*models.Attachment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

// ResolveDownload returns serving metadata for an attachment
func (m *MockAttachmentService) ResolveDownload(ctx context.Context, id uint) (*services.Download, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Download), args.Error(1)
}
