package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/node-attachments-backend/internal/models"
)

// MockAttachmentRepository implements repository.AttachmentRepository
type MockAttachmentRepository struct {
	mock.Mock
}

// Create creates a new attachment record
func (m *MockAttachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	args := m.Called(ctx, attachment)
	return args.Error(0)
}

// GetByID retrieves an attachment by its ID
func (m *MockAttachmentRepository) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

// ListByNode retrieves all attachments of a node
func (m *MockAttachmentRepository) ListByNode(ctx context.Context, nodeID uint) ([]models.Attachment, error) {
	args := m.Called(ctx, nodeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

// CountByNode counts the attachments of a node
func (m *MockAttachmentRepository) CountByNode(ctx context.Context, nodeID uint) (int64, error) {
	args := m.Called(ctx, nodeID)
	return args.Get(0).(int64), args.Error(1)
}

// Delete deletes an attachment record by its ID
func (m *MockAttachmentRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// DeleteByNode deletes every attachment record of a node
func (m *MockAttachmentRepository) DeleteByNode(ctx context.Context, nodeID uint) (int64, error) {
	args := m.Called(ctx, nodeID)
	return args.Get(0).(int64), args.Error(1)
}

// ListStoredFilenames lists every stored filename
func (m *MockAttachmentRepository) ListStoredFilenames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
