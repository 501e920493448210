package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/node-attachments-backend/internal/models"
	"gorm.io/gorm"
)

// AttachmentRepository defines the interface for attachment metadata access.
// It is the catalog side of the attachment store and never touches files.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *models.Attachment) error
	GetByID(ctx context.Context, id uint) (*models.Attachment, error)
	ListByNode(ctx context.Context, nodeID uint) ([]models.Attachment, error)
	CountByNode(ctx context.Context, nodeID uint) (int64, error)
	Delete(ctx context.Context, id uint) error
	DeleteByNode(ctx context.Context, nodeID uint) (int64, error)
	ListStoredFilenames(ctx context.Context) ([]string, error)
}

// attachmentRepository implements AttachmentRepository using GORM
type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates a new AttachmentRepository instance
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

// Create inserts a new attachment record; ID and CreatedAt are filled in
func (r *attachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	result := r.db.WithContext(ctx).Create(attachment)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("%w: stored filename %s", ErrDuplicateEntry, attachment.StoredFilename)
		}
		return fmt.Errorf("failed to create attachment: %w", result.Error)
	}
	return nil
}

// GetByID retrieves an attachment by its ID
func (r *attachmentRepository) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	var attachment models.Attachment
	result := r.db.WithContext(ctx).First(&attachment, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attachment by ID: %w", result.Error)
	}
	return &attachment, nil
}

// ListByNode retrieves all attachments of a node, oldest first
func (r *attachmentRepository) ListByNode(ctx context.Context, nodeID uint) ([]models.Attachment, error) {
	attachments := make([]models.Attachment, 0)
	result := r.db.WithContext(ctx).
		Where("node_id = ?", nodeID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&attachments)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", result.Error)
	}
	return attachments, nil
}

// CountByNode returns the number of attachments a node holds
func (r *attachmentRepository) CountByNode(ctx context.Context, nodeID uint) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Attachment{}).Where("node_id = ?", nodeID).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count attachments: %w", result.Error)
	}
	return count, nil
}

// Delete removes an attachment record by its ID
func (r *attachmentRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Attachment{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete attachment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByNode removes every attachment record of a node and reports how many went
func (r *attachmentRepository) DeleteByNode(ctx context.Context, nodeID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("node_id = ?", nodeID).Delete(&models.Attachment{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete attachments by node: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListStoredFilenames returns the stored filename of every record
func (r *attachmentRepository) ListStoredFilenames(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	result := r.db.WithContext(ctx).Model(&models.Attachment{}).Pluck("stored_filename", &names)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list stored filenames: %w", result.Error)
	}
	return names, nil
}
