package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/welldanyogia/node-attachments-backend/internal/errors"
	"github.com/welldanyogia/node-attachments-backend/internal/metrics"
	"github.com/welldanyogia/node-attachments-backend/internal/models"
	"github.com/welldanyogia/node-attachments-backend/internal/repository"
	"github.com/welldanyogia/node-attachments-backend/internal/storage"
	"github.com/welldanyogia/node-attachments-backend/internal/validator"
)

// maxOriginalFilenameBytes matches the original_filename column
const maxOriginalFilenameBytes = 255

// Upload is a candidate attachment as received from a client
type Upload struct {
	Content          []byte
	OriginalFilename string
	ContentType      string
	// Size is the declared size; zero means len(Content)
	Size int64
}

// Download describes where an attachment's bytes live and how to serve them
type Download struct {
	Path     string
	MimeType string
	Filename string
	Size     int64
}

// AttachmentNotifier is told about committed attachment changes
type AttachmentNotifier interface {
	AttachmentCreated(attachment *models.Attachment)
	AttachmentDeleted(nodeID, attachmentID uint)
}

// AttachmentServiceConfig holds configuration for the attachment service
type AttachmentServiceConfig struct {
	MaxAttachmentsPerNode int
	// StrictLimit serializes creates per node inside this process so the
	// count check and the insert cannot interleave.
	StrictLimit bool
	Notifier    AttachmentNotifier
	Observer    metrics.Observer
}

// AttachmentService defines the interface for the attachment lifecycle
type AttachmentService interface {
	// Create validates and stores an upload for a node and records it
	Create(ctx context.Context, nodeID uint, upload Upload) (*models.Attachment, error)

	// Delete removes an attachment's file, then its record
	Delete(ctx context.Context, id uint) error

	// DeleteByNode removes every attachment of a node, collecting failures
	DeleteByNode(ctx context.Context, nodeID uint) error

	// List returns a node's attachments in creation order
	List(ctx context.Context, nodeID uint) ([]models.Attachment, error)

	// Count returns how many attachments a node holds
	Count(ctx context.Context, nodeID uint) (int64, error)

	// Get retrieves an attachment by ID
	Get(ctx context.Context, id uint) (*models.Attachment, error)

	// ResolveDownload returns what is needed to serve an attachment's bytes
	ResolveDownload(ctx context.Context, id uint) (*Download, error)
}

// attachmentService implements AttachmentService
type attachmentService struct {
	repo      repository.AttachmentRepository
	store     storage.BlobStore
	validator *validator.UploadValidator
	config    AttachmentServiceConfig
	logger    *slog.Logger
	locks     *nodeLocks
}

// NewAttachmentService creates a new AttachmentService instance
func NewAttachmentService(
	repo repository.AttachmentRepository,
	store storage.BlobStore,
	uploadValidator *validator.UploadValidator,
	config AttachmentServiceConfig,
	logger *slog.Logger,
) AttachmentService {
	// Set defaults
	if config.MaxAttachmentsPerNode <= 0 {
		config.MaxAttachmentsPerNode = validator.DefaultMaxAttachmentsPerNode
	}
	if config.Observer == nil {
		config.Observer = metrics.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &attachmentService{
		repo:      repo,
		store:     store,
		validator: uploadValidator,
		config:    config,
		logger:    logger,
		locks:     newNodeLocks(),
	}
}

// Create runs the count check, validation, blob write and record insert in that order.
// Nothing is written unless every check passes.
func (s *attachmentService) Create(ctx context.Context, nodeID uint, upload Upload) (*models.Attachment, error) {
	start := time.Now()
	attachment, err := s.create(ctx, nodeID, upload)
	s.config.Observer.RecordCreate(time.Since(start), int64(len(upload.Content)), err)
	return attachment, err
}

func (s *attachmentService) create(ctx context.Context, nodeID uint, upload Upload) (*models.Attachment, error) {
	if s.config.StrictLimit {
		unlock := s.locks.lock(nodeID)
		defer unlock()
	}

	count, err := s.repo.CountByNode(ctx, nodeID)
	if err != nil {
		s.logger.Error("failed to count attachments",
			slog.Uint64("node_id", uint64(nodeID)),
			slog.Any("error", err))
		return nil, apperrors.New(apperrors.ErrPersistFailure, err, "Failed to count attachments")
	}

	if count >= int64(s.config.MaxAttachmentsPerNode) {
		return nil, apperrors.New(apperrors.ErrLimitExceeded, nil,
			"Maximum attachments limit reached (%d)", s.config.MaxAttachmentsPerNode)
	}

	if err := checkFilename(upload.OriginalFilename); err != nil {
		return nil, err
	}

	size, err := uploadSize(upload)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(size, upload.ContentType, validator.Header(upload.Content)); err != nil {
		s.logger.Debug("upload rejected",
			slog.Uint64("node_id", uint64(nodeID)),
			slog.String("filename", upload.OriginalFilename),
			slog.String("reason", apperrors.GetErrorCode(err)))
		return nil, apperrors.NewAppError(err, err.Error(), apperrors.GetErrorCode(err))
	}

	storedName, err := s.store.Store(upload.Content, upload.OriginalFilename)
	if err != nil {
		s.logger.Error("failed to store attachment",
			slog.Uint64("node_id", uint64(nodeID)),
			slog.String("filename", upload.OriginalFilename),
			slog.Any("error", err))
		return nil, apperrors.New(apperrors.ErrStorageFailure, err, "Failed to save attachment")
	}

	attachment := &models.Attachment{
		NodeID:           nodeID,
		OriginalFilename: upload.OriginalFilename,
		StoredFilename:   storedName,
		MimeType:         upload.ContentType,
		FileSize:         size,
	}

	if err := s.repo.Create(ctx, attachment); err != nil {
		// The blob stays behind; the orphan sweeper reclaims it
		s.logger.Error("orphaned_blob",
			slog.Uint64("node_id", uint64(nodeID)),
			slog.String("stored_filename", storedName),
			slog.Any("error", err))
		return nil, apperrors.New(apperrors.ErrPersistFailure, err, "Failed to save attachment")
	}

	s.logger.Debug("attachment created",
		slog.Uint64("node_id", uint64(nodeID)),
		slog.Uint64("attachment_id", uint64(attachment.ID)),
		slog.String("stored_filename", storedName),
		slog.Int64("size", size))

	if s.config.Notifier != nil {
		s.config.Notifier.AttachmentCreated(attachment)
	}

	return attachment, nil
}

// uploadSize resolves the declared size against the content length
func uploadSize(upload Upload) (int64, error) {
	actual := int64(len(upload.Content))
	if upload.Size != 0 && upload.Size != actual {
		return 0, apperrors.New(apperrors.ErrInvalidInput, nil,
			"Declared size %d does not match content length %d", upload.Size, actual)
	}
	return actual, nil
}

// checkFilename rejects original filenames the catalog column cannot hold
func checkFilename(name string) error {
	if len(name) > maxOriginalFilenameBytes {
		return apperrors.New(apperrors.ErrInvalidInput, nil,
			"Filename exceeds %d bytes", maxOriginalFilenameBytes)
	}
	return nil
}

// Delete removes the file first; the record only goes once the file is gone.
func (s *attachmentService) Delete(ctx context.Context, id uint) error {
	start := time.Now()
	err := s.delete(ctx, id)
	s.config.Observer.RecordDelete(time.Since(start), err)
	return err
}

func (s *attachmentService) delete(ctx context.Context, id uint) error {
	attachment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(attachment.StoredFilename); err != nil {
		s.logger.Warn("failed to delete attachment file, record kept",
			slog.Uint64("attachment_id", uint64(id)),
			slog.String("stored_filename", attachment.StoredFilename),
			slog.Any("error", err))
		return apperrors.New(apperrors.ErrStorageFailure, err, "Failed to delete attachment file")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// deleted concurrently
			return apperrors.New(apperrors.ErrNotFound, err, "Attachment not found")
		}
		s.logger.Error("failed to delete attachment record after file removal",
			slog.Uint64("attachment_id", uint64(id)),
			slog.String("stored_filename", attachment.StoredFilename),
			slog.Any("error", err))
		return apperrors.New(apperrors.ErrPersistFailure, err, "Failed to delete attachment")
	}

	s.logger.Debug("attachment deleted",
		slog.Uint64("node_id", uint64(attachment.NodeID)),
		slog.Uint64("attachment_id", uint64(id)))

	if s.config.Notifier != nil {
		s.config.Notifier.AttachmentDeleted(attachment.NodeID, id)
	}

	return nil
}

// DeleteByNode deletes each attachment of a node independently. Failures do
// not stop the loop; they are returned together as a *BulkDeleteError.
func (s *attachmentService) DeleteByNode(ctx context.Context, nodeID uint) error {
	attachments, err := s.repo.ListByNode(ctx, nodeID)
	if err != nil {
		return apperrors.New(apperrors.ErrPersistFailure, err, "Failed to list attachments")
	}

	var failures []apperrors.DeleteFailure
	deleted := 0

	for _, attachment := range attachments {
		if err := s.store.Delete(attachment.StoredFilename); err != nil {
			failures = append(failures, apperrors.DeleteFailure{
				AttachmentID:   attachment.ID,
				StoredFilename: attachment.StoredFilename,
				Reason:         apperrors.CodeStorageFailure,
				Err:            errors.Join(apperrors.ErrStorageFailure, err),
			})
			continue
		}

		if err := s.repo.Delete(ctx, attachment.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// already gone
				continue
			}
			failures = append(failures, apperrors.DeleteFailure{
				AttachmentID:   attachment.ID,
				StoredFilename: attachment.StoredFilename,
				Reason:         apperrors.CodePersistFailure,
				Err:            errors.Join(apperrors.ErrPersistFailure, err),
			})
			continue
		}

		deleted++
		if s.config.Notifier != nil {
			s.config.Notifier.AttachmentDeleted(nodeID, attachment.ID)
		}
	}

	s.config.Observer.RecordCascade(deleted, len(failures))

	if len(failures) > 0 {
		s.logger.Warn("cascade delete incomplete",
			slog.Uint64("node_id", uint64(nodeID)),
			slog.Int("deleted", deleted),
			slog.Int("failed", len(failures)))
		return &apperrors.BulkDeleteError{NodeID: nodeID, Failures: failures}
	}

	s.logger.Debug("node attachments deleted",
		slog.Uint64("node_id", uint64(nodeID)),
		slog.Int("deleted", deleted))

	return nil
}

// List returns a node's attachments oldest first
func (s *attachmentService) List(ctx context.Context, nodeID uint) ([]models.Attachment, error) {
	attachments, err := s.repo.ListByNode(ctx, nodeID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrPersistFailure, err, "Failed to list attachments")
	}
	return attachments, nil
}

// Count returns the number of attachments a node holds
func (s *attachmentService) Count(ctx context.Context, nodeID uint) (int64, error) {
	count, err := s.repo.CountByNode(ctx, nodeID)
	if err != nil {
		return 0, apperrors.New(apperrors.ErrPersistFailure, err, "Failed to count attachments")
	}
	return count, nil
}

// Get retrieves an attachment by ID
func (s *attachmentService) Get(ctx context.Context, id uint) (*models.Attachment, error) {
	attachment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, err, "Attachment not found")
		}
		return nil, apperrors.New(apperrors.ErrPersistFailure, err, "Failed to get attachment")
	}
	return attachment, nil
}

// ResolveDownload returns the file path and serving metadata of an attachment.
// It does not check that the file still exists.
func (s *attachmentService) ResolveDownload(ctx context.Context, id uint) (*Download, error) {
	attachment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	path, err := s.store.Resolve(attachment.StoredFilename)
	if err != nil {
		s.logger.Error("stored filename does not resolve inside storage root",
			slog.Uint64("attachment_id", uint64(id)),
			slog.String("stored_filename", attachment.StoredFilename),
			slog.Any("error", err))
		return nil, apperrors.New(apperrors.ErrStorageFailure, err, "Failed to locate attachment file")
	}

	return &Download{
		Path:     path,
		MimeType: attachment.MimeType,
		Filename: attachment.OriginalFilename,
		Size:     attachment.FileSize,
	}, nil
}

// nodeLocks hands out one mutex per node, dropping it once unused
type nodeLocks struct {
	mu    sync.Mutex
	locks map[uint]*nodeLock
}

type nodeLock struct {
	mu   sync.Mutex
	refs int
}

func newNodeLocks() *nodeLocks {
	return &nodeLocks{locks: make(map[uint]*nodeLock)}
}

// lock blocks until nodeID's mutex is held and returns its release func
func (l *nodeLocks) lock(nodeID uint) func() {
	l.mu.Lock()
	nl, ok := l.locks[nodeID]
	if !ok {
		nl = &nodeLock{}
		l.locks[nodeID] = nl
	}
	nl.refs++
	l.mu.Unlock()

	nl.mu.Lock()

	return func() {
		nl.mu.Unlock()

		l.mu.Lock()
		nl.refs--
		if nl.refs == 0 {
			delete(l.locks, nodeID)
		}
		l.mu.Unlock()
	}
}
