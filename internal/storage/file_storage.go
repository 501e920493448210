package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/welldanyogia/node-attachments-backend/internal/validator"
)

// Storage errors
var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrFileNotFound  = errors.New("file not found")
	ErrRootNotFound  = errors.New("storage root does not exist or is not a directory")
	ErrWriteFailure  = errors.New("failed to write file")
	ErrDeleteFailure = errors.New("failed to delete file")
)

// tempPrefix marks files still being written; they never carry a stored name.
const tempPrefix = ".upload-"

// BlobInfo describes one stored blob
type BlobInfo struct {
	StoredName string
	Size       int64
	ModTime    time.Time
}

// BlobStore defines the interface for attachment byte storage.
// It knows nothing about nodes, counts or metadata.
type BlobStore interface {
	Store(content []byte, originalFilename string) (string, error)
	Delete(storedName string) error
	Resolve(storedName string) (string, error)
	Open(storedName string) (io.ReadCloser, error)
	List() ([]BlobInfo, error)
}

// localStorage implements BlobStore using a flat directory
type localStorage struct {
	basePath string
}

// EnsureRoot creates the storage root if it is missing.
// Called once at startup, before NewLocalStorage.
func EnsureRoot(basePath string) error {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return nil
}

// NewLocalStorage creates a BlobStore rooted at an existing directory
func NewLocalStorage(basePath string) (BlobStore, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}

	info, err := os.Stat(absBase)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, absBase)
	}

	return &localStorage{basePath: absBase}, nil
}

// GenerateStoredName builds the on-disk name for an upload:
// a random token, a dash, then the sanitized original filename.
func GenerateStoredName(originalFilename string) string {
	return uuid.New().String() + "-" + validator.SanitizeFilename(originalFilename)
}

// validatePath ensures a stored name maps to a file directly under basePath
func (s *localStorage) validatePath(storedName string) (string, error) {
	if storedName == "" || storedName == "." {
		return "", ErrPathTraversal
	}

	// Stored names are flat: no separators of either flavour
	if strings.ContainsAny(storedName, `/\`) || strings.Contains(storedName, "..") {
		return "", ErrPathTraversal
	}

	if filepath.IsAbs(storedName) || filepath.VolumeName(storedName) != "" {
		return "", ErrPathTraversal
	}

	fullPath := filepath.Join(s.basePath, storedName)

	// Security check: ensure file is within allowed directory
	if filepath.Dir(fullPath) != s.basePath {
		return "", ErrPathTraversal
	}

	return fullPath, nil
}

// Store writes content under a freshly generated stored name and returns it.
// The bytes land in a temp file first and are renamed into place.
func (s *localStorage) Store(content []byte, originalFilename string) (string, error) {
	storedName := GenerateStoredName(originalFilename)

	fullPath, err := s.validatePath(storedName)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	tmp, err := os.CreateTemp(s.basePath, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(content); err != nil {
		cleanup()
		return "", fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	return storedName, nil
}

// Resolve returns the absolute path for a stored name without touching the disk
func (s *localStorage) Resolve(storedName string) (string, error) {
	return s.validatePath(storedName)
}

// Open retrieves a file by its stored name
func (s *localStorage) Open(storedName string) (io.ReadCloser, error) {
	fullPath, err := s.validatePath(storedName)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes a file by its stored name. A missing file is not an error.
func (s *localStorage) Delete(storedName string) error {
	fullPath, err := s.validatePath(storedName)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrDeleteFailure, err)
	}

	return nil
}

// List returns every stored blob, skipping writes still in flight
func (s *localStorage) List() ([]BlobInfo, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	blobs := make([]BlobInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		blobs = append(blobs, BlobInfo{
			StoredName: entry.Name(),
			Size:       info.Size(),
			ModTime:    info.ModTime(),
		})
	}

	return blobs, nil
}
