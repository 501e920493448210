// Package validator provides upload validation and input sanitization
// for the attachments backend.
package validator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "github.com/welldanyogia/node-attachments-backend/internal/errors"
)

// Validation errors. Upload errors are the application sentinels so callers
// can match them with errors.Is regardless of which layer reports them.
var (
	ErrEmptyInput        = apperrors.ErrEmptyInput
	ErrFileTooLarge      = apperrors.ErrFileTooLarge
	ErrUnsupportedType   = apperrors.ErrUnsupportedType
	ErrSignatureMismatch = apperrors.ErrSignatureMismatch
	ErrUnreadable        = apperrors.ErrUnreadable

	ErrInvalidDomain = errors.New("invalid domain format")
	ErrInputTooLong  = errors.New("input exceeds maximum length")
)

const (
	// HeaderSize is how many leading bytes are inspected for a signature
	HeaderSize = 8

	// MaxFilenameBytes caps a sanitized filename
	MaxFilenameBytes = 200

	// minHeaderSize is the shortest header accepted as readable
	minHeaderSize = 4

	// DefaultMaxFileSize is 5 MiB
	DefaultMaxFileSize int64 = 5 * 1024 * 1024

	// DefaultMaxAttachmentsPerNode is the per-node attachment cap
	DefaultMaxAttachmentsPerNode = 5
)

// DefaultImageTypes are the image content types accepted by default
var DefaultImageTypes = []string{
	"image/png", "image/jpeg", "image/gif", "image/webp",
}

// DefaultDocumentTypes are the document content types accepted by default
var DefaultDocumentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
}

// signatures maps a declared content type to the bytes its content must start
// with. Types without an entry are not sniffed.
var signatures = map[string][]byte{
	"image/png":       {0x89, 0x50, 0x4E, 0x47},
	"image/jpeg":      {0xFF, 0xD8, 0xFF},
	"image/gif":       {0x47, 0x49, 0x46, 0x38},
	"application/pdf": {0x25, 0x50, 0x44, 0x46},
}

// Signature returns the magic bytes checked for contentType, if any.
func Signature(contentType string) ([]byte, bool) {
	sig, ok := signatures[contentType]
	return sig, ok
}

// UploadPolicy holds the limits an upload is checked against.
type UploadPolicy struct {
	MaxFileSize   int64
	ImageTypes    []string
	DocumentTypes []string
}

// DefaultUploadPolicy returns the 5 MiB / image+document allow-list policy
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxFileSize:   DefaultMaxFileSize,
		ImageTypes:    append([]string(nil), DefaultImageTypes...),
		DocumentTypes: append([]string(nil), DefaultDocumentTypes...),
	}
}

// UploadValidator checks candidate uploads against an UploadPolicy.
// It is immutable and safe for concurrent use.
type UploadValidator struct {
	maxFileSize int64
	allowed     map[string]struct{}
}

// NewUploadValidator creates an UploadValidator for the given policy
func NewUploadValidator(policy UploadPolicy) *UploadValidator {
	allowed := make(map[string]struct{}, len(policy.ImageTypes)+len(policy.DocumentTypes))
	for _, t := range policy.ImageTypes {
		allowed[t] = struct{}{}
	}
	for _, t := range policy.DocumentTypes {
		allowed[t] = struct{}{}
	}
	return &UploadValidator{
		maxFileSize: policy.MaxFileSize,
		allowed:     allowed,
	}
}

// MaxFileSize returns the configured size limit in bytes
func (v *UploadValidator) MaxFileSize() int64 {
	return v.maxFileSize
}

// IsAllowedType reports whether contentType is in the allow-list
func (v *UploadValidator) IsAllowedType(contentType string) bool {
	_, ok := v.allowed[contentType]
	return ok
}

// Validate checks size, declared type and leading bytes, in that order.
// head holds the first bytes of the content (see ReadHeader).
func (v *UploadValidator) Validate(size int64, contentType string, head []byte) error {
	if size <= 0 {
		return ErrEmptyInput
	}

	if size > v.maxFileSize {
		return fmt.Errorf("%w of %d bytes", ErrFileTooLarge, v.maxFileSize)
	}

	if !v.IsAllowedType(contentType) {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	if len(head) < minHeaderSize {
		return ErrUnreadable
	}

	if sig, ok := signatures[contentType]; ok && !bytes.HasPrefix(head, sig) {
		return fmt.Errorf("%w: %s", ErrSignatureMismatch, contentType)
	}

	return nil
}

// ReadHeader reads up to HeaderSize bytes from r. A short read is not an
// error; Validate decides whether the header is long enough.
func ReadHeader(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return header[:n], nil
}

// Header returns the leading HeaderSize bytes of content
func Header(content []byte) []byte {
	if len(content) > HeaderSize {
		return content[:HeaderSize]
	}
	return content
}

// Domain regex: allows lowercase alphanumeric, hyphens, and dots
// Must start and end with alphanumeric, labels max 63 chars
var domainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)

// ValidateDomain validates domain name format against DNS standards.
// Used for the inbound mail domain.
func ValidateDomain(domain string) error {
	domain = strings.TrimSpace(strings.ToLower(domain))

	if domain == "" {
		return ErrEmptyInput
	}

	// RFC 1035 specifies max domain length of 253 characters
	if len(domain) > 253 {
		return ErrInputTooLong
	}

	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}

	return nil
}

// Pagination constants
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ValidatePagination validates and sanitizes pagination parameters.
// Returns sanitized limit and offset values.
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// SanitizeFilename removes dangerous characters from filename.
// Prevents path traversal and removes control characters.
func SanitizeFilename(filename string) string {
	// Remove path separators to prevent path traversal
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")

	// Remove control characters (ASCII 0-31 and 127), NUL included
	filename = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, filename)

	filename = strings.TrimSpace(filename)

	// Leave room for the 37-byte token prefix under the 255 byte name limit
	for len(filename) > MaxFilenameBytes {
		_, size := utf8.DecodeLastRuneInString(filename)
		filename = filename[:len(filename)-size]
	}

	if filename == "" || filename == "." {
		return "unnamed"
	}

	return filename
}
