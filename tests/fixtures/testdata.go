package fixtures

import (
	"bytes"
	"fmt"
	"time"

	"github.com/welldanyogia/node-attachments-backend/internal/models"
)

// Minimal payloads whose leading bytes match their content type
var (
	PNGContent  = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("png body")...)
	JPEGContent = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}, []byte("jpeg body")...)
	GIFContent  = []byte("GIF89a\x01\x00\x01\x00 gif body")
	PDFContent  = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF")
	TextContent = []byte("plain text attachment")
)

// PDFOfSize returns a PDF-signed payload of exactly size bytes (size >= 4)
func PDFOfSize(size int) []byte {
	content := bytes.Repeat([]byte("x"), size)
	copy(content, "%PDF")
	return content
}

// AttachmentBuilder creates test Attachment instances with fluent API
type AttachmentBuilder struct {
	attachment models.Attachment
}

// NewAttachmentBuilder creates a new AttachmentBuilder with sensible defaults
func NewAttachmentBuilder() *AttachmentBuilder {
	return &AttachmentBuilder{
		attachment: models.Attachment{
			ID:               1,
			NodeID:           42,
			OriginalFilename: "report.pdf",
			StoredFilename:   "3f2504e0-4f89-41d3-9a0c-0305e82c3301-report.pdf",
			MimeType:         "application/pdf",
			FileSize:         1024,
			CreatedAt:        time.Now(),
		},
	}
}

// WithID sets the attachment ID
func (b *AttachmentBuilder) WithID(id uint) *AttachmentBuilder {
	b.attachment.ID = id
	return b
}

// WithNodeID sets the owning node ID
func (b *AttachmentBuilder) WithNodeID(nodeID uint) *AttachmentBuilder {
	b.attachment.NodeID = nodeID
	return b
}

// WithOriginalFilename sets the client-supplied filename
func (b *AttachmentBuilder) WithOriginalFilename(filename string) *AttachmentBuilder {
	b.attachment.OriginalFilename = filename
	return b
}

// WithStoredFilename sets the on-disk filename
func (b *AttachmentBuilder) WithStoredFilename(filename string) *AttachmentBuilder {
	b.attachment.StoredFilename = filename
	return b
}

// WithMimeType sets the content type
func (b *AttachmentBuilder) WithMimeType(mimeType string) *AttachmentBuilder {
	b.attachment.MimeType = mimeType
	return b
}

// WithSize sets the file size in bytes
func (b *AttachmentBuilder) WithSize(size int64) *AttachmentBuilder {
	b.attachment.FileSize = size
	return b
}

// WithCreatedAt sets the created timestamp
func (b *AttachmentBuilder) WithCreatedAt(t time.Time) *AttachmentBuilder {
	b.attachment.CreatedAt = t
	return b
}

// Build returns the constructed Attachment
func (b *AttachmentBuilder) Build() *models.Attachment {
	attachment := b.attachment
	return &attachment
}

// BuildValue returns the constructed Attachment as a value (not pointer)
func (b *AttachmentBuilder) BuildValue() models.Attachment {
	return b.attachment
}

// CreateAttachments creates a slice of attachments for a node, oldest first
func CreateAttachments(nodeID uint, count int) []models.Attachment {
	base := time.Now().Add(-time.Duration(count) * time.Minute)
	attachments := make([]models.Attachment, count)
	for i := 0; i < count; i++ {
		name := generateFilename(i)
		attachments[i] = NewAttachmentBuilder().
			WithID(uint(i + 1)).
			WithNodeID(nodeID).
			WithOriginalFilename(name).
			WithStoredFilename(fmt.Sprintf("00000000-0000-4000-8000-%012d-%s", i+1, name)).
			WithCreatedAt(base.Add(time.Duration(i) * time.Minute)).
			BuildValue()
	}
	return attachments
}

func generateFilename(index int) string {
	names := []string{"report.pdf", "invoice.pdf", "contract.pdf", "summary.pdf", "appendix.pdf"}
	if index < len(names) {
		return names[index]
	}
	return fmt.Sprintf("document-%d.pdf", index)
}
