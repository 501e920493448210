package models

import (
	"time"
)

// Attachment is the catalog record of a file stored for a node.
// Records are immutable once inserted.
type Attachment struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	NodeID           uint      `gorm:"not null;index:idx_attachments_node_created,priority:1" json:"nodeId"`
	OriginalFilename string    `gorm:"not null;size:255" json:"originalFilename"`
	StoredFilename   string    `gorm:"not null;uniqueIndex;size:300" json:"storedFilename"`
	MimeType         string    `gorm:"not null;size:100" json:"mimeType"`
	FileSize         int64     `gorm:"not null" json:"fileSize"`
	CreatedAt        time.Time `gorm:"autoCreateTime;not null;<-:create;index:idx_attachments_node_created,priority:2" json:"createdAt"`
}

// TableName returns the table name for Attachment
func (Attachment) TableName() string {
	return "attachments"
}
