package mocks

import (
	"sync"

	"github.com/welldanyogia/node-attachments-backend/internal/models"
)

// NotificationRecord records a notification sent through the mock notifier
type NotificationRecord struct {
	Type         string
	NodeID       uint
	AttachmentID uint
}

// MockNotifier implements services.AttachmentNotifier and records every call
type MockNotifier struct {
	mu            sync.Mutex
	Notifications []NotificationRecord
}

// NewMockNotifier creates a new MockNotifier instance
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		Notifications: make([]NotificationRecord, 0),
	}
}

// AttachmentCreated records a created notification
func (m *MockNotifier) AttachmentCreated(attachment *models.Attachment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, NotificationRecord{
		Type:         "attachment_created",
		NodeID:       attachment.NodeID,
		AttachmentID: attachment.ID,
	})
}

// AttachmentDeleted records a deleted notification
func (m *MockNotifier) AttachmentDeleted(nodeID, attachmentID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, NotificationRecord{
		Type:         "attachment_deleted",
		NodeID:       nodeID,
		AttachmentID: attachmentID,
	})
}

// Records returns a copy of the recorded notifications
func (m *MockNotifier) Records() []NotificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NotificationRecord, len(m.Notifications))
	copy(out, m.Notifications)
	return out
}
