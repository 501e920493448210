package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// EventType classifies a security log entry
type EventType string

const (
	EventAuthFailure       EventType = "auth_failure"
	EventRateLimit         EventType = "rate_limit"
	EventPathTraversal     EventType = "path_traversal"
	EventInvalidOrigin     EventType = "invalid_origin"
	EventBlockedUpload     EventType = "blocked_upload"
	EventRejectedRecipient EventType = "rejected_recipient"
)

// eventMessages maps each event type to the log message it is emitted under
var eventMessages = map[EventType]string{
	EventAuthFailure:       "authentication_failure",
	EventRateLimit:         "rate_limit_exceeded",
	EventPathTraversal:     "path_traversal_attempt",
	EventInvalidOrigin:     "invalid_origin",
	EventBlockedUpload:     "blocked_file_upload",
	EventRejectedRecipient: "rejected_recipient",
}

const redacted = "[REDACTED]"

// sensitiveKeyParts marks attribute keys whose values never reach the log
var sensitiveKeyParts = []string{
	"password", "apikey", "api_key", "api-key", "token", "secret",
	"authorization", "credential", "session", "cookie",
}

// SecurityLogger writes security events for uploads, API access and ingest
// as warn-level JSON entries tagged with an event_type.
type SecurityLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewSecurityLogger creates a SecurityLogger writing JSON to stdout
func NewSecurityLogger() *SecurityLogger {
	return NewSecurityLoggerWithHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// NewSecurityLoggerWithHandler creates a SecurityLogger on top of handler
func NewSecurityLoggerWithHandler(handler slog.Handler) *SecurityLogger {
	return &SecurityLogger{
		logger: slog.New(handler),
		now:    time.Now,
	}
}

// AuthFailure logs a rejected API request. The presented key is never logged.
func (s *SecurityLogger) AuthFailure(ip, path, reason string) {
	s.emit(EventAuthFailure, ip,
		slog.String("path", path),
		slog.String("reason", reason))
}

// RateLimitExceeded logs a request dropped by the per-IP limiter
func (s *SecurityLogger) RateLimitExceeded(ip, path string) {
	s.emit(EventRateLimit, ip, slog.String("path", path))
}

// PathTraversalAttempt logs an upload whose filename tried to leave the storage root
func (s *SecurityLogger) PathTraversalAttempt(ip, path, attemptedPath string) {
	s.emit(EventPathTraversal, ip,
		slog.String("path", path),
		slog.String("attempted_path", attemptedPath))
}

// InvalidOrigin logs a refused websocket upgrade
func (s *SecurityLogger) InvalidOrigin(ip, origin string) {
	s.emit(EventInvalidOrigin, ip, slog.String("origin", origin))
}

// BlockedFileUpload logs an upload rejected by validation
func (s *SecurityLogger) BlockedFileUpload(ip string, nodeID uint, filename, reason string) {
	s.emit(EventBlockedUpload, ip,
		slog.Uint64("node_id", uint64(nodeID)),
		slog.String("filename", filename),
		slog.String("reason", reason))
}

// RejectedRecipient logs an inbound mail recipient that maps to no node
func (s *SecurityLogger) RejectedRecipient(ip, recipient string) {
	s.emit(EventRejectedRecipient, ip, slog.String("recipient", recipient))
}

func (s *SecurityLogger) emit(event EventType, ip string, attrs ...slog.Attr) {
	msg, ok := eventMessages[event]
	if !ok {
		msg = string(event)
	}

	all := make([]slog.Attr, 0, len(attrs)+3)
	all = append(all,
		slog.String("event_type", string(event)),
		slog.String("ip", ip),
	)
	for _, attr := range attrs {
		if isSensitiveKey(attr.Key) {
			attr = slog.String(attr.Key, redacted)
		}
		all = append(all, attr)
	}
	all = append(all, slog.Time("timestamp", s.now().UTC()))

	s.logger.LogAttrs(context.Background(), slog.LevelWarn, msg, all...)
}

// isSensitiveKey reports whether an attribute key may carry a credential
func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
