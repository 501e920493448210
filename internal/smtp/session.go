package smtp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"strings"

	"github.com/emersion/go-smtp"
	"github.com/welldanyogia/node-attachments-backend/internal/services"
)

// Session implements the go-smtp Session interface
type Session struct {
	backend  *Backend
	remoteIP string
	from     string
	nodeIDs  []uint
}

// NewSession creates a new SMTP session
func NewSession(backend *Backend, remoteAddr string) *Session {
	ip := remoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		ip = host
	}
	return &Session{
		backend:  backend,
		remoteIP: ip,
		nodeIDs:  make([]uint, 0),
	}
}

// Mail handles the MAIL FROM command
func (s *Session) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	s.backend.logger.Debug("MAIL FROM", slog.String("from", from))
	return nil
}

// Rcpt accepts node-<id>@<inbound domain> and rejects everything else
func (s *Session) Rcpt(to string, opts *smtp.RcptOptions) error {
	nodeID, err := s.backend.ParseRecipient(to)
	if err != nil {
		s.backend.secLogger.RejectedRecipient(s.remoteIP, to)
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "Unknown recipient",
		}
	}

	if !slices.Contains(s.nodeIDs, nodeID) {
		s.nodeIDs = append(s.nodeIDs, nodeID)
	}
	s.backend.logger.Debug("RCPT TO", slog.String("to", to), slog.Uint64("node_id", uint64(nodeID)))
	return nil
}

// Data stores every named part of the message as an attachment of each
// recipient node. The transaction fails only when nothing could be stored.
func (s *Session) Data(r io.Reader) error {
	if len(s.nodeIDs) == 0 {
		return &smtp.SMTPError{
			Code:         503,
			EnhancedCode: smtp.EnhancedCode{5, 5, 1},
			Message:      "No recipients specified",
		}
	}

	parsed, err := ParseEmail(r)
	if err != nil {
		s.backend.logger.Error("failed to parse email", slog.Any("error", err))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Failed to parse email",
		}
	}

	if len(parsed.Warnings) > 0 {
		s.backend.logger.Warn("email has MIME defects",
			slog.String("message_id", parsed.MessageID),
			slog.Any("warnings", parsed.Warnings))
	}

	if len(parsed.Attachments) == 0 {
		s.backend.logger.Info("email carried no attachments",
			slog.String("from", s.from),
			slog.String("subject", parsed.Subject))
		return nil
	}

	stored, firstErr := s.ingest(context.Background(), parsed)
	if stored == 0 {
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 3, 0},
			Message:      fmt.Sprintf("No attachment accepted: %s", firstErr),
		}
	}

	s.backend.logger.Info("email ingested",
		slog.String("message_id", parsed.MessageID),
		slog.String("from", s.from),
		slog.String("subject", parsed.Subject),
		slog.Int("nodes", len(s.nodeIDs)),
		slog.Int("attachments_stored", stored))

	return nil
}

// ingest creates one attachment per node and part, returning how many
// succeeded and the first failure.
func (s *Session) ingest(ctx context.Context, email *ParsedEmail) (int, error) {
	stored := 0
	var firstErr error

	for _, nodeID := range s.nodeIDs {
		for _, part := range email.Attachments {
			_, err := s.backend.service.Create(ctx, nodeID, services.Upload{
				Content:          part.Content,
				OriginalFilename: part.Filename,
				ContentType:      part.ContentType,
			})
			if err != nil {
				s.backend.logger.Warn("failed to ingest attachment",
					slog.Uint64("node_id", uint64(nodeID)),
					slog.String("filename", part.Filename),
					slog.String("content_type", part.ContentType),
					slog.Any("error", err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			stored++
		}
	}

	return stored, firstErr
}

// Reset resets the session state
func (s *Session) Reset() {
	s.from = ""
	s.nodeIDs = make([]uint, 0)
}

// Logout handles the end of the session
func (s *Session) Logout() error {
	return nil
}

// parseEmailAddress parses an email address into local part and domain
func parseEmailAddress(address string) (localPart, domain string, err error) {
	address = strings.TrimPrefix(address, "<")
	address = strings.TrimSuffix(address, ">")
	address = strings.TrimSpace(address)

	parts := strings.Split(address, "@")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid email address: %s", address)
	}

	localPart = strings.ToLower(parts[0])
	domain = strings.ToLower(parts[1])

	if localPart == "" || domain == "" {
		return "", "", fmt.Errorf("invalid email address: %s", address)
	}

	return localPart, domain, nil
}
