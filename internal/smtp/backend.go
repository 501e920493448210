package smtp

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/emersion/go-smtp"
	"github.com/welldanyogia/node-attachments-backend/internal/logger"
	"github.com/welldanyogia/node-attachments-backend/internal/services"
)

// Backend implements the go-smtp Backend interface. Every accepted message
// is turned into attachments of the nodes it was addressed to.
type Backend struct {
	service   services.AttachmentService
	domain    string
	logger    *slog.Logger
	secLogger *logger.SecurityLogger
}

// BackendConfig holds configuration for the SMTP backend
type BackendConfig struct {
	Service        services.AttachmentService
	InboundDomain  string
	Logger         *slog.Logger
	SecurityLogger *logger.SecurityLogger
}

// NewBackend creates a new SMTP backend
func NewBackend(cfg *BackendConfig) *Backend {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	secLogger := cfg.SecurityLogger
	if secLogger == nil {
		secLogger = logger.NewSecurityLoggerWithHandler(log.Handler())
	}
	return &Backend{
		service:   cfg.Service,
		domain:    strings.ToLower(strings.TrimSpace(cfg.InboundDomain)),
		logger:    log,
		secLogger: secLogger,
	}
}

// NewSession creates a new SMTP session
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	remoteAddr := ""
	if c != nil && c.Conn() != nil {
		remoteAddr = c.Conn().RemoteAddr().String()
	}
	b.logger.Debug("new SMTP connection", slog.String("remote_addr", remoteAddr))
	return NewSession(b, remoteAddr), nil
}

// ParseRecipient maps node-<id>@<inbound domain> to a node ID
func (b *Backend) ParseRecipient(address string) (uint, error) {
	localPart, domainName, err := parseEmailAddress(address)
	if err != nil {
		return 0, err
	}

	if domainName != b.domain {
		return 0, fmt.Errorf("recipient domain %q is not served", domainName)
	}

	raw, ok := strings.CutPrefix(localPart, "node-")
	if !ok {
		return 0, fmt.Errorf("recipient %q does not address a node", localPart)
	}

	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid node id %q", raw)
	}

	return uint(id), nil
}
