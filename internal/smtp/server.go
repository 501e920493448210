package smtp

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/emersion/go-smtp"
)

// Listener limits applied when ServerConfig leaves them zero
const (
	DefaultMaxMessageSize = 25 * 1024 * 1024
	DefaultMaxRecipients  = 100
	DefaultReadTimeout    = 60 * time.Second
	DefaultWriteTimeout   = 60 * time.Second
	DefaultMaxLineLength  = 2000
)

// ServerConfig holds the transport settings of the mail-in listener
type ServerConfig struct {
	Addr              string
	Domain            string
	MaxMessageSize    int64
	MaxRecipients     int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	AllowInsecureAuth bool
	// STARTTLS is offered only when both files are set
	TLSCertFile string
	TLSKeyFile  string
}

// NewSecureServer builds a go-smtp server for backend. An unreadable TLS
// key pair is an error rather than a silent fallback to plaintext.
func NewSecureServer(backend *Backend, cfg *ServerConfig) (*smtp.Server, error) {
	s := smtp.NewServer(backend)
	s.Addr = cfg.Addr
	s.Domain = cfg.Domain
	s.MaxMessageBytes = orDefault(cfg.MaxMessageSize, DefaultMaxMessageSize)
	s.MaxRecipients = orDefault(cfg.MaxRecipients, DefaultMaxRecipients)
	s.ReadTimeout = orDefault(cfg.ReadTimeout, DefaultReadTimeout)
	s.WriteTimeout = orDefault(cfg.WriteTimeout, DefaultWriteTimeout)
	s.MaxLineLength = DefaultMaxLineLength
	s.AllowInsecureAuth = cfg.AllowInsecureAuth

	if cfg.TLSCertFile != "" || cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load SMTP TLS key pair: %w", err)
		}
		s.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	return s, nil
}

func orDefault[T int | int64 | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}
