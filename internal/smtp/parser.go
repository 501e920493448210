package smtp

import (
	"io"
	"strings"

	"github.com/jhillyerd/enmime"
)

// ParsedEmail is the part of an inbound message the ingest cares about
type ParsedEmail struct {
	MessageID   string
	SenderEmail string
	SenderName  string
	Subject     string
	Attachments []ParsedAttachment
	// Warnings lists MIME defects enmime recovered from
	Warnings []string
}

// ParsedAttachment is one named MIME part
type ParsedAttachment struct {
	Filename    string
	ContentType string
	Inline      bool
	Content     []byte
}

// ParseEmail reads a message and collects its named attachment and inline
// parts in message order. Parts without a filename are skipped.
func ParseEmail(r io.Reader) (*ParsedEmail, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, err
	}

	parsed := &ParsedEmail{
		MessageID: strings.Trim(env.GetHeader("Message-Id"), "<> "),
		Subject:   env.GetHeader("Subject"),
	}
	parsed.SenderName, parsed.SenderEmail = parseSender(env)

	collect := func(parts []*enmime.Part, inline bool) {
		for _, part := range parts {
			if part.FileName == "" {
				continue
			}
			parsed.Attachments = append(parsed.Attachments, ParsedAttachment{
				Filename:    part.FileName,
				ContentType: part.ContentType,
				Inline:      inline,
				Content:     part.Content,
			})
		}
	}
	collect(env.Attachments, false)
	collect(env.Inlines, true)

	for _, defect := range env.Errors {
		parsed.Warnings = append(parsed.Warnings, defect.Error())
	}

	return parsed, nil
}

// parseSender reads the first From address, falling back to the raw header
func parseSender(env *enmime.Envelope) (name, email string) {
	if addrs, err := env.AddressList("From"); err == nil && len(addrs) > 0 {
		return addrs[0].Name, addrs[0].Address
	}
	return "", strings.TrimSpace(env.GetHeader("From"))
}
