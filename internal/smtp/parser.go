package smtp

import (
	"io"
	"net/mail"
	"regexp"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/welldanyogia/aap/internal/validator"
)

var (
	scriptStyleRe = regexp.MustCompile(`(?i)<(script|style)[^>]*>[\s\S]*?</(script|style)>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
)

// ParsedEmail represents a parsed email message
type ParsedEmail struct {
	SenderEmail string
	SenderName  string
	Subject     string
	// MessageID is the Message-ID header without angle brackets.
	MessageID   string
	BodyText    string
	BodyHTML    string
	Attachments []ParsedAttachment
}

// ParsedAttachment describes an attachment. Its bytes are not kept; agents
// get the name, type and size only.
type ParsedAttachment struct {
	Filename    string
	ContentType string
	Size        int64
}

// ParseEmail parses an email from an io.Reader
func ParseEmail(r io.Reader) (*ParsedEmail, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, err
	}

	parsed := &ParsedEmail{
		Subject:   env.GetHeader("Subject"),
		MessageID: strings.Trim(strings.TrimSpace(env.GetHeader("Message-ID")), "<>"),
		BodyText:  env.Text,
		BodyHTML:  env.HTML,
	}
	parsed.SenderName, parsed.SenderEmail = parseFromHeader(env.GetHeader("From"))

	for _, att := range env.Attachments {
		parsed.Attachments = append(parsed.Attachments, ParsedAttachment{
			Filename:    validator.SanitizeFilename(att.FileName),
			ContentType: att.ContentType,
			Size:        int64(len(att.Content)),
		})
	}

	// Also include named inline parts
	for _, att := range env.Inlines {
		if att.FileName != "" {
			parsed.Attachments = append(parsed.Attachments, ParsedAttachment{
				Filename:    validator.SanitizeFilename(att.FileName),
				ContentType: att.ContentType,
				Size:        int64(len(att.Content)),
			})
		}
	}

	return parsed, nil
}

// Content is the message text delivered to the agent: the text part, or
// the HTML part with its markup removed.
func (e *ParsedEmail) Content() string {
	if strings.TrimSpace(e.BodyText) != "" {
		return strings.TrimSpace(e.BodyText)
	}
	if e.BodyHTML == "" {
		return ""
	}
	return strings.Join(strings.Fields(stripHTMLTags(e.BodyHTML)), " ")
}

// Metadata is the payload metadata attached to the delivered message.
func (e *ParsedEmail) Metadata(mailFrom string) map[string]any {
	md := map[string]any{
		"subject":   e.Subject,
		"mail_from": mailFrom,
	}
	if e.SenderName != "" {
		md["sender_name"] = e.SenderName
	}
	if e.SenderEmail != "" && e.SenderEmail != mailFrom {
		md["sender_email"] = e.SenderEmail
	}
	if len(e.Attachments) > 0 {
		atts := make([]any, 0, len(e.Attachments))
		for _, a := range e.Attachments {
			atts = append(atts, map[string]any{
				"filename":     a.Filename,
				"content_type": a.ContentType,
				"size":         a.Size,
			})
		}
		md["attachments"] = atts
	}
	return md
}

// parseFromHeader extracts name and email from a From header
func parseFromHeader(from string) (name, email string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}

	addr, err := mail.ParseAddress(from)
	if err != nil {
		// Fallback: treat entire string as email
		return "", from
	}
	return addr.Name, addr.Address
}

// stripHTMLTags removes HTML tags from a string
func stripHTMLTags(html string) string {
	html = scriptStyleRe.ReplaceAllString(html, "")
	html = tagRe.ReplaceAllString(html, " ")

	// Decode common HTML entities
	r := strings.NewReplacer(
		"&nbsp;", " ",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&amp;", "&",
	)
	return r.Replace(html)
}
