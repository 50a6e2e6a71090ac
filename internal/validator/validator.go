// Package validator provides input validation and sanitization functions
// for request fields the address grammar does not cover.
package validator

import (
	"errors"
	"mime"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Validation errors
var (
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidDomain      = errors.New("invalid domain format")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrInputTooLong       = errors.New("input exceeds maximum length")
	ErrInvalidCharacter   = errors.New("input contains invalid characters")
	ErrEmptyInput         = errors.New("input cannot be empty")
)

// Field limits
const (
	MaxIdempotencyKeyLength = 255
	MaxContentTypeLength    = 255
	MaxModelLength          = 255
)

// Domain regex: allows lowercase alphanumeric, hyphens, and dots
// Must start and end with alphanumeric, labels max 63 chars
var domainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)

// ValidateEmail validates email address format according to RFC 5322.
// Returns nil if valid, or an appropriate error.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	if email == "" {
		return ErrEmptyInput
	}

	// RFC 5321 specifies max email length of 254 characters
	if utf8.RuneCountInString(email) > 254 {
		return ErrInputTooLong
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}

	return nil
}

// ValidateDomain validates a provider domain. An optional ":port" suffix is
// accepted since development providers run on localhost ports.
func ValidateDomain(domain string) error {
	domain = strings.TrimSpace(strings.ToLower(domain))

	if domain == "" {
		return ErrEmptyInput
	}

	// RFC 1035 specifies max domain length of 253 characters
	if len(domain) > 253 {
		return ErrInputTooLong
	}

	host := domain
	if i := strings.LastIndexByte(domain, ':'); i >= 0 {
		port, err := strconv.Atoi(domain[i+1:])
		if err != nil || port <= 0 || port > 65535 {
			return ErrInvalidDomain
		}
		host = domain[:i]
	}

	if !domainRegex.MatchString(host) {
		return ErrInvalidDomain
	}

	return nil
}

// ValidateContentType accepts an empty value (the envelope default applies)
// or a parseable media type.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return nil
	}
	if len(contentType) > MaxContentTypeLength {
		return ErrInputTooLong
	}
	if _, _, err := mime.ParseMediaType(contentType); err != nil {
		return ErrInvalidContentType
	}
	return nil
}

// ValidateIdempotencyKey accepts an empty key (no deduplication) or up to
// MaxIdempotencyKeyLength visible ASCII characters.
func ValidateIdempotencyKey(key string) error {
	if len(key) > MaxIdempotencyKeyLength {
		return ErrInputTooLong
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x21 || key[i] > 0x7e {
			return ErrInvalidCharacter
		}
	}
	return nil
}

// ValidateModel checks the free-form model name sent at registration.
func ValidateModel(model string) error {
	if utf8.RuneCountInString(model) > MaxModelLength {
		return ErrInputTooLong
	}
	if strings.ContainsFunc(model, isControl) {
		return ErrInvalidCharacter
	}
	return nil
}

// Pagination constants
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ParseLimit converts a limit query value. Missing, malformed or
// non-positive values fall back to DefaultLimit; large values are capped.
func ParseLimit(raw string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// SanitizeFilename removes dangerous characters from filename.
// Prevents path traversal and removes control characters.
func SanitizeFilename(filename string) string {
	// Remove path separators to prevent path traversal
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")

	filename = strings.Map(dropControl, filename)
	filename = strings.TrimSpace(filename)

	// Limit length to 255 characters (common filesystem limit)
	if utf8.RuneCountInString(filename) > 255 {
		runes := []rune(filename)
		filename = string(runes[:255])
	}

	if filename == "" {
		return "unnamed"
	}

	return filename
}

// SanitizeString removes control characters, trims whitespace and enforces
// maxLength (in runes) when positive.
func SanitizeString(input string, maxLength int) string {
	input = strings.Map(dropControl, input)
	input = strings.TrimSpace(input)

	if maxLength > 0 && utf8.RuneCountInString(input) > maxLength {
		runes := []rune(input)
		input = string(runes[:maxLength])
	}

	return input
}

// isControl matches ASCII 0-31 and 127, which includes the null byte.
func isControl(r rune) bool {
	return r < 32 || r == 127
}

func dropControl(r rune) rune {
	if isControl(r) {
		return -1
	}
	return r
}
