package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  error
	}{
		{"valid", "alice@example.com", nil},
		{"uppercase", "Alice@Example.COM", nil},
		{"empty", "  ", ErrEmptyInput},
		{"no at", "alice.example.com", ErrInvalidEmail},
		{"too long", strings.Repeat("a", 250) + "@b.com", ErrInputTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateEmail(tt.email))
		})
	}
}

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   error
	}{
		{"molten.com", nil},
		{"fiction.molten.it.com", nil},
		{"localhost", nil},
		{"localhost:5000", nil},
		{"127.0.0.1:8080", nil},
		{"", ErrEmptyInput},
		{"-bad.com", ErrInvalidDomain},
		{"bad_domain.com", ErrInvalidDomain},
		{"localhost:0", ErrInvalidDomain},
		{"localhost:http", ErrInvalidDomain},
		{strings.Repeat("a", 254), ErrInputTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateDomain(tt.domain))
		})
	}
}

func TestValidateContentType(t *testing.T) {
	assert.NoError(t, ValidateContentType(""))
	assert.NoError(t, ValidateContentType("text/plain"))
	assert.NoError(t, ValidateContentType("application/json; charset=utf-8"))
	assert.Equal(t, ErrInvalidContentType, ValidateContentType("not a type"))
	assert.Equal(t, ErrInputTooLong, ValidateContentType("text/"+strings.Repeat("x", 300)))
}

func TestValidateIdempotencyKey(t *testing.T) {
	assert.NoError(t, ValidateIdempotencyKey(""))
	assert.NoError(t, ValidateIdempotencyKey("6f1c2a9e-8a0b-4c7d-9f34-1b2c3d4e5f60"))
	assert.NoError(t, ValidateIdempotencyKey("<abc@mail.example.com>"))
	assert.Equal(t, ErrInvalidCharacter, ValidateIdempotencyKey("has space"))
	assert.Equal(t, ErrInvalidCharacter, ValidateIdempotencyKey("tab\there"))
	assert.Equal(t, ErrInputTooLong, ValidateIdempotencyKey(strings.Repeat("k", 256)))
}

func TestValidateModel(t *testing.T) {
	assert.NoError(t, ValidateModel(""))
	assert.NoError(t, ValidateModel("gpt-4o mini"))
	assert.Equal(t, ErrInvalidCharacter, ValidateModel("model\x00"))
	assert.Equal(t, ErrInputTooLong, ValidateModel(strings.Repeat("m", 256)))
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", DefaultLimit},
		{"abc", DefaultLimit},
		{"0", DefaultLimit},
		{"-3", DefaultLimit},
		{"5", 5},
		{" 7 ", 7},
		{"100", 100},
		{"1000", MaxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLimit(tt.raw))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "____etc_passwd"},
		{"a\\b", "a_b"},
		{"null\x00byte.txt", "nullbyte.txt"},
		{"  ", "unnamed"},
		{"", "unnamed"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.input))
		})
	}

	assert.Len(t, []rune(SanitizeFilename(strings.Repeat("é", 300))), 255)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeString("  hello\x07 world\n", 0))
	assert.Equal(t, "héll", SanitizeString("héllo", 4))
	assert.Equal(t, "", SanitizeString("\x00\x01", 10))
}
