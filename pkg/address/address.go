// Package address implements the AAP address grammar
//
//	ai:<owner>~<role>#<provider>
//
// including validation of every component and the canonical string form.
// Owner and role keep their case; the provider is always stored lower-cased.
package address

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Component and whole-address limits.
const (
	MaxOwnerLength    = 64
	MaxRoleLength     = 64
	MaxProviderLength = 253
	MaxAddressLength  = 500

	// Prefix is the scheme prefix of every address (matched case-insensitively).
	Prefix = "ai:"

	// FeedOwner and FeedRole name the reserved public feed inbox of a provider.
	FeedOwner = "feed"
	FeedRole  = "public"
	// FeedOwnerRole is the inbox key of the reserved public feed.
	FeedOwnerRole = FeedOwner + "~" + FeedRole
)

// ErrInvalidAddress is matched by every parse and validation failure.
var ErrInvalidAddress = errors.New("invalid AAP address")

// Error describes why an address was rejected. Component is empty when the
// failure is structural rather than tied to one component.
type Error struct {
	Component string
	Reason    string
}

func (e *Error) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidAddress, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", ErrInvalidAddress, e.Component, e.Reason)
}

// Unwrap lets errors.Is(err, ErrInvalidAddress) match.
func (e *Error) Unwrap() error {
	return ErrInvalidAddress
}

// Address is a parsed AAP address. The zero value is not a valid address.
type Address struct {
	Owner    string
	Role     string
	Provider string
}

// Parse parses raw into an Address.
func Parse(raw string) (Address, error) {
	if raw == "" {
		return Address{}, &Error{Reason: "address cannot be empty"}
	}
	if len(raw) > MaxAddressLength {
		return Address{}, &Error{Reason: fmt.Sprintf("address too long (max %d characters)", MaxAddressLength)}
	}

	s := strings.TrimSpace(raw)
	if len(s) < len(Prefix) || !strings.EqualFold(s[:len(Prefix)], Prefix) {
		return Address{}, &Error{Reason: "address must start with 'ai:'"}
	}
	rest := s[len(Prefix):]

	tilde := strings.IndexByte(rest, '~')
	if tilde < 0 {
		return Address{}, &Error{Reason: "missing '~' between owner and role, expected ai:owner~role#provider"}
	}
	owner := rest[:tilde]
	rest = rest[tilde+1:]

	hash := strings.IndexByte(rest, '#')
	if hash < 0 {
		return Address{}, &Error{Reason: "missing '#' before provider, expected ai:owner~role#provider"}
	}
	role := rest[:hash]
	provider := rest[hash+1:]

	if strings.ContainsRune(owner, '#') {
		return Address{}, &Error{Component: "owner", Reason: "cannot contain '#'"}
	}
	if strings.ContainsRune(role, '~') {
		return Address{}, &Error{Component: "role", Reason: "cannot contain '~'"}
	}
	if strings.ContainsRune(provider, '#') {
		return Address{}, &Error{Component: "provider", Reason: "cannot contain '#'"}
	}

	return New(owner, role, provider)
}

// New builds an Address from components, applying the same validation as Parse.
func New(owner, role, provider string) (Address, error) {
	if err := validateComponent("owner", owner, MaxOwnerLength, false); err != nil {
		return Address{}, err
	}
	if err := validateComponent("role", role, MaxRoleLength, false); err != nil {
		return Address{}, err
	}
	provider = strings.ToLower(provider)
	if err := validateComponent("provider", provider, MaxProviderLength, true); err != nil {
		return Address{}, err
	}
	return Address{Owner: owner, Role: role, Provider: provider}, nil
}

// SplitOwnerRole splits a provider-local inbox key "owner~role" and checks
// both components with the same rules as Parse.
func SplitOwnerRole(key string) (owner, role string, err error) {
	owner, role, ok := strings.Cut(key, "~")
	if !ok {
		return "", "", &Error{Reason: "inbox key must be owner~role"}
	}
	if err := validateComponent("owner", owner, MaxOwnerLength, false); err != nil {
		return "", "", err
	}
	if err := validateComponent("role", role, MaxRoleLength, false); err != nil {
		return "", "", err
	}
	return owner, role, nil
}

// MustParse is like Parse but panics on error.
func MustParse(raw string) Address {
	a, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// IsValid reports whether raw parses as an address.
func IsValid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}

// Format renders the canonical form of a.
func Format(a Address) string {
	return Prefix + a.Owner + "~" + a.Role + "#" + a.Provider
}

// FeedAddress returns the reserved public feed address of provider.
func FeedAddress(provider string) Address {
	return Address{Owner: FeedOwner, Role: FeedRole, Provider: strings.ToLower(provider)}
}

// String returns the canonical form.
func (a Address) String() string {
	return Format(a)
}

// OwnerRole returns the provider-local inbox key "owner~role".
func (a Address) OwnerRole() string {
	return a.Owner + "~" + a.Role
}

// URI returns the canonical form escaped for use inside a URL.
func (a Address) URI() string {
	return url.QueryEscape(a.String())
}

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Equal reports whether a and b have the same canonical form.
func (a Address) Equal(b Address) bool {
	return a == b
}

// IsFeed reports whether a is a reserved public feed address.
func (a Address) IsFeed() bool {
	return a.Owner == FeedOwner && a.Role == FeedRole
}

// MarshalText encodes a in canonical form. The zero Address encodes as "".
func (a Address) MarshalText() ([]byte, error) {
	if a.IsZero() {
		return []byte{}, nil
	}
	return []byte(a.String()), nil
}

// UnmarshalText parses text. Empty text yields the zero Address so callers can
// distinguish an absent address from a malformed one.
func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func validateComponent(name, value string, maxLen int, allowColon bool) error {
	if value == "" {
		return &Error{Component: name, Reason: "cannot be empty"}
	}
	if len(value) > maxLen {
		return &Error{Component: name, Reason: fmt.Sprintf("too long (max %d characters): %d", maxLen, len(value))}
	}
	for i := 0; i < len(value); i++ {
		if !validChar(value[i], allowColon) {
			return &Error{Component: name, Reason: fmt.Sprintf("contains invalid character %q", value[i])}
		}
	}
	return nil
}

func validChar(c byte, allowColon bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == '-':
		return true
	case c == ':':
		return allowColon
	}
	return false
}
