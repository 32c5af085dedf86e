// Package identity models who is on each side of a thread: the
// business-side admin or a phone-number end user. Controllers receive
// an Identity explicitly at construction, never from ambient state.
package identity

import (
	"fmt"
	"regexp"
	"strings"
)

// Role selects which side of a thread a session renders and which
// mutations it may perform.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole validates a role string from an untrusted source.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Identity is an authenticated session: a normalized phone key plus the
// side it acts as.
type Identity struct {
	PhoneKey string `json:"phoneKey"`
	Role     Role   `json:"role"`
	Name     string `json:"name,omitempty"`
}

var phoneKeyRe = regexp.MustCompile(`^\+[0-9]{6,15}$`)

// NormalizePhoneKey canonicalizes a raw phone-number string into the
// key that identifies a thread. Channel prefixes ("whatsapp:"),
// whitespace, and common punctuation are stripped; a missing leading
// "+" is restored. Anything that does not reduce to an E.164-like
// number is rejected.
func NormalizePhoneKey(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "whatsapp:")
	for _, r := range []string{" ", "-", "(", ")", "."} {
		s = strings.ReplaceAll(s, r, "")
	}
	if s == "" {
		return "", fmt.Errorf("empty phone number")
	}
	if !strings.HasPrefix(s, "+") {
		s = "+" + s
	}
	if !phoneKeyRe.MatchString(s) {
		return "", fmt.Errorf("invalid phone number %q", raw)
	}
	return s, nil
}
