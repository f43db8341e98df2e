// Package domain holds the shared types and validation rules for short links
// and the typed error taxonomy used across the service.
package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxCodeLength is the longest short code accepted on write.
const MaxCodeLength = 128

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_./-]*$`)

var allowedTargetSchemes = []string{"http://", "https://"}

// ShortLink is a persisted code-to-target mapping.
type ShortLink struct {
	Code       string
	Target     string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	Password   string
	ClickCount uint64
}

// Expired reports whether the link is expired as of now. A link whose
// ExpiresAt equals now is treated as expired (strict, not grace).
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// ValidateCodeFormat checks the character class and length rules from the
// data model, independent of reserved-prefix collisions.
func ValidateCodeFormat(code string) error {
	if len(code) > MaxCodeLength {
		return NewValidationError("code", "exceeds maximum length of "+strconv.Itoa(MaxCodeLength))
	}
	if !codePattern.MatchString(code) {
		return NewValidationError("code", "contains characters outside [A-Za-z0-9_./-]")
	}
	return nil
}

// ValidateTarget checks that target is an absolute http(s) URL.
func ValidateTarget(target string) error {
	if target == "" {
		return NewValidationError("target", "must not be empty")
	}
	for _, scheme := range allowedTargetSchemes {
		if strings.HasPrefix(target, scheme) {
			return nil
		}
	}
	return NewValidationError("target", "must begin with http:// or https://")
}

// ValidateReservedPrefix rejects a code that equals or starts with any
// reserved administrative prefix (admin/health/frontend), each compared as
// "prefix" or "prefix/...".
func ValidateReservedPrefix(code string, reservedPrefixes []string) error {
	for _, prefix := range reservedPrefixes {
		prefix = strings.Trim(prefix, "/")
		if prefix == "" {
			continue
		}
		if code == prefix || strings.HasPrefix(code, prefix+"/") {
			return NewValidationError("code", "collides with reserved prefix "+prefix)
		}
	}
	return nil
}

// Validate runs the full write-time validation for a new or updated link.
func Validate(code, target string, reservedPrefixes []string) error {
	if err := ValidateCodeFormat(code); err != nil {
		return err
	}
	if err := ValidateReservedPrefix(code, reservedPrefixes); err != nil {
		return err
	}
	return ValidateTarget(target)
}
