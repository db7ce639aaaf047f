// Package label turns arbitrary session identities into DNS-safe
// subdomain labels. Sanitization is pure and deterministic: the same
// identity always yields the same label.
package label

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// MaxLen is the DNS label length limit (RFC 1035).
	MaxLen = 63

	// FallbackPrefix prefixes the hash-derived label used when
	// sanitization strips an identity down to nothing.
	FallbackPrefix = "branch-"

	// boundaryWindow is how far back from a truncation point we look
	// for a hyphen, so truncation lands on a token boundary instead of
	// cutting a word in half.
	boundaryWindow = 15
)

// separatorReplacer maps common branch-name separators to hyphens.
// Anything else outside [a-z0-9-] is stripped, not hyphenated.
var separatorReplacer = strings.NewReplacer(
	"/", "-",
	"_", "-",
	"@", "-",
	"#", "-",
	":", "-",
	"~", "-",
)

// Sanitize maps an identity to a valid DNS label: lowercase [a-z0-9-],
// 1-63 characters, no leading or trailing hyphen. An identity that
// sanitizes to empty (e.g. all emoji) falls back to a deterministic
// hash-derived label so distinct inputs stay distinguishable.
func Sanitize(identity string) string {
	s := strings.ToLower(identity)
	s = separatorReplacer.Replace(s)
	s = stripInvalid(s)
	s = collapseHyphens(s)
	s = strings.Trim(s, "-")
	s = truncate(s)

	if s == "" {
		return FallbackPrefix + shortHash(identity)
	}
	return s
}

// stripInvalid removes every character outside [a-z0-9-].
func stripInvalid(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		isAZ := r >= 'a' && r <= 'z'
		is09 := r >= '0' && r <= '9'
		if isAZ || is09 || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapseHyphens reduces runs of consecutive hyphens to a single one.
func collapseHyphens(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevDash := false
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			if prevDash {
				continue
			}
			prevDash = true
		} else {
			prevDash = false
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// truncate enforces MaxLen, preferring to cut at a hyphen near the
// boundary so the label does not end mid-token.
func truncate(s string) string {
	if len(s) <= MaxLen {
		return s
	}
	s = s[:MaxLen]
	if i := strings.LastIndexByte(s, '-'); i >= MaxLen-boundaryWindow {
		s = s[:i]
	}
	return strings.TrimRight(s, "-")
}

// shortHash returns the first 8 hex characters of the sha256 digest of
// the original identity.
func shortHash(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])[:8]
}
