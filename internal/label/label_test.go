package label

import (
	"regexp"
	"strings"
	"testing"
)

var validLabel = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		want     string
	}{
		{"simple branch", "main", "main"},
		{"slash separator", "feature/add-login", "feature-add-login"},
		{"underscore separator", "fix_typo", "fix-typo"},
		{"colon and dots", "release:1.0.0", "release-100"},
		{"mixed case", "Feature/NewHero", "feature-newhero"},
		{"at sign", "deps@next", "deps-next"},
		{"numeric only", "20260831", "20260831"},
		{"leading separator", "/hotfix", "hotfix"},
		{"trailing separator", "hotfix/", "hotfix"},
		{"consecutive separators", "feat//nav__menu", "feat-nav-menu"},
		{"spaces stripped", "my branch", "mybranch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.identity); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.identity, got, tt.want)
			}
		})
	}
}

func TestSanitize_Deterministic(t *testing.T) {
	inputs := []string{"feature/add-login", "🚀🚀🚀", "", "weird!!input??"}
	for _, in := range inputs {
		first := Sanitize(in)
		second := Sanitize(in)
		if first != second {
			t.Errorf("Sanitize(%q) not deterministic: %q vs %q", in, first, second)
		}
	}
}

func TestSanitize_EmojiFallsBackToHash(t *testing.T) {
	got := Sanitize("🚀✨🎉")
	pattern := regexp.MustCompile(`^branch-[0-9a-f]{8}$`)
	if !pattern.MatchString(got) {
		t.Errorf("Sanitize(emoji) = %q, want match of %s", got, pattern)
	}

	// Distinct degenerate inputs must not collide.
	other := Sanitize("日本語ブランチ")
	if got == other {
		t.Errorf("distinct degenerate identities collided on %q", got)
	}
}

func TestSanitize_LongIdentityTruncated(t *testing.T) {
	identity := strings.Repeat("abcde-", 20) // 120 chars, valid alphabet
	got := Sanitize(identity)

	if len(got) > MaxLen {
		t.Errorf("len(Sanitize(long)) = %d, want <= %d", len(got), MaxLen)
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("Sanitize(long) = %q, must not end with hyphen", got)
	}
}

func TestSanitize_TruncationPrefersHyphenBoundary(t *testing.T) {
	// 60 chars of token, then a hyphen, then a token that crosses the
	// 63-char limit; the cut should land on the hyphen, not mid-token.
	identity := strings.Repeat("a", 60) + "-longtail"
	got := Sanitize(identity)

	if got != strings.Repeat("a", 60) {
		t.Errorf("Sanitize(%q) = %q, want %q", identity, got, strings.Repeat("a", 60))
	}
}

func TestSanitize_AlwaysDNSValid(t *testing.T) {
	inputs := []string{
		"main",
		"feature/add-login",
		"release:1.0.0",
		"🚀✨🎉",
		"---",
		"///",
		"",
		"UPPER_case/Mix@2",
		strings.Repeat("x", 200),
		strings.Repeat("-", 80) + "a",
	}

	for _, in := range inputs {
		got := Sanitize(in)
		if !validLabel.MatchString(got) {
			t.Errorf("Sanitize(%q) = %q, not a valid DNS label", in, got)
		}
		if len(got) > MaxLen {
			t.Errorf("Sanitize(%q) = %q, exceeds %d chars", in, got, MaxLen)
		}
	}
}
