package wsoauth

import (
	"strings"
	"unicode"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
)

// usernameMaxBytes matches the host's column width for usernames.
const usernameMaxBytes = 255

// Characters the host never allows in a username, taken from MediaWiki's
// $wgInvalidUsernameCharacters plus title-breaking characters.
const usernameDisallowed = "#<>[]|{}/@:"

var usernameCharsRule = validation.NewStringRule(func(s string) bool {
	if strings.ContainsAny(s, usernameDisallowed) {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return strings.TrimSpace(s) == s && !strings.Contains(s, "  ")
}, "must not contain reserved or control characters")

// NormalizeUsername uppercases the first letter of a remote username the
// way the host canonicalizes account names.
func NormalizeUsername(name string) string {
	if name == "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError && size <= 1 {
		return name
	}
	upper := unicode.ToUpper(r)
	if upper == r {
		return name
	}
	return string(upper) + name[size:]
}

// ValidUsername reports whether a normalized username is acceptable to the
// host. Hosts with stricter rules can replace it via WithUsernameValidator.
func ValidUsername(name string) error {
	if err := validation.Validate(name,
		validation.Required,
		validation.Length(1, usernameMaxBytes),
		usernameCharsRule,
	); err != nil {
		return ErrInvalidUsername.Clone().WithMetadata(map[string]any{
			"username": name,
			"reason":   err.Error(),
		})
	}
	return nil
}
