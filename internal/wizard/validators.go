package wizard

import (
	"strings"
	"unicode/utf8"

	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/util"
)

const (
	headlineMinLength = 10
	obituaryMinLength = 50
)

func validateIdentity(c *model.Content) bool {
	id := c.Identity
	if strings.TrimSpace(id.FirstName) == "" || strings.TrimSpace(id.LastName) == "" {
		return false
	}
	if id.BirthDate == nil || id.DeathDate == nil {
		return false
	}
	// Strictly before; equal dates are rejected.
	if !id.BirthDate.Before(*id.DeathDate) {
		return false
	}
	return id.FeaturedImageURL != ""
}

func validateHeadline(c *model.Content) bool {
	return utf8.RuneCountInString(strings.TrimSpace(c.Headline)) >= headlineMinLength
}

func validateObituary(c *model.Content) bool {
	return utf8.RuneCountInString(strings.TrimSpace(c.Obituary)) >= obituaryMinLength
}

// validateOptional backs the steps whose content is optional: zero
// items is a pass, so these never refuse a forward navigation.
func validateOptional(*model.Content) bool {
	return true
}

// validateGuestbook requires an explicit choice. A deliberate "off"
// is complete; an untouched nil is not.
func validateGuestbook(c *model.Content) bool {
	return c.Guestbook.Enabled != nil
}

func validatePrivacy(c *model.Content) bool {
	switch c.Privacy.Level {
	case model.PrivacyPublic, model.PrivacyUnlisted, model.PrivacyPassword, model.PrivacyPrivate:
	default:
		return false
	}
	if c.Privacy.CustomURL == "" || !util.IsValidSlug(c.Privacy.CustomURL) {
		return false
	}
	if c.Privacy.Level == model.PrivacyPassword && c.Privacy.Password == "" {
		return false
	}
	return true
}
