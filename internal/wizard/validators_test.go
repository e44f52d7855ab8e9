package wizard

import (
	"strings"
	"testing"
	"time"

	"github.com/evermore-app/evermore/internal/model"
)

func datePtr(year, month, day int) *time.Time {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

func completeIdentity() model.Identity {
	return model.Identity{
		FirstName:        "Rosa",
		LastName:         "Alvarez",
		BirthDate:        datePtr(1931, 5, 14),
		DeathDate:        datePtr(2024, 11, 2),
		FeaturedImageURL: "/media/rosa.jpg",
	}
}

func TestValidateIdentity(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Identity)
		want   bool
	}{
		{"Complete", func(*model.Identity) {}, true},
		{"MissingFirstName", func(id *model.Identity) { id.FirstName = "" }, false},
		{"MissingLastName", func(id *model.Identity) { id.LastName = "" }, false},
		{"WhitespaceLastName", func(id *model.Identity) { id.LastName = "   " }, false},
		{"MissingBirthDate", func(id *model.Identity) { id.BirthDate = nil }, false},
		{"MissingDeathDate", func(id *model.Identity) { id.DeathDate = nil }, false},
		{"BirthAfterDeath", func(id *model.Identity) {
			id.BirthDate, id.DeathDate = id.DeathDate, id.BirthDate
		}, false},
		{"EqualDates", func(id *model.Identity) { id.DeathDate = id.BirthDate }, false},
		{"MissingFeaturedImage", func(id *model.Identity) { id.FeaturedImageURL = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := completeIdentity()
			tt.mutate(&id)
			content := model.Content{Identity: id}
			if got := validateIdentity(&content); got != tt.want {
				t.Errorf("validateIdentity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateHeadline(t *testing.T) {
	tests := []struct {
		name     string
		headline string
		want     bool
	}{
		{"Empty", "", false},
		{"NineChars", strings.Repeat("a", 9), false},
		{"TenChars", strings.Repeat("a", 10), true},
		{"PaddedNine", "  " + strings.Repeat("a", 9) + "  ", false},
		{"Multibyte", strings.Repeat("å", 10), true},
		{"Sentence", "A life of quiet generosity", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := model.Content{Headline: tt.headline}
			if got := validateHeadline(&content); got != tt.want {
				t.Errorf("validateHeadline(%q) = %v, want %v", tt.headline, got, tt.want)
			}
		})
	}
}

func TestValidateObituary(t *testing.T) {
	// The boundary sits exactly at the minimum length.
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"Empty", "", false},
		{"FortyNineChars", strings.Repeat("x", 49), false},
		{"FiftyChars", strings.Repeat("x", 50), true},
		{"LongText", strings.Repeat("Rosa taught children to read. ", 10), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := model.Content{Obituary: tt.text}
			if got := validateObituary(&content); got != tt.want {
				t.Errorf("validateObituary(len %d) = %v, want %v", len(tt.text), got, tt.want)
			}
		})
	}
}

func TestValidateGuestbook(t *testing.T) {
	var content model.Content
	if validateGuestbook(&content) {
		t.Error("An unset guestbook choice should not validate")
	}

	off := false
	content.Guestbook.Enabled = &off
	if !validateGuestbook(&content) {
		t.Error("Explicitly disabling the guestbook is a complete choice")
	}

	on := true
	content.Guestbook.Enabled = &on
	if !validateGuestbook(&content) {
		t.Error("Enabling the guestbook should validate")
	}
}

func TestValidatePrivacy(t *testing.T) {
	tests := []struct {
		name    string
		privacy model.Privacy
		want    bool
	}{
		{"Empty", model.Privacy{}, false},
		{"LevelOnly", model.Privacy{Level: model.PrivacyPublic}, false},
		{"UnknownLevel", model.Privacy{Level: "friends-only", CustomURL: "remembering-rosa"}, false},
		{"InvalidURL", model.Privacy{Level: model.PrivacyPublic, CustomURL: "Not A Slug!"}, false},
		{"Valid", model.Privacy{Level: model.PrivacyPublic, CustomURL: "remembering-rosa"}, true},
		{"Unlisted", model.Privacy{Level: model.PrivacyUnlisted, CustomURL: "remembering-rosa"}, true},
		{"PasswordWithoutPassword", model.Privacy{Level: model.PrivacyPassword, CustomURL: "remembering-rosa"}, false},
		{"PasswordWithPassword", model.Privacy{Level: model.PrivacyPassword, CustomURL: "remembering-rosa", Password: "lilacs"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := model.Content{Privacy: tt.privacy}
			if got := validatePrivacy(&content); got != tt.want {
				t.Errorf("validatePrivacy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOptionalStepsAlwaysValidate(t *testing.T) {
	registry := NewRegistry()
	var empty model.Content

	for _, id := range []StepID{StepServices, StepDonation, StepGallery} {
		index, ok := registry.IndexOf(id)
		if !ok {
			t.Fatalf("Step %s missing from registry", id)
		}
		if !registry.Validate(index, &empty) {
			t.Errorf("Optional step %s should validate with no content", id)
		}
	}
}

func TestValidatorsTotalOnEmptyDraft(t *testing.T) {
	// Validating steps never visited must not panic, whatever the
	// draft's shape.
	registry := NewRegistry()
	var empty model.Content

	for i := 0; i < registry.Len(); i++ {
		step, _ := registry.Step(i)
		got := registry.Validate(i, &empty)
		if step.Required && step.ID != StepReview && got {
			t.Errorf("Required step %s should not validate empty content", step.ID)
		}
		if !step.Required && !got {
			t.Errorf("Optional step %s should validate empty content", step.ID)
		}
	}
}
