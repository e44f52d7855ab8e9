package model

import (
	"html/template"
	"time"
)

type MemorialID string

// Memorial is the published projection of a draft. It carries the same
// content groups plus the rendered obituary so page handlers do not
// re-render markdown on every request.
type Memorial struct {
	ID      MemorialID
	DraftID DraftID
	Owner   UserID

	// Slug is the public URL path segment. Defaults to the memorial ID
	// when the owner never chose a custom URL.
	Slug string

	Content Content

	ObituaryHTML template.HTML

	// Used for cache busting.
	// We cannot use the rendered HTML because templates inject per-request data.
	ContentHash string

	PublishedDate time.Time
	ModifiedDate  time.Time
}

// Title returns the page title for the memorial.
func (m *Memorial) Title() string {
	if m.Content.Headline != "" {
		return m.Content.Headline
	}
	if name := m.Content.Identity.DisplayName(); name != "" {
		return "In memory of " + name
	}
	return "Memorial"
}

type GuestbookEntryID string

type GuestbookEntryStatus string

const (
	GuestbookPending  GuestbookEntryStatus = "pending"
	GuestbookApproved GuestbookEntryStatus = "approved"
	GuestbookRejected GuestbookEntryStatus = "rejected"
)

// GuestbookEntry is a visitor message left on a published memorial.
type GuestbookEntry struct {
	ID         GuestbookEntryID
	MemorialID MemorialID

	AuthorName string
	Message    string

	Status GuestbookEntryStatus

	CreatedDate time.Time
}

// Years formats the birth and death years for the header, for example
// "1931 - 2024". Either side may be missing on legacy imports.
func (m *Memorial) Years() string {
	birth, death := "", ""
	if m.Content.Identity.BirthDate != nil {
		birth = m.Content.Identity.BirthDate.Format("2006")
	}
	if m.Content.Identity.DeathDate != nil {
		death = m.Content.Identity.DeathDate.Format("2006")
	}
	if birth == "" && death == "" {
		return ""
	}
	return birth + " - " + death
}
