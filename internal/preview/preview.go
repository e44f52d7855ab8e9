// Package preview projects memorial content onto the page shape shown
// beside the editor and on the published memorial itself.
//
// The projection is a pure function of the content passed in: it never
// mutates its input and recomputes in full on every call, so the pane
// can never drift from what the author typed.
package preview

import (
	"html/template"
	"strings"

	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/render"
)

// Placeholder copy shown while a field is still empty.
const (
	PlaceholderName     = "Your loved one's name"
	PlaceholderDates    = "Their years will appear here"
	PlaceholderHeadline = "A short headline celebrating their life"
	PlaceholderObituary = "Their story will appear here as you write."
)

const (
	dateLayout    = "January 2, 2006"
	serviceLayout = "Monday, January 2, 2006 at 3:04 PM"
)

// Page is the template view of one memorial. Sections that have no
// content stay nil or empty and are skipped by the template.
type Page struct {
	DisplayName     string
	NamePlaceholder bool

	Dates            string
	DatesPlaceholder bool

	Headline            string
	HeadlinePlaceholder bool

	FeaturedImageURL string
	CoverImageURL    string

	ObituaryHTML        template.HTML
	ObituaryPlaceholder bool

	Services  []Service
	Donation  *DonationInfo
	Gallery   []GalleryItem
	Guestbook *GuestbookNotice
	Privacy   PrivacyNotice
}

type Service struct {
	Label   string
	When    string
	Venue   string
	Address string
	Note    string
}

type DonationInfo struct {
	Charity string
	URL     string
	Note    string
}

type GalleryItem struct {
	Kind    model.MediaKind
	URL     string
	Caption string
}

type GuestbookNotice struct {
	Enabled   bool
	Moderated bool
}

type PrivacyNotice struct {
	Label     string
	CustomURL string
}

// FromDraft projects in-progress content for the live preview pane.
// Empty fields come back as neutral placeholders so the pane always
// shows a complete page. The obituary is rendered uncached: the pane
// follows every keystroke and content-addressed entries would pile up
// for text that will never be seen again.
func FromDraft(content *model.Content) *Page {
	page := &Page{}

	if name := content.Identity.DisplayName(); name != "" {
		page.DisplayName = name
	} else {
		page.DisplayName = PlaceholderName
		page.NamePlaceholder = true
	}

	if dates := formatDates(content.Identity); dates != "" {
		page.Dates = dates
	} else {
		page.Dates = PlaceholderDates
		page.DatesPlaceholder = true
	}

	if headline := strings.TrimSpace(content.Headline); headline != "" {
		page.Headline = headline
	} else {
		page.Headline = PlaceholderHeadline
		page.HeadlinePlaceholder = true
	}

	page.FeaturedImageURL = content.Identity.FeaturedImageURL
	page.CoverImageURL = content.Identity.CoverImageURL

	if obituary := strings.TrimSpace(content.Obituary); obituary != "" {
		page.ObituaryHTML = template.HTML(render.RenderObituary([]byte(obituary)))
	} else {
		page.ObituaryHTML = template.HTML("<p>" + PlaceholderObituary + "</p>")
		page.ObituaryPlaceholder = true
	}

	fillSections(page, content)
	return page
}

// FromMemorial projects published content for the public page. No
// placeholders: publishing already required the page to be complete.
// The obituary HTML was rendered once at publish time and is reused
// as-is.
func FromMemorial(m *model.Memorial) *Page {
	page := &Page{
		DisplayName:      m.Content.Identity.DisplayName(),
		Dates:            formatDates(m.Content.Identity),
		Headline:         strings.TrimSpace(m.Content.Headline),
		FeaturedImageURL: m.Content.Identity.FeaturedImageURL,
		CoverImageURL:    m.Content.Identity.CoverImageURL,
		ObituaryHTML:     m.ObituaryHTML,
	}
	fillSections(page, &m.Content)
	return page
}

func fillSections(page *Page, content *model.Content) {
	for _, svc := range content.Services {
		view := Service{
			Label:   serviceLabel(svc.Kind),
			Venue:   svc.Venue,
			Address: svc.Address,
			Note:    svc.Note,
		}
		if svc.StartsAt != nil {
			view.When = svc.StartsAt.Format(serviceLayout)
		}
		page.Services = append(page.Services, view)
	}

	if !content.Donation.Empty() {
		page.Donation = &DonationInfo{
			Charity: content.Donation.Charity,
			URL:     content.Donation.URL,
			Note:    content.Donation.Note,
		}
	}

	for _, item := range content.Gallery {
		// Half-filled rows without a URL have nothing to show yet.
		if item.URL == "" {
			continue
		}
		page.Gallery = append(page.Gallery, GalleryItem{
			Kind:    item.Kind,
			URL:     item.URL,
			Caption: item.Caption,
		})
	}

	if content.Guestbook.Enabled != nil {
		page.Guestbook = &GuestbookNotice{
			Enabled:   *content.Guestbook.Enabled,
			Moderated: content.Guestbook.Moderation == model.ModerationPre,
		}
	}

	page.Privacy = PrivacyNotice{
		Label:     privacyLabel(content.Privacy.Level),
		CustomURL: content.Privacy.CustomURL,
	}
}

// formatDates renders the life dates line. Either side may be missing
// while the draft is underway; both missing yields "".
func formatDates(identity model.Identity) string {
	birth, death := identity.BirthDate, identity.DeathDate
	switch {
	case birth != nil && death != nil:
		return birth.Format(dateLayout) + " – " + death.Format(dateLayout)
	case birth != nil:
		return "Born " + birth.Format(dateLayout)
	case death != nil:
		return "Died " + death.Format(dateLayout)
	default:
		return ""
	}
}

func serviceLabel(kind model.ServiceKind) string {
	switch kind {
	case model.ServiceVisitation:
		return "Visitation"
	case model.ServiceFuneral:
		return "Funeral service"
	case model.ServiceGraveside:
		return "Graveside service"
	case model.ServiceCelebration:
		return "Celebration of life"
	default:
		return "Service"
	}
}

func privacyLabel(level model.PrivacyLevel) string {
	switch level {
	case model.PrivacyPublic:
		return "Public"
	case model.PrivacyUnlisted:
		return "Anyone with the link"
	case model.PrivacyPassword:
		return "Password protected"
	case model.PrivacyPrivate:
		return "Only you"
	default:
		return ""
	}
}
