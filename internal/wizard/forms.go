package wizard

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/util"
)

// ParseStepForm translates one step's posted form values into a
// content patch. Every step's editor posts its full field set, so the
// patch replaces that step's group wholesale (last write wins per
// field). The switch is exhaustive over step ids; an unknown id is a
// programming error surfaced to the caller.
func ParseStepForm(id StepID, form url.Values) (model.ContentPatch, error) {
	switch id {
	case StepIdentity:
		identity, err := parseIdentityForm(form)
		if err != nil {
			return model.ContentPatch{}, err
		}
		return model.ContentPatch{Identity: identity}, nil
	case StepHeadline:
		headline := strings.TrimSpace(form.Get("headline"))
		return model.ContentPatch{Headline: &headline}, nil
	case StepObituary:
		obituary := form.Get("obituary")
		return model.ContentPatch{Obituary: &obituary}, nil
	case StepServices:
		services, err := parseServicesForm(form)
		if err != nil {
			return model.ContentPatch{}, err
		}
		return model.ContentPatch{Services: services}, nil
	case StepDonation:
		return model.ContentPatch{Donation: &model.Donation{
			Charity: strings.TrimSpace(form.Get("donation-charity")),
			URL:     strings.TrimSpace(form.Get("donation-url")),
			Note:    strings.TrimSpace(form.Get("donation-note")),
		}}, nil
	case StepGallery:
		return model.ContentPatch{Gallery: parseGalleryForm(form)}, nil
	case StepGuestbook:
		return model.ContentPatch{Guestbook: parseGuestbookForm(form)}, nil
	case StepPrivacy:
		return model.ContentPatch{Privacy: &model.Privacy{
			Level:         model.PrivacyLevel(form.Get("privacy-level")),
			Password:      form.Get("privacy-password"),
			CustomURL:     strings.TrimSpace(strings.ToLower(form.Get("privacy-custom-url"))),
			AllowIndexing: form.Get("privacy-allow-indexing") == "on",
		}}, nil
	case StepReview:
		// The review step owns no fields.
		return model.ContentPatch{}, nil
	default:
		return model.ContentPatch{}, fmt.Errorf("unknown step id %q", id)
	}
}

func parseIdentityForm(form url.Values) (*model.Identity, error) {
	identity := &model.Identity{
		FirstName:  strings.TrimSpace(form.Get("first-name")),
		MiddleName: strings.TrimSpace(form.Get("middle-name")),
		LastName:   strings.TrimSpace(form.Get("last-name")),

		FeaturedImageURL: strings.TrimSpace(form.Get("featured-image-url")),
		CoverImageURL:    strings.TrimSpace(form.Get("cover-image-url")),
	}

	var err error
	if identity.BirthDate, err = parseOptionalDate(form.Get("birth-date")); err != nil {
		return nil, fmt.Errorf("birth date: %w", err)
	}
	if identity.DeathDate, err = parseOptionalDate(form.Get("death-date")); err != nil {
		return nil, fmt.Errorf("death date: %w", err)
	}

	return identity, nil
}

func parseServicesForm(form url.Values) (*[]model.ServiceEvent, error) {
	kinds := form["service-kind"]
	venues := form["service-venue"]
	addresses := form["service-address"]
	dates := form["service-date"]
	times := form["service-time"]
	notes := form["service-note"]

	services := make([]model.ServiceEvent, 0, len(kinds))
	for i, kind := range kinds {
		svc := model.ServiceEvent{
			Kind:    model.ServiceKind(kind),
			Venue:   strings.TrimSpace(at(venues, i)),
			Address: strings.TrimSpace(at(addresses, i)),
			Note:    strings.TrimSpace(at(notes, i)),
		}

		startsAt, err := parseServiceStart(at(dates, i), at(times, i))
		if err != nil {
			return nil, fmt.Errorf("service %d: %w", i+1, err)
		}
		svc.StartsAt = startsAt

		// A row with nothing filled in is an empty template row, not
		// a service.
		if svc.Venue == "" && svc.Address == "" && svc.Note == "" && svc.StartsAt == nil {
			continue
		}
		services = append(services, svc)
	}
	return &services, nil
}

func parseGalleryForm(form url.Values) *[]model.GalleryItem {
	kinds := form["gallery-kind"]
	urls := form["gallery-url"]
	captions := form["gallery-caption"]

	items := make([]model.GalleryItem, 0, len(urls))
	for i, itemURL := range urls {
		itemURL = strings.TrimSpace(itemURL)
		if itemURL == "" {
			continue
		}
		kind := model.MediaKind(at(kinds, i))
		if kind == "" {
			kind = model.MediaPhoto
		}
		items = append(items, model.GalleryItem{
			Kind:    kind,
			URL:     itemURL,
			Caption: strings.TrimSpace(at(captions, i)),
		})
	}
	return &items
}

// parseGuestbookForm keeps the enabled flag tri-state: an untouched
// form posts no value and leaves the choice unmade.
func parseGuestbookForm(form url.Values) *model.Guestbook {
	guestbook := &model.Guestbook{
		Moderation: model.ModerationMode(form.Get("guestbook-moderation")),
		Notify:     model.NotifyPolicy(form.Get("guestbook-notify")),
	}
	switch form.Get("guestbook-enabled") {
	case "true":
		enabled := true
		guestbook.Enabled = &enabled
	case "false":
		enabled := false
		guestbook.Enabled = &enabled
	}
	return guestbook
}

func parseOptionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := util.ParseCivilDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseServiceStart(date, clock string) (*time.Time, error) {
	if strings.TrimSpace(date) == "" {
		return nil, nil
	}
	layout := time.DateOnly
	value := date
	if strings.TrimSpace(clock) != "" {
		layout = time.DateOnly + " 15:04"
		value = date + " " + clock
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
