package wizard

import (
	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/util"
)

// Form-value helpers for the editor templates. html/template has no
// date formatting, so the payloads expose their fields in the shapes
// the inputs need.

func (p IdentityPayload) BirthDateValue() string {
	return util.FormatCivilDate(p.BirthDate)
}

func (p IdentityPayload) DeathDateValue() string {
	return util.FormatCivilDate(p.DeathDate)
}

// ServiceRow is one service event shaped for form inputs.
type ServiceRow struct {
	Kind    model.ServiceKind
	Venue   string
	Address string
	Date    string
	Time    string
	Note    string
}

// Rows returns the service events plus one blank trailing row to type
// the next service into.
func (p ServicesPayload) Rows() []ServiceRow {
	rows := make([]ServiceRow, 0, len(p.Services)+1)
	for _, svc := range p.Services {
		row := ServiceRow{
			Kind:    svc.Kind,
			Venue:   svc.Venue,
			Address: svc.Address,
			Note:    svc.Note,
		}
		if svc.StartsAt != nil {
			row.Date = svc.StartsAt.Format("2006-01-02")
			row.Time = svc.StartsAt.Format("15:04")
		}
		rows = append(rows, row)
	}
	return append(rows, ServiceRow{Kind: model.ServiceFuneral})
}

// GalleryRow is one gallery item shaped for form inputs.
type GalleryRow struct {
	Kind    model.MediaKind
	URL     string
	Caption string
}

func (p GalleryPayload) Rows() []GalleryRow {
	rows := make([]GalleryRow, 0, len(p.Items)+1)
	for _, item := range p.Items {
		rows = append(rows, GalleryRow{Kind: item.Kind, URL: item.URL, Caption: item.Caption})
	}
	return append(rows, GalleryRow{Kind: model.MediaPhoto})
}

// EnabledValue keeps the guestbook choice tri-state in the form:
// unanswered renders neither radio checked.
func (p GuestbookPayload) EnabledValue() string {
	if p.Enabled == nil {
		return ""
	}
	if *p.Enabled {
		return "true"
	}
	return "false"
}
