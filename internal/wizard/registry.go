package wizard

import (
	"github.com/evermore-app/evermore/internal/model"
)

// StepID identifies one wizard step.
type StepID string

const (
	StepIdentity  StepID = "identity"
	StepHeadline  StepID = "headline"
	StepObituary  StepID = "obituary"
	StepServices  StepID = "services"
	StepDonation  StepID = "donation"
	StepGallery   StepID = "gallery"
	StepGuestbook StepID = "guestbook"
	StepPrivacy   StepID = "privacy"
	StepReview    StepID = "review"
)

// StepPayload is the variant type for per-step projections of the
// draft. Each step's Project returns exactly the fields that step
// owns; editors and the review summary consume these, never the whole
// draft.
type StepPayload interface {
	stepPayload()
}

type IdentityPayload struct {
	model.Identity
}

type HeadlinePayload struct {
	Headline string
}

type ObituaryPayload struct {
	Obituary string
}

type ServicesPayload struct {
	Services []model.ServiceEvent
}

type DonationPayload struct {
	model.Donation
}

type GalleryPayload struct {
	Items []model.GalleryItem
}

type GuestbookPayload struct {
	model.Guestbook
}

type PrivacyPayload struct {
	model.Privacy
}

// ReviewPayload summarizes every other step for the final screen,
// with validity recomputed from the live validators.
type ReviewPayload struct {
	Lines []ReviewLine
}

type ReviewLine struct {
	Index    int
	Title    string
	Required bool
	Valid    bool
}

func (IdentityPayload) stepPayload()  {}
func (HeadlinePayload) stepPayload()  {}
func (ObituaryPayload) stepPayload()  {}
func (ServicesPayload) stepPayload()  {}
func (DonationPayload) stepPayload()  {}
func (GalleryPayload) stepPayload()   {}
func (GuestbookPayload) stepPayload() {}
func (PrivacyPayload) stepPayload()   {}
func (ReviewPayload) stepPayload()    {}

// StepDefinition describes one step: its identity, whether forward
// navigation past it requires a passing validation, the validator
// itself, and the projection of the draft into the step's own fields.
// Validators are pure and total: no I/O, no mutation, defined for any
// draft shape including an empty one.
type StepDefinition struct {
	ID       StepID
	Title    string
	Required bool
	Validate func(content *model.Content) bool
	Project  func(content *model.Content) StepPayload
}

// Registry is the ordered, immutable list of step definitions. The
// slice order is the only legal step order; all before/after/required
// decisions derive from lookups here.
type Registry struct {
	steps []StepDefinition
}

// NewRegistry builds the step list. This is the single point that
// binds step identities to validators and projections; adding a step
// means adding exactly one entry here.
func NewRegistry() *Registry {
	r := &Registry{}
	r.steps = []StepDefinition{
		{
			ID:       StepIdentity,
			Title:    "About your loved one",
			Required: true,
			Validate: validateIdentity,
			Project: func(c *model.Content) StepPayload {
				return IdentityPayload{Identity: c.Identity}
			},
		},
		{
			ID:       StepHeadline,
			Title:    "Headline",
			Required: true,
			Validate: validateHeadline,
			Project: func(c *model.Content) StepPayload {
				return HeadlinePayload{Headline: c.Headline}
			},
		},
		{
			ID:       StepObituary,
			Title:    "Obituary",
			Required: true,
			Validate: validateObituary,
			Project: func(c *model.Content) StepPayload {
				return ObituaryPayload{Obituary: c.Obituary}
			},
		},
		{
			ID:       StepServices,
			Title:    "Services",
			Required: false,
			Validate: validateOptional,
			Project: func(c *model.Content) StepPayload {
				return ServicesPayload{Services: c.Services}
			},
		},
		{
			ID:       StepDonation,
			Title:    "Donations",
			Required: false,
			Validate: validateOptional,
			Project: func(c *model.Content) StepPayload {
				return DonationPayload{Donation: c.Donation}
			},
		},
		{
			ID:       StepGallery,
			Title:    "Photo gallery",
			Required: false,
			Validate: validateOptional,
			Project: func(c *model.Content) StepPayload {
				return GalleryPayload{Items: c.Gallery}
			},
		},
		{
			ID:       StepGuestbook,
			Title:    "Guestbook",
			Required: true,
			Validate: validateGuestbook,
			Project: func(c *model.Content) StepPayload {
				return GuestbookPayload{Guestbook: c.Guestbook}
			},
		},
		{
			ID:       StepPrivacy,
			Title:    "Privacy",
			Required: true,
			Validate: validatePrivacy,
			Project: func(c *model.Content) StepPayload {
				return PrivacyPayload{Privacy: c.Privacy}
			},
		},
		{
			ID:       StepReview,
			Title:    "Review & publish",
			Required: true,
			Validate: r.validateReview,
			Project:  r.projectReview,
		},
	}
	return r
}

func (r *Registry) Len() int {
	return len(r.steps)
}

// Step returns the definition at index, reporting false when the
// index is out of range.
func (r *Registry) Step(index int) (StepDefinition, bool) {
	if index < 0 || index >= len(r.steps) {
		return StepDefinition{}, false
	}
	return r.steps[index], true
}

// Steps returns the ordered definitions. Callers must not modify the
// returned slice.
func (r *Registry) Steps() []StepDefinition {
	return r.steps
}

func (r *Registry) IndexOf(id StepID) (int, bool) {
	for i, step := range r.steps {
		if step.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Validate runs the validator of the step at index against the
// content. Out-of-range indexes validate false. Steps never visited
// validate against whatever default values exist.
func (r *Registry) Validate(index int, content *model.Content) bool {
	step, ok := r.Step(index)
	if !ok {
		return false
	}
	return step.Validate(content)
}

// FailingRequired recomputes every required step's validator (the
// review step excluded) and returns the failing ones. Completeness is
// always derived from this, never from stored progress sets, because
// earlier steps can be edited back into invalidity without being
// revisited.
func (r *Registry) FailingRequired(content *model.Content) []StepDefinition {
	var failing []StepDefinition
	for _, step := range r.steps {
		if step.ID == StepReview || !step.Required {
			continue
		}
		if !step.Validate(content) {
			failing = append(failing, step)
		}
	}
	return failing
}

// validateReview is the review step's validator: the conjunction of
// every required step's validator, recomputed on each call.
func (r *Registry) validateReview(content *model.Content) bool {
	return len(r.FailingRequired(content)) == 0
}

func (r *Registry) projectReview(content *model.Content) StepPayload {
	lines := make([]ReviewLine, 0, len(r.steps)-1)
	for i, step := range r.steps {
		if step.ID == StepReview {
			continue
		}
		lines = append(lines, ReviewLine{
			Index:    i,
			Title:    step.Title,
			Required: step.Required,
			Valid:    step.Validate(content),
		})
	}
	return ReviewPayload{Lines: lines}
}
