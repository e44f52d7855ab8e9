// Package model defines core data structures and types for the memorial application.
package model

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

type UserID string

type DraftID string

type DraftStatus string

const (
	DraftStatusActive    DraftStatus = "draft"
	DraftStatusPublished DraftStatus = "published"
)

type ServiceKind string

const (
	ServiceVisitation  ServiceKind = "visitation"
	ServiceFuneral     ServiceKind = "funeral"
	ServiceGraveside   ServiceKind = "graveside"
	ServiceCelebration ServiceKind = "celebration"
	ServiceOther       ServiceKind = "other"
)

type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

type ModerationMode string

const (
	ModerationNone ModerationMode = "none"
	ModerationPre  ModerationMode = "pre"
	ModerationPost ModerationMode = "post"
)

type NotifyPolicy string

const (
	NotifyImmediately NotifyPolicy = "immediately"
	NotifyDaily       NotifyPolicy = "daily"
	NotifyNever       NotifyPolicy = "never"
)

type PrivacyLevel string

const (
	PrivacyPublic   PrivacyLevel = "public"
	PrivacyUnlisted PrivacyLevel = "unlisted"
	PrivacyPassword PrivacyLevel = "password"
	PrivacyPrivate  PrivacyLevel = "private"
)

// Identity holds the fields owned by the identity step.
type Identity struct {
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName"`

	BirthDate *time.Time `json:"birthDate,omitempty"`
	DeathDate *time.Time `json:"deathDate,omitempty"`

	FeaturedImageURL string `json:"featuredImageUrl,omitempty"`
	CoverImageURL    string `json:"coverImageUrl,omitempty"`
}

// DisplayName joins the name parts, skipping empty ones.
func (i Identity) DisplayName() string {
	var s strings.Builder
	for _, part := range []string{i.FirstName, i.MiddleName, i.LastName} {
		if part == "" {
			continue
		}
		if s.Len() > 0 {
			s.WriteString(" ")
		}
		s.WriteString(part)
	}
	return s.String()
}

type ServiceEvent struct {
	Kind     ServiceKind `json:"kind"`
	Venue    string      `json:"venue,omitempty"`
	Address  string      `json:"address,omitempty"`
	StartsAt *time.Time  `json:"startsAt,omitempty"`
	Note     string      `json:"note,omitempty"`
}

type Donation struct {
	Charity string `json:"charity,omitempty"`
	URL     string `json:"url,omitempty"`
	Note    string `json:"note,omitempty"`
}

// Empty reports whether no donation information has been entered.
func (d Donation) Empty() bool {
	return d.Charity == "" && d.URL == "" && d.Note == ""
}

type GalleryItem struct {
	Kind    MediaKind `json:"kind"`
	URL     string    `json:"url"`
	Caption string    `json:"caption,omitempty"`
}

type Guestbook struct {
	// Enabled is nil until the owner makes an explicit choice.
	// A deliberate "off" is a valid, complete answer.
	Enabled    *bool          `json:"enabled,omitempty"`
	Moderation ModerationMode `json:"moderation,omitempty"`
	Notify     NotifyPolicy   `json:"notify,omitempty"`
}

type Privacy struct {
	Level         PrivacyLevel `json:"level,omitempty"`
	Password      string       `json:"password,omitempty"`
	CustomURL     string       `json:"customUrl,omitempty"`
	AllowIndexing bool         `json:"allowIndexing,omitempty"`
}

// Content groups every owner-editable field of a memorial. Each group is
// owned by exactly one wizard step; the same struct is rendered on the
// published page.
type Content struct {
	Identity  Identity       `json:"identity"`
	Headline  string         `json:"headline,omitempty"`
	Obituary  string         `json:"obituary,omitempty"`
	Services  []ServiceEvent `json:"services,omitempty"`
	Donation  Donation       `json:"donation"`
	Gallery   []GalleryItem  `json:"gallery,omitempty"`
	Guestbook Guestbook      `json:"guestbook"`
	Privacy   Privacy        `json:"privacy"`
}

// Clone returns a deep copy. Slices and pointer fields are duplicated so
// the copy can be mutated without aliasing the original.
func (c Content) Clone() Content {
	out := c
	out.Identity.BirthDate = cloneTime(c.Identity.BirthDate)
	out.Identity.DeathDate = cloneTime(c.Identity.DeathDate)
	if c.Services != nil {
		out.Services = make([]ServiceEvent, len(c.Services))
		copy(out.Services, c.Services)
		for idx, svc := range c.Services {
			out.Services[idx].StartsAt = cloneTime(svc.StartsAt)
		}
	}
	if c.Gallery != nil {
		out.Gallery = slices.Clone(c.Gallery)
	}
	if c.Guestbook.Enabled != nil {
		enabled := *c.Guestbook.Enabled
		out.Guestbook.Enabled = &enabled
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// StepSet is a set of step indexes. It marshals as a sorted JSON array so
// serialized drafts are byte-stable for equal sets.
type StepSet map[int]struct{}

func NewStepSet(indexes ...int) StepSet {
	s := StepSet{}
	for _, idx := range indexes {
		s[idx] = struct{}{}
	}
	return s
}

func (s StepSet) Has(idx int) bool {
	_, ok := s[idx]
	return ok
}

func (s StepSet) Add(idx int) {
	s[idx] = struct{}{}
}

func (s StepSet) Remove(idx int) {
	delete(s, idx)
}

func (s StepSet) Len() int {
	return len(s)
}

// Indexes returns the members in ascending order.
func (s StepSet) Indexes() []int {
	out := make([]int, 0, len(s))
	for idx := range s {
		out = append(out, idx)
	}
	slices.Sort(out)
	return out
}

func (s StepSet) Clone() StepSet {
	out := make(StepSet, len(s))
	for idx := range s {
		out[idx] = struct{}{}
	}
	return out
}

func (s StepSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Indexes())
}

func (s *StepSet) UnmarshalJSON(data []byte) error {
	var indexes []int
	if err := json.Unmarshal(data, &indexes); err != nil {
		return err
	}
	*s = NewStepSet(indexes...)
	return nil
}

// Progress tracks where the owner is in the wizard and which steps have
// been validated. A step is never in both sets at once.
type Progress struct {
	CurrentStep int     `json:"currentStep"`
	Completed   StepSet `json:"completed"`
	Errored     StepSet `json:"errored"`
}

func NewProgress() Progress {
	return Progress{
		Completed: StepSet{},
		Errored:   StepSet{},
	}
}

// MarkCompleted records a passing validation for the step and drops any
// stale error mark.
func (p *Progress) MarkCompleted(idx int) {
	p.ensure()
	p.Completed.Add(idx)
	p.Errored.Remove(idx)
}

// MarkErrored records a failing validation for the step and drops any
// stale completion mark.
func (p *Progress) MarkErrored(idx int) {
	p.ensure()
	p.Errored.Add(idx)
	p.Completed.Remove(idx)
}

// Reset returns the step to the untracked (upcoming) state.
func (p *Progress) Reset(idx int) {
	p.ensure()
	p.Completed.Remove(idx)
	p.Errored.Remove(idx)
}

func (p *Progress) ensure() {
	if p.Completed == nil {
		p.Completed = StepSet{}
	}
	if p.Errored == nil {
		p.Errored = StepSet{}
	}
}

func (p Progress) Clone() Progress {
	out := p
	out.Completed = p.Completed.Clone()
	out.Errored = p.Errored.Clone()
	return out
}

// Draft is a memorial under construction. The aggregate the wizard owns:
// content, progress metadata, and lifecycle status.
type Draft struct {
	ID     DraftID
	Owner  UserID
	Status DraftStatus

	Content  Content
	Progress Progress

	CreatedDate  time.Time
	ModifiedDate time.Time
}

// DisplayName returns a human label for draft pickers. Falls back when
// the identity step has not been filled in yet.
func (d *Draft) DisplayName() string {
	if name := d.Content.Identity.DisplayName(); name != "" {
		return name
	}
	return "Untitled memorial"
}

func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	out := *d
	out.Content = d.Content.Clone()
	out.Progress = d.Progress.Clone()
	return &out
}

// ContentPatch carries a step-scoped partial update. A nil group means
// "no change"; a set group replaces the draft's group wholesale, which
// gives last-write-wins per field because every step's editor posts its
// full field set.
type ContentPatch struct {
	Identity  *Identity
	Headline  *string
	Obituary  *string
	Services  *[]ServiceEvent
	Donation  *Donation
	Gallery   *[]GalleryItem
	Guestbook *Guestbook
	Privacy   *Privacy
}

// Empty reports whether the patch carries no changes at all.
func (p ContentPatch) Empty() bool {
	return p.Identity == nil && p.Headline == nil && p.Obituary == nil &&
		p.Services == nil && p.Donation == nil && p.Gallery == nil &&
		p.Guestbook == nil && p.Privacy == nil
}

// Apply merges the patch into the content.
func (c *Content) Apply(p ContentPatch) {
	if p.Identity != nil {
		c.Identity = *p.Identity
	}
	if p.Headline != nil {
		c.Headline = *p.Headline
	}
	if p.Obituary != nil {
		c.Obituary = *p.Obituary
	}
	if p.Services != nil {
		c.Services = *p.Services
	}
	if p.Donation != nil {
		c.Donation = *p.Donation
	}
	if p.Gallery != nil {
		c.Gallery = *p.Gallery
	}
	if p.Guestbook != nil {
		c.Guestbook = *p.Guestbook
	}
	if p.Privacy != nil {
		c.Privacy = *p.Privacy
	}
}
