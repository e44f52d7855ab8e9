package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/store"
	"github.com/felixgeelhaar/statekit"
)

// InitOutcome tells the caller where Initialize stopped.
type InitOutcome int

const (
	// InitReady means a draft was hydrated or created; editing may begin.
	InitReady InitOutcome = iota
	// InitResumeOffered means an unfinished draft exists and the owner
	// must choose Resume or StartNew before anything else.
	InitResumeOffered
)

// Controller owns one draft per session. It is the only writer of the
// draft: step editors and the preview both read through it, mutations
// come in through UpdateDraft, and persistence goes out through the
// autosave scheduler. All operations serialize on one mutex, so
// mutations apply in call order.
type Controller struct {
	mu sync.Mutex

	registry  *Registry
	drafts    store.DraftStore
	memorials store.MemorialRepository

	owner   model.UserID
	draft   *model.Draft
	draftID model.DraftID // set once at hydration, never changes

	sched  *AutosaveScheduler
	interp *statekit.Interpreter[sessionContext]

	resumeCandidate *model.Draft
	mobileView      View
	closed          bool
}

func NewController(registry *Registry, drafts store.DraftStore, memorials store.MemorialRepository, owner model.UserID, debounce time.Duration) (*Controller, error) {
	c := &Controller{
		registry:   registry,
		drafts:     drafts,
		memorials:  memorials,
		owner:      owner,
		mobileView: ViewEditor,
	}
	c.sched = NewAutosaveScheduler(debounce, c.persistDraft)

	interp, err := buildSessionMachine(c)
	if err != nil {
		return nil, fmt.Errorf("error building session machine: %w", err)
	}
	c.interp = interp
	c.interp.Start()

	return c, nil
}

// persistDraft is the scheduler's save function: one idempotent patch
// carrying the full content and progress.
func (c *Controller) persistDraft(ctx context.Context, content model.Content, progress model.Progress) error {
	return c.drafts.PatchDraft(ctx, c.draftID, store.DraftPatch{
		Content:  &content,
		Progress: &progress,
	})
}

// Initialize brings the session up. With an id, that draft is fetched
// and hydrated; a missing draft is fatal. Without one, the owner's
// unfinished drafts decide: none means a new draft is created, at
// least one means the most recently touched is offered for
// resumption and the caller must settle the choice with Resume or
// StartNew before any other operation is accepted.
func (c *Controller) Initialize(ctx context.Context, existingID model.DraftID) (InitOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != SessionIdle {
		return 0, ErrAlreadyInitialized
	}
	c.send(eventInitialize)

	if existingID != "" {
		c.send(eventHydrate)
		draft, err := c.drafts.GetDraft(ctx, existingID)
		if err != nil {
			c.send(eventFail)
			return 0, fmt.Errorf("error loading draft %s: %w", existingID, err)
		}
		if draft.Owner != c.owner {
			c.send(eventFail)
			return 0, fmt.Errorf("draft %s: %w", existingID, store.ErrNotFound)
		}
		c.hydrateLocked(draft)
		c.send(eventReady)
		return InitReady, nil
	}

	unfinished, err := c.drafts.ListUnfinishedDrafts(ctx, c.owner)
	if err != nil {
		c.send(eventFail)
		return 0, fmt.Errorf("error listing drafts: %w", err)
	}
	if len(unfinished) > 0 {
		candidate := unfinished[0]
		c.resumeCandidate = &candidate
		c.send(eventOfferResume)
		return InitResumeOffered, nil
	}

	return c.createLocked(ctx)
}

// Resume settles the initialization choice by re-fetching and
// hydrating the offered draft. A draft deleted since the offer is a
// fatal load error, the same as a bad id at Initialize.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != SessionChoosing {
		return ErrNoChoicePending
	}
	candidate := c.resumeCandidate
	c.resumeCandidate = nil
	c.send(eventHydrate)

	draft, err := c.drafts.GetDraft(ctx, candidate.ID)
	if err != nil {
		c.send(eventFail)
		return fmt.Errorf("error loading draft %s: %w", candidate.ID, err)
	}
	c.hydrateLocked(draft)
	c.send(eventReady)
	return nil
}

// StartNew settles the initialization choice by creating a fresh
// draft. The offered draft is left untouched for a later session.
func (c *Controller) StartNew(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != SessionChoosing {
		return ErrNoChoicePending
	}
	c.resumeCandidate = nil
	_, err := c.createLocked(ctx)
	return err
}

func (c *Controller) createLocked(ctx context.Context) (InitOutcome, error) {
	c.send(eventCreate)
	draft, err := c.drafts.CreateDraft(ctx, c.owner)
	if err != nil {
		c.send(eventFail)
		return 0, fmt.Errorf("error creating draft: %w", err)
	}
	c.hydrateLocked(draft)
	c.send(eventReady)
	return InitReady, nil
}

func (c *Controller) hydrateLocked(draft *model.Draft) {
	c.draft = draft.Clone()
	c.draftID = c.draft.ID
	c.sched.Reset(c.draft.Content, c.draft.Progress)
	c.mobileView = ViewEditor
}

// GoTo navigates to the step at target. Out-of-range targets are a
// no-op. Backward navigation is unconditional. Forward navigation
// first validates the current step: a failing required step is marked
// errored and refused with a StepInvalidError, a passing one is
// marked complete. Any executed navigation persists immediately, and
// a failed persist is reported without rolling the navigation back.
func (c *Controller) GoTo(ctx context.Context, target int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != SessionReady {
		return ErrNotReady
	}
	if target < 0 || target >= c.registry.Len() {
		return nil
	}
	current := c.draft.Progress.CurrentStep
	if target == current {
		return nil
	}

	if target > current {
		step, _ := c.registry.Step(current)
		if !step.Validate(&c.draft.Content) {
			// Only required steps can land here; optional validators
			// always pass.
			c.draft.Progress.MarkErrored(current)
			wizardLogger.Debug().
				Str("draft_id", string(c.draftID)).
				Int("step", current).
				Msg("Forward navigation refused, step incomplete")
			return &StepInvalidError{Index: current, Title: step.Title}
		}
		c.draft.Progress.MarkCompleted(current)
	}

	c.draft.Progress.CurrentStep = target
	c.mobileView = ViewEditor

	// The step being left is persisted immediately; debouncing only
	// covers field edits.
	if err := c.sched.SaveNow(ctx, c.draft.Content, c.draft.Progress); err != nil {
		wizardLogger.Warn().
			Err(err).
			Str("draft_id", string(c.draftID)).
			Msg("Transition save failed")
		return &SaveFailedError{Err: err}
	}
	return nil
}

// UpdateDraft merges the patch into the draft, last write wins per
// field group. Step indices and progress sets are untouched. This is
// the sole trigger of the autosave debounce window.
func (c *Controller) UpdateDraft(patch model.ContentPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != SessionReady {
		return ErrNotReady
	}
	if patch.Empty() {
		return nil
	}

	c.draft.Content.Apply(patch)
	c.draft.ModifiedDate = time.Now().UTC()
	c.sched.Touch(c.draft.Content, c.draft.Progress)
	return nil
}

// ManualSave persists the full draft unconditionally, bypassing the
// no-op and debounce machinery. Failures are recoverable: nothing in
// memory is lost and the caller may retry.
func (c *Controller) ManualSave(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != SessionReady {
		return ErrNotReady
	}
	if err := c.sched.SaveNow(ctx, c.draft.Content, c.draft.Progress); err != nil {
		return fmt.Errorf("error saving draft: %w", err)
	}
	return nil
}

// Exit reports whether unsaved changes exist. With none, the session
// tears down immediately with no network call and false is returned.
// With some, true is returned and the caller must settle the choice
// with ExitSave or ExitDiscard.
func (c *Controller) Exit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != SessionReady {
		c.teardownLocked()
		return false
	}
	if !c.sched.Dirty(c.draft.Content, c.draft.Progress) {
		c.teardownLocked()
		return false
	}
	return true
}

// ExitSave persists then tears down. On failure the session stays up
// so nothing authored is lost.
func (c *Controller) ExitSave(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() == SessionReady && c.draft != nil {
		if err := c.sched.SaveNow(ctx, c.draft.Content, c.draft.Progress); err != nil {
			return fmt.Errorf("error saving draft: %w", err)
		}
	}
	c.teardownLocked()
	return nil
}

// ExitDiscard tears down without saving.
func (c *Controller) ExitDiscard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

func (c *Controller) teardownLocked() {
	if c.closed {
		return
	}
	c.closed = true
	c.sched.Stop()
	c.interp.Stop()
}

// RequestPublish gates publication on a live recomputation of every
// required step's validator, then flushes the draft, materializes the
// memorial, and flips the draft's status. Stored progress sets play
// no part in the gate.
func (c *Controller) RequestPublish(ctx context.Context) (*model.Memorial, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != SessionReady {
		return nil, ErrNotReady
	}

	if failing := c.registry.FailingRequired(&c.draft.Content); len(failing) > 0 {
		titles := make([]string, len(failing))
		for i, step := range failing {
			titles[i] = step.Title
		}
		return nil, &PublishBlockedError{Missing: titles}
	}

	c.send(eventPublish)

	if err := c.sched.SaveNow(ctx, c.draft.Content, c.draft.Progress); err != nil {
		c.send(eventPublishFailed)
		return nil, fmt.Errorf("error saving before publish: %w", err)
	}

	memorial, err := c.memorials.PublishDraft(ctx, c.draft)
	if err != nil {
		c.send(eventPublishFailed)
		return nil, fmt.Errorf("error publishing draft: %w", err)
	}

	status := model.DraftStatusPublished
	if err := c.drafts.PatchDraft(ctx, c.draftID, store.DraftPatch{Status: &status}); err != nil {
		// The memorial already exists; a draft left active only
		// re-offers resumption until the flip is retried.
		wizardLogger.Warn().
			Err(err).
			Str("draft_id", string(c.draftID)).
			Msg("Error marking draft published")
	}
	c.draft.Status = model.DraftStatusPublished
	c.send(eventPublished)
	c.sched.Stop()

	return memorial, nil
}

// State returns the session's lifecycle state.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Draft returns a deep copy of the current draft. The zero value is
// returned before hydration.
func (c *Controller) Draft() model.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return model.Draft{}
	}
	return *c.draft.Clone()
}

func (c *Controller) CurrentStep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return 0
	}
	return c.draft.Progress.CurrentStep
}

func (c *Controller) Progress() model.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return model.NewProgress()
	}
	return c.draft.Progress.Clone()
}

// ResumeCandidate returns a copy of the draft offered for resumption,
// or nil when no offer is open.
func (c *Controller) ResumeCandidate() *model.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resumeCandidate == nil {
		return nil
	}
	return c.resumeCandidate.Clone()
}

func (c *Controller) Registry() *Registry {
	return c.registry
}

func (c *Controller) Owner() model.UserID {
	return c.owner
}

func (c *Controller) MobileView() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mobileView
}

func (c *Controller) SetMobileView(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v == ViewEditor || v == ViewPreview {
		c.mobileView = v
	}
}

// LastSavedAt reports when draft data last actually reached the
// store.
func (c *Controller) LastSavedAt() (time.Time, bool) {
	return c.sched.LastSavedAt()
}

// SetSavedNotifier forwards to the scheduler; the session layer hooks
// its saved-at push channel here.
func (c *Controller) SetSavedNotifier(fn func(time.Time)) {
	c.sched.SetSavedNotifier(fn)
}

func (c *Controller) stateLocked() SessionState {
	return SessionState(c.interp.State().Value)
}

func (c *Controller) send(event string) {
	c.interp.Send(statekit.Event{Type: statekit.EventType(event)})
}
