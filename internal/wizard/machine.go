package wizard

import (
	"github.com/evermore-app/evermore/internal/model"
	"github.com/felixgeelhaar/statekit"
)

// SessionState is the controller's lifecycle state. Editing
// operations are only accepted in ready; the initialization choice
// point (choosing) completes before any further input is taken.
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionLoading    SessionState = "loading"
	SessionChoosing   SessionState = "choosing"
	SessionCreating   SessionState = "creating"
	SessionHydrating  SessionState = "hydrating"
	SessionReady      SessionState = "ready"
	SessionPublishing SessionState = "publishing"
	SessionPublished  SessionState = "published"
	SessionFailed     SessionState = "failed"
)

// Session lifecycle events.
const (
	eventInitialize    = "INITIALIZE"
	eventOfferResume   = "OFFER_RESUME"
	eventHydrate       = "HYDRATE"
	eventCreate        = "CREATE"
	eventReady         = "READY"
	eventFail          = "FAIL"
	eventPublish       = "PUBLISH"
	eventPublished     = "PUBLISHED"
	eventPublishFailed = "PUBLISH_FAILED"
)

// sessionContext is the statekit machine context. Mutation happens on
// the controller; the machine only gates which operations are legal.
type sessionContext struct {
	Owner model.UserID
}

// buildSessionMachine constructs the lifecycle machine for one
// controller. The controller pointer is captured so entry actions can
// log against live session fields.
func buildSessionMachine(c *Controller) (*statekit.Interpreter[sessionContext], error) {
	machine, err := statekit.NewMachine[sessionContext]("memorial-wizard").
		WithInitial("idle").
		WithContext(sessionContext{Owner: c.owner}).
		WithAction("logReady", func(_ *sessionContext, _ statekit.Event) {
			wizardLogger.Debug().
				Str("owner", string(c.owner)).
				Str("draft_id", string(c.draftID)).
				Msg("Wizard session ready")
		}).
		WithAction("logPublished", func(_ *sessionContext, _ statekit.Event) {
			wizardLogger.Info().
				Str("owner", string(c.owner)).
				Str("draft_id", string(c.draftID)).
				Msg("Wizard session published its draft")
		}).
		WithAction("logFailed", func(_ *sessionContext, _ statekit.Event) {
			wizardLogger.Error().
				Str("owner", string(c.owner)).
				Msg("Wizard session failed to initialize")
		}).
		State("idle").
		On(eventInitialize).Target("loading").Done().
		State("loading").
		On(eventHydrate).Target("hydrating").
		On(eventOfferResume).Target("choosing").
		On(eventCreate).Target("creating").
		On(eventFail).Target("failed").Done().
		State("choosing").
		On(eventHydrate).Target("hydrating").
		On(eventCreate).Target("creating").Done().
		State("hydrating").
		On(eventReady).Target("ready").
		On(eventFail).Target("failed").Done().
		State("creating").
		On(eventReady).Target("ready").
		On(eventFail).Target("failed").Done().
		State("ready").
		OnEntry("logReady").
		On(eventPublish).Target("publishing").Done().
		State("publishing").
		On(eventPublished).Target("published").
		On(eventPublishFailed).Target("ready").Done().
		State("published").
		OnEntry("logPublished").Done().
		State("failed").
		OnEntry("logFailed").Done().
		Build()
	if err != nil {
		return nil, err
	}

	return statekit.NewInterpreter(machine), nil
}
