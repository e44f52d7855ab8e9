package wizard

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotReady rejects operations before initialization finished or
	// after the session left the editing state.
	ErrNotReady = errors.New("wizard session is not ready")

	// ErrAlreadyInitialized rejects a second Initialize on one session.
	ErrAlreadyInitialized = errors.New("wizard session already initialized")

	// ErrNoChoicePending rejects Resume/StartNew when no resume offer
	// is open.
	ErrNoChoicePending = errors.New("no resume choice is pending")
)

// StepInvalidError reports a refused forward navigation: the current
// step is required and its validator failed. The step index is
// unchanged when this is returned.
type StepInvalidError struct {
	Index int
	Title string
}

func (e *StepInvalidError) Error() string {
	return fmt.Sprintf("step %q is incomplete", e.Title)
}

// SaveFailedError reports a failed transition save. The navigation
// itself already happened; the in-memory draft is the source of truth
// and a later successful save reconciles the server.
type SaveFailedError struct {
	Err error
}

func (e *SaveFailedError) Error() string {
	return fmt.Sprintf("error saving draft: %v", e.Err)
}

func (e *SaveFailedError) Unwrap() error {
	return e.Err
}

// PublishBlockedError reports which required steps still fail
// validation when publication is requested.
type PublishBlockedError struct {
	Missing []string
}

func (e *PublishBlockedError) Error() string {
	return fmt.Sprintf("complete these steps before publishing: %s", strings.Join(e.Missing, ", "))
}
