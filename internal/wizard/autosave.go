package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/store"
)

// saveFunc persists one snapshot of the draft. The scheduler never
// talks to the store directly; the controller binds this to a patch
// call on its own draft id.
type saveFunc func(ctx context.Context, content model.Content, progress model.Progress) error

// AutosaveScheduler owns the debounce timer and the single-flight
// guard for background persistence. Rules:
//
//   - A mutation identical to the last persisted snapshot arms
//     nothing.
//   - Otherwise the debounce window restarts from the most recent
//     mutation; a burst of edits collapses into one save.
//   - A timer firing while a save is in flight starts nothing; the
//     next mutation re-arms the window.
//   - Autosave failures are silent. A rate-limited response advances
//     the snapshot baseline exactly as a success would, so the same
//     payload is not retried until a further mutation.
//
// Manual and transition saves flush through SaveNow, which bypasses
// the no-op check but still serializes behind an in-flight autosave.
type AutosaveScheduler struct {
	debounce time.Duration
	save     saveFunc

	// flight is held for the duration of one persistence attempt.
	flight sync.Mutex

	mu              sync.Mutex
	timer           *time.Timer
	pendingContent  model.Content
	pendingProgress model.Progress
	pendingHash     string
	baseline        string // hash of the last persisted snapshot
	lastSavedAt     time.Time
	savedNotifier   func(time.Time)
	stopped         bool
}

func NewAutosaveScheduler(debounce time.Duration, save saveFunc) *AutosaveScheduler {
	return &AutosaveScheduler{
		debounce: debounce,
		save:     save,
	}
}

// SetSavedNotifier registers a callback invoked after each successful
// persist with the save time. The callback must not call back into
// the scheduler.
func (s *AutosaveScheduler) SetSavedNotifier(fn func(time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedNotifier = fn
}

// Reset establishes the baseline from a freshly loaded or created
// draft: the in-memory state equals the server state, so nothing is
// dirty and no timer is armed.
func (s *AutosaveScheduler) Reset(content model.Content, progress model.Progress) {
	hash := snapshotHash(content, progress)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.baseline = hash
	s.pendingContent = content.Clone()
	s.pendingProgress = progress.Clone()
	s.pendingHash = hash
}

// Touch records a mutation and (re)arms the debounce window unless
// the draft already matches the persisted baseline.
func (s *AutosaveScheduler) Touch(content model.Content, progress model.Progress) {
	hash := snapshotHash(content, progress)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	// The pending state always tracks the latest mutation, so an
	// already armed timer fires with current data even when this call
	// itself arms nothing.
	s.pendingContent = content.Clone()
	s.pendingProgress = progress.Clone()
	s.pendingHash = hash

	if hash == s.baseline {
		return
	}

	s.stopTimerLocked()
	s.timer = time.AfterFunc(s.debounce, s.fire)
}

// fire runs when the debounce window closes.
func (s *AutosaveScheduler) fire() {
	if !s.flight.TryLock() {
		// One attempt at a time. The in-flight save's completion plus
		// the next mutation restart the window.
		wizardLogger.Debug().Msg("Autosave skipped, save already in flight")
		return
	}
	defer s.flight.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	content := s.pendingContent
	progress := s.pendingProgress
	hash := s.pendingHash
	baseline := s.baseline
	s.mu.Unlock()

	// A manual save may have advanced the baseline since this timer
	// was armed.
	if hash == baseline {
		return
	}

	err := s.save(context.Background(), content, progress)
	switch {
	case err == nil:
		now := time.Now()
		s.mu.Lock()
		s.baseline = hash
		s.lastSavedAt = now
		notifier := s.savedNotifier
		s.mu.Unlock()
		wizardLogger.Debug().Msg("Autosave completed")
		if notifier != nil {
			notifier(now)
		}
	case errors.Is(err, store.ErrRateLimited):
		// Treated as persisted so the same payload is not retried
		// until the next mutation. The unconditional transition and
		// manual saves bound the data-loss window.
		s.mu.Lock()
		s.baseline = hash
		s.mu.Unlock()
		wizardLogger.Debug().Msg("Autosave rate limited, waiting for the next mutation")
	default:
		// Silent by contract; authoring is never interrupted over a
		// background save.
		wizardLogger.Debug().Err(err).Msg("Autosave failed")
	}
}

// SaveNow persists the given state unconditionally, serialized behind
// any in-flight autosave. A pending debounce timer is left armed; it
// no-ops against the advanced baseline unless further mutations
// arrive. Errors are returned to the caller, rate limiting included.
func (s *AutosaveScheduler) SaveNow(ctx context.Context, content model.Content, progress model.Progress) error {
	hash := snapshotHash(content, progress)

	s.flight.Lock()
	defer s.flight.Unlock()

	if err := s.save(ctx, content, progress); err != nil {
		return err
	}

	now := time.Now()
	s.mu.Lock()
	s.baseline = hash
	s.pendingContent = content.Clone()
	s.pendingProgress = progress.Clone()
	s.pendingHash = hash
	s.lastSavedAt = now
	notifier := s.savedNotifier
	s.mu.Unlock()
	if notifier != nil {
		notifier(now)
	}
	return nil
}

// Dirty reports whether the given state differs from the last
// persisted snapshot.
func (s *AutosaveScheduler) Dirty(content model.Content, progress model.Progress) bool {
	hash := snapshotHash(content, progress)
	s.mu.Lock()
	defer s.mu.Unlock()
	return hash != s.baseline
}

// LastSavedAt returns the time of the last successful persist, if
// any. Rate-limited autosaves advance the baseline but not this
// timestamp; it only ever reflects data actually written.
func (s *AutosaveScheduler) LastSavedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSavedAt, !s.lastSavedAt.IsZero()
}

// Stop cancels any pending timer and ignores further mutations. An
// in-flight save is left to finish.
func (s *AutosaveScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.stopTimerLocked()
}

func (s *AutosaveScheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
