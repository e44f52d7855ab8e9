package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/store"
)

// recordingSave counts persistence attempts and keeps the last saved
// state, with an optional injected error and an optional gate that
// holds a save in flight until released.
type recordingSave struct {
	mu       sync.Mutex
	calls    int
	lastSave saveSnapshot
	err      error
	gate     chan struct{}
}

func (r *recordingSave) save(_ context.Context, content model.Content, progress model.Progress) error {
	r.mu.Lock()
	r.calls++
	r.lastSave = saveSnapshot{Content: content, Progress: progress}
	err := r.err
	gate := r.gate
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (r *recordingSave) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *recordingSave) last() saveSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSave
}

func (r *recordingSave) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

const testDebounce = 40 * time.Millisecond

// settle waits long enough for a pending debounce window and save to
// complete.
func settle() {
	time.Sleep(4 * testDebounce)
}

func contentWithHeadline(headline string) model.Content {
	return model.Content{Headline: headline}
}

func TestAutosaveBurstCollapses(t *testing.T) {
	rec := &recordingSave{}
	sched := NewAutosaveScheduler(testDebounce, rec.save)
	defer sched.Stop()
	sched.Reset(model.Content{}, model.NewProgress())

	progress := model.NewProgress()
	sched.Touch(contentWithHeadline("first"), progress)
	sched.Touch(contentWithHeadline("second"), progress)
	sched.Touch(contentWithHeadline("third"), progress)

	settle()

	if got := rec.count(); got != 1 {
		t.Fatalf("Expected exactly one save for the burst, got %d", got)
	}
	if got := rec.last().Content.Headline; got != "third" {
		t.Errorf("Expected the final state to be saved, got %q", got)
	}
}

func TestAutosaveNoOpSchedulesNothing(t *testing.T) {
	rec := &recordingSave{}
	sched := NewAutosaveScheduler(testDebounce, rec.save)
	defer sched.Stop()

	baseline := contentWithHeadline("persisted")
	progress := model.NewProgress()
	sched.Reset(baseline, progress)

	// Mutations identical to the persisted snapshot arm nothing.
	sched.Touch(baseline.Clone(), progress)
	sched.Touch(baseline.Clone(), progress)

	settle()

	if got := rec.count(); got != 0 {
		t.Errorf("Expected no saves for unchanged content, got %d", got)
	}
}

func TestAutosaveRevertBeforeFire(t *testing.T) {
	rec := &recordingSave{}
	sched := NewAutosaveScheduler(testDebounce, rec.save)
	defer sched.Stop()

	baseline := contentWithHeadline("persisted")
	progress := model.NewProgress()
	sched.Reset(baseline, progress)

	// Edit, then undo back to the baseline inside the window. The
	// armed timer must fire into a no-op.
	sched.Touch(contentWithHeadline("edited"), progress)
	sched.Touch(baseline.Clone(), progress)

	settle()

	if got := rec.count(); got != 0 {
		t.Errorf("Expected no save after reverting to the baseline, got %d", got)
	}
}

func TestAutosaveSingleFlight(t *testing.T) {
	rec := &recordingSave{gate: make(chan struct{})}
	sched := NewAutosaveScheduler(testDebounce, rec.save)
	defer sched.Stop()
	sched.Reset(model.Content{}, model.NewProgress())

	progress := model.NewProgress()
	sched.Touch(contentWithHeadline("first"), progress)

	// Wait for the first save to start and block in flight.
	deadline := time.Now().Add(time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if rec.count() != 1 {
		t.Fatal("The first save never started")
	}

	// A further mutation re-arms the window; its timer fires while the
	// first save is still in flight and must start nothing.
	sched.Touch(contentWithHeadline("second"), progress)
	settle()
	if got := rec.count(); got != 1 {
		t.Fatalf("Expected the concurrent attempt to be skipped, got %d saves", got)
	}

	close(rec.gate)
	rec.mu.Lock()
	rec.gate = nil
	rec.mu.Unlock()

	// Completion alone re-arms nothing; the next mutation does.
	settle()
	if got := rec.count(); got != 1 {
		t.Fatalf("Expected no save without a further mutation, got %d", got)
	}

	sched.Touch(contentWithHeadline("third"), progress)
	settle()
	if got := rec.count(); got != 2 {
		t.Errorf("Expected the next mutation to schedule a save, got %d", got)
	}
	if got := rec.last().Content.Headline; got != "third" {
		t.Errorf("Expected the latest state to be saved, got %q", got)
	}
}

func TestAutosaveFailureRetriesOnNextMutation(t *testing.T) {
	rec := &recordingSave{}
	rec.setErr(errors.New("store unavailable"))
	sched := NewAutosaveScheduler(testDebounce, rec.save)
	defer sched.Stop()
	sched.Reset(model.Content{}, model.NewProgress())

	progress := model.NewProgress()
	sched.Touch(contentWithHeadline("edited"), progress)
	settle()
	if got := rec.count(); got != 1 {
		t.Fatalf("Expected one failed attempt, got %d", got)
	}

	// The baseline did not advance, so the same state re-arms and
	// retries after the next mutation.
	rec.setErr(nil)
	sched.Touch(contentWithHeadline("edited"), progress)
	settle()
	if got := rec.count(); got != 2 {
		t.Errorf("Expected a retry on the next mutation, got %d attempts", got)
	}
	if _, ok := sched.LastSavedAt(); !ok {
		t.Error("Expected a save timestamp after the successful retry")
	}
}

func TestAutosaveRateLimitAdvancesBaseline(t *testing.T) {
	rec := &recordingSave{}
	rec.setErr(store.ErrRateLimited)
	sched := NewAutosaveScheduler(testDebounce, rec.save)
	defer sched.Stop()
	sched.Reset(model.Content{}, model.NewProgress())

	progress := model.NewProgress()
	edited := contentWithHeadline("edited")
	sched.Touch(edited, progress)
	settle()
	if got := rec.count(); got != 1 {
		t.Fatalf("Expected one rate-limited attempt, got %d", got)
	}

	// Treated as persisted: the identical state schedules nothing
	// further.
	sched.Touch(edited.Clone(), progress)
	settle()
	if got := rec.count(); got != 1 {
		t.Errorf("Expected no retry of a rate-limited payload, got %d attempts", got)
	}

	// But the displayed timestamp only ever reflects data actually
	// written.
	if _, ok := sched.LastSavedAt(); ok {
		t.Error("A rate-limited attempt must not produce a saved-at timestamp")
	}
}

func TestSaveNowBypassesNoOpCheck(t *testing.T) {
	rec := &recordingSave{}
	sched := NewAutosaveScheduler(testDebounce, rec.save)
	defer sched.Stop()

	baseline := contentWithHeadline("persisted")
	progress := model.NewProgress()
	sched.Reset(baseline, progress)

	if err := sched.SaveNow(context.Background(), baseline.Clone(), progress); err != nil {
		t.Fatalf("SaveNow failed: %v", err)
	}
	if got := rec.count(); got != 1 {
		t.Errorf("SaveNow must persist even unchanged content, got %d saves", got)
	}
	if _, ok := sched.LastSavedAt(); !ok {
		t.Error("Expected a saved-at timestamp after SaveNow")
	}
}

func TestSaveNowAbsorbsPendingTimer(t *testing.T) {
	rec := &recordingSave{}
	sched := NewAutosaveScheduler(testDebounce, rec.save)
	defer sched.Stop()
	sched.Reset(model.Content{}, model.NewProgress())

	progress := model.NewProgress()
	edited := contentWithHeadline("edited")
	sched.Touch(edited, progress)

	// A manual save before the window closes becomes the new
	// baseline; the armed timer then fires into a no-op.
	if err := sched.SaveNow(context.Background(), edited.Clone(), progress); err != nil {
		t.Fatalf("SaveNow failed: %v", err)
	}
	settle()

	if got := rec.count(); got != 1 {
		t.Errorf("Expected the pending autosave to be absorbed, got %d saves", got)
	}
}

func TestSaveNowSurfacesErrors(t *testing.T) {
	rec := &recordingSave{}
	rec.setErr(store.ErrRateLimited)
	sched := NewAutosaveScheduler(testDebounce, rec.save)
	defer sched.Stop()
	sched.Reset(model.Content{}, model.NewProgress())

	err := sched.SaveNow(context.Background(), contentWithHeadline("edited"), model.NewProgress())
	if !errors.Is(err, store.ErrRateLimited) {
		t.Errorf("Expected the rate limit to surface from SaveNow, got %v", err)
	}
	// The baseline must not advance on a failed explicit save.
	if !sched.Dirty(contentWithHeadline("edited"), model.NewProgress()) {
		t.Error("Expected the state to remain dirty after a failed SaveNow")
	}
}

func TestDirty(t *testing.T) {
	sched := NewAutosaveScheduler(testDebounce, (&recordingSave{}).save)
	defer sched.Stop()

	baseline := contentWithHeadline("persisted")
	progress := model.NewProgress()
	sched.Reset(baseline, progress)

	if sched.Dirty(baseline.Clone(), progress) {
		t.Error("Freshly hydrated state should not be dirty")
	}
	if !sched.Dirty(contentWithHeadline("edited"), progress) {
		t.Error("Changed content should be dirty")
	}

	moved := progress.Clone()
	moved.CurrentStep = 3
	if !sched.Dirty(baseline.Clone(), moved) {
		t.Error("A moved step index alone should be dirty")
	}
}

func TestStopCancelsPendingSave(t *testing.T) {
	rec := &recordingSave{}
	sched := NewAutosaveScheduler(testDebounce, rec.save)
	sched.Reset(model.Content{}, model.NewProgress())

	sched.Touch(contentWithHeadline("edited"), model.NewProgress())
	sched.Stop()
	settle()

	if got := rec.count(); got != 0 {
		t.Errorf("Expected no save after Stop, got %d", got)
	}
}

func TestSavedNotifier(t *testing.T) {
	rec := &recordingSave{}
	sched := NewAutosaveScheduler(testDebounce, rec.save)
	defer sched.Stop()
	sched.Reset(model.Content{}, model.NewProgress())

	saved := make(chan time.Time, 1)
	sched.SetSavedNotifier(func(at time.Time) { saved <- at })

	sched.Touch(contentWithHeadline("edited"), model.NewProgress())

	select {
	case at := <-saved:
		if at.IsZero() {
			t.Error("Expected a non-zero save time")
		}
	case <-time.After(time.Second):
		t.Error("Expected the notifier to fire after the autosave")
	}
}
