// Package wizard implements the memorial creation wizard: an ordered
// step registry with per-step validation, a controller that owns one
// draft per session and gates navigation on validation, and a
// debounced single-flight autosave scheduler that reconciles
// background persistence with manual saves and step transitions.
package wizard

import (
	"github.com/evermore-app/evermore/internal/model"
	"github.com/rs/zerolog"
)

var wizardLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	wizardLogger = l
}

// View selects which pane a small screen shows. Wide screens render
// both side by side.
type View string

const (
	ViewEditor  View = "editor"
	ViewPreview View = "preview"
)

// StepStatus is the per-step lifecycle: upcoming until first reached,
// then current, then complete or errored depending on validation.
// Errored is never terminal; the next passing validation clears it.
type StepStatus string

const (
	StepUpcoming StepStatus = "upcoming"
	StepCurrent  StepStatus = "current"
	StepComplete StepStatus = "complete"
	StepErrored  StepStatus = "errored"
)

// StatusOf derives a step's display status from the draft's progress.
func StatusOf(progress model.Progress, index int) StepStatus {
	switch {
	case index == progress.CurrentStep:
		return StepCurrent
	case progress.Errored.Has(index):
		return StepErrored
	case progress.Completed.Has(index):
		return StepComplete
	default:
		return StepUpcoming
	}
}
