// Package routes defines HTTP route constants for the application.
package routes

const (
	// Static and assets
	RobotsPath        = "/robots.txt"
	ThemeOppositeIcon = "/theme/opposite-icon"
	ThemeToggle       = "/theme/toggle"

	// SSE
	SSEPath = "/sse"

	// Root / dashboard
	RootPath      = "/"
	DashboardPath = "/dashboard"

	// Published memorials
	MemorialPath        = "/memorials/{slug}"
	MemorialUnlockPath  = "/memorials/{slug}/unlock"
	GuestbookPath       = "/memorials/{slug}/guestbook"
	GuestbookModeration = "/api/guestbook/{id}/status"

	// Wizard
	NewMemorial       = "/new/memorial"
	WizardPage        = "/wizard"
	WizardResume      = "/wizard/resume"
	WizardStartNew    = "/wizard/start-new"
	WizardStep        = "/wizard/step/{index}"
	WizardUpdate      = "/wizard/update"
	WizardSave        = "/wizard/save"
	WizardExit        = "/wizard/exit"
	WizardExitSave    = "/wizard/exit/save"
	WizardExitDiscard = "/wizard/exit/discard"
	WizardPublish     = "/wizard/publish"
	WizardView        = "/wizard/view"
	PartialsPreview   = "/partials/wizard/preview"

	// API
	APIMedia = "/api/media"

	// Auth routes
	AuthChallenge = "/auth/challenge"
	AuthVerify    = "/auth/verify"
	AuthLogin     = "/auth/login"
	WebhookUser   = "/webhook/user"
)
