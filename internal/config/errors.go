package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"
	ErrListDraftsFmt         = "Failed to list drafts: %v"

	// Auth errors
	ErrCreateProviderFmt      = "Failed to create provider: %v"
	ErrAuthHeaderRequired     = "Authorization header required"
	ErrInvalidSignatureFormat = "Invalid signature format"
	ErrInvalidSignature       = "Invalid signature"
	ErrInternalServerError    = "Internal server error"

	// Wizard errors
	ErrDraftNotFound     = "Draft not found"
	ErrStepLocked        = "Step not yet reachable"
	ErrSessionExpired    = "Session expired, reload the page"
	ErrPublishIncomplete = "Required steps are incomplete"

	// Config errors
	ErrWriteConfigContentFmt = "Failed to write config content: %v"
	ErrCreateTempFileFmt     = "Failed to create temp file: %v"

	// Challenge errors
	ErrRefreshChallengeFmt = "Failed to refresh challenge"
)
