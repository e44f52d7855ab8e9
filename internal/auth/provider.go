// Package auth provides the authentication providers the site can run
// with: Clerk for hosted multi-user deployments and a single-owner
// Ed25519 challenge scheme for self-hosted ones.
package auth

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/evermore-app/evermore/internal/model"
)

var authLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

type AuthProvider interface {
	WithHeaderAuthorization() func(http.Handler) http.Handler

	GetUserIDFromSession(r *http.Request) (model.UserID, error)

	EnforceUserAndGetID(w http.ResponseWriter, r *http.Request) (model.UserID, error)

	HandleWebhookUser(w http.ResponseWriter, r *http.Request)
}
