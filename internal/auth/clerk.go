package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	clerkuser "github.com/clerk/clerk-sdk-go/v2/user"

	"github.com/evermore-app/evermore/internal/db"
	"github.com/evermore-app/evermore/internal/model"
)

// ClerkAuthProvider implements AuthProvider against Clerk-hosted
// sessions. The webhook keeps a local users row per Clerk account so
// owner names can be shown without a Clerk round trip.
type ClerkAuthProvider struct {
	db db.DB

	cookieExtractor clerkhttp.AuthorizationOption
}

func NewClerkAuthProvider(clerkKey string, database db.DB) *ClerkAuthProvider {
	clerk.SetKey(clerkKey)

	return &ClerkAuthProvider{
		db: database,
		cookieExtractor: clerkhttp.AuthorizationJWTExtractor(func(r *http.Request) string {
			cookie, err := r.Cookie("__session")
			if err != nil || cookie == nil {
				authLogger.Debug().Err(err).Msg("Authorization cookie not found")
				return ""
			}
			return cookie.Value
		}),
	}
}

func (c *ClerkAuthProvider) WithHeaderAuthorization() func(http.Handler) http.Handler {
	return clerkhttp.WithHeaderAuthorization(c.cookieExtractor)
}

func (c *ClerkAuthProvider) GetUserIDFromSession(r *http.Request) (model.UserID, error) {
	claims, ok := clerk.SessionClaimsFromContext(r.Context())
	if !ok {
		return "", errors.New("failed to get session claims from context")
	}

	usr, err := clerkuser.Get(r.Context(), claims.Subject)
	if err != nil {
		return "", err
	}

	return model.UserID(usr.ID), nil
}

func (c *ClerkAuthProvider) HandleWebhookUser(w http.ResponseWriter, r *http.Request) {
	type EventPayload struct {
		Data struct {
			clerk.User
		} `json:"data"`

		Type string `json:"type"`
	}

	var payload EventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		authLogger.Error().Err(err).Msg("Error decoding event payload")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	usr := payload.Data.User

	switch payload.Type {
	case "user.created":
		_, err := c.db.Exec("INSERT INTO users (id, username) VALUES ($1, $2)", usr.ID, clerkUsername(&usr))
		if err != nil {
			authLogger.Error().Err(err).Str("user", usr.ID).Msg("Error inserting user")
			http.Error(w, "Error saving user", http.StatusInternalServerError)
			return
		}

		authLogger.Info().Str("user", usr.ID).Msg("User created")
		w.WriteHeader(http.StatusCreated)

	case "user.updated":
		_, err := c.db.Exec("UPDATE users SET username = $1 WHERE id = $2", clerkUsername(&usr), usr.ID)
		if err != nil {
			authLogger.Error().Err(err).Str("user", usr.ID).Msg("Error updating user")
			http.Error(w, "Error updating user", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)

	case "user.deleted":
		_, err := c.db.Exec("DELETE FROM users WHERE id = $1", usr.ID)
		if err != nil {
			authLogger.Error().Err(err).Str("user", usr.ID).Msg("Error deleting user")
			http.Error(w, "Error deleting user", http.StatusInternalServerError)
			return
		}

		authLogger.Info().Str("user", usr.ID).Msg("User deleted")
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Invalid event type", http.StatusBadRequest)
		return
	}
}

// clerkUsername picks a display name from whatever the account has.
func clerkUsername(usr *clerk.User) string {
	if usr.Username != nil && *usr.Username != "" {
		return *usr.Username
	}
	if usr.FirstName != nil && *usr.FirstName != "" {
		return *usr.FirstName
	}
	if len(usr.EmailAddresses) > 0 {
		return usr.EmailAddresses[0].EmailAddress
	}
	return usr.ID
}

func (c *ClerkAuthProvider) EnforceUserAndGetID(w http.ResponseWriter, r *http.Request) (model.UserID, error) {
	userID, err := c.GetUserIDFromSession(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", err
	}
	return userID, nil
}
