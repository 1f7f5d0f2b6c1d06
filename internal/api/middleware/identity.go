package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/api/shared"
)

// UserIDHeader names the header carrying the caller's user ID. Identity is
// asserted by the fronting gateway, which terminates authentication before
// requests reach this service.
const UserIDHeader = "X-User-ID"

// IdentityMiddleware reads the user ID header and adds it to the request
// context for downstream handlers. Requests without a parseable user ID are
// rejected.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		if raw == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID header required")
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil || userID == uuid.Nil {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid user ID")
			return
		}

		ctx := context.WithValue(r.Context(), shared.UserIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the user ID from the request context.
// Returns the user ID and a boolean indicating if it was found.
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	return userID, ok
}
