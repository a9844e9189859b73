package authenticator

import (
	"context"
	"net/http"

	"github.com/patric-chuzhbe/securevault/internal/user"
)

// Authenticator is what the HTTP layer needs from the session provider.
type Authenticator interface {
	AuthenticateUser(h http.Handler) http.Handler
	RequireUser(h http.Handler) http.Handler
	RequireUserAPI(h http.Handler) http.Handler

	Register(ctx context.Context, email, password string) (string, *user.User, error)
	Login(ctx context.Context, email, password string) (string, *user.User, error)
	Logout(ctx context.Context, sessionID string) error

	SetSessionCookie(response http.ResponseWriter, token string)
	ClearSessionCookie(response http.ResponseWriter)
}
