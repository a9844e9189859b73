// Package auth is the session provider of the vault: it registers and
// logs users in, issues signed session tokens, revokes them on logout and
// exposes the current identity to HTTP handlers through the request context.
//
// Tokens are JWTs carrying the user ID and the session ID. A token is only
// honoured while its session row exists and has not expired, which is what
// makes logout effective.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/securevault/internal/logger"
	"github.com/patric-chuzhbe/securevault/internal/models"
	"github.com/patric-chuzhbe/securevault/internal/user"
)

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) error
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
}

type sessionKeeper interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type storage interface {
	userKeeper
	sessionKeeper
}

// Auth handles user authentication and session token management.
type Auth struct {
	// db is the interface to the user and session storage.
	db storage

	// authCookieName is the name of the cookie used to store the JWT.
	authCookieName string

	// authCookieSigningSecretKey is the key used to sign JWTs.
	authCookieSigningSecretKey []byte

	sessionTTL   time.Duration
	secureCookie bool
	validate     *validator.Validate
	now          func() time.Time
}

// Claims represents the JWT claims used by the system.
// RegisteredClaims.ID holds the session ID.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID    string
	Email     string
	SessionID string
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// IdentityKey is the context key under which the *Identity is stored.
const IdentityKey ContextKey = "identity"

// LoginPath is where RequireUser sends anonymous browsers.
const LoginPath = "/login"

// ErrInvalidToken is returned for tokens that cannot be parsed or verified.
var ErrInvalidToken = errors.New("invalid session token")

// Option tunes an Auth instance.
type Option func(*Auth)

// WithSessionTTL sets how long a new session stays valid.
func WithSessionTTL(ttl time.Duration) Option {
	return func(a *Auth) {
		a.sessionTTL = ttl
	}
}

// WithSecureCookie marks the session cookie as HTTPS-only.
func WithSecureCookie(secure bool) Option {
	return func(a *Auth) {
		a.secureCookie = secure
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Auth) {
		a.now = now
	}
}

// New creates a new Auth with the given user/session storage,
// cookie name and JWT signing secret.
func New(
	db storage,
	authCookieName string,
	authCookieSigningSecretKey []byte,
	options ...Option,
) *Auth {
	a := &Auth{
		db:                         db,
		authCookieName:             authCookieName,
		authCookieSigningSecretKey: authCookieSigningSecretKey,
		sessionTTL:                 24 * time.Hour,
		validate:                   validator.New(),
		now:                        time.Now,
	}
	for _, option := range options {
		option(a)
	}

	return a
}

// SessionTTL returns the lifetime of newly opened sessions.
func (a *Auth) SessionTTL() time.Duration {
	return a.sessionTTL
}

func (a *Auth) validateCredentials(email, password string) error {
	err := a.validate.Struct(models.CredentialsRequest{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidCredentialsFormat, err)
	}

	return nil
}

// Register creates an account and opens a session for it.
// The provider's errors are returned unchanged: models.ErrEmailTaken for a
// duplicate email, models.ErrInvalidCredentialsFormat for missing fields.
func (a *Auth) Register(ctx context.Context, email, password string) (string, *user.User, error) {
	email = user.NormalizeEmail(email)
	if err := a.validateCredentials(email, password); err != nil {
		return "", nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", models.ErrInvalidCredentialsFormat, err)
	}

	usr := &user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    a.now().UTC(),
	}
	if err := a.db.CreateUser(ctx, usr); err != nil {
		return "", nil, err
	}

	token, err := a.openSession(ctx, usr.ID)
	if err != nil {
		return "", nil, err
	}

	return token, usr, nil
}

// Login authenticates an existing user and opens a session.
// Unknown emails and wrong passwords both yield models.ErrInvalidCredentials.
func (a *Auth) Login(ctx context.Context, email, password string) (string, *user.User, error) {
	email = user.NormalizeEmail(email)
	if err := a.validateCredentials(email, password); err != nil {
		return "", nil, err
	}

	usr, err := a.db.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return "", nil, models.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(password)); err != nil {
		return "", nil, models.ErrInvalidCredentials
	}

	token, err := a.openSession(ctx, usr.ID)
	if err != nil {
		return "", nil, err
	}

	return token, usr, nil
}

// Logout invalidates the session. Tokens referring to it stop resolving.
func (a *Auth) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return models.ErrUnauthorized
	}

	return a.db.DeleteSession(ctx, sessionID)
}

// Resolve turns a token into the identity it represents.
func (a *Auth) Resolve(ctx context.Context, tokenString string) (*Identity, error) {
	claims, err := a.parseToken(tokenString)
	if err != nil {
		return nil, err
	}

	session, err := a.db.GetSession(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return nil, models.ErrSessionExpired
		}
		return nil, err
	}
	if session.UserID != claims.UserID || session.IsExpired(a.now()) {
		return nil, models.ErrSessionExpired
	}

	usr, err := a.db.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrSessionExpired
		}
		return nil, err
	}

	return &Identity{
		UserID:    usr.ID,
		Email:     usr.Email,
		SessionID: session.ID,
	}, nil
}

// AuthenticateUser is an HTTP middleware that resolves the token found in
// the Authorization header or the session cookie and stores the identity
// in the request context. Requests without a valid token pass through
// anonymously.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		tokenString := a.getTokenStringFromAuthorizationHeaderOrCookie(request)
		if tokenString == "" {
			h.ServeHTTP(response, request)
			return
		}

		identity, err := a.Resolve(request.Context(), tokenString)
		if err != nil {
			logger.Log.Debugw("Error calling the `a.Resolve()`", zap.Error(err))
			h.ServeHTTP(response, request)
			return
		}

		ctx := context.WithValue(request.Context(), IdentityKey, identity)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// RequireUser is an HTTP middleware for pages: anonymous requests are
// redirected to the login page.
func (a *Auth) RequireUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if _, ok := IdentityFromContext(request.Context()); !ok {
			http.Redirect(response, request, LoginPath, http.StatusSeeOther)
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}

// RequireUserAPI is an HTTP middleware for the JSON API: anonymous
// requests get 401.
func (a *Auth) RequireUserAPI(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if _, ok := IdentityFromContext(request.Context()); !ok {
			response.WriteHeader(http.StatusUnauthorized)
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}

// SetSessionCookie stores the token in the session cookie and mirrors it in
// the Authorization response header.
func (a *Auth) SetSessionCookie(response http.ResponseWriter, token string) {
	response.Header().Set("Authorization", token)
	http.SetCookie(
		response,
		&http.Cookie{
			Name:     a.authCookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(a.sessionTTL.Seconds()),
			HttpOnly: true,
			Secure:   a.secureCookie,
			SameSite: http.SameSiteLaxMode,
		},
	)
}

// ClearSessionCookie makes the browser drop the session cookie.
func (a *Auth) ClearSessionCookie(response http.ResponseWriter) {
	http.SetCookie(
		response,
		&http.Cookie{
			Name:     a.authCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   a.secureCookie,
			SameSite: http.SameSiteLaxMode,
		},
	)
}

// IdentityFromContext returns the identity stored by AuthenticateUser.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(*Identity)
	if !ok || identity == nil || identity.UserID == "" {
		return nil, false
	}

	return identity, true
}

func (a *Auth) openSession(ctx context.Context, userID string) (string, error) {
	now := a.now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(a.sessionTTL),
	}
	if err := a.db.CreateSession(ctx, session); err != nil {
		return "", err
	}

	return a.buildJWTString(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
		UserID: userID,
	})
}

func (a *Auth) getTokenStringFromAuthorizationHeaderOrCookie(request *http.Request) string {
	tokenString := strings.TrimPrefix(request.Header.Get("Authorization"), "Bearer ")
	if tokenString != "" {
		return tokenString
	}
	cookie, err := request.Cookie(a.authCookieName)
	if err == nil {
		tokenString = cookie.Value
	}

	return tokenString
}

func (a *Auth) parseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return a.authCookieSigningSecretKey, nil
		},
	)
	if err != nil {
		var validationErr *jwt.ValidationError
		if errors.As(err, &validationErr) && validationErr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, models.ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ID == "" || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (a *Auth) buildJWTString(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	tokenString, err := token.SignedString(a.authCookieSigningSecretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
