// Package router wires the HTTP surface of the vault: the server-rendered
// pages (login, registration, dashboard and its actions) and the JSON API
// mirroring them.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/patric-chuzhbe/securevault/internal/auth"
	"github.com/patric-chuzhbe/securevault/internal/authenticator"
	"github.com/patric-chuzhbe/securevault/internal/dashboard"
	"github.com/patric-chuzhbe/securevault/internal/gzippedhttp"
	"github.com/patric-chuzhbe/securevault/internal/ipchecker"
	"github.com/patric-chuzhbe/securevault/internal/logger"
	"github.com/patric-chuzhbe/securevault/internal/models"
	"github.com/patric-chuzhbe/securevault/internal/service"
	"github.com/patric-chuzhbe/securevault/internal/views"
	"github.com/patric-chuzhbe/securevault/internal/viewstate"
)

type entryKeeper interface {
	ListEntries(ctx context.Context, userID string) (models.PasswordEntries, error)

	InsertEntry(ctx context.Context, entry *models.PasswordEntry) error

	DeleteEntry(ctx context.Context, userID, entryID string) (bool, error)
}

type statsKeeper interface {
	GetNumberOfUsers(ctx context.Context) (int64, error)

	GetNumberOfEntries(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	entryKeeper
	statsKeeper
	pinger
}

// Router holds the dependencies of the HTTP handlers.
type Router struct {
	vault     *service.Service
	dashboard *dashboard.Dashboard
	auth      authenticator.Authenticator
	renderer  *views.Renderer
	ipChecker *ipchecker.IPChecker
}

// New builds the chi mux with every route of the application.
func New(
	db storage,
	authMiddleware authenticator.Authenticator,
	states *viewstate.Store,
	ipChecker *ipchecker.IPChecker,
) (*chi.Mux, error) {
	renderer, err := views.New()
	if err != nil {
		return nil, err
	}

	if ipChecker == nil {
		ipChecker, err = ipchecker.New("")
		if err != nil {
			return nil, err
		}
	}

	vault := service.New(db)
	myRouter := Router{
		vault:     vault,
		dashboard: dashboard.New(vault, states),
		auth:      authMiddleware,
		renderer:  renderer,
		ipChecker: ipChecker,
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gzippedhttp.UngzipRequest,
		gzippedhttp.GzipResponse,
		authMiddleware.AuthenticateUser,
	)

	router.Get(`/ping`, myRouter.GetPing)

	router.Get(`/login`, myRouter.GetLogin)
	router.Post(`/login`, myRouter.PostLogin)
	router.Get(`/register`, myRouter.GetRegister)
	router.Post(`/register`, myRouter.PostRegister)
	router.Post(`/logout`, myRouter.PostLogout)

	router.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireUser)
		r.Get(`/`, myRouter.GetDashboard)
		r.Post(`/passwords/form`, myRouter.PostPasswordsform)
		r.Post(`/passwords/form/cancel`, myRouter.PostPasswordsformcancel)
		r.Post(`/passwords`, myRouter.PostPasswords)
		r.Post(`/passwords/{id}/delete`, myRouter.PostPasswordsdelete)
		r.Post(`/passwords/{id}/reveal`, myRouter.PostPasswordsreveal)
	})

	router.Post(`/api/auth/register`, myRouter.PostApiauthregister)
	router.Post(`/api/auth/login`, myRouter.PostApiauthlogin)

	router.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireUserAPI)
		r.Post(`/api/auth/logout`, myRouter.PostApiauthlogout)
		r.Get(`/api/user`, myRouter.GetApiuser)
		r.Get(`/api/passwords`, myRouter.GetApipasswords)
		r.Post(`/api/passwords`, myRouter.PostApipasswords)
		r.Delete(`/api/passwords/{id}`, myRouter.DeleteApipasswords)
	})

	router.With(ipChecker.TrustedSubnetOnly).Get(`/api/internal/stats`, myRouter.GetApiinternalstats)

	return router, nil
}

func (router *Router) render(response http.ResponseWriter, status int, page string, data any) {
	if err := router.renderer.Render(response, status, page, data); err != nil {
		logger.Log.Errorln("Error calling the `router.renderer.Render()`: ", err)
		response.WriteHeader(http.StatusInternalServerError)
	}
}

func redirectToDashboard(response http.ResponseWriter, request *http.Request) {
	http.Redirect(response, request, "/", http.StatusSeeOther)
}

func writeJSON(response http.ResponseWriter, status int, body any) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(body); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder(response).Encode()`: ", err)
	}
}

// GetPing reports the health of the storage layer.
func (router *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := router.vault.Ping(request.Context()); err != nil {
		logger.Log.Errorln("Error calling the `router.vault.Ping()`: ", err)
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

// GetLogin shows the sign-in form; signed-in users go to the dashboard.
func (router *Router) GetLogin(response http.ResponseWriter, request *http.Request) {
	if _, ok := auth.IdentityFromContext(request.Context()); ok {
		redirectToDashboard(response, request)
		return
	}

	router.render(response, http.StatusOK, views.LoginPage, views.AuthForm{})
}

// PostLogin signs the user in. Failures are logged and the empty form is
// shown again.
func (router *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	email := request.PostFormValue("email")
	password := request.PostFormValue("password")

	token, _, err := router.auth.Login(request.Context(), email, password)
	if err != nil {
		logger.Log.Infoln("Error calling the `router.auth.Login()`: ", err)
		status := http.StatusUnauthorized
		if !errors.Is(err, models.ErrInvalidCredentials) && !errors.Is(err, models.ErrInvalidCredentialsFormat) {
			status = http.StatusInternalServerError
		}
		router.render(response, status, views.LoginPage, views.AuthForm{Email: email})
		return
	}

	router.auth.SetSessionCookie(response, token)
	redirectToDashboard(response, request)
}

// GetRegister shows the account creation form.
func (router *Router) GetRegister(response http.ResponseWriter, request *http.Request) {
	if _, ok := auth.IdentityFromContext(request.Context()); ok {
		redirectToDashboard(response, request)
		return
	}

	router.render(response, http.StatusOK, views.RegisterPage, views.AuthForm{})
}

// PostRegister creates the account and signs the new user in.
func (router *Router) PostRegister(response http.ResponseWriter, request *http.Request) {
	email := request.PostFormValue("email")
	password := request.PostFormValue("password")

	token, _, err := router.auth.Register(request.Context(), email, password)
	if err != nil {
		logger.Log.Infoln("Error calling the `router.auth.Register()`: ", err)
		router.render(response, registrationErrorStatus(err), views.RegisterPage, views.AuthForm{Email: email})
		return
	}

	router.auth.SetSessionCookie(response, token)
	redirectToDashboard(response, request)
}

func registrationErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidCredentialsFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PostLogout ends the session and sends the browser to the sign-in page.
func (router *Router) PostLogout(response http.ResponseWriter, request *http.Request) {
	if identity, ok := auth.IdentityFromContext(request.Context()); ok {
		if err := router.auth.Logout(request.Context(), identity.SessionID); err != nil {
			logger.Log.Errorln("Error calling the `router.auth.Logout()`: ", err)
		}
		router.dashboard.Leave(identity)
	}

	router.auth.ClearSessionCookie(response)
	http.Redirect(response, request, auth.LoginPath, http.StatusSeeOther)
}

// GetDashboard renders the vault of the signed-in user.
func (router *Router) GetDashboard(response http.ResponseWriter, request *http.Request) {
	identity, _ := auth.IdentityFromContext(request.Context())

	router.render(response, http.StatusOK, views.DashboardPage, router.dashboard.Page(request.Context(), identity))
}

// PostPasswordsform opens the "add password" form.
func (router *Router) PostPasswordsform(response http.ResponseWriter, request *http.Request) {
	identity, _ := auth.IdentityFromContext(request.Context())
	router.dashboard.OpenAddForm(identity)
	redirectToDashboard(response, request)
}

// PostPasswordsformcancel closes the "add password" form.
func (router *Router) PostPasswordsformcancel(response http.ResponseWriter, request *http.Request) {
	identity, _ := auth.IdentityFromContext(request.Context())
	router.dashboard.CancelAddForm(identity)
	redirectToDashboard(response, request)
}

// PostPasswords saves the submitted entry.
func (router *Router) PostPasswords(response http.ResponseWriter, request *http.Request) {
	identity, _ := auth.IdentityFromContext(request.Context())

	_ = router.dashboard.SaveEntry(request.Context(), identity, viewstate.Draft{
		Website:  request.PostFormValue("website"),
		Username: request.PostFormValue("username"),
		Password: request.PostFormValue("password"),
	})
	redirectToDashboard(response, request)
}

// PostPasswordsdelete removes an entry from the vault.
func (router *Router) PostPasswordsdelete(response http.ResponseWriter, request *http.Request) {
	identity, _ := auth.IdentityFromContext(request.Context())

	err := router.dashboard.DeleteEntry(request.Context(), identity, chi.URLParam(request, "id"))
	if errors.Is(err, models.ErrEntryNotFound) {
		logger.Log.Infoln("Error calling the `router.dashboard.DeleteEntry()`: ", err)
	}
	redirectToDashboard(response, request)
}

// PostPasswordsreveal toggles the visibility of one password.
func (router *Router) PostPasswordsreveal(response http.ResponseWriter, request *http.Request) {
	identity, _ := auth.IdentityFromContext(request.Context())
	if _, err := router.dashboard.ToggleReveal(request.Context(), identity, chi.URLParam(request, "id")); errors.Is(err, models.ErrEntryNotFound) {
		logger.Log.Infoln("Error calling the `router.dashboard.ToggleReveal()`: ", err)
	}
	redirectToDashboard(response, request)
}

func decodeCredentials(request *http.Request) (models.CredentialsRequest, error) {
	var credentials models.CredentialsRequest
	err := json.NewDecoder(request.Body).Decode(&credentials)

	return credentials, err
}

// PostApiauthregister is the JSON counterpart of PostRegister.
func (router *Router) PostApiauthregister(response http.ResponseWriter, request *http.Request) {
	credentials, err := decodeCredentials(request)
	if err != nil {
		response.WriteHeader(http.StatusBadRequest)
		return
	}

	token, usr, err := router.auth.Register(request.Context(), credentials.Email, credentials.Password)
	if err != nil {
		logger.Log.Infoln("Error calling the `router.auth.Register()`: ", err)
		response.WriteHeader(registrationErrorStatus(err))
		return
	}

	router.auth.SetSessionCookie(response, token)
	writeJSON(response, http.StatusCreated, models.UserResponse{ID: usr.ID, Email: usr.Email})
}

// PostApiauthlogin is the JSON counterpart of PostLogin.
func (router *Router) PostApiauthlogin(response http.ResponseWriter, request *http.Request) {
	credentials, err := decodeCredentials(request)
	if err != nil {
		response.WriteHeader(http.StatusBadRequest)
		return
	}

	token, usr, err := router.auth.Login(request.Context(), credentials.Email, credentials.Password)
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		response.WriteHeader(http.StatusUnauthorized)
		return
	case errors.Is(err, models.ErrInvalidCredentialsFormat):
		response.WriteHeader(http.StatusBadRequest)
		return
	case err != nil:
		logger.Log.Errorln("Error calling the `router.auth.Login()`: ", err)
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	router.auth.SetSessionCookie(response, token)
	writeJSON(response, http.StatusOK, models.UserResponse{ID: usr.ID, Email: usr.Email})
}

// PostApiauthlogout revokes the session of the token used for the call.
func (router *Router) PostApiauthlogout(response http.ResponseWriter, request *http.Request) {
	identity, _ := auth.IdentityFromContext(request.Context())

	if err := router.auth.Logout(request.Context(), identity.SessionID); err != nil {
		logger.Log.Errorln("Error calling the `router.auth.Logout()`: ", err)
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	router.dashboard.Leave(identity)

	router.auth.ClearSessionCookie(response)
	response.WriteHeader(http.StatusNoContent)
}

// GetApiuser returns the current user.
func (router *Router) GetApiuser(response http.ResponseWriter, request *http.Request) {
	identity, _ := auth.IdentityFromContext(request.Context())

	writeJSON(response, http.StatusOK, models.UserResponse{ID: identity.UserID, Email: identity.Email})
}

// GetApipasswords lists the caller's entries, newest first.
func (router *Router) GetApipasswords(response http.ResponseWriter, request *http.Request) {
	identity, _ := auth.IdentityFromContext(request.Context())

	entries, err := router.vault.ListEntries(request.Context(), identity.UserID)
	if err != nil {
		logger.Log.Errorln("Error calling the `router.vault.ListEntries()`: ", err)
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(response, http.StatusOK, entries)
}

// PostApipasswords stores a new entry for the caller.
func (router *Router) PostApipasswords(response http.ResponseWriter, request *http.Request) {
	identity, _ := auth.IdentityFromContext(request.Context())

	var newEntry models.NewEntryRequest
	if err := json.NewDecoder(request.Body).Decode(&newEntry); err != nil {
		response.WriteHeader(http.StatusBadRequest)
		return
	}

	entry, err := router.vault.AddEntry(request.Context(), identity.UserID, newEntry)
	switch {
	case errors.Is(err, service.ErrInvalidEntry):
		response.WriteHeader(http.StatusBadRequest)
		return
	case err != nil:
		logger.Log.Errorln("Error calling the `router.vault.AddEntry()`: ", err)
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(response, http.StatusCreated, entry)
}

// DeleteApipasswords removes one of the caller's entries.
func (router *Router) DeleteApipasswords(response http.ResponseWriter, request *http.Request) {
	identity, _ := auth.IdentityFromContext(request.Context())

	err := router.dashboard.DeleteEntry(request.Context(), identity, chi.URLParam(request, "id"))
	switch {
	case errors.Is(err, service.ErrEntryNotFound):
		response.WriteHeader(http.StatusNotFound)
		return
	case err != nil:
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusNoContent)
}

// GetApiinternalstats returns the number of users and stored entries.
func (router *Router) GetApiinternalstats(response http.ResponseWriter, request *http.Request) {
	stats, err := router.vault.GetInternalStats(request.Context())
	if err != nil {
		logger.Log.Errorln("Error calling the `router.vault.GetInternalStats()`: ", err)
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(response, http.StatusOK, stats)
}
