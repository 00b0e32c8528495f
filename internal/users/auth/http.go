// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/gatekeep/internal/platform/apperr"
	"github.com/taibuivan/gatekeep/internal/platform/constants"
	"github.com/taibuivan/gatekeep/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeep/internal/platform/middleware"
	requestutil "github.com/taibuivan/gatekeep/internal/platform/request"
	"github.com/taibuivan/gatekeep/internal/platform/respond"
	"github.com/taibuivan/gatekeep/internal/platform/sec"
	"github.com/taibuivan/gatekeep/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the authentication HTTP endpoints.
//
// # Scope
//
// Credentials travel as two HttpOnly cookies. The handler owns setting and
// clearing them; every decision about their validity belongs to [Service].
type Handler struct {
	service       *Service
	codec         *sec.TokenCodec
	secureCookies bool
}

// NewHandler constructs a new [Handler]. secureCookies should be true outside development.
func NewHandler(service *Service, codec *sec.TokenCodec, secureCookies bool) *Handler {
	return &Handler{service: service, codec: codec, secureCookies: secureCookies}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /login           : Authenticates and sets both credential cookies.
//   - POST /register        : Creates a member account.
//   - POST /refresh         : Rotates the session.
//   - POST /logout          : Clears the session and both cookies. Always succeeds.
//   - POST /change-password : Requires a verified access token.
//   - GET  /me              : Requires a verified token and a live account.
//   - POST /accounts        : As /me, plus the accounts.create permission.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/login", handler.login)
	router.Post("/register", handler.register)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(handler.codec))
		r.Use(middleware.RequireAuth)
		r.Post("/change-password", handler.changePassword)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireLiveAccount(handler.service, constants.ChangePasswordPath))
			r.Get("/me", handler.me)
			r.With(middleware.RequirePermissions(middleware.MatchAll, PermissionAccountsCreate)).
				Post("/accounts", handler.provision)
		})
	})

	return router
}

// # Request Payloads

type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type provisionRequest struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// sessionResponse is returned by every endpoint that sets credential cookies.
type sessionResponse struct {
	Account     AccountView `json:"account"`
	Roles       []string    `json:"roles"`
	Permissions []string    `json:"permissions"`
	AccessToken string      `json:"accessToken"`
	TokenType   string      `json:"tokenType"`
	ExpiresIn   int64       `json:"expiresIn"`
}

func newSessionResponse(result *LoginResult) sessionResponse {
	return sessionResponse{
		Account:     result.Account.View(),
		Roles:       result.Resolution.Slugs,
		Permissions: result.Resolution.Permissions,
		AccessToken: result.Tokens.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(result.Tokens.AccessTTL / time.Second),
	}
}

/*
Login authenticates an account and establishes its session.

POST /api/v1/auth/login

Request:
  - Body: loginRequest (identifier, or username, or email; password)

Response:
  - 200: sessionResponse, plus accessToken and refreshToken cookies
  - 401: INVALID_CREDENTIALS
  - 403: ACCOUNT_DISABLED
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	identifier := firstNonEmpty(input.Identifier, input.Username, input.Email)

	validator := &validate.Validator{}
	validator.Required(FieldIdentifier, identifier)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.Login(request.Context(), LoginInput{
		Identifier: identifier,
		Password:   input.Password,
		IPAddress:  middleware.RealIP(request),
		UserAgent:  request.UserAgent(),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setCredentialCookies(writer, result.Tokens)
	respond.OK(writer, newSessionResponse(result))
}

/*
Register creates a member account holding the default roles.

POST /api/v1/auth/register

Response:
  - 201: AccountView
  - 400: VALIDATION_ERROR
  - 409: CONFLICT (username or email taken)
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	account, err := handler.service.Register(request.Context(), RegisterInput{
		Username:  input.Username,
		Email:     input.Email,
		Password:  input.Password,
		IPAddress: middleware.RealIP(request),
		UserAgent: request.UserAgent(),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, account.View())
}

/*
Refresh rotates the session and re-issues both credential cookies.

POST /api/v1/auth/refresh

Description: The refresh token is read from its cookie, or from the JSON body for
clients that cannot hold cookies. A detected reuse clears both cookies.

Response:
  - 200: sessionResponse
  - 401: INVALID_TOKEN, SESSION_REVOKED or TOKEN_REUSE_DETECTED
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	token := ""
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		token = cookie.Value
	}

	if token == "" && request.ContentLength != 0 {
		var input refreshRequest
		if err := requestutil.DecodeJSON(request, &input); err != nil {
			respond.Error(writer, request, validate.ErrInvalidJSON)
			return
		}
		token = input.RefreshToken
	}

	if token == "" {
		respond.Error(writer, request, apperr.ErrInvalidToken)
		return
	}

	result, err := handler.service.Refresh(request.Context(), token, DeviceInfo{
		IPAddress: middleware.RealIP(request),
		UserAgent: request.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, apperr.ErrTokenReuseDetected) || errors.Is(err, apperr.ErrSessionRevoked) {
			handler.clearCredentialCookies(writer)
		}
		respond.Error(writer, request, err)
		return
	}

	handler.setCredentialCookies(writer, result.Tokens)
	respond.OK(writer, newSessionResponse(result))
}

/*
Logout terminates the session and clears both cookies.

POST /api/v1/auth/logout

Description: The account is identified from a valid access token (cookie or Bearer
header), falling back to a valid refresh token (cookie or "refreshToken" body field).
Without either only the cookies are cleared.

Response:
  - 204: No Content
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if accountID := handler.identifyForLogout(request); accountID != "" {
		err := handler.service.Logout(request.Context(), accountID, DeviceInfo{
			IPAddress: middleware.RealIP(request),
			UserAgent: request.UserAgent(),
		})
		if err != nil {
			ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "logout_session_clear_failed")
		}
	}

	handler.clearCredentialCookies(writer)
	respond.NoContent(writer)
}

// identifyForLogout resolves the account from the access token (cookie or
// Authorization header), then from the refresh token (cookie or JSON body).
// Expired or malformed carriers are skipped.
func (handler *Handler) identifyForLogout(request *http.Request) string {
	if token, err := middleware.ExtractAccessToken(request); err == nil && token != "" {
		if claims, err := handler.codec.VerifyAccess(token); err == nil {
			return claims.AccountID()
		}
	}

	refreshToken := ""
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		refreshToken = cookie.Value
	}
	if refreshToken == "" && request.ContentLength != 0 {
		var input refreshRequest
		if err := requestutil.DecodeJSON(request, &input); err == nil {
			refreshToken = input.RefreshToken
		}
	}

	if refreshToken != "" {
		if claims, err := handler.codec.Verify(refreshToken, sec.KindRefresh); err == nil {
			return claims.AccountID()
		}
	}
	return ""
}

/*
ChangePassword replaces the password and re-issues both credential cookies.

POST /api/v1/auth/change-password

Response:
  - 200: sessionResponse
  - 400: PASSWORD_UNCHANGED, PASSWORD_INCORRECT or VALIDATION_ERROR
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	accountID, err := requestutil.RequiredAccountID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword).
		Custom(FieldConfirmPassword,
			input.NewPassword != input.CurrentPassword && input.ConfirmPassword != input.NewPassword,
			"Must match newPassword")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.ChangePassword(request.Context(), ChangePasswordInput{
		AccountID:       accountID,
		CurrentPassword: input.CurrentPassword,
		NewPassword:     input.NewPassword,
		IPAddress:       middleware.RealIP(request),
		UserAgent:       request.UserAgent(),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setCredentialCookies(writer, result.Tokens)
	respond.OK(writer, newSessionResponse(result))
}

// Me returns the live account with its active roles and permissions.
//
// GET /api/v1/auth/me
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	accountID, err := requestutil.RequiredAccountID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	accountContext, err := handler.service.GetContext(request.Context(), accountID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, accountContext)
}

/*
Provision creates an account on behalf of someone else.

POST /api/v1/auth/accounts

Response:
  - 201: AccountView (mustChangePassword is true)
  - 403: INSUFFICIENT_PERMISSIONS
  - 409: CONFLICT
*/
func (handler *Handler) provision(writer http.ResponseWriter, request *http.Request) {
	var input provisionRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	account, err := handler.service.Provision(request.Context(), ProvisionInput{
		Actor:     ctxutil.GetPrincipal(request.Context()),
		Username:  input.Username,
		Email:     input.Email,
		Password:  input.Password,
		Roles:     input.Roles,
		IPAddress: middleware.RealIP(request),
		UserAgent: request.UserAgent(),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, account.View())
}

// # Credential Cookies

func (handler *Handler) setCredentialCookies(writer http.ResponseWriter, tokens TokenPair) {
	http.SetCookie(writer, handler.cookie(constants.AccessTokenCookieName, tokens.AccessToken, tokens.AccessTTL))
	http.SetCookie(writer, handler.cookie(constants.RefreshTokenCookieName, tokens.RefreshToken, tokens.RefreshTTL))
}

func (handler *Handler) clearCredentialCookies(writer http.ResponseWriter) {
	http.SetCookie(writer, handler.cookie(constants.AccessTokenCookieName, "", -1))
	http.SetCookie(writer, handler.cookie(constants.RefreshTokenCookieName, "", -1))
}

// cookie builds a credential carrier. A negative lifetime expires it immediately.
func (handler *Handler) cookie(name, value string, lifetime time.Duration) *http.Cookie {
	maxAge := -1
	if lifetime > 0 {
		maxAge = int(lifetime / time.Second)
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     constants.AuthCookiePath,
		MaxAge:   maxAge,
		Secure:   handler.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
