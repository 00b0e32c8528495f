// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taibuivan/gatekeep/internal/platform/apperr"
	"github.com/taibuivan/gatekeep/internal/platform/constants"
	"github.com/taibuivan/gatekeep/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeep/internal/platform/respond"
	"github.com/taibuivan/gatekeep/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify access tokens in middleware.
//
// # Why an interface?
//
// Defining TokenVerifier here decouples the middleware from the token codec,
// allowing tests to inject fakes and keeping this package free of domain imports.
type TokenVerifier interface {
	VerifyAccess(token string) (*sec.AccessClaims, error)
}

// PrincipalLoader re-reads the live state of an account.
//
// It must return an error matching NOT_FOUND when the account no longer exists.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, accountID string) (*sec.Principal, error)
}

// # Stage 1: Verify

// Authenticate extracts and verifies the access token.
//
// # Flow
//  1. Read the 'accessToken' cookie; fall back to 'Authorization: Bearer <token>'.
//  2. If neither is present, the request proceeds as anonymous.
//  3. Verify the token as an access token via [TokenVerifier].
//  4. Inject the [*sec.AccessClaims] snapshot into the request context.
//
// Expired tokens answer TOKEN_EXPIRED so clients know to call refresh; every other
// failure answers INVALID_TOKEN.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Token Extraction ───────────────────────────────────────────
			token, err := ExtractAccessToken(request)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			// ── 2. Anonymous Access ───────────────────────────────────────────
			if token == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 3. Token Verification ─────────────────────────────────────────
			claims, err := verifier.VerifyAccess(token)
			if err != nil {
				if errors.Is(err, sec.ErrTokenExpired) {
					respond.Error(writer, request, apperr.ErrTokenExpired)
					return
				}
				ctxutil.GetLogger(request.Context()).DebugContext(request.Context(), "access_token_rejected", slog.String("error", err.Error()))
				respond.Error(writer, request, apperr.ErrInvalidToken)
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			recordIdentity(request.Context(), claims.AccountID())
			ctx := ctxutil.WithClaims(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// ExtractAccessToken returns the presented access token or "" when none was presented.
// The cookie takes priority over the header.
func ExtractAccessToken(request *http.Request) (string, error) {
	if cookie, err := request.Cookie(constants.AccessTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	authHeader := request.Header.Get(constants.HeaderAuthorization)
	if authHeader == "" {
		return "", nil
	}

	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", apperr.ErrInvalidToken
	}

	return strings.TrimSpace(token), nil
}

// RequireAuth blocks requests that are not authenticated.
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetClaims(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// # Stage 2: Require Live Account

// RequireLiveAccount re-reads the account behind the verified claims.
//
// Access-token claims are a snapshot taken at issuance and cannot be revoked, so this
// stage catches bans and newly-set password-change flags. It implies [RequireAuth].
//
// # Flow
//  1. Require claims in context.
//  2. Load the [*sec.Principal]; a vanished account answers SESSION_REVOKED.
//  3. A non-active account answers ACCOUNT_DISABLED.
//  4. A pending password change answers MUST_CHANGE_PASSWORD (with a redirect hint)
//     on every route except changePasswordPath.
//  5. Inject the principal for [RequirePermissions] and handlers.
func RequireLiveAccount(loader PrincipalLoader, changePasswordPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims := ctxutil.GetClaims(request.Context())
			if claims == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			principal, err := loader.LoadPrincipal(request.Context(), claims.AccountID())
			if err != nil {
				if apperr.IsNotFound(err) {
					respond.Error(writer, request, apperr.ErrSessionRevoked)
					return
				}
				respond.Error(writer, request, err)
				return
			}

			if !principal.Active {
				respond.Error(writer, request, apperr.ErrAccountDisabled)
				return
			}

			if principal.MustChangePassword && request.URL.Path != changePasswordPath {
				respond.Error(writer, request, apperr.MustChangePassword(changePasswordPath))
				return
			}

			ctx := ctxutil.WithPrincipal(request.Context(), principal)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Permission Checks

// Match selects how a permission list is evaluated.
type Match int

const (
	// MatchAll requires every listed permission.
	MatchAll Match = iota
	// MatchAny requires at least one listed permission.
	MatchAny
)

// RequirePermissions blocks requests whose live principal lacks the listed permissions.
//
// Must be registered AFTER [RequireLiveAccount]. The super-administrator override
// satisfies every requirement.
func RequirePermissions(match Match, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principal := ctxutil.GetPrincipal(request.Context())
			if principal == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			allowed := principal.Permissions.HasAll(permissions...)
			if match == MatchAny {
				allowed = principal.Permissions.HasAny(permissions...)
			}

			if !allowed {
				respond.Error(writer, request, apperr.ErrInsufficientPermissions)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Request Identity For Logging

// StructuredLogger runs before the gate, so the gate reports the account id back
// through a holder the logger placed in the context.

type identityHolderKey struct{}

type identityHolder struct {
	accountID string
}

func withIdentityHolder(ctx context.Context) context.Context {
	return context.WithValue(ctx, identityHolderKey{}, &identityHolder{})
}

func recordIdentity(ctx context.Context, accountID string) {
	if holder, ok := ctx.Value(identityHolderKey{}).(*identityHolder); ok {
		holder.accountID = accountID
	}
}
