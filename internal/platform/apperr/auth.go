// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apperr

import "net/http"

// # Authentication Taxonomy
//
// The closed set of authentication and session failures. Callers branch on these
// with [errors.Is]; the match is on Code (see [AppError.Is]), never on Message.

// Machine-readable codes for the authentication taxonomy.
const (
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeAccountDisabled         = "ACCOUNT_DISABLED"
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeSessionRevoked          = "SESSION_REVOKED"
	CodeTokenReuseDetected      = "TOKEN_REUSE_DETECTED"
	CodePasswordIncorrect       = "PASSWORD_INCORRECT"
	CodePasswordUnchanged       = "PASSWORD_UNCHANGED"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeMustChangePassword      = "MUST_CHANGE_PASSWORD"
)

var (
	// ErrInvalidCredentials is returned for an unknown identifier or a wrong password.
	// Both cases share one message so the response cannot be used for enumeration.
	ErrInvalidCredentials = &AppError{
		Code:       CodeInvalidCredentials,
		Message:    "Invalid login credentials",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrAccountDisabled is returned when the account status is not active.
	ErrAccountDisabled = &AppError{
		Code:       CodeAccountDisabled,
		Message:    "Account is disabled",
		HTTPStatus: http.StatusForbidden,
	}

	// ErrInvalidToken is returned for a bad signature, malformed payload or wrong token kind.
	// Clients must re-authenticate.
	ErrInvalidToken = &AppError{
		Code:       CodeInvalidToken,
		Message:    "Invalid token",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrTokenExpired is returned for a well-formed token past its expiry.
	// For access tokens the client should call the refresh endpoint.
	ErrTokenExpired = &AppError{
		Code:       CodeTokenExpired,
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrSessionRevoked is returned when no live session backs a refresh attempt.
	ErrSessionRevoked = &AppError{
		Code:       CodeSessionRevoked,
		Message:    "Session expired or revoked",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrTokenReuseDetected is returned after an already-rotated refresh token was
	// presented outside the grace window. The session has been destroyed by then.
	ErrTokenReuseDetected = &AppError{
		Code:       CodeTokenReuseDetected,
		Message:    "Refresh token reuse detected, please sign in again",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrPasswordIncorrect is returned when the current password does not verify.
	ErrPasswordIncorrect = &AppError{
		Code:       CodePasswordIncorrect,
		Message:    "Current password is incorrect",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrPasswordUnchanged is returned when the new password equals the current one.
	ErrPasswordUnchanged = &AppError{
		Code:       CodePasswordUnchanged,
		Message:    "New password must differ from the current password",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrInsufficientPermissions is returned when the resolved permission set does not
	// satisfy the route requirement.
	ErrInsufficientPermissions = &AppError{
		Code:       CodeInsufficientPermissions,
		Message:    "Insufficient permissions",
		HTTPStatus: http.StatusForbidden,
	}

	// ErrMustChangePassword is returned while the account is flagged for a password change.
	// Use [MustChangePassword] to attach the redirect hint.
	ErrMustChangePassword = &AppError{
		Code:       CodeMustChangePassword,
		Message:    "Password change required",
		HTTPStatus: http.StatusForbidden,
	}
)

// MustChangePassword returns [ErrMustChangePassword] carrying the route the client
// should navigate to.
func MustChangePassword(redirect string) *AppError {
	clone := *ErrMustChangePassword
	clone.Redirect = redirect
	return &clone
}

// IsSecuritySignal reports whether err is one of the failures that indicate a
// possible credential compromise and must reach the operational log at WARN.
func IsSecuritySignal(err error) bool {
	ae := As(err)
	if ae == nil {
		return false
	}
	return ae.Code == CodeTokenReuseDetected || ae.Code == CodeInvalidCredentials
}
