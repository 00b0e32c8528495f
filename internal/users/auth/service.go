// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/taibuivan/gatekeep/internal/platform/apperr"
	"github.com/taibuivan/gatekeep/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeep/internal/platform/metrics"
	"github.com/taibuivan/gatekeep/internal/platform/observability"
	"github.com/taibuivan/gatekeep/internal/platform/sec"
	"github.com/taibuivan/gatekeep/internal/platform/validate"
	"github.com/taibuivan/gatekeep/internal/system/audit"
)

// # Contracts & Types

// TokenCodec is the signing capability the service needs. [*sec.TokenCodec] satisfies it.
type TokenCodec interface {
	IssueAccess(subjectID string, extras sec.AccessExtras) (string, error)
	IssueRefresh(subjectID string) (string, error)
	Verify(token string, expectedKind sec.TokenKind) (*sec.AccessClaims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Deps groups the collaborators of [Service].
type Deps struct {
	Accounts  AccountStore
	Roles     RoleStore
	Sessions  *SessionManager
	Codec     TokenCodec
	Passwords sec.Hasher

	// Failures is optional. Without it repeated invalid credentials are not tracked.
	Failures FailureTracker

	// Audit defaults to [audit.NopRecorder].
	Audit audit.Recorder

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Config tunes the service.
type Config struct {
	// FailureThreshold is the failed-login count at which the attempt is reported at WARN.
	FailureThreshold int64

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service orchestrates the authentication flows.
//
// It holds no per-account state; every decision is taken against the stored
// account, and concurrent refreshes are arbitrated by the storage layer.
type Service struct {
	accounts  AccountStore
	roles     RoleStore
	sessions  *SessionManager
	codec     TokenCodec
	passwords sec.Hasher
	failures  FailureTracker
	audit     audit.Recorder
	metrics   *metrics.Metrics
	resolver  RoleResolver

	failureThreshold int64
	now              func() time.Time

	// dummyHash is verified against when the identifier is unknown.
	dummyHash string
}

// NewService constructs a [Service]. It fails only if the dummy password hash cannot be built.
func NewService(deps Deps, config Config) (*Service, error) {
	if deps.Accounts == nil || deps.Roles == nil || deps.Sessions == nil || deps.Codec == nil || deps.Passwords == nil {
		return nil, errors.New("auth: accounts, roles, sessions, codec and passwords are required")
	}

	dummyHash, err := deps.Passwords.Hash("gatekeep-timing-equaliser")
	if err != nil {
		return nil, fmt.Errorf("auth_service_dummy_hash_failed: %w", err)
	}

	recorder := deps.Audit
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	threshold := config.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}

	return &Service{
		accounts:         deps.Accounts,
		roles:            deps.Roles,
		sessions:         deps.Sessions,
		codec:            deps.Codec,
		passwords:        deps.Passwords,
		failures:         deps.Failures,
		audit:            recorder,
		metrics:          deps.Metrics,
		failureThreshold: threshold,
		now:              now,
		dummyHash:        dummyHash,
	}, nil
}

// TokenPair is a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// LoginResult is returned by every flow that (re)authenticates an account.
type LoginResult struct {
	Account    *Account
	Resolution Resolution
	Tokens     TokenPair
}

// AccountContext is the read-only "who am I" projection.
type AccountContext struct {
	Account     AccountView `json:"account"`
	Roles       []string    `json:"roles"`
	Permissions []string    `json:"permissions"`
	Privileged  bool        `json:"privileged"`
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Identifier string // Username or email
	Password   string
	IPAddress  string
	UserAgent  string
}

/*
Login validates credentials and establishes the account's single session.

Description: Unknown identifiers and wrong passwords produce the same error. The
password is checked before the status so a disabled account is only revealed to
someone who knows its password. Exactly one audit event is emitted per call.

Parameters:
  - ctx: context.Context
  - input: LoginInput

Returns:
  - *LoginResult: Account, resolved roles and the token pair
  - error: ErrInvalidCredentials, ErrAccountDisabled or internal failures
*/
func (service *Service) Login(ctx context.Context, input LoginInput) (result *LoginResult, err error) {
	identifier := NormalizeIdentifier(input.Identifier)
	event := audit.Event{
		Action:    audit.ActionLogin,
		Subject:   identifier,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	}
	defer func() {
		service.record(ctx, &event, err)
		service.metrics.ObserveLogin(loginOutcome(err))
	}()

	account, err := service.accounts.FindByIdentifier(ctx, identifier)
	if err != nil {
		if !apperr.IsNotFound(err) {
			return nil, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
		}
		service.passwords.Verify(input.Password, service.dummyHash)
		service.noteFailure(ctx, identifier)
		return nil, apperr.ErrInvalidCredentials
	}

	event.ActorID = account.ID

	if !service.passwords.Verify(input.Password, account.PasswordHash) {
		service.noteFailure(ctx, identifier)
		return nil, apperr.ErrInvalidCredentials
	}

	if !account.IsActive() {
		return nil, apperr.ErrAccountDisabled
	}

	resolution := service.resolver.ResolveActive(account)

	tokens, err := service.issuePair(account, resolution)
	if err != nil {
		return nil, err
	}

	device := DeviceInfo{IPAddress: input.IPAddress, UserAgent: input.UserAgent}
	if err := service.sessions.Establish(ctx, account.ID, tokens.RefreshToken, device); err != nil {
		return nil, fmt.Errorf("auth_service_login_session_failed: %w", err)
	}

	loggedInAt := service.now().UTC()
	if err := service.accounts.TouchLastLogin(ctx, account.ID, loggedInAt); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "last_login_update_failed",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	} else {
		account.LastLoginAt = &loggedInAt
	}

	service.resetFailures(ctx, identifier)

	ctxutil.GetLogger(ctx).InfoContext(ctx, "login_succeeded", slog.String("account_id", account.ID))

	return &LoginResult{Account: account, Resolution: resolution, Tokens: tokens}, nil
}

/*
Logout clears the account's session.

Description: Idempotent. Clearing an absent session, or the session of an account
that no longer exists, succeeds.
*/
func (service *Service) Logout(ctx context.Context, accountID string, device DeviceInfo) (err error) {
	if accountID == "" {
		return nil
	}

	event := audit.Event{
		ActorID:   accountID,
		Action:    audit.ActionLogout,
		Subject:   accountID,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
	}
	defer func() { service.record(ctx, &event, err) }()

	if err := service.sessions.Clear(ctx, accountID); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	service.metrics.ObserveSessionCleared(metrics.ReasonLogout)
	return nil
}

// # Refresh Flow

/*
Refresh exchanges a refresh token for a new pair and rotates the stored session.

Description: The presented token is classified as current, in grace or reused. A
reused token destroys the session before failing. Losing the rotation race to a
concurrent refresh re-runs the classification against the newly stored session, at
most [MaxRotateAttempts] times.

Parameters:
  - ctx: context.Context
  - rawRefreshToken: string
  - device: DeviceInfo

Returns:
  - *LoginResult: Account, resolved roles and the new token pair
  - error: ErrInvalidToken, ErrSessionRevoked, ErrAccountDisabled, ErrTokenReuseDetected
*/
func (service *Service) Refresh(ctx context.Context, rawRefreshToken string, device DeviceInfo) (result *LoginResult, err error) {
	event := audit.Event{
		Action:    audit.ActionRefresh,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
	}
	state := StateCurrent
	defer func() {
		service.record(ctx, &event, err)
		service.metrics.ObserveRefresh(refreshOutcome(state, err))
	}()

	claims, err := service.codec.Verify(rawRefreshToken, sec.KindRefresh)
	if err != nil {
		return nil, apperr.ErrInvalidToken
	}

	accountID := claims.AccountID()
	event.ActorID = accountID
	event.Subject = accountID

	for attempt := 1; ; attempt++ {
		result, state, err = service.rotateOnce(ctx, accountID, rawRefreshToken, device)
		if !errors.Is(err, ErrSessionConflict) {
			return result, err
		}

		if attempt >= MaxRotateAttempts {
			return nil, apperr.Conflict("Session changed concurrently, please retry").WithCause(err)
		}

		ctxutil.GetLogger(ctx).DebugContext(ctx, "refresh_rotation_conflict",
			slog.String("account_id", accountID),
			slog.Int("attempt", attempt),
		)
	}
}

// rotateOnce runs one pass of the rotation state machine against the stored session.
func (service *Service) rotateOnce(ctx context.Context, accountID, rawRefreshToken string, device DeviceInfo) (*LoginResult, RotationState, error) {
	account, err := service.sessions.LoadWithSession(ctx, accountID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, StateCurrent, apperr.ErrSessionRevoked
		}
		return nil, StateCurrent, fmt.Errorf("auth_service_refresh_lookup_failed: %w", err)
	}

	if !service.sessions.Live(account.Session) {
		return nil, StateCurrent, apperr.ErrSessionRevoked
	}

	if !account.IsActive() {
		return nil, StateCurrent, apperr.ErrAccountDisabled
	}

	state := service.sessions.Classify(account.Session, rawRefreshToken)
	switch state {
	case StateReused:
		return nil, state, service.destroyReusedSession(ctx, account, device)
	case StateInGrace:
		ctxutil.GetLogger(ctx).InfoContext(ctx, "refresh_within_grace", slog.String("account_id", account.ID))
	}

	resolution := service.resolver.ResolveActive(account)

	tokens, err := service.issuePair(account, resolution)
	if err != nil {
		return nil, state, err
	}

	if err := service.sessions.Rotate(ctx, account.ID, tokens.RefreshToken, device, account.Session); err != nil {
		if errors.Is(err, ErrSessionConflict) {
			return nil, state, err
		}
		return nil, state, fmt.Errorf("auth_service_refresh_rotate_failed: %w", err)
	}

	return &LoginResult{Account: account, Resolution: resolution, Tokens: tokens}, state, nil
}

// destroyReusedSession clears the session of an account whose rotated token was replayed.
func (service *Service) destroyReusedSession(ctx context.Context, account *Account, device DeviceInfo) error {
	if err := service.sessions.Clear(ctx, account.ID); err != nil {
		return fmt.Errorf("auth_service_reuse_clear_failed: %w", err)
	}

	service.metrics.ObserveSessionCleared(metrics.ReasonReuse)

	ctxutil.GetLogger(ctx).WarnContext(ctx, "refresh_token_reuse_detected",
		slog.String("account_id", account.ID),
		slog.String("ip", device.IPAddress),
		slog.String("user_agent", device.UserAgent),
	)
	observability.CaptureSecurityEvent("refresh token reuse detected", map[string]string{
		"account_id": account.ID,
	})

	return apperr.ErrTokenReuseDetected
}

// # Password Management

// ChangePasswordInput carries a password change request.
type ChangePasswordInput struct {
	AccountID       string
	CurrentPassword string
	NewPassword     string
	IPAddress       string
	UserAgent       string
}

/*
ChangePassword replaces the password and re-authenticates the account on it.

Description: A new password equal to the current one is refused before anything is
read or written. On success the pending password-change flag is lifted and a fresh
pair replaces the session, so the caller stays signed in.

Returns:
  - *LoginResult: The re-issued pair
  - error: ErrPasswordUnchanged, ErrPasswordIncorrect, ErrAccountDisabled or internal failures
*/
func (service *Service) ChangePassword(ctx context.Context, input ChangePasswordInput) (result *LoginResult, err error) {
	event := audit.Event{
		ActorID:   input.AccountID,
		Action:    audit.ActionChangePassword,
		Subject:   input.AccountID,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	}
	defer func() { service.record(ctx, &event, err) }()

	if input.NewPassword == input.CurrentPassword {
		return nil, apperr.ErrPasswordUnchanged
	}

	if err := validateNewPassword(input.NewPassword); err != nil {
		return nil, err
	}

	account, err := service.accounts.FindByID(ctx, input.AccountID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.ErrSessionRevoked
		}
		return nil, fmt.Errorf("auth_service_change_password_lookup_failed: %w", err)
	}

	if !account.IsActive() {
		return nil, apperr.ErrAccountDisabled
	}

	if !service.passwords.Verify(input.CurrentPassword, account.PasswordHash) {
		return nil, apperr.ErrPasswordIncorrect
	}

	hashed, err := service.passwords.Hash(input.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	if err := service.accounts.UpdatePassword(ctx, account.ID, hashed); err != nil {
		return nil, fmt.Errorf("auth_service_change_password_failed: %w", err)
	}
	account.PasswordHash = hashed
	account.MustChangePassword = false

	resolution := service.resolver.ResolveActive(account)

	tokens, err := service.issuePair(account, resolution)
	if err != nil {
		return nil, err
	}

	device := DeviceInfo{IPAddress: input.IPAddress, UserAgent: input.UserAgent}
	if err := service.sessions.Rotate(ctx, account.ID, tokens.RefreshToken, device, nil); err != nil {
		return nil, service.abandonSessionAfterPasswordChange(ctx, account.ID, err)
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "password_changed", slog.String("account_id", account.ID))

	return &LoginResult{Account: account, Resolution: resolution, Tokens: tokens}, nil
}

// abandonSessionAfterPasswordChange handles a committed password whose session could
// not be replaced. The old session is cleared and the caller is sent back to login,
// where the new password already works.
func (service *Service) abandonSessionAfterPasswordChange(ctx context.Context, accountID string, cause error) error {
	logger := ctxutil.GetLogger(ctx)
	logger.ErrorContext(ctx, "password_changed_session_not_replaced",
		slog.String("account_id", accountID),
		slog.String("error", cause.Error()),
	)

	if err := service.sessions.Clear(ctx, accountID); err != nil {
		logger.ErrorContext(ctx, "password_changed_session_clear_failed",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	}

	return apperr.ErrSessionRevoked
}

// # Read Models

// GetContext returns the account with its active roles and flattened permissions.
func (service *Service) GetContext(ctx context.Context, accountID string) (*AccountContext, error) {
	account, err := service.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	resolution := service.resolver.ResolveActive(account)

	return &AccountContext{
		Account:     account.View(),
		Roles:       resolution.Slugs,
		Permissions: resolution.Permissions,
		Privileged:  resolution.IsPrivilegedOverride,
	}, nil
}

// LoadPrincipal returns the live view of an account for the second gate stage.
func (service *Service) LoadPrincipal(ctx context.Context, accountID string) (*sec.Principal, error) {
	account, err := service.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	resolution := service.resolver.ResolveActive(account)

	return &sec.Principal{
		AccountID:          account.ID,
		Username:           account.Username,
		Active:             account.IsActive(),
		MustChangePassword: account.MustChangePassword,
		Roles:              resolution.Slugs,
		Permissions:        resolution.PermissionSet(),
	}, nil
}

// # Internal Helpers

func (service *Service) issuePair(account *Account, resolution Resolution) (TokenPair, error) {
	access, err := service.codec.IssueAccess(account.ID, sec.AccessExtras{
		Username:           account.Username,
		Roles:              resolution.Slugs,
		MustChangePassword: account.MustChangePassword,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth_service_issue_access_failed: %w", err)
	}

	refresh, err := service.codec.IssueRefresh(account.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth_service_issue_refresh_failed: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessTTL:    service.codec.AccessTTL(),
		RefreshTTL:   service.codec.RefreshTTL(),
	}, nil
}

// record completes event from the flow's result and hands it to the recorder.
func (service *Service) record(ctx context.Context, event *audit.Event, err error) {
	now := service.now().UTC()
	event.ID = audit.NewID(now)
	event.CreatedAt = now
	event.Outcome = audit.OutcomeSuccess

	if err != nil {
		event.Outcome = audit.OutcomeFailure
		event.Reason = apperr.CodeInternal
		if appErr := apperr.As(err); appErr != nil {
			event.Reason = appErr.Code
		}
	}

	service.audit.Record(ctx, *event)
}

func (service *Service) noteFailure(ctx context.Context, identifier string) {
	logger := ctxutil.GetLogger(ctx)
	if service.failures == nil || identifier == "" {
		logger.InfoContext(ctx, "login_failed", slog.String("identifier", identifier))
		return
	}

	count, err := service.failures.RecordFailure(ctx, identifier)
	if err != nil {
		logger.WarnContext(ctx, "login_failure_tracking_failed", slog.String("error", err.Error()))
		return
	}

	if count < service.failureThreshold {
		logger.InfoContext(ctx, "login_failed", slog.String("identifier", identifier), slog.Int64("failures", count))
		return
	}

	logger.WarnContext(ctx, "repeated_invalid_credentials",
		slog.String("identifier", identifier),
		slog.Int64("failures", count),
	)
	if count == service.failureThreshold {
		observability.CaptureSecurityEvent("repeated invalid credentials", map[string]string{
			"identifier": identifier,
			"failures":   strconv.FormatInt(count, 10),
		})
	}
}

func (service *Service) resetFailures(ctx context.Context, identifier string) {
	if service.failures == nil {
		return
	}
	if err := service.failures.Reset(ctx, identifier); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "login_failure_reset_failed", slog.String("error", err.Error()))
	}
}

func validateNewPassword(password string) error {
	validator := &validate.Validator{}
	validator.MinLen(FieldNewPassword, password, PasswordMinLength).
		MaxBytes(FieldNewPassword, password, PasswordMaxLength)
	return validator.Err()
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return metrics.OutcomeInvalidCredentials
	case errors.Is(err, apperr.ErrAccountDisabled):
		return metrics.OutcomeDisabled
	default:
		return metrics.OutcomeError
	}
}

func refreshOutcome(state RotationState, err error) string {
	switch {
	case err == nil && state == StateInGrace:
		return metrics.OutcomeGrace
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, apperr.ErrTokenReuseDetected):
		return metrics.OutcomeReused
	case errors.Is(err, apperr.ErrInvalidToken):
		return metrics.OutcomeInvalidToken
	case errors.Is(err, apperr.ErrSessionRevoked):
		return metrics.OutcomeRevoked
	case errors.Is(err, apperr.ErrAccountDisabled):
		return metrics.OutcomeDisabled
	default:
		return metrics.OutcomeError
	}
}
