// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/taibuivan/gatekeep/internal/platform/apperr"
	"github.com/taibuivan/gatekeep/internal/platform/constants"
	"github.com/taibuivan/gatekeep/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeep/internal/platform/sec"
	"github.com/taibuivan/gatekeep/internal/platform/validate"
	"github.com/taibuivan/gatekeep/internal/system/audit"
	"github.com/taibuivan/gatekeep/pkg/slice"
	"github.com/taibuivan/gatekeep/pkg/uuid"
)

// usernamePattern excludes '@' so a username can never be mistaken for an email at login.
var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

/*
Register creates an active account holding the default roles.

Description: No session is established; the caller signs in afterwards.

Returns:
  - *Account: Created entity
  - error: VALIDATION_ERROR, CONFLICT (username or email taken) or storage errors
*/
func (service *Service) Register(ctx context.Context, input RegisterInput) (created *Account, err error) {
	event := audit.Event{
		Action:    audit.ActionRegister,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	}
	defer func() { service.record(ctx, &event, err) }()

	username, email, err := normaliseEnrollment(input.Username, input.Email, input.Password)
	event.Subject = username
	if err != nil {
		return nil, err
	}

	roles, err := service.roles.FindDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth_service_default_roles_failed: %w", err)
	}

	created, err = service.enroll(ctx, username, email, input.Password, roles, false)
	if err != nil {
		return nil, err
	}

	event.ActorID = created.ID
	ctxutil.GetLogger(ctx).InfoContext(ctx, "account_registered", slog.String("account_id", created.ID))
	return created, nil
}

// ProvisionInput holds an administrator's request to create an account for someone else.
type ProvisionInput struct {
	Actor     *sec.Principal
	Username  string
	Email     string
	Password  string
	Roles     []string // Slugs; empty means the default roles
	IPAddress string
	UserAgent string
}

/*
Provision creates an account on behalf of another user.

Description: The account must change its password at first sign-in. Only a
privileged actor may hand out the super-administrator role.

Returns:
  - *Account: Created entity
  - error: VALIDATION_ERROR, INSUFFICIENT_PERMISSIONS, CONFLICT or storage errors
*/
func (service *Service) Provision(ctx context.Context, input ProvisionInput) (created *Account, err error) {
	event := audit.Event{
		Action:    audit.ActionProvision,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	}
	if input.Actor != nil {
		event.ActorID = input.Actor.AccountID
	}
	defer func() { service.record(ctx, &event, err) }()

	if input.Actor == nil || !input.Actor.Permissions.Has(PermissionAccountsCreate) {
		return nil, apperr.ErrInsufficientPermissions
	}

	username, email, err := normaliseEnrollment(input.Username, input.Email, input.Password)
	event.Subject = username
	if err != nil {
		return nil, err
	}

	roles, err := service.resolveRequestedRoles(ctx, input.Roles)
	if err != nil {
		return nil, err
	}

	for _, role := range roles {
		if role.Slug == constants.SuperAdminRoleSlug && !input.Actor.Permissions.Privileged() {
			return nil, apperr.ErrInsufficientPermissions
		}
	}

	created, err = service.enroll(ctx, username, email, input.Password, roles, true)
	if err != nil {
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "account_provisioned",
		slog.String("account_id", created.ID),
		slog.String("actor_id", input.Actor.AccountID),
	)
	return created, nil
}

// resolveRequestedRoles maps slugs to roles, rejecting any slug that does not exist.
func (service *Service) resolveRequestedRoles(ctx context.Context, slugs []string) ([]Role, error) {
	requested := slice.Unique(slice.Map(slugs, NormalizeIdentifier))
	if err := (&validate.Validator{}).Slugs(FieldRoles, requested).Err(); err != nil {
		return nil, err
	}
	if len(requested) == 0 {
		roles, err := service.roles.FindDefault(ctx)
		if err != nil {
			return nil, fmt.Errorf("auth_service_default_roles_failed: %w", err)
		}
		return roles, nil
	}

	roles, err := service.roles.FindBySlugs(ctx, requested)
	if err != nil {
		return nil, fmt.Errorf("auth_service_find_roles_failed: %w", err)
	}

	if len(roles) != len(requested) {
		return nil, validate.FieldError(FieldRoles, "Contains an unknown role")
	}
	return roles, nil
}

func (service *Service) enroll(ctx context.Context, username, email, password string, roles []Role, mustChangePassword bool) (*Account, error) {
	hashed, err := service.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	now := service.now().UTC()
	account := &Account{
		ID:                 uuid.New(),
		Username:           username,
		Email:              email,
		PasswordHash:       hashed,
		Status:             StatusActive,
		Roles:              roles,
		MustChangePassword: mustChangePassword,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := service.accounts.Create(ctx, account); err != nil {
		if apperr.IsAppError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("auth_service_create_account_failed: %w", err)
	}
	return account, nil
}

// normaliseEnrollment canonicalises and validates new account credentials.
func normaliseEnrollment(rawUsername, rawEmail, password string) (string, string, error) {
	username := NormalizeIdentifier(rawUsername)
	email := NormalizeIdentifier(rawEmail)

	validator := &validate.Validator{}
	validator.Required(FieldUsername, username).
		MinLen(FieldUsername, username, UsernameMinLength).
		MaxLen(FieldUsername, username, UsernameMaxLength).
		Pattern(FieldUsername, username, usernamePattern, "Letters, digits, '.', '_' and '-' only").
		Required(FieldEmail, email).
		Email(FieldEmail, email).
		Required(FieldPassword, password).
		MinLen(FieldPassword, password, PasswordMinLength).
		MaxBytes(FieldPassword, password, PasswordMaxLength)

	return username, email, validator.Err()
}
