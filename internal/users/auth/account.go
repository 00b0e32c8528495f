// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements account authentication and the session lifecycle.

It defines the Account aggregate (with its single embedded ActiveSession), the
role-to-permission resolution, and the four user-facing flows: login, logout,
refresh and change-password.

# Architecture

  - Model: Account, Role and ActiveSession value types (this file).
  - Storage: AccountStore / RoleStore contracts with PostgreSQL implementations.
  - SessionManager: single-active-session writes and rotation classification.
  - RoleResolver: active-role projection and permission flattening.
  - Service: orchestrates the flows and emits audit events.
  - Handler: the HTTP surface mounted under /api/v1/auth.
*/
package auth

import (
	"time"

	"github.com/taibuivan/gatekeep/pkg/slice"
)

// # Domain Entities

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	StatusActive  AccountStatus = "active"
	StatusBanned  AccountStatus = "banned"
	StatusPending AccountStatus = "pending"
)

// RoleStatus is the lifecycle state of a role. Inactive roles stay assigned but grant nothing.
type RoleStatus string

const (
	RoleActive   RoleStatus = "active"
	RoleInactive RoleStatus = "inactive"
)

// Role is a named permission bundle.
type Role struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	Status      RoleStatus `json:"status"`
	IsSystem    bool       `json:"isSystem"`
	IsDefault   bool       `json:"isDefault"`
}

// ActiveSession is the single session embedded in an account.
//
// It has no identity of its own and is always replaced wholesale. TokenHash is the
// keyed digest of the refresh token, never the token itself.
type ActiveSession struct {
	TokenHash     string
	IPAddress     string
	UserAgent     string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	LastRotatedAt time.Time
}

// IsExpired reports whether the session lifetime has elapsed at now.
func (session *ActiveSession) IsExpired(now time.Time) bool {
	return !now.Before(session.ExpiresAt)
}

// Account is the identity and authorization root.
type Account struct {
	ID                 string         `json:"id"`
	Username           string         `json:"username"`
	Email              string         `json:"email"`
	PasswordHash       string         `json:"-"`
	Status             AccountStatus  `json:"status"`
	Roles              []Role         `json:"-"`
	MustChangePassword bool           `json:"mustChangePassword"`
	Session            *ActiveSession `json:"-"`
	LastLoginAt        *time.Time     `json:"lastLoginAt,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// IsActive reports whether the account may authenticate.
func (account *Account) IsActive() bool {
	return account.Status == StatusActive
}

// DeviceInfo describes where a session was established from.
type DeviceInfo struct {
	IPAddress string
	UserAgent string
}

// # Projections

// AccountView is the sanitized account projection returned to clients.
type AccountView struct {
	ID                 string        `json:"id"`
	Username           string        `json:"username"`
	Email              string        `json:"email"`
	Status             AccountStatus `json:"status"`
	Roles              []string      `json:"roles"`
	MustChangePassword bool          `json:"mustChangePassword"`
	LastLoginAt        *time.Time    `json:"lastLoginAt,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
}

// View projects the account for clients. Role slugs include inactive assignments.
func (account *Account) View() AccountView {
	return AccountView{
		ID:                 account.ID,
		Username:           account.Username,
		Email:              account.Email,
		Status:             account.Status,
		Roles:              slice.Map(account.Roles, func(role Role) string { return role.Slug }),
		MustChangePassword: account.MustChangePassword,
		LastLoginAt:        account.LastLoginAt,
		CreatedAt:          account.CreatedAt,
	}
}

// # Field Identifiers

// JSON field names used in validation details.
const (
	FieldIdentifier      = "identifier"
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldCurrentPassword = "currentPassword"
	FieldNewPassword     = "newPassword"
	FieldConfirmPassword = "confirmPassword"
	FieldRefreshToken    = "refreshToken"
	FieldRoles           = "roles"
)
