// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # Authentication Constraints

const (
	// MaxRotateAttempts bounds how often a refresh re-runs after losing the storage race.
	MaxRotateAttempts = 3

	// PasswordMinLength and PasswordMaxLength bound new passwords. bcrypt ignores input past 72 bytes.
	PasswordMinLength = 8
	PasswordMaxLength = 72

	// UsernameMinLength and UsernameMaxLength bound usernames after normalisation.
	UsernameMinLength = 3
	UsernameMaxLength = 64

	// PermissionAccountsCreate allows provisioning accounts on behalf of others.
	PermissionAccountsCreate = "accounts.create"
)
