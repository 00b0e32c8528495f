// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"time"
)

// ErrSessionConflict is returned by a conditional session write whose expected
// digest no longer matches the stored one: another request rotated first.
var ErrSessionConflict = errors.New("auth: session changed concurrently")

// # Account Data Access

// AccountStore defines the data access contract for accounts and their embedded session.
//
// Lookups return an error matching apperr NOT_FOUND when no account exists.
type AccountStore interface {

	/*
		FindByIdentifier returns the account whose username or email equals identifier.

		Parameters:
		  - context: context.Context
		  - identifier: string (already normalised)

		Returns:
		  - *Account: Hydrated entity with roles, without session
		  - error: NOT_FOUND or database failures
	*/
	FindByIdentifier(context context.Context, identifier string) (*Account, error)

	// FindByID returns the account with its roles. The session is never loaded.
	FindByID(context context.Context, id string) (*Account, error)

	// FindByIDWithSession is FindByID plus the normally hidden session block.
	FindByIDWithSession(context context.Context, id string) (*Account, error)

	/*
		ReplaceSession overwrites the session unconditionally.

		Returns:
		  - error: NOT_FOUND when the account does not exist
	*/
	ReplaceSession(context context.Context, id string, next ActiveSession) error

	/*
		SwapSession overwrites the session only if the stored digest still equals expectedHash.

		The comparison and the write are a single atomic statement at the storage layer.

		Returns:
		  - bool: false when the stored digest differed (nothing was written)
		  - error: Database failures
	*/
	SwapSession(context context.Context, id, expectedHash string, next ActiveSession) (bool, error)

	// ClearSession empties the session. Clearing an empty session is not an error.
	ClearSession(context context.Context, id string) error

	// UpdatePassword replaces the hash and clears the mustChangePassword flag.
	UpdatePassword(context context.Context, id, passwordHash string) error

	// TouchLastLogin records a successful login time.
	TouchLastLogin(context context.Context, id string, at time.Time) error

	/*
		Create persists a new account and its role assignments.

		Returns:
		  - error: CONFLICT on a duplicate username or email
	*/
	Create(context context.Context, account *Account) error
}

// # Role Data Access

// RoleStore defines the data access contract for roles.
type RoleStore interface {

	// FindDefault returns every role flagged for automatic assignment at registration.
	FindDefault(context context.Context) ([]Role, error)

	// FindBySlugs returns the roles with the given slugs. Unknown slugs are omitted.
	FindBySlugs(context context.Context, slugs []string) ([]Role, error)
}

// # Volatile Data Access

// FailureTracker counts failed logins per key inside a sliding window.
type FailureTracker interface {

	// RecordFailure increments the counter for key and returns the new count.
	RecordFailure(context context.Context, key string) (int64, error)

	// Reset drops the counter for key.
	Reset(context context.Context, key string) error
}
