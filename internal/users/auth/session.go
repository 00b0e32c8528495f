// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/gatekeep/internal/platform/sec"
)

// # Rotation States

// RotationState classifies a presented refresh token against the stored session.
type RotationState int

const (
	// StateCurrent means the token digest equals the stored digest.
	StateCurrent RotationState = iota

	// StateInGrace means the digest differs but the session was rotated within the grace window.
	StateInGrace

	// StateReused means the digest differs and the grace window has elapsed.
	StateReused
)

func (state RotationState) String() string {
	switch state {
	case StateCurrent:
		return "current"
	case StateInGrace:
		return "in_grace"
	default:
		return "reused"
	}
}

// # Session Manager

// SessionConfig carries the lifetimes the session manager stamps onto sessions.
type SessionConfig struct {
	RefreshTTL  time.Duration
	GracePeriod time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// SessionManager owns every write to the embedded [ActiveSession].
//
// An account holds at most one session. Establish overwrites unconditionally, which
// is what invalidates a previous device on a fresh login.
type SessionManager struct {
	accounts    AccountStore
	tokenHasher sec.Hasher
	refreshTTL  time.Duration
	gracePeriod time.Duration
	now         func() time.Time
}

// NewSessionManager constructs a [SessionManager].
func NewSessionManager(accounts AccountStore, tokenHasher sec.Hasher, config SessionConfig) *SessionManager {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &SessionManager{
		accounts:    accounts,
		tokenHasher: tokenHasher,
		refreshTTL:  config.RefreshTTL,
		gracePeriod: config.GracePeriod,
		now:         now,
	}
}

/*
Establish writes a brand-new session, replacing any prior one.

Parameters:
  - ctx: context.Context
  - accountID: string
  - refreshToken: string (raw; only its digest is stored)
  - device: DeviceInfo

Returns:
  - error: NOT_FOUND or storage failures
*/
func (manager *SessionManager) Establish(ctx context.Context, accountID, refreshToken string, device DeviceInfo) error {
	now := manager.now().UTC()

	next, err := manager.build(refreshToken, device, now, now)
	if err != nil {
		return err
	}

	if err := manager.accounts.ReplaceSession(ctx, accountID, next); err != nil {
		return fmt.Errorf("session_establish_failed: %w", err)
	}
	return nil
}

/*
Rotate replaces the session in place after a successful refresh.

Description: With a previous session the write only lands if the stored digest is
still previous.TokenHash, and the original IssuedAt is carried over. Without one the
session is replaced unconditionally and IssuedAt restarts.

Returns:
  - error: [ErrSessionConflict] when another rotation won the race
*/
func (manager *SessionManager) Rotate(ctx context.Context, accountID, newRefreshToken string, device DeviceInfo, previous *ActiveSession) error {
	now := manager.now().UTC()

	issuedAt := now
	if previous != nil && !previous.IssuedAt.IsZero() {
		issuedAt = previous.IssuedAt
	}

	next, err := manager.build(newRefreshToken, device, issuedAt, now)
	if err != nil {
		return err
	}

	if previous == nil {
		if err := manager.accounts.ReplaceSession(ctx, accountID, next); err != nil {
			return fmt.Errorf("session_rotate_failed: %w", err)
		}
		return nil
	}

	swapped, err := manager.accounts.SwapSession(ctx, accountID, previous.TokenHash, next)
	if err != nil {
		return fmt.Errorf("session_rotate_failed: %w", err)
	}
	if !swapped {
		return ErrSessionConflict
	}
	return nil
}

// Clear empties the session. It is safe to call when no session exists.
func (manager *SessionManager) Clear(ctx context.Context, accountID string) error {
	if err := manager.accounts.ClearSession(ctx, accountID); err != nil {
		return fmt.Errorf("session_clear_failed: %w", err)
	}
	return nil
}

// LoadWithSession fetches the account including the stored session digest.
func (manager *SessionManager) LoadWithSession(ctx context.Context, accountID string) (*Account, error) {
	return manager.accounts.FindByIDWithSession(ctx, accountID)
}

// Live reports whether session exists and has not passed its expiry.
func (manager *SessionManager) Live(session *ActiveSession) bool {
	return session != nil && session.TokenHash != "" && !session.IsExpired(manager.now())
}

/*
Classify places refreshToken in the rotation state machine.

A matching digest is current. A mismatch is tolerated while no more than the grace
period has passed since the last rotation; after that it is treated as reuse.
*/
func (manager *SessionManager) Classify(session *ActiveSession, refreshToken string) RotationState {
	if manager.tokenHasher.Verify(refreshToken, session.TokenHash) {
		return StateCurrent
	}

	if manager.now().Sub(session.LastRotatedAt) <= manager.gracePeriod {
		return StateInGrace
	}
	return StateReused
}

func (manager *SessionManager) build(refreshToken string, device DeviceInfo, issuedAt, now time.Time) (ActiveSession, error) {
	digest, err := manager.tokenHasher.Hash(refreshToken)
	if err != nil {
		return ActiveSession{}, fmt.Errorf("session_digest_failed: %w", err)
	}

	return ActiveSession{
		TokenHash:     digest,
		IPAddress:     device.IPAddress,
		UserAgent:     device.UserAgent,
		IssuedAt:      issuedAt,
		ExpiresAt:     now.Add(manager.refreshTTL),
		LastRotatedAt: now,
	}, nil
}
