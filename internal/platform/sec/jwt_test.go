// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeep/internal/platform/sec"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newCodec(t *testing.T, clock *testClock) *sec.TokenCodec {
	t.Helper()
	codec, err := sec.NewTokenCodec(sec.TokenCodecConfig{
		AccessSecret:  []byte(strings.Repeat("a", 32)),
		RefreshSecret: []byte(strings.Repeat("r", 32)),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "gatekeep.test",
		Now:           clock.Now,
	})
	require.NoError(t, err)
	return codec
}

/*
TestTokenCodec_RoundTrip verifies that both kinds verify back to the claims supplied at issuance.
*/
func TestTokenCodec_RoundTrip(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec := newCodec(t, clock)

	extras := sec.AccessExtras{Username: "alice", Roles: []string{"member", "editor"}, MustChangePassword: true}

	access, err := codec.IssueAccess("acc-1", extras)
	require.NoError(t, err)

	claims, err := codec.Verify(access, sec.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID())
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, []string{"member", "editor"}, claims.Roles)
	assert.True(t, claims.MustChangePassword)
	assert.Equal(t, sec.KindAccess, claims.Type)
	assert.Equal(t, "gatekeep.test", claims.Issuer)
	assert.Equal(t, clock.now.Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix())

	refresh, err := codec.IssueRefresh("acc-1")
	require.NoError(t, err)

	claims, err = codec.Verify(refresh, sec.KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, sec.KindRefresh, claims.Type)
	assert.Empty(t, claims.Username)
	assert.Empty(t, claims.Roles)
	assert.Equal(t, clock.now.Add(7*24*time.Hour).Unix(), claims.ExpiresAt.Unix())
}

/*
TestTokenCodec_UniquePerIssue ensures two tokens issued in the same instant differ.
*/
func TestTokenCodec_UniquePerIssue(t *testing.T) {
	codec := newCodec(t, &testClock{now: time.Now()})

	first, err := codec.IssueRefresh("acc-1")
	require.NoError(t, err)
	second, err := codec.IssueRefresh("acc-1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

/*
TestTokenCodec_KindMismatch rejects a structurally valid token presented as the other kind.
*/
func TestTokenCodec_KindMismatch(t *testing.T) {
	codec := newCodec(t, &testClock{now: time.Now()})

	access, err := codec.IssueAccess("acc-1", sec.AccessExtras{Username: "alice"})
	require.NoError(t, err)
	refresh, err := codec.IssueRefresh("acc-1")
	require.NoError(t, err)

	_, err = codec.Verify(refresh, sec.KindAccess)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
	assert.False(t, errors.Is(err, sec.ErrTokenExpired))

	_, err = codec.Verify(access, sec.KindRefresh)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)

	// Correct key, wrong type claim.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sec.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Type: sec.KindRefresh,
	}).SignedString([]byte(strings.Repeat("a", 32)))
	require.NoError(t, err)
	_, err = codec.VerifyAccess(forged)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
}

/*
TestTokenCodec_RejectsOtherAlgorithms refuses "none" even when the payload is well formed.
*/
func TestTokenCodec_RejectsOtherAlgorithms(t *testing.T) {
	codec := newCodec(t, &testClock{now: time.Now()})

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, sec.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Type: sec.KindAccess,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.VerifyAccess(unsigned)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
}

/*
TestTokenCodec_Expired surfaces expiry as a distinguishable sub-case of invalid.
*/
func TestTokenCodec_Expired(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec := newCodec(t, clock)

	access, err := codec.IssueAccess("acc-1", sec.AccessExtras{})
	require.NoError(t, err)

	clock.now = clock.now.Add(16 * time.Minute)

	_, err = codec.VerifyAccess(access)
	require.Error(t, err)
	assert.ErrorIs(t, err, sec.ErrTokenExpired)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
}

/*
TestTokenCodec_Tampered rejects garbage, foreign secrets and edited payloads.
*/
func TestTokenCodec_Tampered(t *testing.T) {
	clock := &testClock{now: time.Now()}
	codec := newCodec(t, clock)

	other, err := sec.NewTokenCodec(sec.TokenCodecConfig{
		AccessSecret:  []byte(strings.Repeat("x", 32)),
		RefreshSecret: []byte(strings.Repeat("y", 32)),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Now:           clock.Now,
	})
	require.NoError(t, err)

	foreign, err := other.IssueAccess("acc-1", sec.AccessExtras{})
	require.NoError(t, err)

	valid, err := codec.IssueAccess("acc-1", sec.AccessExtras{})
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	require.Len(t, parts, 3)
	edited := parts[0] + "." + parts[1] + "x." + parts[2]

	for name, token := range map[string]string{
		"empty":          "",
		"garbage":        "not-a-jwt",
		"foreign_secret": foreign,
		"edited_payload": edited,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := codec.VerifyAccess(token)
			assert.ErrorIs(t, err, sec.ErrInvalidToken)
			assert.False(t, errors.Is(err, sec.ErrTokenExpired))
		})
	}
}

/*
TestNewTokenCodec_Rejects guards against shared or missing secrets.
*/
func TestNewTokenCodec_Rejects(t *testing.T) {
	shared := []byte(strings.Repeat("s", 32))

	_, err := sec.NewTokenCodec(sec.TokenCodecConfig{AccessSecret: shared, RefreshSecret: shared, AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.Error(t, err)

	_, err = sec.NewTokenCodec(sec.TokenCodecConfig{AccessSecret: shared, AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.Error(t, err)

	_, err = sec.NewTokenCodec(sec.TokenCodecConfig{AccessSecret: shared, RefreshSecret: []byte("other"), RefreshTTL: time.Hour})
	assert.Error(t, err)
}
