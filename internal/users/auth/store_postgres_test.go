// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

//go:build integration

package auth

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeep/internal/platform/apperr"
	"github.com/taibuivan/gatekeep/internal/platform/migration"
	"github.com/taibuivan/gatekeep/pkg/uuid"
)

// newTestPool connects to TEST_DATABASE_URL and applies the migrations.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, migration.RunUp(dsn, "../../../data/migrations", logger))

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresAccountRepository_Lifecycle(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	accounts := NewAccountRepository(pool)
	roles := NewRoleRepository(pool)

	defaults, err := roles.FindDefault(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, defaults)

	requested, err := roles.FindBySlugs(ctx, []string{"admin", "member", "ghost"})
	require.NoError(t, err)
	require.Len(t, requested, 2)
	assert.Equal(t, "admin", requested[0].Slug)

	id := uuid.New()
	suffix := id[len(id)-8:]
	created := &Account{
		ID:           id,
		Username:     "it-" + suffix,
		Email:        "it-" + suffix + "@example.com",
		PasswordHash: "digest",
		Status:       StatusActive,
		Roles:        requested,
	}
	require.NoError(t, accounts.Create(ctx, created))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM users.account WHERE id = $1", created.ID)
	})

	duplicate := *created
	duplicate.ID = uuid.New()
	err = accounts.Create(ctx, &duplicate)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)

	found, err := accounts.FindByIdentifier(ctx, created.Email)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, []string{"admin", "member"}, found.View().Roles)
	assert.Nil(t, found.Session)

	_, err = accounts.FindByID(ctx, uuid.New())
	assert.True(t, apperr.IsNotFound(err))

	now := time.Now().UTC().Truncate(time.Microsecond)
	first := ActiveSession{TokenHash: "hash-a", IPAddress: "10.0.0.1", UserAgent: "ua", IssuedAt: now, ExpiresAt: now.Add(time.Hour), LastRotatedAt: now}
	require.NoError(t, accounts.ReplaceSession(ctx, created.ID, first))

	withSession, err := accounts.FindByIDWithSession(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, withSession.Session)
	assert.Equal(t, "hash-a", withSession.Session.TokenHash)
	assert.True(t, withSession.Session.ExpiresAt.Equal(first.ExpiresAt))

	second := first
	second.TokenHash = "hash-b"

	swapped, err := accounts.SwapSession(ctx, created.ID, "hash-a", second)
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = accounts.SwapSession(ctx, created.ID, "hash-a", first)
	require.NoError(t, err)
	assert.False(t, swapped)

	require.NoError(t, accounts.UpdatePassword(ctx, created.ID, "digest-2"))
	require.NoError(t, accounts.TouchLastLogin(ctx, created.ID, now))

	require.NoError(t, accounts.ClearSession(ctx, created.ID))
	require.NoError(t, accounts.ClearSession(ctx, created.ID))

	withSession, err = accounts.FindByIDWithSession(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, withSession.Session)
	assert.Equal(t, "digest-2", withSession.PasswordHash)
	require.NotNil(t, withSession.LastLoginAt)
}
