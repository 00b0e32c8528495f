// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeep/internal/platform/apperr"
	"github.com/taibuivan/gatekeep/internal/platform/dberr"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, dberr.Wrap(nil, "Account", "find"))

	notFound := apperr.As(dberr.Wrap(fmt.Errorf("scan: %w", pgx.ErrNoRows), "Account", "find"))
	require.NotNil(t, notFound)
	assert.Equal(t, apperr.CodeNotFound, notFound.Code)
	assert.Equal(t, "Account not found", notFound.Message)

	duplicate := &pgconn.PgError{Code: "23505", ConstraintName: "account_email_key"}
	conflict := apperr.As(dberr.Wrap(duplicate, "Account", "insert"))
	require.NotNil(t, conflict)
	assert.Equal(t, "CONFLICT", conflict.Code)
	assert.Equal(t, "Account email is already taken", conflict.Message)
	assert.True(t, dberr.IsUniqueViolation(duplicate))

	internal := apperr.As(dberr.Wrap(errors.New("conn reset"), "Account", "update"))
	require.NotNil(t, internal)
	assert.Equal(t, 500, internal.HTTPStatus)
	assert.NotContains(t, internal.Message, "conn reset")
}
