// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeep/internal/platform/apperr"
	"github.com/taibuivan/gatekeep/internal/platform/validate"
)

// fields returns the failing field names in order.
func fields(t *testing.T, err error) []string {
	t.Helper()

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "VALIDATION_ERROR", ae.Code)

	names := make([]string, 0, len(ae.Details))
	for _, detail := range ae.Details {
		names = append(names, detail.Field)
	}
	return names
}

func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		hasError bool
	}{
		{"value", "alice", false},
		{"empty", "", true},
		{"whitespace_only", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Required("identifier", tt.value)

			if tt.hasError {
				assert.Equal(t, []string{"identifier"}, fields(t, v.Err()))
				return
			}
			assert.NoError(t, v.Err())
		})
	}
}

func TestValidator_Email(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		isValid bool
	}{
		{"bare_address", "alice@gatekeep.app", true},
		{"no_at_sign", "alice", false},
		{"missing_domain", "alice@", false},
		{"display_name", "Alice <alice@gatekeep.app>", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := (&validate.Validator{}).Email("email", tt.email)
			assert.Equal(t, !tt.isValid, v.HasErrors())
		})
	}
}

func TestValidator_LengthsCountCharactersAndBytes(t *testing.T) {
	// Five characters, ten bytes.
	value := strings.Repeat("é", 5)

	assert.NoError(t, (&validate.Validator{}).MaxLen("name", value, 5).Err())
	assert.NoError(t, (&validate.Validator{}).MinLen("name", value, 5).Err())
	assert.Error(t, (&validate.Validator{}).MaxBytes("password", value, 9).Err())
	assert.NoError(t, (&validate.Validator{}).MaxBytes("password", value, 10).Err())
}

func TestValidator_PatternSkipsEmptyValues(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z]+$`)

	assert.NoError(t, (&validate.Validator{}).Pattern("username", "", pattern, "letters").Err())
	assert.NoError(t, (&validate.Validator{}).Pattern("username", "alice", pattern, "letters").Err())
	assert.Error(t, (&validate.Validator{}).Pattern("username", "al1ce", pattern, "letters").Err())
}

func TestValidator_SlugsReportsOnce(t *testing.T) {
	assert.NoError(t, (&validate.Validator{}).Slugs("roles", []string{"member", "super-admin"}).Err())

	err := (&validate.Validator{}).Slugs("roles", []string{"Bad Slug", "-also-bad"}).Err()
	assert.Equal(t, []string{"roles"}, fields(t, err))
}

func TestValidator_ChainAccumulates(t *testing.T) {
	err := (&validate.Validator{}).
		Required("username", "").
		MinLen("username", "", 3).
		Email("email", "not-an-email").
		Custom("confirmPassword", true, "Must match newPassword").
		Err()

	assert.Equal(t, []string{"username", "username", "email", "confirmPassword"}, fields(t, err))
}

func TestFieldError(t *testing.T) {
	err := validate.FieldError("roles", "Contains an unknown role")

	require.Len(t, err.Details, 1)
	assert.Equal(t, "Contains an unknown role", err.Details[0].Message)
}
