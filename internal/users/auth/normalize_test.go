// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/gatekeep/internal/users/auth"
)

func TestNormalizeIdentifier(t *testing.T) {
	tests := map[string]string{
		"  Alice ":          "alice",
		"ALICE@Example.COM": "alice@example.com",
		"\uff21lice":        "alice",
		"":                  "",
		"   ":               "",
	}
	for input, expected := range tests {
		assert.Equal(t, expected, auth.NormalizeIdentifier(input), "%q", input)
	}
}
