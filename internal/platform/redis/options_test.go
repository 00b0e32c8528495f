// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeep/internal/platform/constants"
)

func TestClientOptions(t *testing.T) {
	options, err := clientOptions("redis://:secret@cache:6380/2")
	require.NoError(t, err)

	assert.Equal(t, "cache:6380", options.Addr)
	assert.Equal(t, 2, options.DB)
	assert.Equal(t, "secret", options.Password)
	assert.Equal(t, constants.AppName, options.ClientName)
	assert.Equal(t, commandTimeout, options.ReadTimeout)
}
