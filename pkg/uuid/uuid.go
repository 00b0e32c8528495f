// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package uuid generates the time-ordered (version 7) identifiers used as account
// primary keys, so new rows append to the end of the B-tree index.
package uuid

import "github.com/google/uuid"

// New returns a UUIDv7 string. It panics only if the system entropy source fails.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}
