// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeIdentifier canonicalises a username or email for storage and lookup.
//
// Compatibility decomposition (NFKC) maps look-alike forms such as full-width letters
// onto their ASCII equivalents before case folding, so "Ａlice" and "alice" collide.
func NormalizeIdentifier(identifier string) string {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return ""
	}
	// A Caser carries state, so one is built per call.
	return cases.Fold().String(norm.NFKC.String(trimmed))
}
