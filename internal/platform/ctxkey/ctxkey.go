// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxkey holds the request-scoped context keys. Values are read and
// written only through ctxutil.
package ctxkey

type key string

const (
	// KeyRequestID carries the X-Request-ID correlation value.
	KeyRequestID key = "request_id"

	// KeyClaims carries the verified access-token snapshot ([sec.AccessClaims]).
	KeyClaims key = "claims"

	// KeyPrincipal carries the live account loaded by the access gate ([sec.Principal]).
	KeyPrincipal key = "principal"

	// KeyLogger carries the request logger.
	KeyLogger key = "logger"
)
